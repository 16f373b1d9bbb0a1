// Package fsm defines the glasses link lifecycle. State values double as the
// status strings published to the host.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle             State = "idle"
	StateScanning         State = "scanning"
	StateConnecting       State = "connecting"
	StateConnected        State = "connected"
	StateDisconnected     State = "disconnected"
	StateConnectionFailed State = "connectionFailed"
)

const (
	EventScan        Event = "scan"
	EventStopScan    Event = "stopScan"
	EventConnect     Event = "connect"
	EventEstablished Event = "established"
	EventFail        Event = "fail"
	EventDisconnect  Event = "disconnect"
)

// Transition returns the state after event. Scan events leave an active or
// pending link untouched since discovery runs alongside it.
func Transition(current State, event Event) (State, error) {
	switch current {
	case StateIdle, StateDisconnected, StateConnectionFailed:
		switch event {
		case EventScan:
			return StateScanning, nil
		case EventStopScan:
			return current, nil
		case EventConnect:
			return StateConnecting, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateScanning:
		switch event {
		case EventScan:
			return current, nil
		case EventStopScan:
			return StateIdle, nil
		case EventConnect:
			return StateConnecting, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateConnecting:
		switch event {
		case EventScan, EventStopScan:
			return current, nil
		case EventEstablished:
			return StateConnected, nil
		case EventFail:
			return StateConnectionFailed, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateConnected:
		switch event {
		case EventScan, EventStopScan:
			return current, nil
		case EventDisconnect:
			return StateDisconnected, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
