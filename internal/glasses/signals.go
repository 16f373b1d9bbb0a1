package glasses

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
)

const propertiesChanged = ifaceProperties + ".PropertiesChanged"

// removeMatchTimeout bounds match-rule cleanup after a watch ends.
const removeMatchTimeout = 2 * time.Second

var errBusClosed = errors.New("system bus connection closed")

// signalConn is the part of *dbus.Conn the property watch uses.
type signalConn interface {
	AddMatchSignalContext(ctx context.Context, options ...dbus.MatchOption) error
	RemoveMatchSignalContext(ctx context.Context, options ...dbus.MatchOption) error
	Signal(ch chan<- *dbus.Signal)
	RemoveSignal(ch chan<- *dbus.Signal)
}

// Watch streams PropertiesChanged signals for paths until ctx ends. It
// subscribes with bus match rules, which needs no monitor privileges.
func (c CLI) Watch(ctx context.Context, paths []string, fn func(Change)) error {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("connect system bus: %w", err)
	}
	defer conn.Close()
	return watchProperties(ctx, conn, paths, fn)
}

func propertiesMatch(path string) []dbus.MatchOption {
	return []dbus.MatchOption{
		dbus.WithMatchSender("org.bluez"),
		dbus.WithMatchInterface(ifaceProperties),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchObjectPath(dbus.ObjectPath(path)),
	}
}

func watchProperties(ctx context.Context, conn signalConn, paths []string, fn func(Change)) error {
	watched := make(map[dbus.ObjectPath]bool, len(paths))
	for _, path := range paths {
		if err := conn.AddMatchSignalContext(ctx, propertiesMatch(path)...); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		watched[dbus.ObjectPath(path)] = true
	}
	defer func() {
		cleanup, cancel := context.WithTimeout(context.Background(), removeMatchTimeout)
		defer cancel()
		for path := range watched {
			_ = conn.RemoveMatchSignalContext(cleanup, propertiesMatch(string(path))...)
		}
	}()

	signals := make(chan *dbus.Signal, 16)
	conn.Signal(signals)
	defer conn.RemoveSignal(signals)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-signals:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errBusClosed
			}
			if !watched[sig.Path] {
				continue
			}
			if change, ok := changeFromSignal(sig); ok {
				fn(change)
			}
		}
	}
}

// changeFromSignal decodes a PropertiesChanged body (sa{sv}as).
func changeFromSignal(sig *dbus.Signal) (Change, bool) {
	if sig == nil || sig.Name != propertiesChanged || len(sig.Body) < 2 {
		return Change{}, false
	}
	iface, ok := sig.Body[0].(string)
	if !ok {
		return Change{}, false
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return Change{}, false
	}
	return Change{Path: string(sig.Path), Interface: iface, Changed: changed}, true
}
