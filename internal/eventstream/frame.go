package eventstream

import (
	"encoding/json"

	"github.com/rbright/glassbridge/internal/ipc"
)

// Frame types.
const (
	FrameEvent    = "event"
	FrameInvoke   = "invoke"
	FrameResponse = "response"
)

// Frame is one server-to-client websocket message.
type Frame struct {
	Type     string        `json:"type"`
	Channel  string        `json:"channel,omitempty"`
	Method   string        `json:"method,omitempty"`
	Payload  any           `json:"payload,omitempty"`
	Response *ipc.Response `json:"response,omitempty"`
}

// ReceivedFrame is a Frame with its payload left undecoded.
type ReceivedFrame struct {
	Type     string          `json:"type"`
	Channel  string          `json:"channel,omitempty"`
	Method   string          `json:"method,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Response *ipc.Response   `json:"response,omitempty"`
}
