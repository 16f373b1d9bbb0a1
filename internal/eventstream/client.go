package eventstream

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/rbright/glassbridge/internal/ipc"
)

// Listen subscribes to channel on the server at addr and calls fn for every
// frame until ctx ends, the server goes away, or fn errors.
func Listen(ctx context.Context, addr string, channel string, fn func(ReceivedFrame) error) error {
	ws, _, err := websocket.Dial(ctx, endpointURL(addr, "/events/"+url.PathEscape(channel)), nil)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	defer ws.CloseNow()
	return readFrames(ctx, ws, fn)
}

// ListenHost connects as the host and calls fn for every reverse invocation.
// Connecting replaces any previously connected host.
func ListenHost(ctx context.Context, addr string, fn func(ReceivedFrame) error) error {
	ws, _, err := websocket.Dial(ctx, endpointURL(addr, "/method"), nil)
	if err != nil {
		return fmt.Errorf("connect method channel: %w", err)
	}
	defer ws.CloseNow()
	return readFrames(ctx, ws, func(frame ReceivedFrame) error {
		if frame.Type != FrameInvoke {
			return nil
		}
		return fn(frame)
	})
}

func readFrames(ctx context.Context, ws *websocket.Conn, fn func(ReceivedFrame) error) error {
	for {
		var frame ReceivedFrame
		if err := wsjson.Read(ctx, ws, &frame); err != nil {
			status := websocket.CloseStatus(err)
			if ctx.Err() != nil || status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}
		if err := fn(frame); err != nil {
			_ = ws.Close(websocket.StatusNormalClosure, "")
			return err
		}
	}
}

// Call performs one method-channel roundtrip over the websocket endpoint. It
// connects as a client, so the current host keeps receiving invocations.
func Call(ctx context.Context, addr string, req ipc.Request) (ipc.Response, error) {
	if req.ID == "" {
		req.ID = ipc.NewRequestID()
	}

	ws, _, err := websocket.Dial(ctx, endpointURL(addr, "/method?role=client"), nil)
	if err != nil {
		return ipc.Response{}, fmt.Errorf("dial method channel: %w", err)
	}
	defer ws.CloseNow()

	if err := wsjson.Write(ctx, ws, req); err != nil {
		return ipc.Response{}, fmt.Errorf("write request: %w", err)
	}
	for {
		var frame ReceivedFrame
		if err := wsjson.Read(ctx, ws, &frame); err != nil {
			return ipc.Response{}, fmt.Errorf("read response: %w", err)
		}
		if frame.Type == FrameResponse && frame.Response != nil && frame.Response.ID == req.ID {
			_ = ws.Close(websocket.StatusNormalClosure, "")
			return *frame.Response, nil
		}
	}
}

func endpointURL(addr string, path string) string {
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		return strings.TrimSuffix(addr, "/") + path
	}
	return "ws://" + addr + path
}
