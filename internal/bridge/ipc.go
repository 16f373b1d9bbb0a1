package bridge

import (
	"context"

	"github.com/rbright/glassbridge/internal/ipc"
)

// Handle serves one method-channel request through the dispatcher.
func (d *Dispatcher) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	return ResponseFor(req.ID, d.Dispatch(ctx, Command{Name: req.Command, Arguments: req.Arguments}))
}

// ResponseFor encodes a Result as its wire response.
func ResponseFor(id string, result Result) ipc.Response {
	switch {
	case result.NotImplemented:
		return ipc.Response{ID: id, NotImplemented: true, Error: "not implemented"}
	case result.Err != nil:
		return ipc.Response{ID: id, Code: string(result.Err.Kind), Error: result.Err.Message}
	default:
		return ipc.Response{ID: id, OK: true, Result: result.Value}
	}
}
