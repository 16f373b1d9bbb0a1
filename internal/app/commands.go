package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rbright/glassbridge/internal/audio"
	"github.com/rbright/glassbridge/internal/bridge"
	"github.com/rbright/glassbridge/internal/config"
	"github.com/rbright/glassbridge/internal/eventstream"
	"github.com/rbright/glassbridge/internal/ipc"
	"github.com/rbright/glassbridge/internal/store"
)

const (
	statusTimeout = 220 * time.Millisecond
	// callTimeout covers connectToGlasses, which resolves both arms.
	callTimeout = 30 * time.Second
)

// hostChannel selects reverse host invocations instead of an event channel.
const hostChannel = "host"

func (r Runner) commandCall(ctx context.Context, cfg config.Config, args []string) int {
	req := ipc.Request{Command: args[0]}
	if len(args) > 1 {
		if err := json.Unmarshal([]byte(args[1]), &req.Arguments); err != nil {
			fmt.Fprintf(r.Stderr, "error: arguments must be a JSON object: %v\n", err)
			return 2
		}
	}

	resp, handled, err := tryForward(ctx, req, callTimeout)
	if !handled {
		// Clients outside the bridge's runtime dir can still reach the
		// websocket method channel.
		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()
		resp, err = eventstream.Call(callCtx, cfg.Events.Listen, req)
		if err != nil {
			fmt.Fprintln(r.Stderr, "error: no running glassbridge")
			return 1
		}
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.NotImplemented {
		fmt.Fprintf(r.Stderr, "error: method not implemented: %s\n", req.Command)
		return 1
	}
	if !resp.OK {
		fmt.Fprintf(r.Stderr, "error: %s: %s\n", resp.Code, resp.Error)
		return 1
	}
	return r.printJSON(resp.Result)
}

func (r Runner) commandStatus(ctx context.Context) int {
	resp, handled, err := tryForward(ctx, ipc.Request{Command: ipc.CommandStatus}, statusTimeout)
	if !handled {
		fmt.Fprintln(r.Stdout, "stopped")
		return 0
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if !resp.OK {
		fmt.Fprintf(r.Stderr, "error: %s\n", resp.Error)
		return 1
	}
	return r.printJSON(resp.Result)
}

func (r Runner) commandListen(ctx context.Context, cfg config.Config, target string) int {
	var err error
	if target == hostChannel {
		err = eventstream.ListenHost(ctx, cfg.Events.Listen, func(frame eventstream.ReceivedFrame) error {
			fmt.Fprintf(r.Stdout, "%s %s\n", frame.Method, payloadText(frame.Payload))
			return nil
		})
	} else {
		if !bridge.Channel(target).Valid() {
			fmt.Fprintf(r.Stderr, "error: unknown channel %q\n", target)
			return 2
		}
		err = eventstream.Listen(ctx, cfg.Events.Listen, target, func(frame eventstream.ReceivedFrame) error {
			fmt.Fprintln(r.Stdout, payloadText(frame.Payload))
			return nil
		})
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func payloadText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	return string(raw)
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			yesNo(device.Available),
			yesNo(device.Muted),
		)
	}
	return 0
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func (r Runner) commandContact(ctx context.Context, args []string) int {
	path, err := store.DefaultPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	db, err := store.Open(path)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer db.Close()

	switch args[0] {
	case "add":
		if err := db.PutContact(ctx, args[1], args[2]); err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		fmt.Fprintf(r.Stdout, "saved %s\n", args[2])
	case "list":
		contacts, err := db.Contacts(ctx)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		for _, c := range contacts {
			fmt.Fprintf(r.Stdout, "%s\t%s\n", c.Number, c.DisplayName)
		}
	}
	return 0
}

func (r Runner) printJSON(v any) int {
	data, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: encode result: %v\n", err)
		return 1
	}
	fmt.Fprintln(r.Stdout, string(data))
	return 0
}

// tryForward sends req to the running bridge. handled is false when no
// bridge owns the socket.
func tryForward(ctx context.Context, req ipc.Request, timeout time.Duration) (ipc.Response, bool, error) {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		return ipc.Response{}, false, nil
	}

	resp, err := ipc.Send(ctx, socketPath, req, timeout)
	if err == nil {
		return resp, true, nil
	}
	if ipc.IsSocketMissing(err) || ipc.IsConnectionRefused(err) {
		return ipc.Response{}, false, nil
	}
	return ipc.Response{}, true, fmt.Errorf("forward %q: %w", req.Command, err)
}
