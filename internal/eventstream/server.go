// Package eventstream exposes the bridge's event channels and method channel
// over websockets.
package eventstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/rbright/glassbridge/internal/bridge"
	"github.com/rbright/glassbridge/internal/ipc"
)

// DefaultQueueSize bounds buffered frames per connection.
const DefaultQueueSize = 64

const writeTimeout = 5 * time.Second

// ErrQueueFull is returned to the broadcaster when a subscriber falls behind.
var ErrQueueFull = errors.New("event queue full")

// Server serves /events/{channel} subscriptions and the /method channel. It
// is also the bridge's HostInvoker: reverse calls go to the most recent
// /method connection.
type Server struct {
	events    *bridge.Broadcaster
	methods   ipc.Handler
	queueSize int
	logger    *slog.Logger

	mu      sync.Mutex
	host    *outbox
	httpSrv *http.Server
	addr    string
}

// NewServer builds a server over the broadcaster and method handler.
func NewServer(events *bridge.Broadcaster, methods ipc.Handler, queueSize int, logger *slog.Logger) *Server {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{events: events, methods: methods, queueSize: queueSize, logger: logger}
}

// SetMethods installs the method handler; it must be called before serving.
func (s *Server) SetMethods(methods ipc.Handler) {
	s.methods = methods
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /events/{channel}", s.handleEvents)
	mux.HandleFunc("GET /method", s.handleMethod)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

// Serve listens on addr until ctx ends.
func (s *Server) Serve(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("event server listen: %w", err)
	}
	return s.ServeListener(ctx, listener)
}

// ServeListener serves on an existing listener until ctx ends.
func (s *Server) ServeListener(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	s.mu.Lock()
	s.httpSrv = srv
	s.addr = listener.Addr().String()
	s.mu.Unlock()

	s.logger.Info("event server started", "addr", listener.Addr().String())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("event server serve: %w", err)
	}
	return nil
}

// Addr is the bound address once serving.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Invoke delivers a reverse call to the connected host. Without a host the
// call is dropped.
func (s *Server) Invoke(method string, payload any) {
	s.mu.Lock()
	host := s.host
	s.mu.Unlock()
	if host == nil {
		s.logger.Debug("host invocation dropped; no host connected", "method", method)
		return
	}
	if err := host.offer(Frame{Type: FrameInvoke, Method: method, Payload: payload}); err != nil {
		s.logger.Warn("host invocation dropped", "method", method, "error", err.Error())
	}
}

// HostConnected reports whether a /method connection is open.
func (s *Server) HostConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.host != nil
}

func accept(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost", "localhost:*", "127.0.0.1", "127.0.0.1:*", "[::1]", "[::1]:*"},
	})
}

// outbox is one connection's bounded write queue. offer never blocks.
type outbox struct {
	queue chan Frame
}

func newOutbox(size int) *outbox {
	return &outbox{queue: make(chan Frame, size)}
}

func (o *outbox) offer(frame Frame) error {
	select {
	case o.queue <- frame:
		return nil
	default:
		return ErrQueueFull
	}
}

// drain writes queued frames until ctx ends or a write fails.
func (o *outbox) drain(ctx context.Context, ws *websocket.Conn) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame := <-o.queue:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, ws, frame)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

// eventSink adapts an outbox to bridge.Sink for one channel.
type eventSink struct {
	channel bridge.Channel
	out     *outbox
}

func (e eventSink) Success(payload any) error {
	return e.out.offer(Frame{Type: FrameEvent, Channel: string(e.channel), Payload: payload})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	channel := bridge.Channel(r.PathValue("channel"))
	if !channel.Valid() {
		http.Error(w, fmt.Sprintf("unknown event channel %q", channel), http.StatusNotFound)
		return
	}

	ws, err := accept(w, r)
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err.Error())
		return
	}
	defer ws.CloseNow()

	out := newOutbox(s.queueSize)
	release, err := s.events.Register(channel, eventSink{channel: channel, out: out})
	if err != nil {
		_ = ws.Close(websocket.StatusPolicyViolation, err.Error())
		return
	}
	defer release()

	s.logger.Info("event subscriber connected", "channel", string(channel))

	// Subscribers never send; CloseRead surfaces their disconnect.
	ctx := ws.CloseRead(r.Context())
	if err := out.drain(ctx, ws); err != nil {
		s.logger.Warn("event write failed", "channel", string(channel), "error", err.Error())
		return
	}
	s.logger.Info("event subscriber disconnected", "channel", string(channel))
}

// handleMethod answers ipc.Request messages with response frames and carries
// reverse invocations while it is the current host connection.
func (s *Server) handleMethod(w http.ResponseWriter, r *http.Request) {
	ws, err := accept(w, r)
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err.Error())
		return
	}
	defer ws.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// role=client connections only make calls and never receive invocations.
	asHost := r.URL.Query().Get("role") != "client"

	out := newOutbox(s.queueSize)
	if asHost {
		s.mu.Lock()
		s.host = out
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			if s.host == out {
				s.host = nil
			}
			s.mu.Unlock()
		}()
		s.logger.Info("host connected")
	}

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		if err := out.drain(ctx, ws); err != nil {
			s.logger.Warn("host write failed", "error", err.Error())
			cancel()
		}
	}()

	for {
		var req ipc.Request
		if err := wsjson.Read(ctx, ws, &req); err != nil {
			break
		}
		resp := s.methods.Handle(ctx, req)
		if resp.ID == "" {
			resp.ID = req.ID
		}
		select {
		case out.queue <- Frame{Type: FrameResponse, Response: &resp}:
		case <-ctx.Done():
		}
	}

	cancel()
	<-writeDone
	if asHost {
		s.logger.Info("host disconnected")
	}
}
