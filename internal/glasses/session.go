package glasses

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/rbright/glassbridge/internal/bridge"
	"github.com/rbright/glassbridge/internal/fsm"
)

// gattError is the connection-failure status reported to the host.
const gattError = 133

// Status strings published on the BLE status channel.
const (
	StatusScanning         = string(fsm.StateScanning)
	StatusConnecting       = string(fsm.StateConnecting)
	StatusConnected        = string(fsm.StateConnected)
	StatusDisconnected     = string(fsm.StateDisconnected)
	StatusConnectionFailed = string(fsm.StateConnectionFailed)
)

// ErrNotConnected is returned by Send without an active connection.
var ErrNotConnected = errors.New("glasses not connected")

// Events receives BLE status and inbound data.
type Events interface {
	BleStatus(payload any)
	BleReceive(payload any)
}

// Options configures a Session.
type Options struct {
	NamePrefix string
	// SendInterval is the minimum spacing between characteristic writes.
	SendInterval time.Duration
	// ScanInterval is how often discovered devices are re-read while scanning.
	ScanInterval time.Duration
	// ResolveAttempts bounds the wait for GATT services after connecting.
	ResolveAttempts int
	Logger          *slog.Logger
}

type arm struct {
	device string
	rx     string
	tx     string
}

type connection struct {
	pair   *pair
	arms   map[Side]arm
	cancel context.CancelFunc
	done   chan struct{}
}

// Session is the bridge's device-session collaborator.
type Session struct {
	bluez   BlueZ
	host    bridge.Host
	events  Events
	opts    Options
	limiter *rate.Limiter
	logger  *slog.Logger

	mu         sync.Mutex
	state      fsm.State
	pairs      map[string]*pair
	announced  map[string]bool
	scanCancel context.CancelFunc
	scanDone   chan struct{}
	conn       *connection
}

// NewSession builds an idle session.
func NewSession(bluez BlueZ, host bridge.Host, events Events, opts Options) *Session {
	if opts.SendInterval <= 0 {
		opts.SendInterval = 8 * time.Millisecond
	}
	if opts.ScanInterval <= 0 {
		opts.ScanInterval = time.Second
	}
	if opts.ResolveAttempts <= 0 {
		opts.ResolveAttempts = 10
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{
		bluez:     bluez,
		host:      host,
		events:    events,
		opts:      opts,
		limiter:   rate.NewLimiter(rate.Every(opts.SendInterval), 1),
		logger:    logger,
		state:     fsm.StateIdle,
		pairs:     make(map[string]*pair),
		announced: make(map[string]bool),
	}
}

// StartScan starts adapter discovery and announces each complete pair once.
func (s *Session) StartScan(ctx context.Context) error {
	s.mu.Lock()
	if s.scanCancel != nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.bluez.StartDiscovery(ctx); err != nil {
		return fmt.Errorf("start discovery: %w", err)
	}

	scanCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.mu.Lock()
	s.scanCancel = cancel
	s.scanDone = done
	s.announced = make(map[string]bool)
	s.mu.Unlock()

	go s.scanLoop(scanCtx, done)
	_ = s.advance(fsm.EventScan)
	s.logger.Info("glasses scan started")
	return nil
}

// StopScan stops discovery; stopping an idle scan is a no-op.
func (s *Session) StopScan(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.scanCancel, s.scanDone
	s.scanCancel, s.scanDone = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	<-done
	if err := s.bluez.StopDiscovery(ctx); err != nil {
		return fmt.Errorf("stop discovery: %w", err)
	}
	_ = s.advance(fsm.EventStopScan)
	s.logger.Info("glasses scan stopped")
	return nil
}

func (s *Session) scanLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.opts.ScanInterval)
	defer ticker.Stop()
	for {
		if err := s.refresh(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("read bluetooth devices failed", "error", err.Error())
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// refresh re-reads BlueZ devices, records arms and announces new pairs.
func (s *Session) refresh(ctx context.Context) error {
	inv, err := s.bluez.Inventory(ctx)
	if err != nil {
		return err
	}

	var found []bridge.PairedDevice
	s.mu.Lock()
	for _, dev := range inv.Devices {
		name, ok := parseArmName(dev.Name, s.opts.NamePrefix)
		if !ok {
			continue
		}
		p := s.pairs[name.channel]
		if p == nil {
			p = newPair(name.channel)
			s.pairs[name.channel] = p
		}
		p.names[name.side] = dev.Name
		p.paths[name.side] = dev.Path
	}
	for channel, p := range s.pairs {
		if p.complete() && !s.announced[channel] {
			s.announced[channel] = true
			found = append(found, p.device())
		}
	}
	s.mu.Unlock()

	for _, device := range found {
		s.logger.Info("found paired glasses", "channel", device.ChannelNumber)
		s.host.FoundPairedGlasses(device)
	}
	return nil
}

// Connect connects both arms of the pair on channel and starts receiving.
func (s *Session) Connect(ctx context.Context, channel string) error {
	p, err := s.lookupPair(ctx, channel)
	if err != nil {
		return err
	}
	info := p.device().InfoJSON()

	if s.Connected() {
		if err := s.Disconnect(ctx); err != nil {
			s.logger.Warn("drop previous connection failed", "error", err.Error())
		}
	}

	if err := s.advance(fsm.EventConnect); err != nil {
		return fmt.Errorf("connect glasses: %w", err)
	}
	s.host.GlassesConnecting(info)

	for _, side := range []Side{Left, Right} {
		if err := s.bluez.ConnectDevice(ctx, p.paths[side]); err != nil {
			s.failConnect(ctx, p)
			return fmt.Errorf("connect %s arm: %w", side, err)
		}
	}

	arms, err := s.resolveArms(ctx, p)
	if err != nil {
		s.failConnect(ctx, p)
		return err
	}
	for _, side := range []Side{Left, Right} {
		if err := s.bluez.StartNotify(ctx, arms[side].tx); err != nil {
			s.failConnect(ctx, p)
			return fmt.Errorf("subscribe %s arm: %w", side, err)
		}
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	conn := &connection{pair: p, arms: arms, cancel: cancel, done: make(chan struct{})}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	s.logger.Info("glasses connected", "channel", p.channel)
	s.host.GlassesConnected(info)
	_ = s.advance(fsm.EventEstablished)
	go s.watch(watchCtx, conn)
	return nil
}

func (s *Session) lookupPair(ctx context.Context, channel string) (*pair, error) {
	s.mu.Lock()
	p := s.pairs[channel]
	s.mu.Unlock()
	if p != nil && p.complete() {
		return p, nil
	}

	if err := s.refresh(ctx); err != nil {
		return nil, fmt.Errorf("read bluetooth devices: %w", err)
	}
	s.mu.Lock()
	p = s.pairs[channel]
	s.mu.Unlock()
	if p == nil || !p.complete() {
		return nil, fmt.Errorf("no paired glasses found for channel %s", channel)
	}
	return p, nil
}

// resolveArms waits for BlueZ to expose the UART characteristics of both arms.
func (s *Session) resolveArms(ctx context.Context, p *pair) (map[Side]arm, error) {
	for attempt := 0; ; attempt++ {
		inv, err := s.bluez.Inventory(ctx)
		if err != nil {
			return nil, fmt.Errorf("read gatt services: %w", err)
		}
		arms := make(map[Side]arm, 2)
		for _, side := range []Side{Left, Right} {
			a := arm{device: p.paths[side]}
			for _, ch := range inv.Characteristics {
				if ch.Device != a.device {
					continue
				}
				switch ch.UUID {
				case uartRXUUID:
					a.rx = ch.Path
				case uartTXUUID:
					a.tx = ch.Path
				}
			}
			if a.rx != "" && a.tx != "" {
				arms[side] = a
			}
		}
		if len(arms) == 2 {
			return arms, nil
		}
		if attempt+1 >= s.opts.ResolveAttempts {
			return nil, errors.New("glasses uart service not resolved")
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}

func (s *Session) failConnect(ctx context.Context, p *pair) {
	for _, side := range []Side{Left, Right} {
		_ = s.bluez.DisconnectDevice(ctx, p.paths[side])
	}
	s.logger.Warn("glasses connection failed", "channel", p.channel)
	s.host.GlassesConnectionFailed(gattError)
	_ = s.advance(fsm.EventFail)
}

// watch forwards inbound UART data and detects a dropped link.
func (s *Session) watch(ctx context.Context, conn *connection) {
	defer close(conn.done)

	sideOf := make(map[string]Side, 4)
	var paths []string
	for side, a := range conn.arms {
		sideOf[a.tx] = side
		sideOf[a.device] = side
		paths = append(paths, a.tx, a.device)
	}

	err := s.bluez.Watch(ctx, paths, func(change Change) {
		side, ok := sideOf[change.Path]
		if !ok {
			return
		}
		switch change.Interface {
		case ifaceCharacteristic:
			data, ok := change.Changed["Value"].Value().([]byte)
			if !ok {
				return
			}
			s.events.BleReceive(receivePayload(side, data))
		case ifaceDevice:
			if connected, ok := change.Changed["Connected"].Value().(bool); ok && !connected {
				s.logger.Warn("glasses arm disconnected", "side", string(side))
				go s.linkLost(conn)
			}
		}
	})
	if err != nil && ctx.Err() == nil {
		s.logger.Warn("glasses watch ended", "error", err.Error())
	}
}

// receivePayload keeps bytes as numbers so the JSON stays a list.
func receivePayload(side Side, data []byte) map[string]any {
	values := make([]int, len(data))
	for i, b := range data {
		values[i] = int(b)
	}
	return map[string]any{"lr": string(side), "data": values}
}

func (s *Session) linkLost(conn *connection) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.mu.Unlock()

	conn.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, a := range conn.arms {
		_ = s.bluez.DisconnectDevice(ctx, a.device)
	}
	s.host.GlassesDisconnected(conn.pair.device().InfoJSON())
	_ = s.advance(fsm.EventDisconnect)
}

// Disconnect drops the active connection; without one it is a no-op.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn == nil {
		return nil
	}

	conn.cancel()
	<-conn.done

	var errs []error
	for _, side := range []Side{Left, Right} {
		if err := s.bluez.DisconnectDevice(ctx, conn.arms[side].device); err != nil {
			errs = append(errs, fmt.Errorf("disconnect %s arm: %w", side, err))
		}
	}
	s.logger.Info("glasses disconnected", "channel", conn.pair.channel)
	s.host.GlassesDisconnected(conn.pair.device().InfoJSON())
	_ = s.advance(fsm.EventDisconnect)
	return errors.Join(errs...)
}

// Send writes payload["data"] to the arm named by payload["lr"], or to both
// arms left first when lr is absent.
func (s *Session) Send(ctx context.Context, payload map[string]any) error {
	data, err := payloadBytes(payload["data"])
	if err != nil {
		return err
	}

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	sides := []Side{Left, Right}
	if lr, ok := payload["lr"].(string); ok && lr != "" {
		side := Side(lr)
		if side != Left && side != Right {
			return fmt.Errorf("unknown arm %q", lr)
		}
		sides = []Side{side}
	}

	for _, side := range sides {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := s.bluez.WriteValue(ctx, conn.arms[side].rx, data); err != nil {
			return fmt.Errorf("write %s arm: %w", side, err)
		}
	}
	return nil
}

// payloadBytes accepts a byte slice or a JSON number list.
func payloadBytes(raw any) ([]byte, error) {
	switch v := raw.(type) {
	case []byte:
		return v, nil
	case []any:
		out := make([]byte, len(v))
		for i, item := range v {
			n, ok := item.(float64)
			if !ok || n < 0 || n > 255 || n != float64(int(n)) {
				return nil, fmt.Errorf("data[%d] is not a byte", i)
			}
			out[i] = byte(n)
		}
		return out, nil
	case nil:
		return nil, errors.New("data is required")
	default:
		return nil, fmt.Errorf("unsupported data type %T", raw)
	}
}

// Connected reports whether both arms are connected.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Close stops scanning and disconnects.
func (s *Session) Close(ctx context.Context) error {
	return errors.Join(s.StopScan(ctx), s.Disconnect(ctx))
}

// State reports the current link state.
func (s *Session) State() fsm.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// advance applies event to the link state and publishes the new state when
// it changed. Returning to idle is not reported.
func (s *Session) advance(event fsm.Event) error {
	s.mu.Lock()
	prev := s.state
	next, err := fsm.Transition(prev, event)
	if err != nil {
		s.mu.Unlock()
		s.logger.Debug("link transition rejected", "state", string(prev), "event", string(event))
		return err
	}
	s.state = next
	s.mu.Unlock()

	if next != prev && next != fsm.StateIdle && s.events != nil {
		s.events.BleStatus(string(next))
	}
	return nil
}
