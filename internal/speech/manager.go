// Package speech runs microphone capture against a streaming recognizer and
// publishes the running transcript.
package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/rbright/glassbridge/internal/audio"
)

const (
	defaultBreakerFailures = 3
	defaultBreakerTimeout  = 30 * time.Second
	defaultFinalizeTimeout = 5 * time.Second
)

// AudioSource opens microphone capture.
type AudioSource interface {
	Open(ctx context.Context) (audio.Stream, error)
}

// CuePlayer plays listen start/stop cues.
type CuePlayer interface {
	Play(ctx context.Context, cue audio.Cue) error
}

// Publisher receives transcript updates.
type Publisher interface {
	SpeechRecognize(payload any)
}

// Options configures a Manager.
type Options struct {
	Recognizer Recognizer
	Audio      AudioSource
	// Cues is optional.
	Cues   CuePlayer
	Events Publisher
	// Credentials are the initial service-account JSON, if any.
	Credentials []byte
	// BreakerFailures is the consecutive open failures that trip the breaker.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	FinalizeTimeout time.Duration
	Logger          *slog.Logger
}

// Manager is the bridge's speech collaborator. At most one recognition is
// active; a stopped one may still be draining its final transcript.
type Manager struct {
	recognizer Recognizer
	audio      AudioSource
	cues       CuePlayer
	events     Publisher
	breaker    *gobreaker.CircuitBreaker[RecognizeStream]
	finalize   time.Duration
	logger     *slog.Logger

	mu          sync.Mutex
	credentials []byte
	active      *recognition
	runs        sync.WaitGroup
}

type recognition struct {
	stop chan struct{}
	once sync.Once

	mu      sync.Mutex
	opening context.CancelFunc
}

// requestStop signals the run to finish and aborts a stream open in flight.
func (r *recognition) requestStop() {
	r.once.Do(func() {
		close(r.stop)
		r.mu.Lock()
		if r.opening != nil {
			r.opening()
		}
		r.mu.Unlock()
	})
}

// openContext returns the context for opening the stream. requestStop
// cancels it until openDone is called.
func (r *recognition) openContext(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	r.mu.Lock()
	r.opening = cancel
	r.mu.Unlock()
	if r.stopped() {
		cancel()
	}
	return ctx
}

func (r *recognition) openDone() {
	r.mu.Lock()
	r.opening = nil
	r.mu.Unlock()
}

func (r *recognition) stopped() bool {
	select {
	case <-r.stop:
		return true
	default:
		return false
	}
}

// NewManager builds an idle manager.
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	failures := opts.BreakerFailures
	if failures == 0 {
		failures = defaultBreakerFailures
	}
	timeout := opts.BreakerTimeout
	if timeout <= 0 {
		timeout = defaultBreakerTimeout
	}
	finalize := opts.FinalizeTimeout
	if finalize <= 0 {
		finalize = defaultFinalizeTimeout
	}

	breaker := gobreaker.NewCircuitBreaker[RecognizeStream](gobreaker.Settings{
		Name:        "speech",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// A stop during dial says nothing about the recognizer's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Manager{
		recognizer:  opts.Recognizer,
		audio:       opts.Audio,
		cues:        opts.Cues,
		events:      opts.Events,
		breaker:     breaker,
		finalize:    finalize,
		logger:      logger,
		credentials: opts.Credentials,
	}
}

// Initialize installs service-account credentials for later streams.
func (m *Manager) Initialize(_ context.Context, credentialsJSON string) error {
	kind, err := credentialsType([]byte(credentialsJSON))
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.credentials = []byte(credentialsJSON)
	m.mu.Unlock()
	m.logger.Info("speech credentials installed", "type", kind)
	return nil
}

// ValidateCredentials checks that data is a credentials JSON object.
func ValidateCredentials(data []byte) error {
	_, err := credentialsType(data)
	return err
}

func credentialsType(data []byte) (string, error) {
	var header struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return "", fmt.Errorf("parse speech credentials: %w", err)
	}
	return header.Type, nil
}

// StartRecognition starts capture and recognition in the background. A
// previous recognition is asked to stop and finishes on its own.
func (m *Manager) StartRecognition(ctx context.Context, language string) error {
	if m.recognizer == nil || m.audio == nil {
		return errors.New("speech recognizer not configured")
	}
	if err := m.StopRecognition(ctx); err != nil {
		return err
	}

	r := &recognition{stop: make(chan struct{})}
	m.mu.Lock()
	m.active = r
	opts := StreamOptions{LanguageCode: LanguageCode(language), Credentials: m.credentials}
	m.runs.Add(1)
	m.mu.Unlock()

	m.logger.Info("speech recognition starting", "language", opts.LanguageCode)
	go m.run(r, opts)
	return nil
}

// StopRecognition asks the active recognition to finish and returns without
// waiting; the final transcript is published when the recognizer drains.
// Stopping while idle is a no-op.
func (m *Manager) StopRecognition(context.Context) error {
	m.mu.Lock()
	r := m.active
	m.active = nil
	m.mu.Unlock()
	if r != nil {
		r.requestStop()
	}
	return nil
}

// Wait blocks until every started recognition has published its final
// transcript or ctx ends.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether a recognition is active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil
}

func (m *Manager) run(r *recognition, opts StreamOptions) {
	defer m.runs.Done()
	defer m.clear(r)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	openCtx := r.openContext(ctx)
	stream, err := m.breaker.Execute(func() (RecognizeStream, error) {
		return m.recognizer.Open(openCtx, opts)
	})
	r.openDone()
	if err == nil && r.stopped() {
		_ = stream.CloseSend()
		_ = stream.Close()
		err = context.Canceled
	}
	if errors.Is(err, context.Canceled) && r.stopped() {
		m.logger.Info("speech recognition stopped before streaming")
		m.publish("", true)
		return
	}
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("speech recognizer circuit open: %w", err)
		}
		m.logger.Error("speech recognition failed to start", "error", err.Error())
		m.publish("", true)
		return
	}
	defer stream.Close()

	capture, err := m.audio.Open(ctx)
	if err != nil {
		m.logger.Error("speech capture failed to start", "error", err.Error())
		_ = stream.CloseSend()
		m.publish("", true)
		return
	}

	if c, ok := capture.(interface{ Device() audio.Device }); ok {
		m.logger.Info("speech capture started", "device", c.Device().ID, "language", opts.LanguageCode)
	}
	m.playCue(ctx, audio.CueListenStart)

	var (
		mu   sync.Mutex
		text transcript
	)
	recvDone := make(chan error, 1)
	go func() {
		recvDone <- m.receive(stream, func(results []Result) {
			mu.Lock()
			for _, result := range results {
				text.observe(result)
			}
			script := text.script()
			mu.Unlock()
			m.publish(script, false)
		})
	}()

	sendErr := m.pump(r, capture, stream)
	_ = capture.Stop()
	_ = stream.CloseSend()
	if sendErr != nil {
		m.logger.Warn("speech audio send failed", "error", sendErr.Error())
	}

	select {
	case err := <-recvDone:
		if err != nil {
			m.logger.Warn("speech recognition ended with error", "error", err.Error())
		}
	case <-time.After(m.finalize):
		m.logger.Warn("speech recognizer did not finish in time", "timeout", m.finalize.String())
	}

	mu.Lock()
	script := text.script()
	mu.Unlock()
	m.publish(script, true)
	m.playCue(ctx, audio.CueListenStop)
	fields := []any{"chars", len(script)}
	if c, ok := capture.(interface{ BytesCaptured() int64 }); ok {
		fields = append(fields, "bytes_captured", c.BytesCaptured())
	}
	m.logger.Info("speech recognition stopped", fields...)
}

// pump forwards capture chunks until stop is requested or capture ends.
func (m *Manager) pump(r *recognition, capture audio.Stream, stream RecognizeStream) error {
	chunks := capture.Chunks()
	for {
		select {
		case <-r.stop:
			_ = capture.Stop()
			for chunk := range chunks {
				if err := stream.Send(chunk); err != nil {
					return err
				}
			}
			return nil
		case chunk, ok := <-chunks:
			if !ok {
				return nil
			}
			if err := stream.Send(chunk); err != nil {
				return err
			}
		}
	}
}

func (m *Manager) receive(stream RecognizeStream, fn func([]Result)) error {
	for {
		results, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if len(results) > 0 {
			fn(results)
		}
	}
}

// clear drops r as the active recognition when it ended on its own.
func (m *Manager) clear(r *recognition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == r {
		m.active = nil
	}
}

func (m *Manager) publish(script string, final bool) {
	if m.events == nil {
		return
	}
	m.events.SpeechRecognize(map[string]any{"script": script, "isFinal": final})
}

func (m *Manager) playCue(ctx context.Context, cue audio.Cue) {
	if m.cues == nil {
		return
	}
	if err := m.cues.Play(ctx, cue); err != nil {
		m.logger.Debug("speech cue failed", "error", err.Error())
	}
}
