package speech

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/rbright/glassbridge/internal/audio"
)

type fakeStream struct {
	mu        sync.Mutex
	sent      [][]byte
	results   chan []Result
	closeOnce sync.Once
	closed    bool
	// lingers keeps Recv blocked after CloseSend, like a recognizer that
	// never sends its final response.
	lingers bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{results: make(chan []Result, 16)}
}

func (s *fakeStream) Send(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, chunk)
	return nil
}

func (s *fakeStream) Recv() ([]Result, error) {
	results, ok := <-s.results
	if !ok {
		return nil, io.EOF
	}
	return results, nil
}

func (s *fakeStream) CloseSend() error {
	if s.lingers {
		return nil
	}
	s.closeOnce.Do(func() { close(s.results) })
	return nil
}

func (s *fakeStream) Close() error {
	s.closeOnce.Do(func() { close(s.results) })
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStream) chunks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type fakeRecognizer struct {
	mu      sync.Mutex
	opened  []StreamOptions
	streams []*fakeStream
	err     error
	// hang blocks Open until ctx ends.
	hang    bool
	lingers bool
}

func (r *fakeRecognizer) Open(ctx context.Context, opts StreamOptions) (RecognizeStream, error) {
	r.mu.Lock()
	r.opened = append(r.opened, opts)
	hang := r.hang
	r.mu.Unlock()
	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	stream := newFakeStream()
	stream.lingers = r.lingers
	r.streams = append(r.streams, stream)
	return stream, nil
}

func (r *fakeRecognizer) stream(i int) *fakeStream {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i >= len(r.streams) {
		return nil
	}
	return r.streams[i]
}

func (r *fakeRecognizer) opens() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.opened)
}

type fakeCapture struct {
	chunks chan []byte
	once   sync.Once
}

func (c *fakeCapture) Chunks() <-chan []byte { return c.chunks }

func (c *fakeCapture) Stop() error {
	c.once.Do(func() { close(c.chunks) })
	return nil
}

type fakeAudio struct {
	mu       sync.Mutex
	captures []*fakeCapture
	err      error
}

func (a *fakeAudio) Open(context.Context) (audio.Stream, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	capture := &fakeCapture{chunks: make(chan []byte, 16)}
	a.captures = append(a.captures, capture)
	return capture, nil
}

func (a *fakeAudio) capture(i int) *fakeCapture {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i >= len(a.captures) {
		return nil
	}
	return a.captures[i]
}

type fakeCues struct {
	mu     sync.Mutex
	played []audio.Cue
}

func (c *fakeCues) Play(_ context.Context, cue audio.Cue) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.played = append(c.played, cue)
	return nil
}

func (c *fakeCues) snapshot() []audio.Cue {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]audio.Cue(nil), c.played...)
}

type fakeEvents struct {
	mu       sync.Mutex
	payloads []map[string]any
}

func (e *fakeEvents) SpeechRecognize(payload any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.payloads = append(e.payloads, payload.(map[string]any))
}

func (e *fakeEvents) snapshot() []map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]map[string]any(nil), e.payloads...)
}

var errDial = errors.New("dial failed")
