package speech

import "context"

// Result is one recognition hypothesis from the recognizer.
type Result struct {
	Transcript string
	IsFinal    bool
	Stability  float32
}

// StreamOptions configures one recognition stream.
type StreamOptions struct {
	LanguageCode string
	// Credentials are service-account JSON; empty means default credentials.
	Credentials []byte
}

// RecognizeStream is one open streaming recognition call.
type RecognizeStream interface {
	Send(chunk []byte) error
	// Recv blocks for the next batch of results and returns io.EOF once the
	// recognizer has flushed everything after CloseSend.
	Recv() ([]Result, error)
	CloseSend() error
	Close() error
}

// Recognizer opens streaming recognition calls.
type Recognizer interface {
	Open(ctx context.Context, opts StreamOptions) (RecognizeStream, error)
}
