package speech

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	cloudspeech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/rbright/glassbridge/internal/audio"
)

// Cloud streams audio to Google Cloud Speech-to-Text.
type Cloud struct {
	// Endpoint overrides the service address (host:port).
	Endpoint string
	// Insecure dials Endpoint in plaintext without credentials, for local
	// emulators.
	Insecure bool
	// Debug receives every response as one protojson line when set.
	Debug io.Writer
}

// Open dials the service and sends the streaming config.
func (c Cloud) Open(ctx context.Context, opts StreamOptions) (RecognizeStream, error) {
	client, err := cloudspeech.NewClient(ctx, c.clientOptions(opts.Credentials)...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}

	stream, err := client.StreamingRecognize(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("open streaming recognizer: %w", err)
	}

	if err := stream.Send(configRequest(opts.LanguageCode)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("send streaming config: %w", err)
	}

	return &cloudStream{client: client, stream: stream, debug: c.Debug}, nil
}

func (c Cloud) clientOptions(credentials []byte) []option.ClientOption {
	opts := []option.ClientOption{option.WithGRPCDialOption(grpc.WithUserAgent("glassbridge"))}
	if endpoint := strings.TrimSpace(c.Endpoint); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	if c.Insecure {
		return append(opts,
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	if len(credentials) > 0 {
		opts = append(opts, option.WithCredentialsJSON(credentials))
	}
	return opts
}

func configRequest(languageCode string) *speechpb.StreamingRecognizeRequest {
	if strings.TrimSpace(languageCode) == "" {
		languageCode = DefaultLanguageCode
	}
	return &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz:            audio.SampleRateHz,
					AudioChannelCount:          1,
					LanguageCode:               languageCode,
					EnableAutomaticPunctuation: true,
				},
				InterimResults: true,
			},
		},
	}
}

type cloudStream struct {
	client *cloudspeech.Client
	stream speechpb.Speech_StreamingRecognizeClient
	debug  io.Writer

	closeOnce sync.Once
	closeErr  error
}

func (s *cloudStream) Send(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	return s.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{AudioContent: chunk},
	})
}

func (s *cloudStream) Recv() ([]Result, error) {
	resp, err := s.stream.Recv()
	if err != nil {
		return nil, err
	}
	s.dump(resp)
	return responseResults(resp)
}

func (s *cloudStream) CloseSend() error {
	return s.stream.CloseSend()
}

func (s *cloudStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.client.Close()
	})
	return s.closeErr
}

func (s *cloudStream) dump(resp *speechpb.StreamingRecognizeResponse) {
	if s.debug == nil {
		return
	}
	b, err := protojson.Marshal(resp)
	if err != nil {
		return
	}
	_, _ = s.debug.Write(append(b, '\n'))
}

// responseResults keeps the top alternative of each result.
func responseResults(resp *speechpb.StreamingRecognizeResponse) ([]Result, error) {
	if status := resp.GetError(); status != nil && status.GetCode() != 0 {
		return nil, fmt.Errorf("recognizer error %d: %s", status.GetCode(), status.GetMessage())
	}

	results := make([]Result, 0, len(resp.GetResults()))
	for _, result := range resp.GetResults() {
		alternatives := result.GetAlternatives()
		if len(alternatives) == 0 {
			continue
		}
		results = append(results, Result{
			Transcript: alternatives[0].GetTranscript(),
			IsFinal:    result.GetIsFinal(),
			Stability:  result.GetStability(),
		})
	}
	return results, nil
}
