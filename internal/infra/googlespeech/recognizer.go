package googlespeech

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"voice-summary/internal/domain"
	"voice-summary/internal/infra"
)

// ServiceName is how recognition failures are reported to the user.
const ServiceName = "Google Speech Recognition"

// RecognizeClient is the subset of *speech.Client the recognizer needs.
type RecognizeClient interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
	Close() error
}

type Options struct {
	APIKey          string
	CredentialsFile string
	Language        string
	SampleRate      int
	Retry           infra.RetryConfig
}

type Recognizer struct {
	client     RecognizeClient
	language   string
	sampleRate int32
	retry      infra.RetryConfig
}

// NewRecognizer dials the Cloud Speech API. Without an API key or credentials
// file, Application Default Credentials are used.
func NewRecognizer(ctx context.Context, opts Options) (*Recognizer, error) {
	var clientOpts []option.ClientOption
	switch {
	case opts.APIKey != "":
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	case opts.CredentialsFile != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}

	client, err := speech.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating speech client: %w", err)
	}

	return NewRecognizerWithClient(client, opts), nil
}

func NewRecognizerWithClient(client RecognizeClient, opts Options) *Recognizer {
	if opts.Language == "" {
		opts.Language = "en-US"
	}
	if opts.SampleRate == 0 {
		opts.SampleRate = 16000
	}
	return &Recognizer{
		client:     client,
		language:   opts.Language,
		sampleRate: int32(opts.SampleRate),
		retry:      opts.Retry,
	}
}

func (r *Recognizer) Transcribe(ctx context.Context, audio []byte) (string, error) {
	req := &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz: r.sampleRate,
			LanguageCode:    r.language,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	}

	var resp *speechpb.RecognizeResponse
	err := infra.WithRetry(ctx, r.retry, func() error {
		var err error
		resp, err = r.client.Recognize(ctx, req)
		return classify(err)
	})
	if err != nil {
		return "", domain.NewRequestError(ServiceName, err)
	}

	var parts []string
	for _, result := range resp.GetResults() {
		alternatives := result.GetAlternatives()
		if len(alternatives) == 0 {
			continue
		}
		if text := strings.TrimSpace(alternatives[0].GetTranscript()); text != "" {
			parts = append(parts, text)
		}
	}

	if len(parts) == 0 {
		return "", domain.ErrUnintelligible
	}

	return strings.Join(parts, " "), nil
}

// classify marks RPC failures that a second attempt cannot fix as permanent.
// Errors without a gRPC status report codes.Unknown and stay retryable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Aborted, codes.Internal, codes.Unknown:
		return err
	default:
		return infra.Permanent(err)
	}
}

func (r *Recognizer) Close() error {
	return r.client.Close()
}
