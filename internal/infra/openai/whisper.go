package openai

import (
	"bytes"
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"

	"voice-summary/internal/domain"
	"voice-summary/internal/infra"
)

// TranscriptionService is how Whisper failures are reported to the user.
const TranscriptionService = "OpenAI Whisper"

type WhisperClient struct {
	client   *openai.Client
	model    string
	language string
	retry    infra.RetryConfig
}

func NewWhisperClient(apiKey, baseURL, model, language string, retry infra.RetryConfig) *WhisperClient {
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperClient{
		client:   newClient(apiKey, baseURL),
		model:    model,
		language: whisperLanguage(language),
		retry:    retry,
	}
}

func newClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// whisperLanguage reduces a BCP-47 tag such as en-US to the ISO-639-1 code Whisper expects.
func whisperLanguage(tag string) string {
	if len(tag) > 2 && (tag[2] == '-' || tag[2] == '_') {
		return tag[:2]
	}
	return tag
}

func (c *WhisperClient) Transcribe(ctx context.Context, audio []byte) (string, error) {
	var result openai.AudioResponse

	err := infra.WithRetry(ctx, c.retry, func() error {
		resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
			Model:    c.model,
			FilePath: "audio.wav",
			Reader:   bytes.NewReader(audio),
			Language: c.language,
		})
		if err != nil {
			return classify(err)
		}
		result = resp
		return nil
	})
	if err != nil {
		return "", domain.NewRequestError(TranscriptionService, err)
	}

	return result.Text, nil
}

// classify marks client errors as permanent so only throttling and server
// errors are retried.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && !infra.IsRetryableHTTPStatus(apiErr.HTTPStatusCode) {
		return infra.Permanent(err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && !infra.IsRetryableHTTPStatus(reqErr.HTTPStatusCode) {
		return infra.Permanent(err)
	}
	return err
}

// Close is a no-op; the HTTP client holds no resources.
func (c *WhisperClient) Close() error {
	return nil
}
