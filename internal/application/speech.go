package application

import (
	"context"
)

// SpeechToText turns a captured utterance into a transcript. Implementations
// report unintelligible audio with domain.ErrUnintelligible and service
// failures with *domain.RequestError.
type SpeechToText interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// LanguageModel returns the model's text for a prompt.
type LanguageModel interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Speaker reads text aloud and returns once playback has finished.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// NoopSpeaker is used when text-to-speech is disabled.
type NoopSpeaker struct{}

func (n *NoopSpeaker) Speak(_ context.Context, _ string) error {
	return nil
}
