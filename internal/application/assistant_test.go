package application_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"voice-summary/internal/application"
	"voice-summary/internal/domain"
)

type mockAudioSource struct {
	audio    []byte
	err      error
	started  bool
	stopped  bool
	startErr error
}

func (m *mockAudioSource) Start(_ context.Context) error {
	m.started = true
	return m.startErr
}

func (m *mockAudioSource) Stop() error {
	m.stopped = true
	return nil
}

func (m *mockAudioSource) Name() string {
	return "mock"
}

func (m *mockAudioSource) Listen(_ context.Context) ([]byte, error) {
	return m.audio, m.err
}

type mockSTT struct {
	text string
	err  error
}

func (m *mockSTT) Transcribe(_ context.Context, _ []byte) (string, error) {
	return m.text, m.err
}

type mockModel struct {
	reply   string
	err     error
	prompts []string
}

func (m *mockModel) Generate(_ context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.reply, m.err
}

type mockSpeaker struct {
	spoken []string
	err    error
}

func (m *mockSpeaker) Speak(_ context.Context, text string) error {
	m.spoken = append(m.spoken, text)
	return m.err
}

type mockNotifier struct {
	messages []string
	err      error
}

func (m *mockNotifier) Notify(_ context.Context, message string) error {
	m.messages = append(m.messages, message)
	return m.err
}

func newAssistant(audio *mockAudioSource, stt *mockSTT, model *mockModel, speaker *mockSpeaker, notifier application.Notifier) *application.Assistant {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return application.NewAssistant(audio, stt, model, speaker, notifier, "", logger)
}

func TestAssistant_CycleReturnsSummaryUnmodified(t *testing.T) {
	summary := "  Meeting moved to *Friday*.\n"
	model := &mockModel{reply: summary}
	speaker := &mockSpeaker{}
	notifier := &mockNotifier{}

	assistant := newAssistant(
		&mockAudioSource{audio: []byte("RIFF")},
		&mockSTT{text: "the meeting on thursday has been moved to friday afternoon"},
		model,
		speaker,
		notifier,
	)

	cycle, err := assistant.Cycle(context.Background())
	if err != nil {
		t.Fatalf("Cycle error: %v", err)
	}

	if cycle.Summary != summary {
		t.Errorf("Summary: got %q, want %q", cycle.Summary, summary)
	}
	if cycle.ID == "" {
		t.Error("cycle ID should be set")
	}

	if len(model.prompts) != 1 {
		t.Fatalf("model calls: got %d, want 1", len(model.prompts))
	}
	wantPrompt := "Summarize this in a shortened form: the meeting on thursday has been moved to friday afternoon"
	if model.prompts[0] != wantPrompt {
		t.Errorf("prompt: got %q, want %q", model.prompts[0], wantPrompt)
	}

	if len(speaker.spoken) != 1 || speaker.spoken[0] != summary {
		t.Errorf("spoken: got %q", speaker.spoken)
	}
	if len(notifier.messages) != 1 || notifier.messages[0] != summary {
		t.Errorf("notified: got %q", notifier.messages)
	}
}

func TestAssistant_EmptyTranscriptSkipsModel(t *testing.T) {
	for _, transcript := range []string{"", "   \n"} {
		model := &mockModel{reply: "unused"}
		speaker := &mockSpeaker{}

		assistant := newAssistant(
			&mockAudioSource{audio: []byte("RIFF")},
			&mockSTT{text: transcript},
			model,
			speaker,
			&application.NoopNotifier{},
		)

		_, err := assistant.Cycle(context.Background())
		if !errors.Is(err, domain.ErrNoText) {
			t.Fatalf("transcript %q: got %v, want ErrNoText", transcript, err)
		}
		if got := domain.Message(err); got != "No text provided" {
			t.Errorf("message: got %q", got)
		}
		if len(model.prompts) != 0 {
			t.Errorf("model should not be called, got %d calls", len(model.prompts))
		}
		if len(speaker.spoken) != 0 {
			t.Errorf("speaker should not be called, got %d calls", len(speaker.spoken))
		}
	}
}

func TestAssistant_FailureMessages(t *testing.T) {
	tests := []struct {
		name    string
		audio   *mockAudioSource
		stt     *mockSTT
		model   *mockModel
		speaker *mockSpeaker
		want    string
	}{
		{
			name:    "unintelligible audio",
			audio:   &mockAudioSource{audio: []byte("RIFF")},
			stt:     &mockSTT{err: domain.ErrUnintelligible},
			model:   &mockModel{},
			speaker: &mockSpeaker{},
			want:    "Sorry, I could not understand the audio.",
		},
		{
			name:    "recognition request failure",
			audio:   &mockAudioSource{audio: []byte("RIFF")},
			stt:     &mockSTT{err: domain.NewRequestError("Google Speech Recognition", errors.New("quota exceeded"))},
			model:   &mockModel{},
			speaker: &mockSpeaker{},
			want:    "Could not request results from Google Speech Recognition service; quota exceeded",
		},
		{
			name:    "model failure",
			audio:   &mockAudioSource{audio: []byte("RIFF")},
			stt:     &mockSTT{text: "hello"},
			model:   &mockModel{err: errors.New("gemini API error 500")},
			speaker: &mockSpeaker{},
			want:    "An error occurred: summarizing: gemini API error 500",
		},
		{
			name:    "capture failure",
			audio:   &mockAudioSource{err: errors.New("device busy")},
			stt:     &mockSTT{},
			model:   &mockModel{},
			speaker: &mockSpeaker{},
			want:    "An error occurred: capturing audio: device busy",
		},
		{
			name:    "speaker failure",
			audio:   &mockAudioSource{audio: []byte("RIFF")},
			stt:     &mockSTT{text: "hello"},
			model:   &mockModel{reply: "hi"},
			speaker: &mockSpeaker{err: errors.New("espeak not found")},
			want:    "An error occurred: speaking: espeak not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assistant := newAssistant(tt.audio, tt.stt, tt.model, tt.speaker, &application.NoopNotifier{})

			cycle, err := assistant.Cycle(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if cycle == nil {
				t.Fatal("cycle should never be nil")
			}
			if got := domain.Message(err); got != tt.want {
				t.Errorf("message: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAssistant_NotifierFailureIsNotFatal(t *testing.T) {
	assistant := newAssistant(
		&mockAudioSource{audio: []byte("RIFF")},
		&mockSTT{text: "hello"},
		&mockModel{reply: "hi"},
		&mockSpeaker{},
		&mockNotifier{err: errors.New("pushover down")},
	)

	if _, err := assistant.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle error: %v", err)
	}
}

func TestAssistant_RunPrintsProgress(t *testing.T) {
	audio := &mockAudioSource{audio: []byte("RIFF")}
	assistant := newAssistant(
		audio,
		&mockSTT{text: "a long story"},
		&mockModel{reply: "short story"},
		&mockSpeaker{},
		&application.NoopNotifier{},
	)

	var out bytes.Buffer
	if err := assistant.Run(context.Background(), &out); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	want := "Listening...\nYou said: a long story\nResponse from model: short story\n"
	if out.String() != want {
		t.Errorf("output: got %q, want %q", out.String(), want)
	}
	if !audio.started || !audio.stopped {
		t.Error("audio source should be started and stopped")
	}
}

func TestAssistant_RunPrintsErrorMessage(t *testing.T) {
	assistant := newAssistant(
		&mockAudioSource{audio: []byte("RIFF")},
		&mockSTT{err: domain.ErrUnintelligible},
		&mockModel{},
		&mockSpeaker{},
		&application.NoopNotifier{},
	)

	var out bytes.Buffer
	err := assistant.Run(context.Background(), &out)
	if !errors.Is(err, domain.ErrUnintelligible) {
		t.Fatalf("Run: got %v, want ErrUnintelligible", err)
	}

	if !strings.HasSuffix(out.String(), "Sorry, I could not understand the audio.\n") {
		t.Errorf("output: got %q", out.String())
	}
}

func TestAssistant_RunStartFailure(t *testing.T) {
	audio := &mockAudioSource{startErr: errors.New("no input device")}
	assistant := newAssistant(audio, &mockSTT{}, &mockModel{}, &mockSpeaker{}, &application.NoopNotifier{})

	var out bytes.Buffer
	if err := assistant.Run(context.Background(), &out); err == nil {
		t.Fatal("expected error")
	}
	if out.String() != "An error occurred: starting audio: no input device\n" {
		t.Errorf("output: got %q", out.String())
	}
}
