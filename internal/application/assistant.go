package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/oklog/ulid/v2"

	"voice-summary/internal/domain"
)

type Assistant struct {
	audio    AudioSource
	stt      SpeechToText
	model    LanguageModel
	speaker  Speaker
	notifier Notifier
	prompt   string
	logger   *slog.Logger
}

func NewAssistant(
	audio AudioSource,
	stt SpeechToText,
	model LanguageModel,
	speaker Speaker,
	notifier Notifier,
	prompt string,
	logger *slog.Logger,
) *Assistant {
	if prompt == "" {
		prompt = domain.DefaultSummaryPrompt
	}
	return &Assistant{
		audio:    audio,
		stt:      stt,
		model:    model,
		speaker:  speaker,
		notifier: notifier,
		prompt:   prompt,
		logger:   logger,
	}
}

func (a *Assistant) Start(ctx context.Context) error {
	a.logger.Info("starting audio source", "source", a.audio.Name())
	if err := a.audio.Start(ctx); err != nil {
		return fmt.Errorf("starting audio: %w", err)
	}
	return nil
}

func (a *Assistant) Stop() error {
	if err := a.audio.Stop(); err != nil {
		return fmt.Errorf("stopping audio: %w", err)
	}
	return nil
}

// Run performs a single cycle and writes the user-facing transcript, summary
// or error message to out. The audio source is started and stopped around it.
func (a *Assistant) Run(ctx context.Context, out io.Writer) error {
	if err := a.Start(ctx); err != nil {
		fmt.Fprintln(out, domain.Message(err))
		return err
	}
	defer func() {
		if err := a.Stop(); err != nil {
			a.logger.Warn("stopping audio source", "error", err)
		}
	}()

	fmt.Fprintln(out, "Listening...")

	_, err := a.cycle(ctx, progress{
		transcribed: func(text string) { fmt.Fprintln(out, "You said:", text) },
		summarized:  func(text string) { fmt.Fprintln(out, "Response from model:", text) },
	})
	if err != nil {
		fmt.Fprintln(out, domain.Message(err))
		return err
	}

	return nil
}

// Cycle captures one utterance, transcribes it, asks the model for a summary
// and speaks it. The returned cycle is never nil and holds whatever was
// produced before a failure.
func (a *Assistant) Cycle(ctx context.Context) (*domain.Cycle, error) {
	return a.cycle(ctx, progress{})
}

type progress struct {
	transcribed func(text string)
	summarized  func(text string)
}

func (a *Assistant) cycle(ctx context.Context, p progress) (*domain.Cycle, error) {
	cycle := &domain.Cycle{ID: ulid.Make().String()}
	logger := a.logger.With("cycle_id", cycle.ID)

	logger.Info("listening", "source", a.audio.Name())

	audio, err := a.audio.Listen(ctx)
	if err != nil {
		return cycle, fmt.Errorf("capturing audio: %w", err)
	}

	logger.Info("received audio", "bytes", len(audio))

	text, err := a.stt.Transcribe(ctx, audio)
	if err != nil {
		return cycle, fmt.Errorf("transcribing: %w", err)
	}
	cycle.Transcript = text

	if strings.TrimSpace(text) == "" {
		logger.Warn("empty transcript, skipping summary")
		return cycle, domain.ErrNoText
	}

	logger.Info("transcribed", "text", text)
	if p.transcribed != nil {
		p.transcribed(text)
	}

	summary, err := a.model.Generate(ctx, a.prompt+text)
	if err != nil {
		return cycle, fmt.Errorf("summarizing: %w", err)
	}
	cycle.Summary = summary

	logger.Info("summarized", "chars", len(summary))
	if p.summarized != nil {
		p.summarized(summary)
	}

	if err := a.speaker.Speak(ctx, summary); err != nil {
		return cycle, fmt.Errorf("speaking: %w", err)
	}

	if err := a.notifier.Notify(ctx, summary); err != nil {
		logger.Error("notifying summary", "error", err)
	}

	return cycle, nil
}
