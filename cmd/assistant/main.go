package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voice-summary/config"
	"voice-summary/internal/application"
	"voice-summary/internal/infra"
	"voice-summary/internal/infra/anthropic"
	"voice-summary/internal/infra/audio"
	"voice-summary/internal/infra/gemini"
	"voice-summary/internal/infra/googlespeech"
	"voice-summary/internal/infra/openai"
	"voice-summary/internal/infra/pushover"
	"voice-summary/internal/infra/tts"
	"voice-summary/internal/infra/web"
	"voice-summary/internal/infra/whisper"
)

type transcriber interface {
	application.SpeechToText
	Close() error
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	mode := flag.String("mode", "", "once or serve (overrides the config file)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	if *mode != "" {
		cfg.Mode = *mode
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	retry := createRetryConfig(cfg.Retry, logger)

	stt, err := createSpeechToText(ctx, cfg, retry)
	if err != nil {
		logger.Error("creating speech recognizer", "error", err)
		os.Exit(1)
	}
	defer stt.Close()

	var speaker application.Speaker = &application.NoopSpeaker{}
	if cfg.TTSEnabled() {
		speaker = tts.NewCommandSpeaker(cfg.TTS.Command, cfg.TTS.Rate, cfg.TTS.Voice)
	}

	var notifier application.Notifier
	if cfg.Pushover.Enabled {
		notifier = pushover.NewClient(cfg.Pushover.Token, cfg.Pushover.UserKey)
	} else {
		notifier = &application.NoopNotifier{}
	}

	assistant := application.NewAssistant(
		createAudioSource(cfg.Audio, logger),
		stt,
		createLanguageModel(cfg, retry),
		speaker,
		notifier,
		cfg.Summary.Prompt,
		logger,
	)

	logger.Info("starting voice summary",
		"mode", cfg.Mode,
		"audio_source", cfg.Audio.Source,
		"speech_provider", cfg.Speech.Provider,
		"summary_provider", cfg.Summary.Provider,
	)

	switch cfg.Mode {
	case "serve":
		err = serve(ctx, cfg.Server, assistant, logger)
	default:
		err = assistant.Run(ctx, os.Stdout)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("assistant error", "error", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg config.ServerConfig, assistant *application.Assistant, logger *slog.Logger) error {
	if err := assistant.Start(ctx); err != nil {
		return err
	}
	defer assistant.Stop()

	window := parseDuration(cfg.RateWindow, time.Minute, "server.rate_window", logger)
	server := web.NewServer(cfg.Addr, assistant, web.NewRateLimiter(cfg.RateLimit, window, cfg.TrustProxy), logger)
	if err := server.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	return server.Stop()
}

func createAudioSource(cfg config.AudioConfig, logger *slog.Logger) application.AudioSource {
	switch cfg.Source {
	case "file":
		return audio.NewFileSource(cfg.FileDir)
	case "microphone":
	default:
		logger.Warn("unknown audio source, using microphone", "source", cfg.Source)
	}

	opts := audio.DefaultListenOptions()
	opts.SampleRate = cfg.SampleRate
	opts.EnergyThreshold = cfg.EnergyThreshold
	opts.PauseThreshold = parseDuration(cfg.PauseThreshold, opts.PauseThreshold, "audio.pause_threshold", logger)
	opts.PhraseTimeLimit = parseDuration(cfg.PhraseTimeLimit, 0, "audio.phrase_time_limit", logger)
	opts.ListenTimeout = parseDuration(cfg.ListenTimeout, 0, "audio.listen_timeout", logger)

	return audio.NewMicrophoneSource(opts, logger)
}

func createSpeechToText(ctx context.Context, cfg *config.Config, retry infra.RetryConfig) (transcriber, error) {
	switch cfg.Speech.Provider {
	case "whisper":
		return openai.NewWhisperClient(
			cfg.OpenAI.APIKey,
			cfg.OpenAI.BaseURL,
			cfg.OpenAI.TranscriptionModel,
			cfg.Speech.Language,
			retry,
		), nil
	case "local":
		return whisper.NewLocal(cfg.LocalWhisper.ModelsDir, cfg.LocalWhisper.ModelID, cfg.Speech.Language)
	case "google":
		return googlespeech.NewRecognizer(ctx, googlespeech.Options{
			APIKey:          cfg.Speech.APIKey,
			CredentialsFile: cfg.Speech.CredentialsFile,
			Language:        cfg.Speech.Language,
			SampleRate:      cfg.Audio.SampleRate,
			Retry:           retry,
		})
	default:
		return nil, fmt.Errorf("unknown speech provider %q", cfg.Speech.Provider)
	}
}

func createLanguageModel(cfg *config.Config, retry infra.RetryConfig) application.LanguageModel {
	switch cfg.Summary.Provider {
	case "openai":
		return openai.NewChatClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.ChatModel, cfg.OpenAI.MaxTokens, retry)
	case "anthropic":
		return anthropic.NewClaudeClient(cfg.Anthropic.APIKey, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens, retry)
	default:
		return gemini.NewClient(cfg.Gemini.APIKey, gemini.Options{
			Model:           cfg.Gemini.Model,
			Temperature:     *cfg.Gemini.Temperature,
			TopP:            *cfg.Gemini.TopP,
			TopK:            cfg.Gemini.TopK,
			MaxOutputTokens: cfg.Gemini.MaxOutputTokens,
			SafetyThreshold: cfg.Gemini.SafetyThreshold,
			Retry:           retry,
		})
	}
}

func createRetryConfig(cfg config.RetryConfig, logger *slog.Logger) infra.RetryConfig {
	retry := infra.DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxAttempts
	retry.InitialDelay = parseDuration(cfg.InitialDelay, retry.InitialDelay, "retry.initial_delay", logger)
	retry.MaxDelay = parseDuration(cfg.MaxDelay, retry.MaxDelay, "retry.max_delay", logger)
	return retry
}

func parseDuration(value string, fallback time.Duration, name string, logger *slog.Logger) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		logger.Warn("invalid duration, using default", "setting", name, "value", value, "default", fallback, "error", err)
		return fallback
	}
	return d
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// stdout carries the cycle transcript in once mode
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
