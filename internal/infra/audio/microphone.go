//go:build portaudio
// +build portaudio

package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const framesPerBuffer = 1024

type MicrophoneSource struct {
	opts   ListenOptions
	logger *slog.Logger

	mu     sync.Mutex
	stream *portaudio.Stream
	frame  []int16
}

func NewMicrophoneSource(opts ListenOptions, logger *slog.Logger) *MicrophoneSource {
	return &MicrophoneSource{
		opts:   opts,
		logger: logger,
	}
}

func (m *MicrophoneSource) Name() string {
	return "microphone"
}

func (m *MicrophoneSource) Start(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream != nil {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initializing portaudio: %w", err)
	}

	m.frame = make([]int16, framesPerBuffer)

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.opts.SampleRate), len(m.frame), m.frame)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("opening stream: %w", err)
	}

	m.stream = stream
	m.logger.Info("microphone opened", "sampleRate", m.opts.SampleRate)
	return nil
}

func (m *MicrophoneSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream == nil {
		return nil
	}

	if err := m.stream.Close(); err != nil {
		m.logger.Warn("closing stream", "error", err)
	}
	m.stream = nil

	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("terminating portaudio: %w", err)
	}
	return nil
}

// Listen records until the speaker pauses. The stream only runs while
// listening so nothing queues up between cycles.
func (m *MicrophoneSource) Listen(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream == nil {
		return nil, fmt.Errorf("microphone not started")
	}

	if err := m.stream.Start(); err != nil {
		return nil, fmt.Errorf("starting stream: %w", err)
	}
	defer func() {
		if err := m.stream.Stop(); err != nil {
			m.logger.Warn("stopping stream", "error", err)
		}
	}()

	recorder := NewPhraseRecorder(m.opts)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if err := m.stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
			return nil, fmt.Errorf("reading from stream: %w", err)
		}

		done, err := recorder.Add(m.frame)
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
	}

	samples := recorder.Samples()
	m.logger.Debug("phrase captured", "samples", len(samples))

	return EncodeWAV(samples, m.opts.SampleRate), nil
}
