//go:build whisper

package whisper

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/mutablelogic/go-whisper/pkg/schema"
	gowhisper "github.com/mutablelogic/go-whisper/pkg/whisper"

	"voice-summary/internal/domain"
)

const Available = true

// Local runs whisper.cpp in-process through go-whisper.
type Local struct {
	manager  *gowhisper.Manager
	modelID  string
	language string
}

func NewLocal(modelsDir, modelID, language string) (*Local, error) {
	manager, err := gowhisper.New(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("creating whisper manager: %w", err)
	}

	if manager.GetModelById(modelID) == nil {
		manager.Close()
		return nil, fmt.Errorf("model %s not found in %s", modelID, modelsDir)
	}

	return &Local{
		manager:  manager,
		modelID:  modelID,
		language: shortLanguage(language),
	}, nil
}

func (l *Local) Transcribe(ctx context.Context, audio []byte) (string, error) {
	model := l.manager.GetModelById(l.modelID)
	if model == nil {
		return "", domain.NewRequestError(ServiceName, fmt.Errorf("model %s not loaded", l.modelID))
	}

	var result strings.Builder
	err := l.manager.WithModel(model, func(task *gowhisper.Task) error {
		if l.language != "" {
			if err := task.SetLanguage(l.language); err != nil {
				return fmt.Errorf("setting language: %w", err)
			}
		}
		return task.TranscribeReader(ctx, bytes.NewReader(audio), func(seg *schema.Segment) {
			result.WriteString(seg.Text)
		})
	})
	if err != nil {
		return "", domain.NewRequestError(ServiceName, err)
	}

	return strings.TrimSpace(result.String()), nil
}

func (l *Local) Close() error {
	return l.manager.Close()
}
