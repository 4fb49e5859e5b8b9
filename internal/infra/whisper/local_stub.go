//go:build !whisper

package whisper

import (
	"context"
	"fmt"
)

const Available = false

// Local is a stub when built without whisper.cpp support.
type Local struct{}

func NewLocal(_, _, _ string) (*Local, error) {
	return nil, fmt.Errorf("local whisper not available: rebuild with -tags whisper")
}

func (l *Local) Transcribe(_ context.Context, _ []byte) (string, error) {
	return "", fmt.Errorf("local whisper not available")
}

func (l *Local) Close() error {
	return nil
}
