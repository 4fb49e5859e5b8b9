package application

import "context"

// AudioSource captures one utterance per Listen call.
type AudioSource interface {
	Start(ctx context.Context) error
	Stop() error
	Listen(ctx context.Context) ([]byte, error)
	Name() string
}
