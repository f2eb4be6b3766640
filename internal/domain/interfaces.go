package domain

import (
	"context"
	"errors"
)

// Embedder maps texts to vectors, one per input and in the same order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Completer is the generation-model collaborator.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ChatRecorder persists a finished exchange. Failures must not affect the
// orchestration result.
type ChatRecorder interface {
	Record(ctx context.Context, userID, query, response string, actionInvoked *string, confidence float64) error
}

// DegradationObserver is told whenever a component switches to its degraded path.
type DegradationObserver interface {
	Degraded(component, reason string)
}

// NopObserver discards degradation events.
type NopObserver struct{}

func (NopObserver) Degraded(string, string) {}

// ErrDimensionMismatch is returned by vector stores for vectors whose length
// differs from the indexed dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")
