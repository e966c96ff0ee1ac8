// Package ai defines the generation capabilities the orchestrator consumes
// and their concrete API-backed implementations.
package ai

import (
	"context"
	"errors"
)

// ErrGenerationFailed indicates the underlying capability call failed.
var ErrGenerationFailed = errors.New("generation failed")

// Completer produces the next assistant utterance for a fully assembled
// prompt context. It carries no conversation state of its own.
type Completer interface {
	Complete(ctx context.Context, promptContext string) (string, error)
}

// ImageGenerator renders one illustration for a prompt and returns the raw
// media bytes.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// Refiner polishes finished prose. Implementations are best-effort: callers
// fall back to the unrefined text on error.
type Refiner interface {
	Refine(ctx context.Context, text string) (string, error)
}
