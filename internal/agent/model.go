package agent

import (
	"context"
)

// Model generates the next assistant message given the transcript and the
// actions it may request. Failures should be returned as *domain.ModelError.
type Model interface {
	Generate(ctx context.Context, messages []Message, actions []ActionSpec) (Message, error)
	// Name identifies the provider in logs and metrics.
	Name() string
}
