// Package llm wraps the generative text model behind an opaque interface:
// prompt in, text plus token counts out. The grouping engine never talks to
// a vendor SDK directly.
package llm

import (
	"context"
	"errors"
)

// Completion is one model response with the token counts the provider
// actually reported. Actual cost is always derived from these counts,
// never from an estimate.
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Client is the single call surface the engine depends on.
type Client interface {
	Generate(ctx context.Context, modelID, prompt string) (*Completion, error)
}

var ErrEmptyResponse = errors.New("empty_model_response")
