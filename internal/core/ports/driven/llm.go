// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import (
	"context"

	"github.com/buildlens/buildlens/internal/core/domain"
)

// LLMService is the model backend capability behind the invoker.
// Implementations are interchangeable and selected by configuration:
//
//   - Anthropic (hosted API)
//   - OpenAI (hosted API)
//   - Ollama (local inference server)
//
// Implementations share no mutable state; a nil service means AI-assisted
// analysis is unavailable and the pipeline runs fallback-only.
type LLMService interface {
	// Complete sends one prompt and returns the raw response text together
	// with token-usage metadata. Usage must be populated whenever the call
	// itself succeeded, even if the response later fails validation, so the
	// cost ledger can record partial calls.
	Complete(ctx context.Context, prompt string, opts CompleteOptions) (*domain.ModelResponse, error)

	// ModelName returns the model identifier used for usage records.
	ModelName() string

	// Backend returns the backend identifier ("anthropic", "openai", "ollama").
	Backend() string

	// Ping validates the service is reachable with a lightweight request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// CompleteOptions configures a single completion call.
type CompleteOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (kept low for consistent triage).
	Temperature float64
}
