// Package ai provides factory functions for creating model backend adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/buildlens/buildlens/internal/adapters/driven/llm/anthropic"
	"github.com/buildlens/buildlens/internal/adapters/driven/llm/ollama"
	"github.com/buildlens/buildlens/internal/adapters/driven/llm/openai"
	"github.com/buildlens/buildlens/internal/core/domain"
	"github.com/buildlens/buildlens/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for backend connectivity validation.
const pingTimeout = 5 * time.Second

// CreateLLMService creates the configured model backend.
// Returns (nil, nil) when no backend is configured or the kill switch is
// set: the pipeline then runs fallback-only.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() || settings.Disabled {
		return nil, nil
	}

	switch settings.Backend {
	case "anthropic":
		return anthropic.NewLLMService(anthropic.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
	case "openai":
		return openai.NewLLMService(openai.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
	case "ollama":
		return ollama.NewLLMService(ollama.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", domain.ErrInvalidInput, settings.Backend)
	}
}

// CreateAndValidateLLMService creates the backend and validates connectivity.
// A creation or ping failure returns an error wrapping ErrLLMUnavailable;
// callers degrade to fallback-only rather than aborting.
func CreateAndValidateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	svc, err := CreateLLMService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	// Validate connectivity.
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: backend unreachable (%w)", domain.ErrLLMUnavailable, err)
	}

	return svc, nil
}
