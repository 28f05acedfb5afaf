package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/buildlens/buildlens/internal/core/domain"
	"github.com/buildlens/buildlens/internal/core/ports/driven"
	"github.com/buildlens/buildlens/internal/logger"
)

// invokerRate is the proactive throttle in front of the model backend, so a
// burst of concurrent CI failures does not trip provider-side rate limits.
const invokerRate = rate.Limit(1)

// Invoker sends assembled prompts to the configured model backend with a
// per-run deadline and bounded retries. Network failures, timeouts and
// rate-limit responses are all treated as transient; after the attempt cap
// the call fails with domain.ErrBackendUnavailable, which callers must treat
// as non-fatal (fallback path).
type Invoker struct {
	llm      driven.LLMService
	attempts int
	backoff  time.Duration
	timeout  time.Duration
	limiter  *rate.Limiter
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewInvoker wraps an LLM service with retry, throttling and deadline
// behaviour from configuration.
func NewInvoker(llm driven.LLMService, cfg domain.LLMSettings) *Invoker {
	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	timeout := cfg.RunTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Invoker{
		llm:      llm,
		attempts: attempts,
		backoff:  backoff,
		timeout:  timeout,
		limiter:  rate.NewLimiter(invokerRate, 1),
		sleep:    sleepCtx,
	}
}

// Backend returns the backend identifier of the wrapped service.
func (iv *Invoker) Backend() string {
	return iv.llm.Backend()
}

// ModelName returns the model identifier of the wrapped service.
func (iv *Invoker) ModelName() string {
	return iv.llm.ModelName()
}

// Invoke sends one prompt. The response carries token-usage metadata and
// measured latency even when the caller later rejects it during validation,
// so cost is recorded for partial calls.
func (iv *Invoker) Invoke(ctx context.Context, prompt string, opts driven.CompleteOptions) (*domain.ModelResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, iv.timeout)
	defer cancel()

	var lastErr error
	backoff := iv.backoff

	for attempt := 1; attempt <= iv.attempts; attempt++ {
		if err := iv.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
		}

		start := time.Now()
		resp, err := iv.llm.Complete(ctx, prompt, opts)
		if err == nil {
			resp.Latency = time.Since(start)
			logger.Debug("Invoker: attempt %d ok (%d in / %d out tokens, %s)",
				attempt, resp.InputTokens, resp.OutputTokens, resp.Latency.Round(time.Millisecond))
			return resp, nil
		}

		lastErr = err
		logger.Warn("Invoker: attempt %d/%d failed: %v", attempt, iv.attempts, err)

		if ctx.Err() != nil {
			break
		}
		if attempt == iv.attempts {
			break
		}
		if err := iv.sleep(ctx, backoff); err != nil {
			break
		}
		backoff *= 2
	}

	return nil, fmt.Errorf("%w: %d attempts exhausted: %v", domain.ErrBackendUnavailable, iv.attempts, lastErr)
}

// sleepCtx sleeps for d unless the context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
