package driving

import (
	"context"

	"github.com/buildlens/buildlens/internal/core/domain"
)

// UsageService exposes the cost ledger for recording and reporting.
type UsageService interface {
	// Record appends one invocation's usage to the ledger, computing cost
	// from the configured pricing table.
	Record(ctx context.Context, operation, backend, model string, inputTokens, outputTokens int) error

	// Summarize aggregates cost and token usage over a rolling period,
	// grouped by operation and by model.
	Summarize(ctx context.Context, period domain.Period) (*domain.UsageSummary, error)

	// OverBudget reports whether aggregate cost for the current period has
	// reached the configured ceiling. Always false when no ceiling is set.
	OverBudget(ctx context.Context) (bool, error)
}
