package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/buildlens/buildlens/internal/core/domain"
	"github.com/buildlens/buildlens/internal/core/ports/driven"
	"github.com/buildlens/buildlens/internal/core/ports/driving"
	"github.com/buildlens/buildlens/internal/logger"
)

// Ensure UsageTracker implements the interface.
var _ driving.UsageService = (*UsageTracker)(nil)

// UsageTracker is the cost ledger service. It computes cost from the
// configured pricing table, appends records through the UsageStore, and
// enforces the optional per-period budget ceiling. The ledger is explicit,
// injected state - never a package singleton.
type UsageTracker struct {
	store driven.UsageStore

	mu     sync.RWMutex
	budget domain.BudgetSettings

	now func() time.Time
}

// NewUsageTracker creates a usage tracker over a store.
func NewUsageTracker(store driven.UsageStore, budget domain.BudgetSettings) *UsageTracker {
	return &UsageTracker{
		store:  store,
		budget: budget,
		now:    time.Now,
	}
}

// SetBudget replaces the budget settings, used on config hot-reload.
func (t *UsageTracker) SetBudget(budget domain.BudgetSettings) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.budget = budget
}

// Record appends one invocation's usage to the ledger.
func (t *UsageTracker) Record(ctx context.Context, operation, backend, model string, inputTokens, outputTokens int) error {
	t.mu.RLock()
	pricing := t.budget.Pricing[model]
	t.mu.RUnlock()

	rec := domain.UsageRecord{
		Timestamp:    t.now().UTC(),
		Operation:    operation,
		Backend:      backend,
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Cost:         pricing.Cost(inputTokens, outputTokens),
	}
	if err := t.store.Append(ctx, rec); err != nil {
		return fmt.Errorf("append usage record: %w", err)
	}
	logger.Debug("Usage: %s %s/%s %d in / %d out tokens, cost %.4f",
		operation, backend, model, inputTokens, outputTokens, rec.Cost)
	return nil
}

// Summarize aggregates usage over a rolling period.
func (t *UsageTracker) Summarize(ctx context.Context, period domain.Period) (*domain.UsageSummary, error) {
	records, err := t.store.List(ctx, period.Cutoff(t.now()))
	if err != nil {
		return nil, fmt.Errorf("list usage records: %w", err)
	}
	summary := domain.Summarize(period, records)
	return &summary, nil
}

// OverBudget reports whether spend for the current period has reached the
// configured ceiling. A zero ceiling disables enforcement.
func (t *UsageTracker) OverBudget(ctx context.Context) (bool, error) {
	t.mu.RLock()
	ceiling := t.budget.Ceiling
	period := t.budget.Period
	t.mu.RUnlock()

	if ceiling <= 0 {
		return false, nil
	}

	summary, err := t.Summarize(ctx, period)
	if err != nil {
		return false, err
	}
	if summary.TotalCost >= ceiling {
		logger.Warn("Usage: %s spend %.4f at or over ceiling %.4f", period, summary.TotalCost, ceiling)
		return true, nil
	}
	return false, nil
}
