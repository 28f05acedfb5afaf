package driven

import (
	"context"
	"time"

	"github.com/buildlens/buildlens/internal/core/domain"
)

// UsageStore persists the append-only cost ledger. It is the only shared
// mutable state in the core: implementations must serialize concurrent
// appends so no record is lost, and readers must see a consistent snapshot
// that never double-counts a record.
type UsageStore interface {
	// Append adds one usage record to the ledger.
	Append(ctx context.Context, rec domain.UsageRecord) error

	// List returns records with Timestamp >= since, oldest first.
	// A zero since returns all records.
	List(ctx context.Context, since time.Time) ([]domain.UsageRecord, error)

	// Close releases resources.
	Close() error
}

// DeliveryStore tracks delivered source-event ids so webhook retries never
// produce duplicate notifications.
type DeliveryStore interface {
	// MarkDelivered claims the event id. It returns true when this call was
	// the first claim for the id, false when the id was already recorded.
	// Callers claim before sending; a failed send must release the claim via
	// ClearDelivered so a retry can deliver.
	MarkDelivered(ctx context.Context, eventID string) (bool, error)

	// ClearDelivered releases a claim so the event can be delivered again.
	// Clearing an unknown id is not an error.
	ClearDelivered(ctx context.Context, eventID string) error

	// Close releases resources.
	Close() error
}
