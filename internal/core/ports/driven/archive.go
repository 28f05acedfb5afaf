package driven

import (
	"context"

	"github.com/buildlens/buildlens/internal/core/domain"
)

// RunArchive persists one report plus its audit metadata per pipeline run.
// The archive is the system-of-record external consumers (PR-gate checks,
// compliance review) read from.
type RunArchive interface {
	// Save persists the report as {run-id}/result.json and the metadata as
	// {run-id}/meta.json.
	Save(ctx context.Context, report *domain.Report, meta *domain.RunMeta) error

	// Load reads an archived report back by run id.
	Load(ctx context.Context, runID string) (*domain.Report, *domain.RunMeta, error)

	// Close releases resources.
	Close() error
}
