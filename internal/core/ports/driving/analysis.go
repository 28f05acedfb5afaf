// Package driving provides interfaces for use-case entry points (primary/inbound ports).
package driving

import (
	"context"

	"github.com/buildlens/buildlens/internal/core/domain"
)

// AnalysisService is the main entry point of the triage pipeline.
// Every operation terminates with a usable report: stage failures inside the
// pipeline degrade to the deterministic fallback path instead of erroring.
type AnalysisService interface {
	// AnalyzeBuildLog runs the full pipeline over a build log.
	AnalyzeBuildLog(ctx context.Context, artifact *domain.Artifact, info domain.BuildInfo) (*domain.Report, error)

	// AnalyzeLicenseScan runs the pipeline over a source file flagged by a
	// license scanner, using the scanner report's line references as
	// externally supplied indicators.
	AnalyzeLicenseScan(ctx context.Context, artifact *domain.Artifact, scanReport string) (*domain.Report, error)
}

// PRSummaryService produces short pull-request summaries from PR metadata
// and diff stats. Raw PR description text is deliberately excluded from
// prompts to keep injection out of the model context.
type PRSummaryService interface {
	SummarizePR(ctx context.Context, pr domain.PullRequest) (string, error)
}
