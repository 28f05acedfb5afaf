package dir

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildlens/buildlens/internal/core/domain"
)

func TestArchive_SaveAndLoad(t *testing.T) {
	archive, err := NewArchive(t.TempDir())
	require.NoError(t, err)
	defer archive.Close()

	ctx := context.Background()
	report := &domain.Report{
		RunID:      "run-abc",
		ArtifactID: "build-1234.log",
		AIAssisted: true,
		Findings: []domain.Finding{
			{
				Cause: "missing libssl at link time",
				Citations: []domain.Citation{
					{Line: 42, Snippet: "ld: cannot find -lssl"},
				},
				Confidence: domain.ConfidenceHigh,
				NextAction: "install the libssl development package on the builder",
			},
		},
		Summary:   []string{"link failure caused by a missing system library"},
		Backend:   "anthropic",
		Model:     "claude-3-5-sonnet-latest",
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	meta := &domain.RunMeta{
		RunID:       "run-abc",
		ArtifactID:  "build-1234.log",
		Operation:   "build-log-analysis",
		Backend:     "anthropic",
		Model:       "claude-3-5-sonnet-latest",
		PromptChars: 4200,
		WindowCount: 2,
		CreatedAt:   report.CreatedAt,
	}

	require.NoError(t, archive.Save(ctx, report, meta))

	assert.FileExists(t, filepath.Join(archive.Root(), "run-abc", "result.json"))
	assert.FileExists(t, filepath.Join(archive.Root(), "run-abc", "meta.json"))

	gotReport, gotMeta, err := archive.Load(ctx, "run-abc")
	require.NoError(t, err)
	assert.Equal(t, report, gotReport)
	assert.Equal(t, meta, gotMeta)
}

func TestArchive_LoadMissingRun(t *testing.T) {
	archive, err := NewArchive(t.TempDir())
	require.NoError(t, err)

	_, _, err = archive.Load(context.Background(), "no-such-run")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestArchive_RejectsTraversalRunID(t *testing.T) {
	archive, err := NewArchive(t.TempDir())
	require.NoError(t, err)

	for _, id := range []string{"", "..", "a/b", `a\b`} {
		_, _, err := archive.Load(context.Background(), id)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "id %q", id)
	}
}
