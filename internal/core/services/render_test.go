package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/buildlens/buildlens/internal/core/domain"
)

func sampleReport() *domain.Report {
	return &domain.Report{
		RunID:      "run-1",
		ArtifactID: "build-42.log",
		AIAssisted: true,
		Backend:    "anthropic",
		Model:      "claude-3-5-sonnet-latest",
		Findings: []domain.Finding{
			{
				Cause:      "missing libssl at link time",
				Citations:  []domain.Citation{{Line: 42, Snippet: "ld: cannot find -lssl"}},
				Confidence: domain.ConfidenceHigh,
				NextAction: "install libssl-dev on the builder image",
			},
		},
		Summary: []string{"link failure caused by a missing system library"},
		BuildInfo: domain.BuildInfo{
			Repo:     "acme/widgets",
			Branch:   "main",
			BuildURL: "https://ci.example.com/builds/42",
		},
		CreatedAt: time.Now().UTC(),
	}
}

func TestRenderChatMessage(t *testing.T) {
	msg := RenderChatMessage(sampleReport())

	assert.Contains(t, msg, ":red_circle: *Build Failed: acme/widgets/main*")
	assert.Contains(t, msg, "• link failure caused by a missing system library")
	assert.Contains(t, msg, "1. *missing libssl at link time*")
	assert.Contains(t, msg, "Evidence: line 42: `ld: cannot find -lssl`")
	assert.Contains(t, msg, "Confidence: high")
	assert.Contains(t, msg, "Fix: install libssl-dev")
	assert.Contains(t, msg, "_AI-assisted analysis (anthropic/claude-3-5-sonnet-latest)._")
	assert.Contains(t, msg, "<https://ci.example.com/builds/42|View Build Log>")
}

func TestRenderChatMessage_FallbackProvenance(t *testing.T) {
	r := sampleReport()
	r.AIAssisted = false
	r.DroppedWindows = 2
	r.RejectedCitations = 1
	r.Warnings = []string{"model backend unavailable after retries"}

	msg := RenderChatMessage(r)

	assert.Contains(t, msg, "Deterministic fallback analysis; no AI assistance.")
	assert.NotContains(t, msg, "AI-assisted")
	assert.Contains(t, msg, "2 windows dropped for budget, 1 citations rejected by verification")
	assert.Contains(t, msg, "_Warning: model backend unavailable after retries._")
}

func TestRenderMarkdown(t *testing.T) {
	md := RenderMarkdown(sampleReport())

	assert.Contains(t, md, "## Triage Report: build-42.log")
	assert.Contains(t, md, "- link failure caused by a missing system library")
	assert.Contains(t, md, "1. **missing libssl at link time** (confidence: high)")
	assert.Contains(t, md, "- line 42: `ld: cannot find -lssl`")
	assert.Contains(t, md, "- next: install libssl-dev on the builder image")
}

func TestRenderChatMessage_FallsBackToArtifactID(t *testing.T) {
	r := sampleReport()
	r.BuildInfo = domain.BuildInfo{}

	msg := RenderChatMessage(r)
	assert.Contains(t, msg, "*Build Failed: build-42.log*")
	assert.NotContains(t, msg, "View Build Log")
}
