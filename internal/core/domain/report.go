package domain

import (
	"strings"
	"time"
)

// Confidence expresses how well a finding is backed by verified evidence.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ParseConfidence normalises a model-supplied confidence value.
// Unknown values degrade to low rather than failing the finding.
func ParseConfidence(s string) Confidence {
	switch Confidence(strings.ToLower(strings.TrimSpace(s))) {
	case ConfidenceHigh:
		return ConfidenceHigh
	case ConfidenceMedium:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Citation is a (line number, exact snippet) reference into the artifact.
// A citation is only valid when its snippet appears verbatim (whitespace-
// and case-normalised) at the cited artifact line.
type Citation struct {
	Line    int    `json:"line"`
	Snippet string `json:"snippet"`
}

// Verify reports whether the citation's snippet is a substring of the
// artifact text at the cited line, compared whitespace- and case-normalised.
func (c Citation) Verify(a *Artifact) bool {
	line, ok := a.Line(c.Line)
	if !ok {
		return false
	}
	snippet := NormalizeEvidence(c.Snippet)
	if snippet == "" {
		return false
	}
	return strings.Contains(NormalizeEvidence(line), snippet)
}

// NormalizeEvidence lowercases text and collapses all whitespace runs to a
// single space, so citation comparison tolerates formatting drift without
// tolerating fabricated content.
func NormalizeEvidence(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Finding is one root-cause or compliance suggestion in a report.
//
// Invariant: a finding with no citations must have ConfidenceLow and a
// non-empty MissingData note. The validator enforces this before delivery.
type Finding struct {
	Cause       string     `json:"cause"`
	Citations   []Citation `json:"evidence"`
	Confidence  Confidence `json:"confidence"`
	NextAction  string     `json:"next_action"`
	MissingData string     `json:"missing_data,omitempty"`
}

// Report is the final, validated output of one pipeline run.
type Report struct {
	// RunID uniquely identifies the pipeline run that produced this report.
	RunID string `json:"run_id"`

	// ArtifactID identifies the artifact that was analyzed.
	ArtifactID string `json:"artifact_id"`

	// AIAssisted is false when the report was produced by the deterministic
	// fallback path. A fallback report must never be presented as AI-validated.
	AIAssisted bool `json:"ai_assisted"`

	// Findings are the verified root causes, capped and ordered by the
	// model's original ranking (or by window priority in fallback mode).
	Findings []Finding `json:"findings"`

	// Summary is a short human-readable summary, one bullet per entry.
	Summary []string `json:"summary"`

	// Categories holds per-category evidence window counts.
	Categories map[string]int `json:"categories,omitempty"`

	// DroppedWindows counts evidence windows excluded for budget reasons.
	DroppedWindows int `json:"dropped_windows"`

	// RejectedCitations counts citations stripped by evidence verification.
	RejectedCitations int `json:"rejected_citations"`

	// Warnings lists degradations a reviewer should know about
	// (backend unavailable, budget exceeded, schema failures).
	Warnings []string `json:"warnings,omitempty"`

	// Backend and Model identify what produced the findings when AIAssisted.
	Backend string `json:"backend,omitempty"`
	Model   string `json:"model,omitempty"`

	// BuildInfo carries metadata parsed from the log header or webhook.
	BuildInfo BuildInfo `json:"build_info,omitzero"`

	CreatedAt time.Time `json:"created_at"`
}

// HasVerifiedEvidence reports whether every finding at medium or high
// confidence carries at least one citation. Archived reports must satisfy
// this before external consumers may trust them.
func (r *Report) HasVerifiedEvidence() bool {
	for _, f := range r.Findings {
		if f.Confidence != ConfidenceLow && len(f.Citations) == 0 {
			return false
		}
	}
	return true
}

// ModelResponse is the raw output of one model invocation plus its usage
// metadata. It is consumed immediately by the response validator; usage is
// recorded even when validation subsequently fails.
type ModelResponse struct {
	Text         string
	InputTokens  int
	OutputTokens int
	Latency      time.Duration
}

// RunMeta is the audit metadata archived alongside each report as
// {run-id}/meta.json.
type RunMeta struct {
	RunID          string         `json:"run_id"`
	ArtifactID     string         `json:"artifact_id"`
	Operation      string         `json:"operation"`
	Backend        string         `json:"backend,omitempty"`
	Model          string         `json:"model,omitempty"`
	Prompt         string         `json:"prompt,omitempty"`
	ArtifactChars  int            `json:"artifact_chars"`
	PromptChars    int            `json:"prompt_chars"`
	SavedTokensEst int            `json:"saved_tokens_est"`
	WindowCount    int            `json:"window_count"`
	DroppedWindows int            `json:"dropped_windows"`
	Categories     map[string]int `json:"categories,omitempty"`
	BuildInfo      BuildInfo      `json:"build_info,omitzero"`
	CreatedAt      time.Time      `json:"created_at"`
}

// EstimateTokens converts a character count to an approximate token count.
// Rough and conservative: one token per 3.5 characters of English plus code.
func EstimateTokens(chars int) int {
	if chars <= 0 {
		return 0
	}
	est := int(float64(chars)/3.5 + 0.5)
	if est < 1 {
		return 1
	}
	return est
}
