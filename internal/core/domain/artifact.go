package domain

import (
	"regexp"
	"strings"
)

// ansiRE matches ANSI escape sequences emitted by compilers and CI runners.
var ansiRE = regexp.MustCompile(`\x1B[@-_][0-?]*[ -/]*[@-~]`)

// StripANSI removes ANSI escape sequences from a line of text.
func StripANSI(s string) string {
	return ansiRE.ReplaceAllString(s, "")
}

// Artifact is the raw text under analysis - a build log or a source file.
// It is immutable once ingested and line-indexed for citation verification.
type Artifact struct {
	// ID identifies the artifact (file path, build id, run url).
	ID string

	// Lines holds the artifact text split into lines, ANSI-stripped.
	// Line numbers throughout the pipeline are 1-based indices into this slice.
	Lines []string
}

// NewArtifact ingests raw text as an artifact. ANSI escape sequences are
// stripped at ingestion so that extraction, prompting and citation
// verification all see the same text.
func NewArtifact(id, text string) *Artifact {
	raw := strings.Split(text, "\n")
	lines := make([]string, len(raw))
	for i, l := range raw {
		lines[i] = StripANSI(l)
	}
	return &Artifact{ID: id, Lines: lines}
}

// Line returns the 1-based line n, or "" and false when n is out of range.
func (a *Artifact) Line(n int) (string, bool) {
	if n < 1 || n > len(a.Lines) {
		return "", false
	}
	return a.Lines[n-1], true
}

// LineCount returns the number of lines in the artifact.
func (a *Artifact) LineCount() int {
	return len(a.Lines)
}

// TotalChars returns the total character count of the artifact including
// newlines. Used for token-savings accounting.
func (a *Artifact) TotalChars() int {
	total := 0
	for _, l := range a.Lines {
		total += len(l) + 1
	}
	return total
}

// Indicator is a single line of interest within an artifact, matched either
// by a detection rule or supplied by an external scanner report.
type Indicator struct {
	// Line is the 1-based line number within the artifact.
	Line int

	// Text is the matched line, ANSI-stripped.
	Text string

	// RuleHint is the pattern or scanner reference that matched.
	// The categorizer matches this (and Text) against its rule table.
	RuleHint string
}

// ExternalRef is a line reference supplied by an external tool, such as a
// license scanner report pointing at matched source regions.
type ExternalRef struct {
	// Line is the 1-based referenced line.
	Line int

	// Hint describes the reference origin (e.g. "license-match").
	Hint string
}

// EvidenceWindow is an indicator cluster plus surrounding context lines.
// Windows whose line ranges overlap are merged, preserving the union of
// their indicators and categories.
type EvidenceWindow struct {
	// Start and End are 1-based inclusive line bounds, clipped to the artifact.
	Start int
	End   int

	// Lines holds the window content, Lines[0] being line Start.
	Lines []string

	// Indicators are the matched lines covered by this window, ascending.
	Indicators []Indicator

	// Categories is the set of categories assigned by the categorizer,
	// sorted by descending priority. Empty until categorization.
	Categories []Category
}

// Primary returns the highest-priority category of the window, or
// CategoryOther when the window has not been categorized.
func (w *EvidenceWindow) Primary() Category {
	if len(w.Categories) == 0 {
		return CategoryOther
	}
	return w.Categories[0]
}

// Headline returns the first indicator line, used for fallback findings and
// human summaries.
func (w *EvidenceWindow) Headline() string {
	if len(w.Indicators) == 0 {
		return ""
	}
	return strings.TrimSpace(w.Indicators[0].Text)
}

// Chars returns the character count of the window content including newlines.
func (w *EvidenceWindow) Chars() int {
	total := 0
	for _, l := range w.Lines {
		total += len(l) + 1
	}
	return total
}

// Overlaps reports whether two windows share at least one line.
func (w *EvidenceWindow) Overlaps(other *EvidenceWindow) bool {
	return w.Start <= other.End && other.Start <= w.End
}

// BuildInfo holds metadata parsed from a build log header or supplied by a
// webhook payload. Zero values mean unknown.
type BuildInfo struct {
	Component string `json:"component,omitempty"`
	BuildID   string `json:"build_id,omitempty"`
	Compiler  string `json:"compiler,omitempty"`
	Branch    string `json:"branch,omitempty"`
	Runner    string `json:"runner,omitempty"`
	Repo      string `json:"repo,omitempty"`
	Commit    string `json:"commit,omitempty"`
	BuildURL  string `json:"build_url,omitempty"`
}
