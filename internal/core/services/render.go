package services

import (
	"fmt"
	"strings"

	"github.com/buildlens/buildlens/internal/core/domain"
)

// RenderChatMessage formats a report for a chat channel (Slack-style
// markdown). Every finding lists at least one citation where available, and
// the message states plainly whether the analysis was AI-assisted.
func RenderChatMessage(r *domain.Report) string {
	var b strings.Builder

	title := r.BuildInfo.Repo
	if title == "" {
		title = r.ArtifactID
	}
	if r.BuildInfo.Branch != "" {
		title += "/" + r.BuildInfo.Branch
	}
	fmt.Fprintf(&b, ":red_circle: *Build Failed: %s*\n\n", title)

	b.WriteString("*Summary:*\n")
	for _, line := range r.Summary {
		fmt.Fprintf(&b, "• %s\n", line)
	}

	if len(r.Findings) > 0 {
		b.WriteString("\n*Top Root Causes:*\n")
		for i, f := range r.Findings {
			fmt.Fprintf(&b, "%d. *%s*\n", i+1, f.Cause)
			if len(f.Citations) > 0 {
				c := f.Citations[0]
				fmt.Fprintf(&b, "   Evidence: line %d: `%s`\n", c.Line, truncate(c.Snippet, 160))
			}
			fmt.Fprintf(&b, "   Confidence: %s\n", f.Confidence)
			if f.NextAction != "" {
				fmt.Fprintf(&b, "   Fix: %s\n", f.NextAction)
			}
			if f.MissingData != "" {
				fmt.Fprintf(&b, "   Missing: %s\n", f.MissingData)
			}
		}
	}

	writeProvenance(&b, r)

	if r.BuildInfo.BuildURL != "" {
		fmt.Fprintf(&b, "\n<%s|View Build Log>\n", r.BuildInfo.BuildURL)
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderMarkdown formats a report as GitHub-flavoured markdown for PR
// comments and console output.
func RenderMarkdown(r *domain.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Triage Report: %s\n\n", r.ArtifactID)
	for _, line := range r.Summary {
		fmt.Fprintf(&b, "- %s\n", line)
	}

	if len(r.Findings) > 0 {
		b.WriteString("\n### Findings\n\n")
		for i, f := range r.Findings {
			fmt.Fprintf(&b, "%d. **%s** (confidence: %s)\n", i+1, f.Cause, f.Confidence)
			for _, c := range f.Citations {
				fmt.Fprintf(&b, "   - line %d: `%s`\n", c.Line, truncate(c.Snippet, 160))
			}
			if f.NextAction != "" {
				fmt.Fprintf(&b, "   - next: %s\n", f.NextAction)
			}
			if f.MissingData != "" {
				fmt.Fprintf(&b, "   - missing data: %s\n", f.MissingData)
			}
		}
	}

	writeProvenance(&b, r)
	return b.String()
}

// writeProvenance appends the AI-assistance marker and the dropped/rejected
// evidence counts so a reviewer can judge completeness. A fallback report is
// never presented as AI-validated.
func writeProvenance(b *strings.Builder, r *domain.Report) {
	b.WriteString("\n")
	if r.AIAssisted {
		fmt.Fprintf(b, "_AI-assisted analysis (%s/%s)._\n", r.Backend, r.Model)
	} else {
		b.WriteString("_Deterministic fallback analysis; no AI assistance._\n")
	}
	if r.DroppedWindows > 0 || r.RejectedCitations > 0 {
		fmt.Fprintf(b, "_Evidence: %d windows dropped for budget, %d citations rejected by verification._\n",
			r.DroppedWindows, r.RejectedCitations)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(b, "_Warning: %s._\n", w)
	}
}
