package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/buildlens/buildlens/internal/core/domain"
	"github.com/buildlens/buildlens/internal/logger"
)

// promptInstructions is the schema-first instruction block. It enumerates
// the exact required output fields and the evidence constraints that bound
// hallucination risk: the model may only cite text present in the supplied
// sections, must degrade to low confidence when proof is missing, and must
// never invent identifiers, line numbers or license text.
const promptInstructions = `ROLE: You assist a build team with CI failure and license compliance triage.

TASK: Analyse the evidence sections below. They were extracted deterministically from the artifact; nothing outside them is available to you.

OUTPUT (valid JSON only):
{
  "findings": [
    { "cause": "string",
      "evidence": [ { "line": number, "snippet": "string" } ],
      "confidence": "high|medium|low",
      "next_action": "string",
      "missing_data": "string (optional)" }
  ],
  "summary": ["bullet 1", "bullet 2", "bullet 3"]
}

REQUIREMENTS:
- Cite at least one exact line number and verbatim snippet per finding.
- Only cite text that appears in the supplied sections.
- If the cause cannot be proven from the given text, set confidence to "low" and state what is missing in missing_data.
- Never invent identifiers, line numbers, or license text not present in the input.
- Prefer concrete commands and flags over generic advice.`

const promptFooter = `IMPORTANT: Respond with VALID JSON ONLY. No additional commentary.`

// maxScanNotesChars bounds how much external scanner context is quoted.
const maxScanNotesChars = 2000

// PromptAssembler renders categorized evidence windows into one bounded
// prompt. The assembled prompt never exceeds the configured character
// budget; windows are dropped lowest-priority-first when it would be.
type PromptAssembler struct {
	budgetChars int
	maxWindows  int
}

// NewPromptAssembler creates an assembler with a hard character ceiling.
// Budgets below domain.MinPromptBudgetChars are raised to it: the fixed
// instruction and footer blocks alone exceed anything smaller, so a tighter
// ceiling could not be honored.
func NewPromptAssembler(budgetChars, maxWindows int) *PromptAssembler {
	if budgetChars < domain.MinPromptBudgetChars {
		budgetChars = domain.MinPromptBudgetChars
	}
	if maxWindows < 1 {
		maxWindows = 1
	}
	return &PromptAssembler{budgetChars: budgetChars, maxWindows: maxWindows}
}

// Assemble returns the bounded prompt and the number of evidence windows
// excluded for budget reasons. Windows are ordered by category priority,
// ties broken by ascending start line.
func (p *PromptAssembler) Assemble(windows []domain.EvidenceWindow, info domain.BuildInfo, scanNotes string) (string, int) {
	ordered := make([]domain.EvidenceWindow, len(windows))
	copy(ordered, windows)
	sort.SliceStable(ordered, func(i, j int) bool {
		pi, pj := ordered[i].Primary().Priority(), ordered[j].Primary().Priority()
		if pi != pj {
			return pi < pj
		}
		return ordered[i].Start < ordered[j].Start
	})

	dropped := 0
	if len(ordered) > p.maxWindows {
		dropped = len(ordered) - p.maxWindows
		ordered = ordered[:p.maxWindows]
	}

	var b strings.Builder
	b.WriteString(promptInstructions)
	b.WriteString("\n\n")
	writeBuildInfo(&b, info)
	writeScanNotes(&b, scanNotes)
	b.WriteString("EVIDENCE SECTIONS:\n")
	b.WriteString(strings.Repeat("=", 60))
	b.WriteString("\n")

	// Everything after the sections is fixed-size; reserve it up front so
	// the ceiling holds exactly.
	reserved := b.Len() + len("\n") + 60 + len("\n") + len(promptFooter) + len("\n")

	used := reserved
	included := 0
	for i := range ordered {
		section := renderSection(&ordered[i], included+1)
		if used+len(section) > p.budgetChars {
			dropped += len(ordered) - i
			break
		}
		b.WriteString(section)
		used += len(section)
		included++
	}

	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", 60))
	b.WriteString("\n")
	b.WriteString(promptFooter)
	b.WriteString("\n")

	logger.Debug("Prompt: %d chars, %d sections included, %d dropped (budget=%d)",
		b.Len(), included, dropped, p.budgetChars)
	return b.String(), dropped
}

// renderSection serializes one window with explicit line numbers so the
// model can cite them exactly.
func renderSection(w *domain.EvidenceWindow, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n--- Evidence Section %d (category: %s, lines %d-%d) ---\n",
		n, w.Primary().String(), w.Start, w.End)
	for i, line := range w.Lines {
		fmt.Fprintf(&b, "%6d: %s\n", w.Start+i, line)
	}
	return b.String()
}

func writeBuildInfo(b *strings.Builder, info domain.BuildInfo) {
	fields := []struct{ key, val string }{
		{"component", info.Component},
		{"build id", info.BuildID},
		{"compiler", info.Compiler},
		{"repo", info.Repo},
		{"branch", info.Branch},
		{"runner", info.Runner},
	}
	any := false
	for _, f := range fields {
		if f.val == "" {
			continue
		}
		if !any {
			b.WriteString("BUILD INFO:\n")
			any = true
		}
		fmt.Fprintf(b, "- %s: %s\n", f.key, f.val)
	}
	if any {
		b.WriteString("\n")
	}
}

func writeScanNotes(b *strings.Builder, notes string) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return
	}
	if len(notes) > maxScanNotesChars {
		notes = notes[:maxScanNotesChars]
	}
	b.WriteString("SCANNER NOTES:\n")
	b.WriteString(notes)
	b.WriteString("\n\n")
}
