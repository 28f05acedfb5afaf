package services

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/buildlens/buildlens/internal/core/domain"
	"github.com/buildlens/buildlens/internal/logger"
)

// categoryRule pairs a predicate with the category it assigns.
type categoryRule struct {
	re  *regexp.Regexp
	cat domain.Category
}

// categoryRules is the ordered classification table, evaluated first-match-
// wins against each indicator's rule hint and matched text. Order matters:
// specific linker and license patterns must win over the generic "error"
// bucket.
var categoryRules = []categoryRule{
	{regexp.MustCompile(`(?i)license|copyright|snippet`), domain.CategoryLicenseMatch},
	{regexp.MustCompile(`(?i)\b(ld: )?cannot find\b|\s-l[A-Za-z0-9_\-]+`), domain.CategoryLinkMissingDependency},
	{regexp.MustCompile(`(?i)\bundefined reference\b|\bundefined symbol\b`), domain.CategoryLinkUndefinedReference},
	{regexp.MustCompile(`(?i)\berror\b|\bfatal\b|\bno rule to make target\b|\bconfiguration error\b`), domain.CategoryCompileError},
}

// Categorizer assigns categories to evidence windows. Pure function of its
// input: no state, no side effects.
type Categorizer struct{}

// NewCategorizer creates a categorizer.
func NewCategorizer() *Categorizer {
	return &Categorizer{}
}

// Categorize assigns each window the union of its indicators' categories and
// returns per-category window counts (by primary category) for the human
// summary and budget prioritization.
func (c *Categorizer) Categorize(windows []domain.EvidenceWindow) ([]domain.EvidenceWindow, map[string]int) {
	counts := make(map[string]int)
	for i := range windows {
		windows[i].Categories = c.windowCategories(&windows[i])
		counts[windows[i].Primary().String()]++
	}
	logger.Debug("Categorizer: %v", counts)
	return windows, counts
}

// windowCategories classifies every indicator of the window and returns the
// deduplicated set sorted by priority.
func (c *Categorizer) windowCategories(w *domain.EvidenceWindow) []domain.Category {
	seen := make(map[domain.Category]bool)
	var cats []domain.Category
	for _, ind := range w.Indicators {
		cat := classify(ind)
		if !seen[cat] {
			seen[cat] = true
			cats = append(cats, cat)
		}
	}
	if len(cats) == 0 {
		cats = append(cats, domain.CategoryOther)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].Priority() < cats[j].Priority() })
	return cats
}

// classify resolves one indicator against the rule table, first match wins.
// Both the rule hint and the matched line text are consulted: scanner-
// supplied hints carry no log text, pattern hits carry no scanner hint.
func classify(ind domain.Indicator) domain.Category {
	subject := ind.RuleHint + " " + ind.Text
	for _, rule := range categoryRules {
		if rule.re.MatchString(subject) {
			return rule.cat
		}
	}
	return domain.CategoryOther
}

// SummarizeCounts renders category counts as a short human phrase, e.g.
// "2 compile-error, 1 license-match". Categories are listed in priority
// order for stable output.
func SummarizeCounts(counts map[string]int) string {
	order := []domain.Category{
		domain.CategoryCompileError,
		domain.CategoryLinkMissingDependency,
		domain.CategoryLinkUndefinedReference,
		domain.CategoryLicenseMatch,
		domain.CategoryOther,
	}
	var parts []string
	for _, cat := range order {
		if n := counts[cat.String()]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, cat.String()))
		}
	}
	if len(parts) == 0 {
		return "no findings"
	}
	return strings.Join(parts, ", ")
}
