package services

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/buildlens/buildlens/internal/core/domain"
	"github.com/buildlens/buildlens/internal/logger"
)

// ciFailureRE catches CI failure markers that are not compiler diagnostics.
// A line matches only when the marker appears near a build-related word.
var (
	ciMarkerRE  = regexp.MustCompile(`\bFAILED\b|\bFAILURE\b`)
	ciContextRE = regexp.MustCompile(`(?i)test|target|build|link`)
)

// buildInfoFields maps build-info keys to their header patterns.
var buildInfoFields = map[string]*regexp.Regexp{
	"component": regexp.MustCompile(`(?i)\bcomponent:\s*(.+)`),
	"build_id":  regexp.MustCompile(`(?i)\bbuild id:\s*(.+)`),
	"compiler":  regexp.MustCompile(`(?i)\bcompiler:\s*(.+)`),
	"branch":    regexp.MustCompile(`(?i)\bbranch:\s*(.+)`),
	"runner":    regexp.MustCompile(`(?i)\brunner:\s*(.+)`),
}

// buildInfoHeaderLines bounds how far into the artifact header parsing looks.
const buildInfoHeaderLines = 40

// Extractor scans an artifact for indicator lines and expands them into
// bounded evidence windows. It never touches the network and is fully
// deterministic: the same artifact and rule set always yield the same
// window set.
type Extractor struct {
	rules         []*regexp.Regexp
	patterns      []string
	contextLines  int
	clusterWindow int
}

// NewExtractor compiles the detection rules. An empty pattern list is valid:
// extraction then relies solely on externally supplied references.
func NewExtractor(patterns []string, contextLines, clusterWindow int) (*Extractor, error) {
	rules := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: bad detection rule %q: %v", domain.ErrInvalidInput, p, err)
		}
		rules = append(rules, re)
	}
	if contextLines < 0 {
		contextLines = 0
	}
	if clusterWindow < 1 {
		clusterWindow = 1
	}
	return &Extractor{
		rules:         rules,
		patterns:      patterns,
		contextLines:  contextLines,
		clusterWindow: clusterWindow,
	}, nil
}

// Extract produces the ordered evidence window set for an artifact.
// refs are externally supplied line references (e.g. from a license-scanner
// report); they are treated as indicators alongside pattern matches.
// Overlapping windows are merged by interval union.
func (e *Extractor) Extract(a *domain.Artifact, refs []domain.ExternalRef) []domain.EvidenceWindow {
	indicators := e.findIndicators(a)

	for _, ref := range refs {
		text, ok := a.Line(ref.Line)
		if !ok {
			continue
		}
		indicators = append(indicators, domain.Indicator{
			Line:     ref.Line,
			Text:     text,
			RuleHint: ref.Hint,
		})
	}

	indicators = dedupeIndicators(indicators)
	logger.Debug("Extractor: %d indicator lines", len(indicators))
	if len(indicators) == 0 {
		return nil
	}

	clusters := clusterIndicators(indicators, e.clusterWindow)
	logger.Debug("Extractor: %d clusters (window=%d)", len(clusters), e.clusterWindow)

	windows := make([]domain.EvidenceWindow, 0, len(clusters))
	for _, cluster := range clusters {
		windows = append(windows, e.expand(a, cluster))
	}
	return mergeWindows(windows)
}

// findIndicators scans every line against the detection rules.
// A line is matched at most once, by the first rule that hits it.
func (e *Extractor) findIndicators(a *domain.Artifact) []domain.Indicator {
	var indicators []domain.Indicator
	for i, line := range a.Lines {
		trimmed := strings.TrimSpace(line)
		hint, ok := e.matchLine(trimmed)
		if !ok {
			continue
		}
		indicators = append(indicators, domain.Indicator{
			Line:     i + 1,
			Text:     line,
			RuleHint: hint,
		})
	}
	return indicators
}

// matchLine returns the matching rule pattern for a line, if any.
func (e *Extractor) matchLine(line string) (string, bool) {
	for i, re := range e.rules {
		if re.MatchString(line) {
			return e.patterns[i], true
		}
	}
	if ciMarkerRE.MatchString(line) && ciContextRE.MatchString(line) {
		return "ci-failure-marker", true
	}
	return "", false
}

// expand builds one window from an indicator cluster: symmetric context
// around the cluster bounds, clipped at the artifact boundaries.
func (e *Extractor) expand(a *domain.Artifact, cluster []domain.Indicator) domain.EvidenceWindow {
	start := cluster[0].Line - e.contextLines
	end := cluster[len(cluster)-1].Line + e.contextLines
	if start < 1 {
		start = 1
	}
	if end > a.LineCount() {
		end = a.LineCount()
	}
	lines := make([]string, end-start+1)
	copy(lines, a.Lines[start-1:end])
	return domain.EvidenceWindow{
		Start:      start,
		End:        end,
		Lines:      lines,
		Indicators: cluster,
	}
}

// dedupeIndicators sorts indicators by line and keeps the first per line.
func dedupeIndicators(in []domain.Indicator) []domain.Indicator {
	sort.SliceStable(in, func(i, j int) bool { return in[i].Line < in[j].Line })
	out := in[:0]
	lastLine := 0
	for _, ind := range in {
		if ind.Line == lastLine {
			continue
		}
		out = append(out, ind)
		lastLine = ind.Line
	}
	return out
}

// clusterIndicators groups sorted indicators whose lines are within window
// of their predecessor.
func clusterIndicators(indicators []domain.Indicator, window int) [][]domain.Indicator {
	var clusters [][]domain.Indicator
	for _, ind := range indicators {
		if len(clusters) == 0 {
			clusters = append(clusters, []domain.Indicator{ind})
			continue
		}
		last := clusters[len(clusters)-1]
		if ind.Line-last[len(last)-1].Line <= window {
			clusters[len(clusters)-1] = append(last, ind)
		} else {
			clusters = append(clusters, []domain.Indicator{ind})
		}
	}
	return clusters
}

// mergeWindows unions windows with overlapping line ranges. Input windows
// are ordered by start line; indicators and categories are preserved across
// a merge.
func mergeWindows(windows []domain.EvidenceWindow) []domain.EvidenceWindow {
	if len(windows) < 2 {
		return windows
	}
	sort.SliceStable(windows, func(i, j int) bool { return windows[i].Start < windows[j].Start })

	merged := []domain.EvidenceWindow{windows[0]}
	for _, w := range windows[1:] {
		last := &merged[len(merged)-1]
		if !last.Overlaps(&w) {
			merged = append(merged, w)
			continue
		}
		if w.End > last.End {
			grow := w.End - last.End
			last.Lines = append(last.Lines, w.Lines[len(w.Lines)-grow:]...)
			last.End = w.End
		}
		last.Indicators = append(last.Indicators, w.Indicators...)
		last.Indicators = dedupeIndicators(last.Indicators)
		last.Categories = unionCategories(last.Categories, w.Categories)
	}
	return merged
}

// unionCategories merges two category sets preserving priority order.
func unionCategories(a, b []domain.Category) []domain.Category {
	seen := make(map[domain.Category]bool, len(a)+len(b))
	out := make([]domain.Category, 0, len(a)+len(b))
	for _, c := range append(append([]domain.Category{}, a...), b...) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority() < out[j].Priority() })
	return out
}

// ParseBuildInfo extracts build metadata (component, build id, compiler,
// branch, runner) from the artifact header.
func ParseBuildInfo(a *domain.Artifact) domain.BuildInfo {
	var info domain.BuildInfo
	limit := buildInfoHeaderLines
	if limit > a.LineCount() {
		limit = a.LineCount()
	}
	for _, line := range a.Lines[:limit] {
		setBuildField(&info, line)
	}
	return info
}

func setBuildField(info *domain.BuildInfo, line string) {
	for key, re := range buildInfoFields {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		val := strings.TrimSpace(m[1])
		switch key {
		case "component":
			if info.Component == "" {
				info.Component = val
			}
		case "build_id":
			if info.BuildID == "" {
				info.BuildID = val
			}
		case "compiler":
			if info.Compiler == "" {
				info.Compiler = val
			}
		case "branch":
			if info.Branch == "" {
				info.Branch = val
			}
		case "runner":
			if info.Runner == "" {
				info.Runner = val
			}
		}
	}
}
