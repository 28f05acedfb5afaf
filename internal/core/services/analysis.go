package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/buildlens/buildlens/internal/core/domain"
	"github.com/buildlens/buildlens/internal/core/ports/driven"
	"github.com/buildlens/buildlens/internal/core/ports/driving"
	"github.com/buildlens/buildlens/internal/logger"
)

// Ensure Pipeline implements the interface.
var _ driving.AnalysisService = (*Pipeline)(nil)

// Operation names recorded in the cost ledger.
const (
	OpBuildLogAnalysis  = "build-log-analysis"
	OpLicenseCompliance = "license-compliance"
	OpPRSummary         = "pr-summary"
)

// pathState tracks which delivery path a run is on. There are exactly two:
// the model-backed path and the deterministic fallback.
type pathState int

const (
	aiPath pathState = iota
	deterministicFallback
)

// fallbackNextAction is the per-finding advice when no model analysis ran.
const fallbackNextAction = "Inspect the cited log section; AI analysis was not available for this run."

// Pipeline orchestrates one analysis run: extract, categorize, assemble,
// invoke, validate, record cost, archive. Stage failures inside the run
// degrade to the deterministic fallback path; the pipeline always
// terminates with a usable report and never blocks the caller on model
// availability.
type Pipeline struct {
	mu       sync.RWMutex
	settings domain.Settings

	llm     driven.LLMService
	usage   driving.UsageService
	archive driven.RunArchive
}

// NewPipeline creates a pipeline. llm may be nil (fallback-only operation)
// and archive may be nil (archiving disabled).
func NewPipeline(settings domain.Settings, llm driven.LLMService, usage driving.UsageService, archive driven.RunArchive) *Pipeline {
	return &Pipeline{
		settings: settings,
		llm:      llm,
		usage:    usage,
		archive:  archive,
	}
}

// UpdateSettings swaps the pipeline configuration, used on config hot-reload.
// In-flight runs keep the snapshot they started with.
func (p *Pipeline) UpdateSettings(settings domain.Settings) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settings = settings
}

func (p *Pipeline) snapshot() domain.Settings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.settings
}

// AnalyzeBuildLog runs the full pipeline over a build log. Metadata found in
// the log header is merged with the supplied info; the supplied info wins.
func (p *Pipeline) AnalyzeBuildLog(ctx context.Context, artifact *domain.Artifact, info domain.BuildInfo) (*domain.Report, error) {
	st := p.snapshot()
	header := ParseBuildInfo(artifact)
	info = mergeBuildInfo(info, header)
	return p.run(ctx, st, artifact, info, nil, "", OpBuildLogAnalysis)
}

// AnalyzeLicenseScan runs the pipeline over a source file using a license
// scanner report's references as indicators. Detection patterns are not
// applied: compiler heuristics have no meaning inside arbitrary source text.
func (p *Pipeline) AnalyzeLicenseScan(ctx context.Context, artifact *domain.Artifact, scanReport string) (*domain.Report, error) {
	st := p.snapshot()
	st.Extraction.Patterns = nil
	refs := ParseScanReferences(artifact, scanReport)
	return p.run(ctx, st, artifact, domain.BuildInfo{}, refs, scanReport, OpLicenseCompliance)
}

// run executes the pipeline stages in strict order.
func (p *Pipeline) run(
	ctx context.Context,
	st domain.Settings,
	artifact *domain.Artifact,
	info domain.BuildInfo,
	refs []domain.ExternalRef,
	scanNotes string,
	operation string,
) (*domain.Report, error) {
	logger.Section("Analysis Run")
	runID := uuid.NewString()
	logger.Info("Run %s: artifact %s (%d lines)", runID, artifact.ID, artifact.LineCount())

	patterns := st.EffectivePatterns()
	if operation == OpLicenseCompliance {
		patterns = st.Extraction.Patterns
	}
	extractor, err := NewExtractor(patterns, st.Extraction.ContextLines, st.Extraction.ClusterWindow)
	if err != nil {
		return nil, err
	}

	windows := extractor.Extract(artifact, refs)
	if len(windows) == 0 {
		report := p.noIssuesReport(runID, artifact, info, operation)
		p.archiveRun(ctx, report, &domain.RunMeta{
			RunID:         runID,
			ArtifactID:    artifact.ID,
			Operation:     operation,
			ArtifactChars: artifact.TotalChars(),
			BuildInfo:     info,
			CreatedAt:     report.CreatedAt,
		})
		return report, nil
	}

	windows, counts := NewCategorizer().Categorize(windows)

	assembler := NewPromptAssembler(st.Prompt.BudgetChars, st.Prompt.MaxWindows)
	prompt, dropped := assembler.Assemble(windows, info, scanNotes)

	report := &domain.Report{
		RunID:          runID,
		ArtifactID:     artifact.ID,
		Categories:     counts,
		DroppedWindows: dropped,
		BuildInfo:      info,
		CreatedAt:      time.Now().UTC(),
	}

	state, reason := p.decidePath(ctx, st)
	if reason != nil {
		report.Warnings = append(report.Warnings, reason.Error())
	}

	if state == aiPath {
		state = p.runModelStage(ctx, st, artifact, prompt, operation, report)
	}
	if state == deterministicFallback {
		p.fillFallback(report, windows, counts, st.Prompt.MaxFindings)
	}

	meta := &domain.RunMeta{
		RunID:          runID,
		ArtifactID:     artifact.ID,
		Operation:      operation,
		Backend:        report.Backend,
		Model:          report.Model,
		Prompt:         prompt,
		ArtifactChars:  artifact.TotalChars(),
		PromptChars:    len(prompt),
		SavedTokensEst: domain.EstimateTokens(artifact.TotalChars() - len(prompt)),
		WindowCount:    len(windows),
		DroppedWindows: dropped,
		Categories:     counts,
		BuildInfo:      info,
		CreatedAt:      report.CreatedAt,
	}
	p.archiveRun(ctx, report, meta)
	return report, nil
}

// decidePath evaluates the AI_PATH entry conditions: kill switch, backend
// presence, and the cost ceiling. A non-nil reason names the sentinel that
// forced the fallback and becomes a report warning.
func (p *Pipeline) decidePath(ctx context.Context, st domain.Settings) (pathState, error) {
	if st.LLM.Disabled {
		logger.Info("Pipeline: AI disabled by configuration, using fallback")
		return deterministicFallback, domain.ErrAIDisabled
	}
	if p.llm == nil || !st.LLM.IsConfigured() {
		logger.Info("Pipeline: no model backend configured, using fallback")
		return deterministicFallback, fmt.Errorf("%w: no model backend configured", domain.ErrLLMUnavailable)
	}
	over, err := p.usage.OverBudget(ctx)
	if err != nil {
		logger.Warn("Pipeline: budget check failed: %v", err)
		return aiPath, nil
	}
	if over {
		logger.Warn("Pipeline: cost ceiling reached, forcing fallback")
		return deterministicFallback, fmt.Errorf("%w for the current period", domain.ErrBudgetExceeded)
	}
	return aiPath, nil
}

// runModelStage invokes the model and validates its output. Any failure
// transitions the run to the deterministic fallback with a warning; the
// caller is never failed. Usage is recorded for every successful call, even
// when the response is rejected downstream.
func (p *Pipeline) runModelStage(
	ctx context.Context,
	st domain.Settings,
	artifact *domain.Artifact,
	prompt string,
	operation string,
	report *domain.Report,
) pathState {
	invoker := NewInvoker(p.llm, st.LLM)
	resp, err := invoker.Invoke(ctx, prompt, driven.CompleteOptions{
		MaxTokens:   st.LLM.MaxOutputTokens,
		Temperature: st.LLM.Temperature,
	})
	if err != nil {
		logger.Warn("Pipeline: model invocation failed: %v", err)
		report.Warnings = append(report.Warnings, "model backend unavailable after retries")
		return deterministicFallback
	}

	if err := p.usage.Record(ctx, operation, invoker.Backend(), invoker.ModelName(),
		resp.InputTokens, resp.OutputTokens); err != nil {
		logger.Warn("Pipeline: usage record failed: %v", err)
	}

	validator := NewValidator(st.Prompt.MaxFindings)
	out, err := validator.Parse(resp.Text)
	if err != nil {
		logger.Warn("Pipeline: %v", err)
		report.Warnings = append(report.Warnings, "model response failed schema validation")
		return deterministicFallback
	}

	findings, rejected := validator.Verify(artifact, out)
	report.AIAssisted = true
	report.Findings = findings
	report.Summary = trimSummary(out.Summary, 3)
	report.RejectedCitations = rejected
	report.Backend = invoker.Backend()
	report.Model = invoker.ModelName()
	return aiPath
}

// fillFallback builds the deterministic report body from the categorizer
// counts and the top-priority evidence windows. No model call is involved
// and the report is clearly marked as non-AI-assisted.
func (p *Pipeline) fillFallback(report *domain.Report, windows []domain.EvidenceWindow, counts map[string]int, maxFindings int) {
	ordered := make([]domain.EvidenceWindow, len(windows))
	copy(ordered, windows)
	sort.SliceStable(ordered, func(i, j int) bool {
		pi, pj := ordered[i].Primary().Priority(), ordered[j].Primary().Priority()
		if pi != pj {
			return pi < pj
		}
		return ordered[i].Start < ordered[j].Start
	})

	if len(ordered) > maxFindings {
		ordered = ordered[:maxFindings]
	}
	for _, w := range ordered {
		if len(w.Indicators) == 0 {
			continue
		}
		ind := w.Indicators[0]
		report.Findings = append(report.Findings, domain.Finding{
			Cause: truncate(w.Headline(), 120),
			Citations: []domain.Citation{
				{Line: ind.Line, Snippet: truncate(strings.TrimSpace(ind.Text), 200)},
			},
			Confidence: domain.ConfidenceLow,
			NextAction: fallbackNextAction,
		})
	}

	report.AIAssisted = false
	report.Summary = []string{
		"Deterministic analysis only; no AI assistance for this run.",
		fmt.Sprintf("Detected: %s.", SummarizeCounts(counts)),
		"Review the cited evidence sections in the archived run bundle.",
	}
}

// noIssuesReport is the explicit result when extraction found nothing.
func (p *Pipeline) noIssuesReport(runID string, artifact *domain.Artifact, info domain.BuildInfo, operation string) *domain.Report {
	logger.Info("Pipeline: no indicators found in %s", artifact.ID)
	summary := "No errors detected in the build log."
	if operation == OpLicenseCompliance {
		summary = "No license-scanner references matched the source file."
	}
	return &domain.Report{
		RunID:      runID,
		ArtifactID: artifact.ID,
		AIAssisted: false,
		Summary:    []string{summary},
		BuildInfo:  info,
		CreatedAt:  time.Now().UTC(),
	}
}

// archiveRun persists the run bundle. Archive failures are logged, never
// fatal: delivery must not depend on the audit trail being writable.
func (p *Pipeline) archiveRun(ctx context.Context, report *domain.Report, meta *domain.RunMeta) {
	if p.archive == nil {
		return
	}
	if err := p.archive.Save(ctx, report, meta); err != nil {
		logger.Warn("Pipeline: archive save failed: %v", err)
	}
}

// mergeBuildInfo overlays parsed header info under explicitly supplied info.
func mergeBuildInfo(explicit, parsed domain.BuildInfo) domain.BuildInfo {
	if explicit.Component == "" {
		explicit.Component = parsed.Component
	}
	if explicit.BuildID == "" {
		explicit.BuildID = parsed.BuildID
	}
	if explicit.Compiler == "" {
		explicit.Compiler = parsed.Compiler
	}
	if explicit.Branch == "" {
		explicit.Branch = parsed.Branch
	}
	if explicit.Runner == "" {
		explicit.Runner = parsed.Runner
	}
	return explicit
}

func trimSummary(summary []string, max int) []string {
	var out []string
	for _, s := range summary {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
		if len(out) == max {
			break
		}
	}
	return out
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
