package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildlens/buildlens/internal/core/domain"
)

// fakeArchive records Save calls for pipeline tests.
type fakeArchive struct {
	reports []*domain.Report
	metas   []*domain.RunMeta
}

func (f *fakeArchive) Save(_ context.Context, report *domain.Report, meta *domain.RunMeta) error {
	f.reports = append(f.reports, report)
	f.metas = append(f.metas, meta)
	return nil
}

func (f *fakeArchive) Load(_ context.Context, _ string) (*domain.Report, *domain.RunMeta, error) {
	return nil, nil, domain.ErrNotFound
}

func (f *fakeArchive) Close() error { return nil }

func pipelineSettings() domain.Settings {
	settings := domain.DefaultSettings()
	settings.LLM.Backend = "mock"
	settings.LLM.Model = "mock-model"
	settings.LLM.RetryAttempts = 1
	settings.LLM.RetryBackoff = time.Millisecond
	return settings
}

func TestAnalyzeBuildLog_AIPath(t *testing.T) {
	llm := &mockLLM{response: validResponse, inTokens: 800, outTokens: 150}
	store := &fakeUsageStore{}
	usage := NewUsageTracker(store, domain.BudgetSettings{Period: domain.PeriodWeekly, Pricing: testPricing()})
	archive := &fakeArchive{}
	p := NewPipeline(pipelineSettings(), llm, usage, archive)

	report, err := p.AnalyzeBuildLog(context.Background(), testArtifact(), domain.BuildInfo{})
	require.NoError(t, err)

	assert.True(t, report.AIAssisted)
	assert.Equal(t, "mock", report.Backend)
	assert.Equal(t, "mock-model", report.Model)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, "missing semicolon in wifi_hal.c", report.Findings[0].Cause)
	assert.NotEmpty(t, report.Findings[0].Citations)
	assert.True(t, report.HasVerifiedEvidence())

	// Exactly one ledger entry for the run.
	require.Len(t, store.records, 1)
	assert.Equal(t, OpBuildLogAnalysis, store.records[0].Operation)
	assert.Equal(t, 800, store.records[0].InputTokens)

	// The run bundle was archived with its prompt and window accounting.
	require.Len(t, archive.metas, 1)
	assert.Equal(t, report.RunID, archive.metas[0].RunID)
	assert.NotEmpty(t, archive.metas[0].Prompt)
	assert.Equal(t, 1, archive.metas[0].WindowCount)
}

func TestAnalyzeBuildLog_BackendUnavailableFallsBack(t *testing.T) {
	llm := &mockLLM{failures: 100}
	store := &fakeUsageStore{}
	usage := NewUsageTracker(store, domain.BudgetSettings{Period: domain.PeriodWeekly})
	settings := pipelineSettings()
	settings.LLM.RetryAttempts = 3
	p := NewPipeline(settings, llm, usage, nil)

	report, err := p.AnalyzeBuildLog(context.Background(), testArtifact(), domain.BuildInfo{})
	require.NoError(t, err)

	// All attempts were exhausted, the run still produced a usable report.
	assert.Equal(t, 3, llm.calls)
	assert.False(t, report.AIAssisted)
	assert.NotEmpty(t, report.Findings)
	assert.Contains(t, report.Warnings, "model backend unavailable after retries")
	for _, f := range report.Findings {
		assert.Equal(t, domain.ConfidenceLow, f.Confidence)
	}

	// No ledger entry: the calls never succeeded.
	assert.Empty(t, store.records)
}

func TestAnalyzeBuildLog_KillSwitch(t *testing.T) {
	llm := &mockLLM{response: validResponse}
	store := &fakeUsageStore{}
	usage := NewUsageTracker(store, domain.BudgetSettings{Period: domain.PeriodWeekly})
	settings := pipelineSettings()
	settings.LLM.Disabled = true
	p := NewPipeline(settings, llm, usage, nil)

	report, err := p.AnalyzeBuildLog(context.Background(), testArtifact(), domain.BuildInfo{})
	require.NoError(t, err)

	assert.Zero(t, llm.calls)
	assert.False(t, report.AIAssisted)
	assert.Contains(t, report.Warnings, "AI analysis disabled by configuration")
	assert.Empty(t, store.records)
}

func TestAnalyzeBuildLog_BudgetExceededFallsBack(t *testing.T) {
	llm := &mockLLM{response: validResponse}
	store := &fakeUsageStore{records: []domain.UsageRecord{
		{Timestamp: time.Now().UTC(), Cost: 10},
	}}
	usage := NewUsageTracker(store, domain.BudgetSettings{Ceiling: 5, Period: domain.PeriodWeekly})
	p := NewPipeline(pipelineSettings(), llm, usage, nil)

	report, err := p.AnalyzeBuildLog(context.Background(), testArtifact(), domain.BuildInfo{})
	require.NoError(t, err)

	assert.Zero(t, llm.calls)
	assert.False(t, report.AIAssisted)
	assert.Contains(t, report.Warnings, "cost budget exceeded for the current period")
}

func TestAnalyzeBuildLog_SchemaFailureStillRecordsUsage(t *testing.T) {
	llm := &mockLLM{response: "I am not JSON at all", inTokens: 700, outTokens: 90}
	store := &fakeUsageStore{}
	usage := NewUsageTracker(store, domain.BudgetSettings{Period: domain.PeriodWeekly})
	p := NewPipeline(pipelineSettings(), llm, usage, nil)

	report, err := p.AnalyzeBuildLog(context.Background(), testArtifact(), domain.BuildInfo{})
	require.NoError(t, err)

	assert.False(t, report.AIAssisted)
	assert.Contains(t, report.Warnings, "model response failed schema validation")
	assert.NotEmpty(t, report.Findings)

	// The invocation itself succeeded, so its cost is on the ledger.
	require.Len(t, store.records, 1)
	assert.Equal(t, 700, store.records[0].InputTokens)
}

func TestAnalyzeBuildLog_NilLLMIsFallbackOnly(t *testing.T) {
	store := &fakeUsageStore{}
	usage := NewUsageTracker(store, domain.BudgetSettings{Period: domain.PeriodWeekly})
	p := NewPipeline(pipelineSettings(), nil, usage, nil)

	report, err := p.AnalyzeBuildLog(context.Background(), testArtifact(), domain.BuildInfo{})
	require.NoError(t, err)

	assert.False(t, report.AIAssisted)
	assert.Contains(t, report.Warnings, "LLM service unavailable: no model backend configured")
	assert.NotEmpty(t, report.Findings)
}

func TestDecidePath_SentinelReasons(t *testing.T) {
	store := &fakeUsageStore{}
	usage := NewUsageTracker(store, domain.BudgetSettings{
		Ceiling: 5,
		Period:  domain.PeriodWeekly,
		Pricing: testPricing(),
	})
	ctx := context.Background()

	disabled := pipelineSettings()
	disabled.LLM.Disabled = true
	p := NewPipeline(disabled, &mockLLM{}, usage, nil)
	state, reason := p.decidePath(ctx, disabled)
	assert.Equal(t, deterministicFallback, state)
	assert.ErrorIs(t, reason, domain.ErrAIDisabled)

	p = NewPipeline(pipelineSettings(), nil, usage, nil)
	state, reason = p.decidePath(ctx, pipelineSettings())
	assert.Equal(t, deterministicFallback, state)
	assert.ErrorIs(t, reason, domain.ErrLLMUnavailable)

	store.records = append(store.records, domain.UsageRecord{
		Timestamp: time.Now().UTC(),
		Operation: OpBuildLogAnalysis,
		Model:     "mock-model",
		Cost:      10,
	})
	p = NewPipeline(pipelineSettings(), &mockLLM{}, usage, nil)
	state, reason = p.decidePath(ctx, pipelineSettings())
	assert.Equal(t, deterministicFallback, state)
	assert.ErrorIs(t, reason, domain.ErrBudgetExceeded)
}

func TestAnalyzeBuildLog_CleanLog(t *testing.T) {
	usage := NewUsageTracker(&fakeUsageStore{}, domain.BudgetSettings{Period: domain.PeriodWeekly})
	archive := &fakeArchive{}
	p := NewPipeline(pipelineSettings(), nil, usage, archive)

	a := domain.NewArtifact("build.log", "everything compiled\nall 120 tests passed\ndone")
	report, err := p.AnalyzeBuildLog(context.Background(), a, domain.BuildInfo{})
	require.NoError(t, err)

	assert.Empty(t, report.Findings)
	assert.Equal(t, []string{"No errors detected in the build log."}, report.Summary)
	// A clean run is archived too.
	assert.Len(t, archive.reports, 1)
}

func TestAnalyzeBuildLog_MergesHeaderInfo(t *testing.T) {
	usage := NewUsageTracker(&fakeUsageStore{}, domain.BudgetSettings{Period: domain.PeriodWeekly})
	p := NewPipeline(pipelineSettings(), nil, usage, nil)

	a := domain.NewArtifact("build.log",
		"Component: wifi-agent\nBranch: develop\nmain.c:3: error: boom")
	report, err := p.AnalyzeBuildLog(context.Background(), a, domain.BuildInfo{Branch: "release/1.2"})
	require.NoError(t, err)

	// Explicit webhook metadata wins over the parsed header.
	assert.Equal(t, "release/1.2", report.BuildInfo.Branch)
	assert.Equal(t, "wifi-agent", report.BuildInfo.Component)
}

func TestAnalyzeLicenseScan(t *testing.T) {
	usage := NewUsageTracker(&fakeUsageStore{}, domain.BudgetSettings{Period: domain.PeriodWeekly})
	p := NewPipeline(pipelineSettings(), nil, usage, nil)

	source := `/* MD5 message digest, derived from the RSA reference code */
static const unsigned int K[64] = { 0xd76aa478, 0xe8c7b756 };
void md5_transform(unsigned int *state) {
}`
	a := domain.NewArtifact("md5.c", source)
	report, err := p.AnalyzeLicenseScan(context.Background(), a,
		"Snippet match in md5.c:2 (RSA-MD, 96%)")
	require.NoError(t, err)

	require.NotEmpty(t, report.Findings)
	assert.Equal(t, 1, report.Categories["license-match"])
	assert.Equal(t, 2, report.Findings[0].Citations[0].Line)
}

func TestAnalyzeLicenseScan_ErrorWordInSourceNotAnIndicator(t *testing.T) {
	usage := NewUsageTracker(&fakeUsageStore{}, domain.BudgetSettings{Period: domain.PeriodWeekly})
	p := NewPipeline(pipelineSettings(), nil, usage, nil)

	// Source code that merely mentions "error" must not trip the build-log
	// detection rules; only scanner references count here.
	a := domain.NewArtifact("handler.c", `int handle_error(int code) { return code; }`)
	report, err := p.AnalyzeLicenseScan(context.Background(), a, "no references here")
	require.NoError(t, err)

	assert.Empty(t, report.Findings)
	assert.Equal(t, []string{"No license-scanner references matched the source file."}, report.Summary)
}
