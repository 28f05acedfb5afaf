package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/buildlens/buildlens/internal/core/domain"
	"github.com/buildlens/buildlens/internal/core/ports/driven"
	"github.com/buildlens/buildlens/internal/core/ports/driving"
	"github.com/buildlens/buildlens/internal/logger"
)

// Ensure PRSummarizer implements the interface.
var _ driving.PRSummaryService = (*PRSummarizer)(nil)

// maxPRFiles bounds how many per-file summaries go into the prompt.
const maxPRFiles = 30

// prSummaryPrompt constrains the model to the metadata it was given.
// The PR description body is never included: only title, stats and file
// names reach the prompt.
const prSummaryPrompt = `Summarise this pull request for a team chat channel in at most 3 short bullet points.
Base the summary ONLY on the metadata below. Do not speculate about code you cannot see.

PR #%d: %s
Author: %s
Target branch: %s
Changed files: %d (+%d/-%d)
%s%s
Respond with plain text bullets, one per line, no preamble.`

// PRSummarizer produces pull-request summaries from metadata and diff
// stats, degrading to a deterministic summary when no model is available.
type PRSummarizer struct {
	mu       sync.RWMutex
	settings domain.LLMSettings

	llm   driven.LLMService
	usage driving.UsageService
	files driven.PRFilesFetcher
}

// NewPRSummarizer creates a PR summarizer. llm and files may be nil.
func NewPRSummarizer(settings domain.LLMSettings, llm driven.LLMService, usage driving.UsageService, files driven.PRFilesFetcher) *PRSummarizer {
	return &PRSummarizer{
		settings: settings,
		llm:      llm,
		usage:    usage,
		files:    files,
	}
}

// UpdateSettings swaps the LLM settings, used on config hot-reload.
func (s *PRSummarizer) UpdateSettings(settings domain.LLMSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

// SummarizePR returns a short chat-ready summary of the pull request.
// Model failures degrade to the deterministic metadata summary; the caller
// always receives usable text.
func (s *PRSummarizer) SummarizePR(ctx context.Context, pr domain.PullRequest) (string, error) {
	s.mu.RLock()
	st := s.settings
	s.mu.RUnlock()

	fileSummaries := s.fetchFiles(ctx, pr)

	if st.Disabled || !st.IsConfigured() || s.llm == nil {
		return deterministicPRSummary(pr, fileSummaries), nil
	}

	prompt := buildPRPrompt(pr, fileSummaries)
	invoker := NewInvoker(s.llm, st)
	resp, err := invoker.Invoke(ctx, prompt, driven.CompleteOptions{
		MaxTokens:   st.MaxOutputTokens,
		Temperature: st.Temperature,
	})
	if err != nil {
		logger.Warn("PRSummarizer: model invocation failed: %v", err)
		return deterministicPRSummary(pr, fileSummaries), nil
	}

	if err := s.usage.Record(ctx, OpPRSummary, invoker.Backend(), invoker.ModelName(),
		resp.InputTokens, resp.OutputTokens); err != nil {
		logger.Warn("PRSummarizer: usage record failed: %v", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return deterministicPRSummary(pr, fileSummaries), nil
	}
	return text, nil
}

func (s *PRSummarizer) fetchFiles(ctx context.Context, pr domain.PullRequest) []string {
	if s.files == nil || pr.Owner == "" || pr.Repo == "" {
		return nil
	}
	summaries, err := s.files.FileSummaries(ctx, pr.Owner, pr.Repo, pr.Number)
	if err != nil {
		logger.Warn("PRSummarizer: file summaries unavailable: %v", err)
		return nil
	}
	if len(summaries) > maxPRFiles {
		summaries = summaries[:maxPRFiles]
	}
	return summaries
}

func buildPRPrompt(pr domain.PullRequest, fileSummaries []string) string {
	tickets := ""
	if len(pr.TicketIDs) > 0 {
		tickets = "Linked tickets: " + strings.Join(pr.TicketIDs, ", ") + "\n"
	}
	files := ""
	if len(fileSummaries) > 0 {
		files = "Files:\n  " + strings.Join(fileSummaries, "\n  ") + "\n"
	}
	return fmt.Sprintf(prSummaryPrompt,
		pr.Number, pr.Title, pr.Author, pr.BaseBranch,
		pr.ChangedFiles, pr.Additions, pr.Deletions,
		tickets, files)
}

// deterministicPRSummary is the fallback summary built purely from metadata.
func deterministicPRSummary(pr domain.PullRequest, fileSummaries []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PR #%d: %s\n", pr.Number, pr.Title)
	fmt.Fprintf(&b, "- %d files changed (+%d/-%d), targeting %s\n",
		pr.ChangedFiles, pr.Additions, pr.Deletions, pr.BaseBranch)
	if len(pr.TicketIDs) > 0 {
		fmt.Fprintf(&b, "- Tickets: %s\n", strings.Join(pr.TicketIDs, ", "))
	}
	if len(fileSummaries) > 0 {
		fmt.Fprintf(&b, "- Touches: %s\n", strings.Join(firstN(fileSummaries, 5), ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

func firstN(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
