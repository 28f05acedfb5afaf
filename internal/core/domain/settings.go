package domain

import (
	"fmt"
	"time"
)

// DefaultErrorPatterns are the built-in detection rules for build logs.
// They mirror gcc/clang/ld/cmake diagnostics plus common CI failure markers.
var DefaultErrorPatterns = []string{
	`(?i)\berror:\s+(.+)`,
	`(?i)\bfatal:\s+(.+)`,
	`(?i)\bundefined reference to\s+(.+)`,
	`(?i)\bundefined symbol:\s+(.+)`,
	`(?i)\bld:\s+cannot find\s+(.+)`,
	`(?i)\bcannot find\s+(-l\S+|\S+)`,
	`(?i)\bno rule to make target\b.*`,
	`(?i)\bcmake error\b:?\s*(.*)`,
	`(?i)\bconfiguration error\b:?\s*(.*)`,
}

// ExtractionSettings configures the deterministic extraction stage.
type ExtractionSettings struct {
	// Patterns are the detection rules (regular expressions).
	// Empty means DefaultErrorPatterns.
	Patterns []string `toml:"patterns"`

	// ContextLines is the symmetric context around each indicator cluster.
	ContextLines int `toml:"context_lines"`

	// ClusterWindow groups indicators within this many lines into one window.
	ClusterWindow int `toml:"cluster_window"`
}

// MinPromptBudgetChars is the smallest usable prompt budget. The fixed
// instruction and footer blocks of an assembled prompt take roughly 1200
// characters before any evidence section fits; budgets below this floor
// cannot honor the ceiling.
const MinPromptBudgetChars = 2000

// PromptSettings configures prompt assembly.
type PromptSettings struct {
	// BudgetChars is the hard ceiling on assembled prompt size in characters.
	// Must be at least MinPromptBudgetChars.
	BudgetChars int `toml:"budget_chars"`

	// MaxWindows caps how many evidence windows are considered at all.
	MaxWindows int `toml:"max_windows"`

	// MaxFindings caps the findings list in a delivered report.
	MaxFindings int `toml:"max_findings"`
}

// LLMSettings selects and configures the model backend.
type LLMSettings struct {
	// Backend is one of "anthropic", "openai", "ollama". Empty disables AI.
	Backend string `toml:"backend"`

	// Model is the backend-specific model identifier.
	Model string `toml:"model"`

	// BaseURL overrides the backend's default API URL.
	BaseURL string `toml:"base_url"`

	// APIKey authenticates hosted backends. Unused by ollama.
	APIKey string `toml:"api_key"`

	// Temperature for generation. Kept low for consistent triage output.
	Temperature float64 `toml:"temperature"`

	// MaxOutputTokens bounds the model response size.
	MaxOutputTokens int `toml:"max_output_tokens"`

	// RetryAttempts caps invocation attempts on transient failure.
	RetryAttempts int `toml:"retry_attempts"`

	// RetryBackoff is the initial backoff between attempts, doubled per retry.
	RetryBackoff time.Duration `toml:"retry_backoff"`

	// RunTimeout is the overall deadline for one invocation including retries.
	RunTimeout time.Duration `toml:"run_timeout"`

	// Disabled is the AI kill switch: when true every run takes the
	// deterministic fallback path without touching the network.
	Disabled bool `toml:"disabled"`
}

// IsConfigured reports whether a backend has been selected.
func (s *LLMSettings) IsConfigured() bool {
	return s != nil && s.Backend != ""
}

// BudgetSettings configures cost accounting and the spending ceiling.
type BudgetSettings struct {
	// Ceiling is the maximum spend per period. Zero disables enforcement.
	Ceiling float64 `toml:"ceiling"`

	// Period is the rolling window the ceiling applies to.
	Period Period `toml:"period"`

	// Pricing maps model identifiers to per-1K-token prices.
	Pricing map[string]ModelPricing `toml:"pricing"`
}

// WebhookSettings configures the inbound webhook server.
type WebhookSettings struct {
	// Addr is the listen address for serve mode.
	Addr string `toml:"addr"`

	// Secret is the shared HMAC secret for inbound signature verification.
	Secret string `toml:"secret"`
}

// SlackSettings configures outbound chat delivery.
type SlackSettings struct {
	// Token is the bot token used for chat.postMessage.
	Token string `toml:"token"`

	// Channel is the default delivery channel.
	Channel string `toml:"channel"`
}

// GitHubSettings configures PR metadata enrichment.
type GitHubSettings struct {
	// Token authenticates the GitHub API client. Empty disables enrichment.
	Token string `toml:"token"`
}

// Settings is the full configuration surface consumed by the core.
type Settings struct {
	Extraction ExtractionSettings `toml:"extraction"`
	Prompt     PromptSettings     `toml:"prompt"`
	LLM        LLMSettings        `toml:"llm"`
	Budget     BudgetSettings     `toml:"budget"`
	Webhook    WebhookSettings    `toml:"webhook"`
	Slack      SlackSettings      `toml:"slack"`
	GitHub     GitHubSettings     `toml:"github"`

	// ArchiveDir is where run bundles ({run-id}/result.json, meta.json)
	// are persisted for audit. Empty disables archiving.
	ArchiveDir string `toml:"archive_dir"`
}

// DefaultSettings returns the configuration used when no config file exists.
func DefaultSettings() Settings {
	return Settings{
		Extraction: ExtractionSettings{
			ContextLines:  5,
			ClusterWindow: 8,
		},
		Prompt: PromptSettings{
			BudgetChars: 12000,
			MaxWindows:  10,
			MaxFindings: 3,
		},
		LLM: LLMSettings{
			Temperature:     0.2,
			MaxOutputTokens: 2000,
			RetryAttempts:   3,
			RetryBackoff:    time.Second,
			RunTimeout:      60 * time.Second,
		},
		Budget: BudgetSettings{
			Period: PeriodWeekly,
		},
		Webhook: WebhookSettings{
			Addr: ":8090",
		},
	}
}

// Validate checks settings for values the pipeline cannot work with.
func (s *Settings) Validate() error {
	if s.Extraction.ContextLines < 0 {
		return fmt.Errorf("%w: context_lines must be >= 0", ErrInvalidInput)
	}
	if s.Prompt.BudgetChars < MinPromptBudgetChars {
		return fmt.Errorf("%w: budget_chars must be >= %d", ErrInvalidInput, MinPromptBudgetChars)
	}
	if s.Prompt.MaxFindings <= 0 {
		return fmt.Errorf("%w: max_findings must be > 0", ErrInvalidInput)
	}
	if s.LLM.RetryAttempts < 1 {
		return fmt.Errorf("%w: retry_attempts must be >= 1", ErrInvalidInput)
	}
	if s.Budget.Ceiling < 0 {
		return fmt.Errorf("%w: budget ceiling must be >= 0", ErrInvalidInput)
	}
	return nil
}

// EffectivePatterns returns the configured detection rules, falling back to
// the built-in pattern set when none are configured.
func (s *Settings) EffectivePatterns() []string {
	if len(s.Extraction.Patterns) > 0 {
		return s.Extraction.Patterns
	}
	return DefaultErrorPatterns
}
