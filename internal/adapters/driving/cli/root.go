// Package cli implements the buildlens command line interface.
package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/buildlens/buildlens/internal/adapters/driven/ai"
	"github.com/buildlens/buildlens/internal/adapters/driven/archive/dir"
	configfile "github.com/buildlens/buildlens/internal/adapters/driven/config/file"
	"github.com/buildlens/buildlens/internal/adapters/driven/storage/sqlite"
	"github.com/buildlens/buildlens/internal/core/domain"
	"github.com/buildlens/buildlens/internal/core/ports/driven"
	"github.com/buildlens/buildlens/internal/core/services"
	"github.com/buildlens/buildlens/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	verbose    bool
	configPath string
	dataDir    string
)

var (
	configStore *configfile.ConfigStore
	closers     []io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "buildlens",
	Short: "Evidence-gated build failure triage",
	Long: `buildlens analyzes failed build logs and license scan results.

Deterministic extraction finds error indicators, clusters them into evidence
windows and feeds only those windows to a model backend. Every model claim is
verified against the original log before delivery; unverifiable output is
degraded, never trusted. When no backend is available the pipeline still
produces a deterministic report.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		store, err := configfile.NewConfigStore(configPath)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		configStore = store
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ~/.buildlens/config.toml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "ledger database directory (default ~/.buildlens/data)")
}

// Execute runs the CLI.
func Execute() error {
	defer closeAll()
	return rootCmd.Execute()
}

func closeAll() {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			logger.Warn("closing resource: %v", err)
		}
	}
	closers = nil
}

func trackCloser(c io.Closer) {
	closers = append(closers, c)
}

// openUsageTracker opens the persistent ledger and wraps it in a tracker.
func openUsageTracker(settings domain.Settings) (*services.UsageTracker, error) {
	store, err := sqlite.NewStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("opening ledger store: %w", err)
	}
	trackCloser(store)
	return services.NewUsageTracker(store.UsageStore(), settings.Budget), nil
}

// openArchive returns the run archive, or nil when archiving is disabled.
func openArchive(settings domain.Settings) (driven.RunArchive, error) {
	if settings.ArchiveDir == "" {
		return nil, nil
	}
	archive, err := dir.NewArchive(settings.ArchiveDir)
	if err != nil {
		return nil, fmt.Errorf("opening run archive: %w", err)
	}
	return archive, nil
}

// buildPipeline wires the analysis pipeline from current settings. The
// returned pipeline is fallback-only when no backend is configured or the
// backend does not answer a ping.
func buildPipeline(settings domain.Settings) (*services.Pipeline, *services.UsageTracker, error) {
	usage, err := openUsageTracker(settings)
	if err != nil {
		return nil, nil, err
	}
	archive, err := openArchive(settings)
	if err != nil {
		return nil, nil, err
	}

	llm, err := ai.CreateLLMService(&settings.LLM)
	if err != nil {
		return nil, nil, fmt.Errorf("creating model backend: %w", err)
	}
	if llm != nil {
		trackCloser(llm)
	}

	return services.NewPipeline(settings, llm, usage, archive), usage, nil
}
