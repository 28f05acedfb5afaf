package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/buildlens/buildlens/internal/adapters/driven/ai"
	"github.com/buildlens/buildlens/internal/adapters/driven/notify/slack"
	"github.com/buildlens/buildlens/internal/adapters/driven/scm/github"
	"github.com/buildlens/buildlens/internal/adapters/driven/storage/sqlite"
	"github.com/buildlens/buildlens/internal/adapters/driving/webhook"
	"github.com/buildlens/buildlens/internal/core/domain"
	"github.com/buildlens/buildlens/internal/core/ports/driven"
	"github.com/buildlens/buildlens/internal/core/services"
	"github.com/buildlens/buildlens/internal/logger"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server",
	Long: `Starts the inbound webhook server.

Endpoints:
  GET  /healthz          liveness probe
  POST /build/failure    CI build-failure notifications
  POST /github/webhook   GitHub pull request events

All POST payloads must carry a valid X-Hub-Signature-256 header. Reports are
posted to Slack when a bot token and channel are configured. The config file
is watched; edits apply without a restart.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	settings := configStore.Settings()
	if serveAddr != "" {
		settings.Webhook.Addr = serveAddr
	}
	if settings.Webhook.Secret == "" {
		logger.Warn("no webhook secret configured; all inbound requests will be rejected")
	}

	store, err := sqlite.NewStore(dataDir)
	if err != nil {
		return err
	}
	trackCloser(store)
	usage := services.NewUsageTracker(store.UsageStore(), settings.Budget)

	archive, err := openArchive(settings)
	if err != nil {
		return err
	}

	llm, err := createServeLLM(settings)
	if err != nil {
		return err
	}

	var notifier driven.Notifier
	if settings.Slack.Token != "" {
		notifier, err = slack.NewClient(settings.Slack.Token, "")
		if err != nil {
			return err
		}
		trackCloser(notifier)
	}

	var prFiles driven.PRFilesFetcher
	if settings.GitHub.Token != "" {
		prFiles, err = github.NewClient(settings.GitHub.Token)
		if err != nil {
			return err
		}
	}

	pipeline := services.NewPipeline(settings, llm, usage, archive)
	prs := services.NewPRSummarizer(settings.LLM, llm, usage, prFiles)
	server := webhook.NewServer(settings, pipeline, prs, notifier, store.DeliveryStore())

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Config edits apply to pipeline, budget and webhook settings live.
	// Backend changes still need a restart: the LLM client is fixed.
	go func() {
		err := configStore.Watch(ctx, func() {
			fresh := configStore.Settings()
			pipeline.UpdateSettings(fresh)
			usage.SetBudget(fresh.Budget)
			prs.UpdateSettings(fresh.LLM)
			server.UpdateSettings(fresh)
		})
		if err != nil && ctx.Err() == nil {
			logger.Warn("config watcher stopped: %v", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// createServeLLM builds the model backend for serve mode. A backend that
// does not answer a ping at startup degrades to fallback-only operation
// instead of failing the server.
func createServeLLM(settings domain.Settings) (driven.LLMService, error) {
	llm, err := ai.CreateAndValidateLLMService(&settings.LLM)
	if err != nil {
		logger.Warn("model backend unavailable, running fallback-only: %v", err)
		return nil, nil
	}
	if llm != nil {
		trackCloser(llm)
	}
	return llm, nil
}
