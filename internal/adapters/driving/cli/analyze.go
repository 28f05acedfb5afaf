package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/buildlens/buildlens/internal/core/domain"
	"github.com/buildlens/buildlens/internal/core/services"
)

var (
	analyzeRepo     string
	analyzeBranch   string
	analyzeCommit   string
	analyzeBuildURL string
	analyzeJSON     bool
	analyzeNoAI     bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [log-file]",
	Short: "Analyze a failed build log",
	Long: `Analyzes a build log: extracts error indicators, clusters them into
evidence windows and produces a triage report with cited root causes.

With a configured model backend the report is AI-assisted; every citation is
verified against the log before delivery. Without one (or with --no-ai) the
report contains the extracted evidence windows directly.

Examples:
  buildlens analyze build.log
  buildlens analyze build.log --repo acme/widgets --branch main --json
  buildlens analyze build.log --no-ai`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeRepo, "repo", "", "repository the build belongs to")
	analyzeCmd.Flags().StringVar(&analyzeBranch, "branch", "", "branch that was built")
	analyzeCmd.Flags().StringVar(&analyzeCommit, "commit", "", "commit that was built")
	analyzeCmd.Flags().StringVar(&analyzeBuildURL, "build-url", "", "link to the CI build")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "output the report as JSON")
	analyzeCmd.Flags().BoolVar(&analyzeNoAI, "no-ai", false, "skip the model backend for this run")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	logPath := args[0]
	data, err := os.ReadFile(logPath)
	if err != nil {
		return fmt.Errorf("reading log file: %w", err)
	}

	settings := configStore.Settings()
	if analyzeNoAI {
		settings.LLM.Disabled = true
	}

	pipeline, _, err := buildPipeline(settings)
	if err != nil {
		return err
	}

	artifact := domain.NewArtifact(filepath.Base(logPath), string(data))
	info := domain.BuildInfo{
		Repo:     analyzeRepo,
		Branch:   analyzeBranch,
		Commit:   analyzeCommit,
		BuildURL: analyzeBuildURL,
	}

	report, err := pipeline.AnalyzeBuildLog(cmd.Context(), artifact, info)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	return outputReport(cmd, report, analyzeJSON)
}

func outputReport(cmd *cobra.Command, report *domain.Report, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling report: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	cmd.Print(services.RenderMarkdown(report))
	return nil
}
