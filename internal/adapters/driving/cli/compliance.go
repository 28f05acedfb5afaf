package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/buildlens/buildlens/internal/core/domain"
)

var (
	complianceScanReport string
	complianceJSON       bool
)

var complianceCmd = &cobra.Command{
	Use:   "compliance [source-file]",
	Short: "Analyze a license scanner match",
	Long: `Analyzes a source file flagged by a license scanner (e.g. Black Duck).

The scanner report's file and line references select the evidence windows;
the report suggests how to resolve the match, with each suggestion citing the
flagged source lines.

Examples:
  buildlens compliance src/vendor/md5.c --scan-report scan.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runCompliance,
}

func init() {
	complianceCmd.Flags().StringVar(&complianceScanReport, "scan-report", "", "path to the scanner report (required)")
	complianceCmd.Flags().BoolVar(&complianceJSON, "json", false, "output the report as JSON")
	complianceCmd.MarkFlagRequired("scan-report")
	rootCmd.AddCommand(complianceCmd)
}

func runCompliance(cmd *cobra.Command, args []string) error {
	sourcePath := args[0]
	source, err := os.ReadFile(sourcePath)
	if err != nil {
		return fmt.Errorf("reading source file: %w", err)
	}
	scan, err := os.ReadFile(complianceScanReport)
	if err != nil {
		return fmt.Errorf("reading scan report: %w", err)
	}

	pipeline, _, err := buildPipeline(configStore.Settings())
	if err != nil {
		return err
	}

	artifact := domain.NewArtifact(filepath.Base(sourcePath), string(source))
	report, err := pipeline.AnalyzeLicenseScan(cmd.Context(), artifact, string(scan))
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	return outputReport(cmd, report, complianceJSON)
}
