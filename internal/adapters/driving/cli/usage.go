package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/buildlens/buildlens/internal/core/domain"
)

var (
	usagePeriod string
	usageJSON   bool
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Report model usage and cost",
	Long: `Summarizes the cost ledger: invocation counts, token totals and spend,
grouped by operation and by model.

Examples:
  buildlens usage
  buildlens usage --period monthly
  buildlens usage --period all --json`,
	Args: cobra.NoArgs,
	RunE: runUsage,
}

func init() {
	usageCmd.Flags().StringVar(&usagePeriod, "period", "weekly", "aggregation period: daily, weekly, monthly or all")
	usageCmd.Flags().BoolVar(&usageJSON, "json", false, "output the summary as JSON")
	rootCmd.AddCommand(usageCmd)
}

func runUsage(cmd *cobra.Command, _ []string) error {
	settings := configStore.Settings()
	tracker, err := openUsageTracker(settings)
	if err != nil {
		return err
	}

	summary, err := tracker.Summarize(cmd.Context(), domain.ParsePeriod(usagePeriod))
	if err != nil {
		return fmt.Errorf("summarizing usage: %w", err)
	}

	if usageJSON {
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling summary: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	printUsageSummary(cmd, summary, settings.Budget)
	return nil
}

func printUsageSummary(cmd *cobra.Command, s *domain.UsageSummary, budget domain.BudgetSettings) {
	cmd.Printf("Usage (%s)\n\n", s.Period)

	if s.Count == 0 {
		cmd.Println("No model invocations recorded in this period.")
		return
	}

	cmd.Printf("  Invocations:   %d\n", s.Count)
	cmd.Printf("  Input tokens:  %d\n", s.InputTokens)
	cmd.Printf("  Output tokens: %d\n", s.OutputTokens)
	cmd.Printf("  Total cost:    $%.4f\n", s.TotalCost)
	if budget.Ceiling > 0 && s.Period == budget.Period {
		cmd.Printf("  Budget:        $%.4f", budget.Ceiling)
		if s.TotalCost >= budget.Ceiling {
			cmd.Print("  (EXCEEDED - runs fall back to deterministic analysis)")
		}
		cmd.Println()
	}

	printBuckets(cmd, "By operation:", s.ByOperation)
	printBuckets(cmd, "By model:", s.ByModel)
}

func printBuckets(cmd *cobra.Command, title string, buckets map[string]domain.UsageBucket) {
	if len(buckets) == 0 {
		return
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cmd.Printf("\n%s\n", title)
	for _, k := range keys {
		b := buckets[k]
		cmd.Printf("  %-24s %4d calls  %8d in  %8d out  $%.4f\n",
			k, b.Count, b.InputTokens, b.OutputTokens, b.Cost)
	}
}
