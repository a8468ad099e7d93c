package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smartcrawler/crawlplan/internal/planner"
)

// newPlanCmd creates and configures the 'plan' subcommand. It runs one full
// planning pass over a bucket range and writes the plan artifacts to the
// configured output directory.
func newPlanCmd() *cobra.Command {
	var r planner.BucketRange

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Runs a crawl plan over a sitemap bucket range",
		Long: `Enumerates the dated sitemap shards between the start and end buckets,
filters the discovered URLs through robots policy, classifies the allowed
pages by render mode, probes the configured feed endpoints, and writes the
plan report plus the robots summary to the output directory.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlanCommand(cmd, r)
		},
	}

	cmd.Flags().IntVar(&r.StartYear, "start-year", 0, "first year of the range")
	cmd.Flags().IntVar(&r.StartMonth, "start-month", 0, "first month of the range (1-12)")
	cmd.Flags().IntVar(&r.StartWeek, "start-week", 0, "first week of the range (1-4)")
	cmd.Flags().IntVar(&r.EndYear, "end-year", 0, "last year of the range")
	cmd.Flags().IntVar(&r.EndMonth, "end-month", 0, "last month of the range (1-12)")
	cmd.Flags().IntVar(&r.EndWeek, "end-week", 0, "last week of the range (1-4)")
	for _, name := range []string{"start-year", "start-month", "start-week", "end-year", "end-month", "end-week"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func runPlanCommand(cmd *cobra.Command, r planner.BucketRange) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.GetLogger()

	report, err := appInstance.RunPlan(cmd.Context(), r)
	if err != nil {
		return fmt.Errorf("run plan: %w", err)
	}

	reportPath, err := appInstance.SaveReport(cmd.Context(), report)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	summaryPath, err := appInstance.SaveRobotsSummary(cmd.Context())
	if err != nil {
		return fmt.Errorf("save robots summary: %w", err)
	}

	logger.Info("plan artifacts written",
		zap.String("report", reportPath),
		zap.String("robots_summary", summaryPath),
		zap.String("run_id", report.RunID),
		zap.Int("discovered", report.Result.TotalDiscovered),
		zap.Int("allowed", report.Result.TotalAllowed),
		zap.Float64("crawlability", report.Crawlability),
		zap.Int("static", len(report.Classification.Extractions)),
		zap.Int("js_heavy", len(report.Classification.JSHeavy)),
		zap.Strings("open_feeds", report.OpenFeeds),
	)
	return nil
}
