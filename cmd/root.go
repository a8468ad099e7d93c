// Package cmd defines and implements the CLI commands for the crawlplan
// executable.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smartcrawler/crawlplan/internal/app"
	"github.com/smartcrawler/crawlplan/internal/config"
	"github.com/smartcrawler/crawlplan/internal/logging"
	"github.com/smartcrawler/crawlplan/internal/planner"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands will use.
// This allows us to inject a mock app during tests.
type App interface {
	RunPlan(ctx context.Context, r planner.BucketRange) (*planner.PlanReport, error)
	RobotsSummary() string
	RobotsRuleSet() planner.RobotsRuleSet
	SaveReport(ctx context.Context, report *planner.PlanReport) (string, error)
	SaveRobotsSummary(ctx context.Context) (string, error)
	GetLogger() *zap.Logger
	GetConfig() *config.Config
	Close()
}

// newApp is the application factory. It's a variable so we can
// replace it with a mock factory in our tests.
var newApp = func(ctx context.Context) (App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return app.New(ctx, &cfg, logger)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawlplan",
		Short: "A crawl planning tool for sitemap-driven sites.",
		Long: `crawlplan inspects a site before any crawl is scheduled: it parses
robots.txt, enumerates the dated sitemap shards of a bucket range, scores how
much of the discovered content a polite crawler may fetch, and classifies the
allowed pages by render mode.`,

		// This hook runs AFTER flags are parsed but BEFORE the subcommand's
		// RunE. This is the place to build and inject the application.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}

			// Store the app instance in the context for subcommands to use.
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		// This hook ensures services are shut down gracefully.
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is built-in defaults plus CRAWLPLAN_* env vars)")

	cmd.AddCommand(newPlanCmd())
	cmd.AddCommand(newRobotsCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// resolveApp retrieves the App injected by the root command's pre-run hook.
func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "crawlplan: %v\n", err)
		os.Exit(1)
	}
}
