package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newRobotsCmd creates and configures the 'robots' subcommand. It prints the
// parsed robots.txt summary for the configured site.
func newRobotsCmd() *cobra.Command {
	var export bool

	cmd := &cobra.Command{
		Use:   "robots",
		Short: "Prints the parsed robots.txt summary",
		Long: `Fetches and parses the site's robots.txt, then prints the directive
summary: allowed paths, disallowed paths, crawl-delay, and sitemap links.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRobotsCommand(cmd, export)
		},
	}

	cmd.Flags().BoolVar(&export, "export", false, "also write the summary to the output directory")

	return cmd
}

func runRobotsCommand(cmd *cobra.Command, export bool) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), appInstance.RobotsSummary())

	if export {
		path, err := appInstance.SaveRobotsSummary(cmd.Context())
		if err != nil {
			return fmt.Errorf("save robots summary: %w", err)
		}
		appInstance.GetLogger().Info("robots summary written", zap.String("path", path))
	}
	return nil
}
