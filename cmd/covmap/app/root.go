package app

import (
	"github.com/spf13/cobra"

	"github.com/covmap/covmap/internal/logger"
)

// NewCovmapCommand creates the root command for the covmap tool.
func NewCovmapCommand() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "covmap",
		Short: "Collect and merge load-time code coverage.",
		Long: `Covmap merges the per-process coverage reports written by instrumented
runs into a single coverage map for downstream reporters.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Init(logLevel)
			logger.SetLevel(logLevel)
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewReportCommand())
	cmd.AddCommand(NewCleanCommand())

	return cmd
}
