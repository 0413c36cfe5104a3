package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/covmap/covmap/internal/config"
	"github.com/covmap/covmap/internal/logger"
)

// NewCleanCommand creates the "clean" subcommand.
func NewCleanCommand() *cobra.Command {
	var (
		reportDir string
		cacheDir  string
	)

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove coverage reports and the instrumentation cache.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load("")
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			root, err := cfg.ResolveCwd()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("report-dir") {
				reportDir = cfg.ReportDirIn(root)
			}
			if !cmd.Flags().Changed("cache-dir") {
				cacheDir = cfg.CacheDirIn(root)
			}

			for _, dir := range []string{reportDir, cacheDir} {
				if dir == "" {
					continue
				}
				if err := os.RemoveAll(dir); err != nil {
					return fmt.Errorf("failed to remove %s: %w", dir, err)
				}
				logger.Info("removed %s", dir)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&reportDir, "report-dir", ".covmap_output", "Report directory to remove")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", ".covmap_cache", "Cache directory to remove")

	return cmd
}
