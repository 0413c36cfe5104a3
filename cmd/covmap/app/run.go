package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/covmap/covmap/internal/config"
	"github.com/covmap/covmap/internal/exec"
	"github.com/covmap/covmap/internal/logger"
)

// NewRunCommand creates the "run" subcommand.
func NewRunCommand() *cobra.Command {
	var reportDir string

	cmd := &cobra.Command{
		Use:   "run -- <command> [args...]",
		Short: "Run a command as a coordinated coverage child.",
		Long: `Run a command with the environment that marks instrumented processes in
it as coverage children: they flush their own per-process reports into the
shared report directory but leave cache management to this parent.

After the command exits, merge the reports with "covmap report".

Examples:
  covmap run -- npm test
  covmap run --report-dir .covmap_output -- ./run-tests.sh`,
		Args: cobra.MinimumNArgs(1),
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

			env := []string{
				"COVMAP_CHILD=1",
				config.EnvCwd + "=" + root,
				"COVMAP_REPORT_DIR=" + reportDir,
			}

			runner := exec.NewCommandRunner()
			result, err := runner.Run(args[0], args[1:], exec.Options{
				Dir:     root,
				Env:     env,
				Inherit: true,
			})
			if err != nil {
				return fmt.Errorf("failed to run %s: %w", args[0], err)
			}
			if result.ExitCode != 0 {
				logger.Warn("%s exited with code %d", args[0], result.ExitCode)
				os.Exit(result.ExitCode)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&reportDir, "report-dir", ".covmap_output", "Directory children flush coverage reports into")

	return cmd
}
