package app

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/covmap/covmap/internal/config"
	"github.com/covmap/covmap/internal/coverage"
	"github.com/covmap/covmap/internal/logger"
	"github.com/covmap/covmap/internal/merge"
	"github.com/covmap/covmap/internal/policy"
)

// NewReportCommand creates the "report" subcommand.
func NewReportCommand() *cobra.Command {
	var (
		reportDir string
		outPath   string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Merge per-process coverage reports into one map.",
		Long: `Merge every coverage report found in the report directory into a single
coverage map and emit it as JSON.

Corrupt or unreadable report files are skipped with a warning; they never
abort the merge.

Examples:
  # Merge the default report directory to stdout
  covmap report

  # Merge a specific directory into a file
  covmap report --report-dir .covmap_output -o coverage.json`,
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

			return runReport(cfg, root, reportDir, outPath, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&reportDir, "report-dir", ".covmap_output", "Directory containing per-process coverage reports")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Write the merged map to a file instead of stdout")

	return cmd
}

func runReport(cfg *config.Config, root, reportDir, outPath string, stdout, stderr io.Writer) error {
	reports, warns, err := merge.LoadReports(reportDir)
	if err != nil {
		return err
	}
	for _, w := range warns {
		logger.Warn("%s", w)
	}
	if len(reports) == 0 {
		logger.Warn("no coverage reports found in %s", reportDir)
	}

	merged, mergeWarns := merge.Merge(reports...)
	for _, w := range mergeWarns {
		logger.Warn("%s", w)
	}

	p := policy.New(policy.Config{
		Root:          root,
		Include:       cfg.Include,
		Exclude:       cfg.Exclude,
		ReportInclude: cfg.ReportInclude,
		ReportExclude: cfg.ReportExclude,
		Extensions:    cfg.Extensions,
	})
	merged = merge.Filter(merged, p)

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode merged map: %w", err)
	}

	if outPath != "" {
		if err := os.WriteFile(outPath, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", outPath, err)
		}
	} else {
		fmt.Fprintln(stdout, string(data))
	}

	printSummary(merged, stderr)
	return nil
}

// printSummary emits a one-line-per-file statement summary. It goes to
// stderr so stdout stays valid JSON for piping. Full rendering (lcov,
// html, ...) belongs to external reporters consuming the JSON.
func printSummary(merged coverage.Map, w io.Writer) {
	paths := make([]string, 0, len(merged))
	for path := range merged {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		covered, total := merged[path].CoveredStatements()
		fmt.Fprintf(w, "%s: %d/%d statements\n", path, covered, total)
	}
}
