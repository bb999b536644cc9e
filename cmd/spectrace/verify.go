// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/spectrace/internal/history"
	"github.com/pdiddy/spectrace/internal/metrics"
	"github.com/pdiddy/spectrace/internal/report"
	"github.com/pdiddy/spectrace/pkg/types"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that every requirement has a passing test",
	Long: `Extract requirements from the spec directory, bind them to tests found
under the tests directory, and print a coverage report.

With --run, go test -json is executed first and its results decide whether
bound requirements are passing or failing. Without it, statically discovered
bindings are reported as missing (unexecuted).

Exit status is 0 when verification passes, 1 when any requirement fails,
and 2 when requirements are missing and --fail-on-missing is set.`,
	RunE: runVerify,
}

func init() {
	addSpecFlags(verifyCmd)
	addTestFlags(verifyCmd)
	verifyCmd.Flags().StringP("format", "f", "terminal", "report format: terminal, markdown, json, yaml")
	verifyCmd.Flags().StringP("output", "o", "", "also write the report to this file (format from extension)")
	verifyCmd.Flags().Bool("fail-on-missing", true, "exit 2 when requirements have no passing test")
	verifyCmd.Flags().Bool("history", false, "record the run in the history database")
	verifyCmd.Flags().String("history-dir", "", "history database directory (default .spectrace)")
	verifyCmd.Flags().String("metrics-file", "", "write Prometheus textfile metrics to this path")
	verifyCmd.Flags().String("push-url", "", "push metrics to this Prometheus Pushgateway")

	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	formatStr, _ := cmd.Flags().GetString("format")
	format, err := report.ParseFormat(formatStr)
	if err != nil {
		return err
	}
	output, _ := cmd.Flags().GetString("output")
	verbose, _ := cmd.Flags().GetBool("verbose")

	// Machine-readable output keeps stdout clean of progress lines.
	progress := cmd.OutOrStdout()
	if format != report.FormatTerminal {
		progress = cmd.ErrOrStderr()
	}

	code, err := verifyOnce(cmd.Context(), cfg, cmd.OutOrStdout(), progress, verifyOptions{
		format:  format,
		output:  output,
		verbose: verbose,
	})
	if err != nil {
		return err
	}
	if code != 0 {
		return &exitError{code: code}
	}
	return nil
}

type verifyOptions struct {
	format  report.Format
	output  string
	verbose bool
}

// verifyOnce runs one full verification: report, history, and metrics.
// It returns the process exit code for the report.
func verifyOnce(ctx context.Context, cfg types.Config, out, progress io.Writer, opts verifyOptions) (int, error) {
	v, err := buildVerifier(ctx, cfg, progress)
	if err != nil {
		return 1, err
	}
	r, err := v.Run(ctx)
	if err != nil {
		return 1, fmt.Errorf("verifying: %w", err)
	}

	if err := report.Write(out, r, opts.format, report.Options{
		Verbose:       opts.verbose,
		FailOnMissing: cfg.FailOnMissing,
	}); err != nil {
		return 1, err
	}
	if opts.output != "" {
		if err := report.WriteFile(opts.output, r); err != nil {
			return 1, err
		}
		fmt.Fprintf(progress, "wrote    %s\n", opts.output)
	}

	for _, id := range v.Orphans(r) {
		logger.Warn("test bound to unknown requirement", zap.String("id", id))
	}

	if cfg.History.Enabled {
		if err := recordRun(ctx, cfg.History, r, progress); err != nil {
			return 1, err
		}
	}
	if cfg.Metrics.File != "" || cfg.Metrics.PushURL != "" {
		if err := metrics.Publish(ctx, cfg.Metrics, r, logger.Named("metrics")); err != nil {
			return 1, err
		}
	}

	return r.ExitCode(cfg.FailOnMissing), nil
}

// recordRun saves r and prints regressions against the previous run.
func recordRun(ctx context.Context, cfg types.HistoryConfig, r *types.Report, w io.Writer) error {
	store, err := history.NewStore(cfg)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer store.Close()

	prev, err := store.List(ctx, 1)
	if err != nil {
		return err
	}
	run, err := store.Save(ctx, r)
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	fmt.Fprintf(w, "recorded run %s\n", run.ShortID())

	if len(prev) == 0 {
		return nil
	}
	changes, err := store.Compare(ctx, prev[0].ID, run.ID)
	if err != nil {
		return err
	}
	for _, c := range changes {
		if c.Regression() {
			fmt.Fprintf(w, "regressed %s: %s -> %s\n", c.RequirementID, c.From, c.To)
		}
	}
	return nil
}
