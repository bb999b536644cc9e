// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/spectrace/internal/history"
	"github.com/pdiddy/spectrace/internal/report"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded verification runs",
	Long: `History reads the SQLite database written by verify --history. Use
subcommands to list runs, show one run, compare two runs, export a run,
or prune old runs. Run IDs may be abbreviated to any unique prefix.`,
}

// --- list subcommand ---

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	fmt.Fprintf(w, "%-8s  %-20s  %5s  %4s  %4s  %4s  %8s\n", "RUN", "STARTED", "TOTAL", "PASS", "FAIL", "MISS", "COVERAGE")
	for _, r := range runs {
		fmt.Fprintf(w, "%-8s  %-20s  %5d  %4d  %4d  %4d  %7.1f%%\n",
			r.ShortID(), r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Total, r.Passing, r.Failing, r.Missing, r.Coverage)
	}
	return nil
}

// --- show subcommand ---

var historyShowCmd = &cobra.Command{
	Use:   "show [run]",
	Short: "Show the requirement statuses recorded for a run (default latest)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistoryShow,
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	id := ""
	if len(args) == 1 {
		id = args[0]
	}
	ctx := cmd.Context()
	run, err := store.Get(ctx, id)
	if err != nil {
		return err
	}
	rows, err := store.Outcomes(ctx, run.ID)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run %s at %s: %d passing, %d failing, %d missing (%.1f%% coverage)\n\n",
		run.ID, run.StartedAt.Local().Format("2006-01-02 15:04:05"),
		run.Passing, run.Failing, run.Missing, run.Coverage)
	for _, o := range rows {
		fmt.Fprintf(w, "  %s %-12s %s\n", report.Symbol(o.Status), o.RequirementID, o.Description)
		if o.Test != "" {
			fmt.Fprintf(w, "      %s\n", o.Test)
		}
	}
	return nil
}

// --- diff subcommand ---

var historyDiffCmd = &cobra.Command{
	Use:   "diff [from] [to]",
	Short: "Compare requirement statuses between two runs",
	Long: `Diff lists requirements whose status changed between two runs. With no
arguments it compares the two newest runs; with one it compares that run to
the newest. Regressions are marked with "!".`,
	Args: cobra.MaximumNArgs(2),
	RunE: runHistoryDiff,
}

func runHistoryDiff(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	var from, to string
	switch len(args) {
	case 2:
		from, to = args[0], args[1]
	case 1:
		from, to = args[0], "latest"
	default:
		runs, err := store.List(ctx, 2)
		if err != nil {
			return err
		}
		if len(runs) < 2 {
			return fmt.Errorf("need at least two recorded runs, have %d", len(runs))
		}
		from, to = runs[1].ID, runs[0].ID
	}

	changes, err := store.Compare(ctx, from, to)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if len(changes) == 0 {
		fmt.Fprintln(w, "No status changes.")
		return nil
	}
	regressions := 0
	for _, c := range changes {
		mark := " "
		if c.Regression() {
			mark = "!"
			regressions++
		}
		fmt.Fprintf(w, "%s %-12s %-8s -> %s\n", mark, c.RequirementID, orNone(string(c.From)), orNone(string(c.To)))
	}
	fmt.Fprintf(w, "\n%d changed, %d regressed\n", len(changes), regressions)
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// --- export subcommand ---

var historyExportCmd = &cobra.Command{
	Use:   "export [run]",
	Short: "Export a run to YAML or JSON (default latest)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistoryExport,
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	id := ""
	if len(args) == 1 {
		id = args[0]
	}
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")

	var path string
	switch format {
	case "yaml", "yml":
		path, err = store.ExportYAML(cmd.Context(), id, output)
	case "json":
		path, err = store.ExportJSON(cmd.Context(), id, output)
	default:
		return fmt.Errorf("unknown export format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", path)
	return nil
}

// --- prune subcommand ---

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest runs",
	Args:  cobra.NoArgs,
	RunE:  runHistoryPrune,
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	keep, _ := cmd.Flags().GetInt("keep")
	n, err := store.Prune(cmd.Context(), keep)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d run(s), kept at most %d\n", n, keep)
	return nil
}

// --- shared helpers ---

func openHistory(cmd *cobra.Command) (*history.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return history.NewStore(cfg.History)
}

func init() {
	historyCmd.PersistentFlags().String("history-dir", "", "history database directory (default .spectrace)")

	historyListCmd.Flags().IntP("limit", "n", 20, "maximum runs to list")
	historyExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	historyExportCmd.Flags().StringP("output", "o", "", "output path (default <history-dir>/run-<id>.<ext>)")
	historyPruneCmd.Flags().Int("keep", 50, "number of newest runs to keep")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDiffCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyPruneCmd)
	rootCmd.AddCommand(historyCmd)
}
