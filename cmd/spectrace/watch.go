// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/spectrace/internal/report"
	"github.com/pdiddy/spectrace/internal/watch"
	"github.com/pdiddy/spectrace/pkg/types"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-run verification whenever specs or tests change",
	Long: `Watch verifies once, then watches the spec and test directories and
verifies again after each burst of changes to .md or .go files settles.
Stop with Ctrl-C.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	addSpecFlags(watchCmd)
	addTestFlags(watchCmd)
	watchCmd.Flags().Bool("fail-on-missing", true, "treat missing requirements as failing in the verdict")
	watchCmd.Flags().Bool("history", false, "record every run in the history database")
	watchCmd.Flags().String("history-dir", "", "history database directory (default .spectrace)")
	watchCmd.Flags().String("metrics-file", "", "write Prometheus textfile metrics after every run")
	watchCmd.Flags().Duration("debounce", types.DefaultConfig().Watch.Debounce, "quiet period before re-verifying")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	verbose, _ := cmd.Flags().GetBool("verbose")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := cmd.OutOrStdout()
	opts := verifyOptions{format: report.FormatTerminal, verbose: verbose}
	verifyAndLog := func(ctx context.Context) {
		if _, err := verifyOnce(ctx, cfg, w, w, opts); err != nil && ctx.Err() == nil {
			fmt.Fprintf(w, "error: %v\n", err)
		}
	}

	verifyAndLog(ctx)

	exclude := append([]string{}, cfg.Tests.ExcludeDirs...)
	exclude = append(exclude, cfg.History.Dir)
	watcher := watch.New(cfg.Watch, []string{cfg.Specs.Dir, cfg.Tests.Dir},
		watch.WithExcludeDirs(exclude),
		watch.WithLogger(logger.Named("watch")),
	)

	fmt.Fprintf(w, "\nwatching %s and %s (Ctrl-C to stop)\n", cfg.Specs.Dir, cfg.Tests.Dir)
	err = watcher.Run(ctx, func(ctx context.Context, changed []string) error {
		logger.Debug("re-verifying", zap.Strings("changed", changed))
		fmt.Fprintf(w, "\n--- %s: %d file(s) changed ---\n", time.Now().Format("15:04:05"), len(changed))
		verifyAndLog(ctx)
		return nil
	})
	if err != nil {
		return fmt.Errorf("watching: %w", err)
	}
	return nil
}
