// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the spectrace CLI.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/spectrace/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// logger is replaced in PersistentPreRunE once flags are parsed.
var logger = zap.NewNop()

// exitError carries a process exit status without an error message.
type exitError struct{ code int }

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// rootCmd is the base command for the spectrace CLI.
var rootCmd = &cobra.Command{
	Use:   "spectrace",
	Short: "Verify that every specification requirement has a passing test",
	Long: `spectrace extracts requirements from Markdown specification documents,
finds the Go tests bound to them, optionally runs those tests, and reports
which requirements are passing, failing, missing, manual, or skipped.

Requirements are lines such as "- **AUTH-001**: Reject empty password".
Tests bind to them with registry.Verifies(t, "AUTH-001") or a
"// Verifies: AUTH-001" comment.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		l, err := newLogger(verbose)
		if err != nil {
			return fmt.Errorf("creating logger: %w", err)
		}
		logger = l
		if used := viper.ConfigFileUsed(); used != "" {
			logger.Debug("using config file", zap.String("path", used))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./spectrace.yaml or ~/.config/spectrace/spectrace.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug logging and detailed report output")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("spectrace")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "spectrace"))
		}
	}

	viper.SetEnvPrefix("SPECTRACE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults(types.DefaultConfig())

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "warning: reading config: %v\n", err)
		}
	}
}

// setDefaults registers every config key so environment variables such as
// SPECTRACE_SPECS_DIR are seen by Unmarshal.
func setDefaults(cfg types.Config) {
	viper.SetDefault("specs.dir", cfg.Specs.Dir)
	viper.SetDefault("specs.policy", string(cfg.Specs.Policy))
	viper.SetDefault("specs.exclude_prefix", cfg.Specs.ExcludePrefix)
	viper.SetDefault("specs.pattern", cfg.Specs.Pattern)
	viper.SetDefault("specs.workers", cfg.Specs.Workers)
	viper.SetDefault("tests.dir", cfg.Tests.Dir)
	viper.SetDefault("tests.run", cfg.Tests.Run)
	viper.SetDefault("tests.match", cfg.Tests.Match)
	viper.SetDefault("tests.packages", cfg.Tests.Packages)
	viper.SetDefault("tests.timeout", cfg.Tests.Timeout)
	viper.SetDefault("tests.exclude_dirs", cfg.Tests.ExcludeDirs)
	viper.SetDefault("history.enabled", cfg.History.Enabled)
	viper.SetDefault("history.dir", cfg.History.Dir)
	viper.SetDefault("metrics.file", cfg.Metrics.File)
	viper.SetDefault("metrics.push_url", cfg.Metrics.PushURL)
	viper.SetDefault("metrics.job", cfg.Metrics.Job)
	viper.SetDefault("metrics.secrets_dir", cfg.Metrics.SecretsDir)
	viper.SetDefault("watch.debounce", cfg.Watch.Debounce)
	viper.SetDefault("watch.extensions", cfg.Watch.Extensions)
	viper.SetDefault("fail_on_missing", cfg.FailOnMissing)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
