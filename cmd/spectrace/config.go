// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/spectrace/pkg/types"
)

// loadConfig merges defaults, the config file, SPECTRACE_* environment
// variables, and finally any flags set on cmd.
func loadConfig(cmd *cobra.Command) (types.Config, error) {
	cfg := types.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	applyFlags(cmd, &cfg)

	switch cfg.Specs.Policy {
	case types.FilterExcludePrefix, types.FilterGlob:
	default:
		return cfg, fmt.Errorf("unknown specs policy %q: use %s or %s",
			cfg.Specs.Policy, types.FilterExcludePrefix, types.FilterGlob)
	}
	return cfg, nil
}

// applyFlags overrides cfg with the flags the user set explicitly.
func applyFlags(cmd *cobra.Command, cfg *types.Config) {
	flags := cmd.Flags()
	if flags.Changed("specs") {
		cfg.Specs.Dir, _ = flags.GetString("specs")
	}
	if flags.Changed("pattern") {
		cfg.Specs.Pattern, _ = flags.GetString("pattern")
		cfg.Specs.Policy = types.FilterGlob
	}
	if flags.Changed("policy") {
		p, _ := flags.GetString("policy")
		cfg.Specs.Policy = types.FilterPolicy(p)
	}
	if flags.Changed("tests") {
		cfg.Tests.Dir, _ = flags.GetString("tests")
	}
	if flags.Changed("run") {
		cfg.Tests.Run, _ = flags.GetBool("run")
	}
	if flags.Changed("match") {
		cfg.Tests.Match, _ = flags.GetString("match")
	}
	if flags.Changed("timeout") {
		cfg.Tests.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("fail-on-missing") {
		cfg.FailOnMissing, _ = flags.GetBool("fail-on-missing")
	}
	if flags.Changed("history") {
		cfg.History.Enabled, _ = flags.GetBool("history")
	}
	if flags.Changed("history-dir") {
		cfg.History.Dir, _ = flags.GetString("history-dir")
	}
	if flags.Changed("metrics-file") {
		cfg.Metrics.File, _ = flags.GetString("metrics-file")
	}
	if flags.Changed("push-url") {
		cfg.Metrics.PushURL, _ = flags.GetString("push-url")
	}
	if flags.Changed("debounce") {
		cfg.Watch.Debounce, _ = flags.GetDuration("debounce")
	}
}

// addSpecFlags registers the flags that locate requirements.
func addSpecFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("specs", "s", "docs/specs", "directory containing specification documents")
	cmd.Flags().String("pattern", "", "glob selecting spec files, e.g. **/spec-*.md (implies --policy glob)")
	cmd.Flags().String("policy", "", "spec file policy: exclude-prefix or glob")
}

// addTestFlags registers the flags that locate and run tests.
func addTestFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("tests", "t", ".", "module directory scanned for *_test.go files")
	cmd.Flags().Bool("run", false, "run go test -json and use its results")
	cmd.Flags().String("match", "", "only run tests matching this regexp (go test -run)")
	cmd.Flags().Duration("timeout", types.DefaultConfig().Tests.Timeout, "go test timeout; unfinished tests are errors")
}
