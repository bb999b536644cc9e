// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/spectrace/internal/report"
	"github.com/pdiddy/spectrace/pkg/types"
)

var checkCmd = &cobra.Command{
	Use:   "check <ID>",
	Short: "Check a single requirement",
	Long: `Report the status of one requirement and every test bound to it.

With --run and no --match, only the tests bound to the requirement are run.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	addSpecFlags(checkCmd)
	addTestFlags(checkCmd)
	checkCmd.Flags().Bool("fail-on-missing", true, "exit 2 when the requirement has no passing test")

	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	id := args[0]
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	if cfg.Tests.Run && cfg.Tests.Match == "" {
		names, err := boundTestNames(cmd, cfg, id)
		if err != nil {
			return err
		}
		if len(names) > 0 {
			cfg.Tests.Match = "^(" + strings.Join(names, "|") + ")$"
		}
	}

	v, err := buildVerifier(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	o, found, err := v.Single(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("requirement %s not found in %s", id, cfg.Specs.Dir)
	}

	printOutcome(w, o)

	r := types.NewReport([]types.Outcome{*o}, nil)
	if code := r.ExitCode(cfg.FailOnMissing); code != 0 {
		return &exitError{code: code}
	}
	return nil
}

// boundTestNames returns the top-level test functions bound to id, quoted
// for use in a go test -run pattern.
func boundTestNames(cmd *cobra.Command, cfg types.Config, id string) ([]string, error) {
	static := cfg
	static.Tests.Run = false
	v, err := buildVerifier(cmd.Context(), static, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var names []string
	for _, b := range v.Tests().Lookup(id) {
		top, _, _ := strings.Cut(b.Name, "/")
		if !seen[top] {
			seen[top] = true
			names = append(names, regexp.QuoteMeta(top))
		}
	}
	return names, nil
}

func printOutcome(w io.Writer, o *types.Outcome) {
	req := o.Requirement
	fmt.Fprintf(w, "%s %s: %s\n", report.Symbol(o.Status), req.ID, o.Status)
	fmt.Fprintf(w, "  %s\n", req.Description)
	fmt.Fprintf(w, "  source: %s\n", req.Location())
	if o.Unexecuted {
		fmt.Fprintln(w, "  bound tests were not run (use --run)")
	}
	for _, b := range o.Tests {
		loc := b.Location()
		if loc != "" {
			loc = "  " + loc
		}
		fmt.Fprintf(w, "  test:   %s [%s]%s\n", b.Path(), b.Outcome, loc)
	}
	if c := o.Contract; c != nil {
		fmt.Fprintf(w, "  contract: %s (%d requires, %d ensures)", c.Func, c.Requires, c.Ensures)
		if c.Calls > 0 {
			fmt.Fprintf(w, ", %d calls, %d violations", c.Calls, c.Violations)
		}
		fmt.Fprintln(w)
	}
	if o.Detail != "" {
		fmt.Fprintf(w, "  detail: %s\n", strings.ReplaceAll(o.Detail, "\n", "\n          "))
	}
}
