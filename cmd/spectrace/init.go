// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/spectrace/internal/scaffold"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Set up spec-driven development in a project",
	Long: `Create the spec directory with an example spec, a CLAUDE.md with agent
instructions, and a spectrace.yaml config. Existing files are left alone.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	addSpecFlags(initCmd)
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}

	w := cmd.OutOrStdout()
	s, err := scaffold.Init(dir, cfg, w)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d created, %d already present\n", len(s.Created), len(s.Skipped))
	if len(s.Created) > 0 {
		fmt.Fprintln(w, "Next: add requirements under", cfg.Specs.Dir, "and run spectrace verify --run")
	}
	return nil
}
