// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/spectrace/internal/scaffold"
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Print agent instructions for this project",
	Long: `Print the project's CLAUDE.md if one exists, otherwise the built-in
instructions that explain the spec and test binding conventions.`,
	Args: cobra.NoArgs,
	RunE: runContext,
}

func init() {
	contextCmd.Flags().String("dir", ".", "project root")
	rootCmd.AddCommand(contextCmd)
}

func runContext(cmd *cobra.Command, args []string) error {
	dir, _ := cmd.Flags().GetString("dir")
	content, found, err := scaffold.Context(dir)
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintf(cmd.ErrOrStderr(), "no %s in %s, showing defaults\n", scaffold.InstructionsFile, dir)
	}
	fmt.Fprint(cmd.OutOrStdout(), content)
	return nil
}
