// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/spectrace/pkg/types"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every requirement in the spec directory",
	Long: `Print each requirement with its kind and source location, in file then
line order. Files that cannot be read are reported on stderr and skipped.`,
	RunE: runList,
}

func init() {
	addSpecFlags(listCmd)
	listCmd.Flags().Bool("json", false, "output as a JSON array")
	listCmd.Flags().String("kind", "", "only list requirements of this kind: test, manual, skip")

	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")
	kind, _ := cmd.Flags().GetString("kind")

	ext, err := newExtractor(cfg)
	if err != nil {
		return err
	}

	var reqs []types.Requirement
	for req, err := range ext.All(cmd.Context()) {
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			continue
		}
		if kind != "" && string(req.Kind) != kind {
			continue
		}
		reqs = append(reqs, req)
	}

	w := cmd.OutOrStdout()
	if asJSON {
		if reqs == nil {
			reqs = []types.Requirement{}
		}
		data, err := json.MarshalIndent(reqs, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling requirements: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	if len(reqs) == 0 {
		fmt.Fprintf(w, "No requirements found in %s\n", cfg.Specs.Dir)
		return nil
	}
	width := 0
	for _, r := range reqs {
		width = max(width, len(r.ID))
	}
	for _, r := range reqs {
		tag := ""
		if r.Kind != types.KindTest {
			tag = " [" + string(r.Kind) + "]"
		}
		fmt.Fprintf(w, "%-*s%s  %s  (%s)\n", width, r.ID, tag, r.Description, r.Location())
	}
	fmt.Fprintf(w, "\n%d requirements\n", len(reqs))
	return nil
}
