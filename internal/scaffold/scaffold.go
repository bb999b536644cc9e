// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scaffold sets up a project for specification verification and
// supplies the agent instructions describing the workflow.
package scaffold

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/spectrace/pkg/types"
)

const (
	// InstructionsFile is the agent instructions file at the project root.
	InstructionsFile = "CLAUDE.md"

	// ConfigFile is the project configuration file.
	ConfigFile = "spectrace.yaml"

	exampleSpec = "spec-example.md"
)

//go:embed templates/instructions.md
var instructions string

//go:embed templates/spec-example.md
var exampleSpecContent string

// Instructions returns the built-in agent instructions.
func Instructions() string { return instructions }

// Summary reports what Init created and what it left alone.
type Summary struct {
	Created []string
	Skipped []string
}

// Init creates the specs directory, an example spec, the agent
// instructions, and a config file under root. Existing files are never
// overwritten. Progress lines go to w.
func Init(root string, cfg types.Config, w io.Writer) (Summary, error) {
	var s Summary

	specsDir := filepath.Join(root, cfg.Specs.Dir)
	if err := os.MkdirAll(specsDir, 0o755); err != nil {
		return s, fmt.Errorf("creating %s: %w", specsDir, err)
	}
	fmt.Fprintf(w, "  %s/\n", specsDir)

	cfgData, err := yaml.Marshal(cfg)
	if err != nil {
		return s, fmt.Errorf("marshaling config: %w", err)
	}

	files := []struct {
		path    string
		content []byte
	}{
		{filepath.Join(specsDir, exampleSpec), []byte(exampleSpecContent)},
		{filepath.Join(root, InstructionsFile), []byte(instructions)},
		{filepath.Join(root, ConfigFile), cfgData},
	}
	for _, f := range files {
		created, err := writeIfAbsent(f.path, f.content)
		if err != nil {
			return s, err
		}
		if created {
			fmt.Fprintf(w, "created %s\n", f.path)
			s.Created = append(s.Created, f.path)
		} else {
			fmt.Fprintf(w, "skipped %s (exists)\n", f.path)
			s.Skipped = append(s.Skipped, f.path)
		}
	}
	return s, nil
}

func writeIfAbsent(path string, content []byte) (bool, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("creating %s: %w", path, err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return false, fmt.Errorf("writing %s: %w", path, err)
	}
	return true, f.Close()
}

// Context returns the project's agent instructions, or the built-in
// instructions when root has none. found reports which one was returned.
func Context(root string) (content string, found bool, err error) {
	data, err := os.ReadFile(filepath.Join(root, InstructionsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return instructions, false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading %s: %w", InstructionsFile, err)
	}
	return string(data), true, nil
}
