// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders verification reports for terminals, Markdown
// files, and machine consumers.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/spectrace/pkg/types"
)

// Format selects a renderer.
type Format string

const (
	FormatTerminal Format = "terminal"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// Formats lists the supported formats.
var Formats = []Format{FormatTerminal, FormatMarkdown, FormatJSON, FormatYAML}

// ParseFormat maps a flag value to a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", "text", FormatTerminal:
		return FormatTerminal, nil
	case "md", FormatMarkdown:
		return FormatMarkdown, nil
	case FormatJSON, FormatYAML:
		return f, nil
	}
	return "", fmt.Errorf("unknown report format %q (want one of %v)", s, Formats)
}

// FormatForPath infers a file format from its extension, defaulting to
// Markdown.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatMarkdown
}

// Options tunes rendering.
type Options struct {
	// Verbose includes test locations and details for every requirement.
	Verbose bool

	// FailOnMissing is echoed in the terminal verdict line.
	FailOnMissing bool
}

// Write renders r to w in format f.
func Write(w io.Writer, r *types.Report, f Format, opts Options) error {
	switch f {
	case FormatTerminal:
		return Terminal(w, r, opts)
	case FormatMarkdown:
		return Markdown(w, r)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown report format %q", f)
}

// WriteFile renders r to path, choosing the format from its extension.
func WriteFile(path string, r *types.Report) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report %s: %w", path, err)
	}
	if err := Write(f, r, FormatForPath(path), Options{}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Symbol returns the one-character marker for a status.
func Symbol(s types.Status) string {
	switch s {
	case types.StatusPassing:
		return "✓"
	case types.StatusFailing:
		return "✗"
	case types.StatusMissing:
		return "○"
	case types.StatusManual:
		return "◐"
	case types.StatusSkipped:
		return "-"
	}
	return "?"
}

// testRef names the deciding test of an outcome, or "".
func testRef(o types.Outcome) string {
	if o.Test == nil {
		return ""
	}
	return o.Test.Path()
}
