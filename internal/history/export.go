// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

// Export is a run with its outcomes, as written by ExportYAML and
// ExportJSON.
type Export struct {
	Run      Run          `json:"run" yaml:"run"`
	Outcomes []OutcomeRow `json:"outcomes" yaml:"outcomes"`
}

// ExportYAML writes run runID to path, or to <dir>/run-<short id>.yaml when
// path is empty. It returns the path written.
func (s *Store) ExportYAML(ctx context.Context, runID, path string) (string, error) {
	e, err := s.export(ctx, runID)
	if err != nil {
		return "", err
	}
	data, err := yaml.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("marshaling YAML: %w", err)
	}
	return s.write(path, e.Run, ".yaml", data)
}

// ExportJSON writes run runID to path, or to <dir>/run-<short id>.json when
// path is empty. It returns the path written.
func (s *Store) ExportJSON(ctx context.Context, runID, path string) (string, error) {
	e, err := s.export(ctx, runID)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling JSON: %w", err)
	}
	return s.write(path, e.Run, ".json", data)
}

func (s *Store) export(ctx context.Context, runID string) (Export, error) {
	run, err := s.Get(ctx, runID)
	if err != nil {
		return Export{}, err
	}
	outcomes, err := s.Outcomes(ctx, run.ID)
	if err != nil {
		return Export{}, fmt.Errorf("querying for export: %w", err)
	}
	return Export{Run: run, Outcomes: outcomes}, nil
}

func (s *Store) write(path string, run Run, ext string, data []byte) (string, error) {
	if path == "" {
		path = filepath.Join(s.dir, "run-"+run.ShortID()+ext)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}
