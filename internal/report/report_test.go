// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/spectrace/pkg/types"
)

func sampleReport() *types.Report {
	req := func(id, desc string) types.Requirement {
		return types.Requirement{ID: id, Description: desc, SourceFile: "docs/specs/auth.md", SourceLine: 3, Kind: types.KindTest}
	}
	failing := &types.TestBinding{Name: "TestLogin", Package: "example.com/auth", Outcome: types.OutcomeFailed}
	passing := &types.TestBinding{Name: "TestReject", Package: "example.com/auth", Outcome: types.OutcomePassed}
	return types.NewReport([]types.Outcome{
		{Requirement: req("AUTH-001", "Reject empty password"), Status: types.StatusPassing, Test: passing},
		{Requirement: req("AUTH-002", "Lock after 5 | attempts"), Status: types.StatusFailing, Test: failing, Detail: "expected locked\ngot open"},
		{Requirement: req("AUTH-003", "Rotate tokens"), Status: types.StatusMissing, Detail: "no test bound"},
		{Requirement: req("AUTH-004", "Reviewed"), Status: types.StatusManual},
		{Requirement: req("AUTH-005", "Later"), Status: types.StatusSkipped},
	}, []types.Diagnostic{{Kind: types.DiagDuplicateID, File: "b.md", Line: 2, RequirementID: "AUTH-001", Message: "AUTH-001 already defined at a.md:1"}})
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTerminal, false},
		{"Terminal", FormatTerminal, false},
		{"md", FormatMarkdown, false},
		{"markdown", FormatMarkdown, false},
		{"json", FormatJSON, false},
		{" yaml ", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatForPath(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatForPath("out/report.JSON"))
	assert.Equal(t, FormatYAML, FormatForPath("report.yml"))
	assert.Equal(t, FormatMarkdown, FormatForPath("SPEC_REPORT.md"))
	assert.Equal(t, FormatMarkdown, FormatForPath("report"))
}

func TestTerminal(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Terminal(&buf, sampleReport(), Options{FailOnMissing: true}))
	out := buf.String()

	assert.Contains(t, out, "Specification Verification Report")
	assert.Contains(t, out, "✓ AUTH-001  Reject empty password")
	assert.Contains(t, out, "✗ AUTH-002")
	assert.Contains(t, out, "example.com/auth.TestLogin")
	assert.Contains(t, out, "expected locked")
	assert.NotContains(t, out, "example.com/auth.TestReject", "passing tests are shown only in verbose mode")
	assert.Contains(t, out, "5 requirements: 1 passing, 1 failing, 1 missing, 1 manual, 1 skipped")
	assert.Contains(t, out, "(50.0% coverage)")
	assert.Contains(t, out, "already defined at a.md:1")
	assert.Contains(t, out, "FAIL: failing requirements")
	assert.NotContains(t, out, "\x1b[", "no colour codes when writing to a buffer")
}

func TestTerminalVerbose(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Terminal(&buf, sampleReport(), Options{Verbose: true}))
	out := buf.String()
	assert.Contains(t, out, "example.com/auth.TestReject")
	assert.Contains(t, out, "docs/specs/auth.md:3")
}

func TestTerminalVerboseContracts(t *testing.T) {
	r := sampleReport()
	r.Outcomes[2].Contract = &types.ContractSummary{Func: "example.com/auth.rotate", Requires: 2, Ensures: 1}
	r.Outcomes[1].Contract = &types.ContractSummary{Func: "example.com/auth.lock", Requires: 1, Calls: 4, Violations: 1}

	var buf bytes.Buffer
	require.NoError(t, Terminal(&buf, r, Options{Verbose: true}))
	out := buf.String()
	assert.Contains(t, out, "contract example.com/auth.rotate: 2 requires, 1 ensures\n")
	assert.Contains(t, out, "contract example.com/auth.lock: 1 requires, 0 ensures, 4 calls, 1 violations")

	buf.Reset()
	require.NoError(t, Terminal(&buf, r, Options{}))
	assert.NotContains(t, buf.String(), "contract ")
}

func TestTerminalVerdicts(t *testing.T) {
	missingOnly := types.NewReport([]types.Outcome{{Requirement: types.Requirement{ID: "X-001"}, Status: types.StatusMissing}}, nil)

	var buf bytes.Buffer
	require.NoError(t, Terminal(&buf, missingOnly, Options{FailOnMissing: true}))
	assert.Contains(t, buf.String(), "FAIL: missing requirements")

	buf.Reset()
	require.NoError(t, Terminal(&buf, missingOnly, Options{}))
	assert.Contains(t, buf.String(), "PASS")
}

func TestMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Markdown(&buf, sampleReport()))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "# Specification Verification Report\n"))
	assert.Contains(t, out, "| Passing | 1 |")
	assert.Contains(t, out, "| **Total** | 5 |")
	assert.Contains(t, out, "## Failing\n\n- **AUTH-002**")
	assert.Contains(t, out, "  - Error: expected locked got open")
	assert.Contains(t, out, "## Missing Tests\n\n- **AUTH-003**: Rotate tokens\n  - Source: `docs/specs/auth.md:3`")
	assert.Contains(t, out, `Lock after 5 \| attempts`)
	for _, id := range []string{"AUTH-001", "AUTH-002", "AUTH-003", "AUTH-004", "AUTH-005"} {
		assert.Contains(t, out, "| "+id+" |", "every requirement appears in the table")
	}
}

func TestWriteJSONAndYAML(t *testing.T) {
	r := sampleReport()

	var js bytes.Buffer
	require.NoError(t, Write(&js, r, FormatJSON, Options{}))
	var decoded types.Report
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, r.Total, decoded.Total)
	assert.Equal(t, r.Failing, decoded.Failing)
	assert.Equal(t, types.StatusFailing, decoded.Outcomes[1].Status)

	var ym bytes.Buffer
	require.NoError(t, Write(&ym, r, FormatYAML, Options{}))
	var generic map[string]any
	require.NoError(t, yaml.Unmarshal(ym.Bytes(), &generic))
	assert.Equal(t, 5, generic["total"])

	assert.Error(t, Write(&js, r, Format("pdf"), Options{}))
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "report.json")
	require.NoError(t, WriteFile(path, sampleReport()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))

	md := filepath.Join(dir, "SPEC_REPORT.md")
	require.NoError(t, WriteFile(md, sampleReport()))
	data, err = os.ReadFile(md)
	require.NoError(t, err)
	assert.Contains(t, string(data), "## Summary")
}
