// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package spec

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/spectrace/pkg/types"
)

// --- test helpers ---

func writeSpec(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func ids(reqs []types.Requirement) []string {
	out := make([]string, len(reqs))
	for i, r := range reqs {
		out[i] = r.ID
	}
	return out
}

// --- line parsing ---

// Verifies: EXT-002
func TestParseLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantOK   bool
		wantID   string
		wantTags []string
		wantDesc string
	}{
		{
			name: "list item", line: "- **AUTH-001**: Reject empty password",
			wantOK: true, wantID: "AUTH-001", wantDesc: "Reject empty password",
		},
		{
			name: "bare line", line: "**X-9**: something",
			wantOK: true, wantID: "X-9", wantDesc: "something",
		},
		{
			name: "single tag", line: "- **AUTH-002** [manual]: Code reviewed for SQL injection",
			wantOK: true, wantID: "AUTH-002", wantTags: []string{"manual"}, wantDesc: "Code reviewed for SQL injection",
		},
		{
			name: "multiple tags", line: "**AUTH-003** [manual] [SKIP]: Legacy flow",
			wantOK: true, wantID: "AUTH-003", wantTags: []string{"manual", "SKIP"}, wantDesc: "Legacy flow",
		},
		{
			name: "tags without spaces", line: "**AUTH-004**[wip][skip]: Later",
			wantOK: true, wantID: "AUTH-004", wantTags: []string{"wip", "skip"}, wantDesc: "Later",
		},
		{
			name: "trailing whitespace trimmed", line: "**AUTH-005**:   padded   ",
			wantOK: true, wantID: "AUTH-005", wantDesc: "padded",
		},
		{name: "lowercase prefix", line: "**auth-001**: nope"},
		{name: "missing colon", line: "**AUTH-001** Reject empty password"},
		{name: "not bold", line: "AUTH-001: Reject empty password"},
		{name: "no number", line: "**AUTH-**: nope"},
		{name: "empty description", line: "**AUTH-001**:"},
		{name: "heading", line: "## Requirements"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, tags, desc, ok := ParseLine(tt.line)
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantTags, tags)
			assert.Equal(t, tt.wantDesc, desc)
		})
	}
}

// Verifies: EXT-001
func TestParseLineNumbersAndKinds(t *testing.T) {
	doc := `# Auth

## Requirements
- **AUTH-001**: Reject empty password
- **AUTH-002** [manual]: Code reviewed
not a requirement
- **AUTH-003** [Manual] [skip]: Legacy
`
	reqs, err := Parse(strings.NewReader(doc), "auth.md")
	require.NoError(t, err)
	require.Len(t, reqs, 3)

	assert.Equal(t, 4, reqs[0].SourceLine)
	assert.Equal(t, types.KindTest, reqs[0].Kind)
	assert.Equal(t, 5, reqs[1].SourceLine)
	assert.Equal(t, types.KindManual, reqs[1].Kind)
	assert.Equal(t, 7, reqs[2].SourceLine)
	assert.Equal(t, types.KindSkip, reqs[2].Kind, "skip outranks manual")
	assert.Equal(t, "auth.md:4", reqs[0].Location())
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID("AUTH-001"))
	assert.True(t, ValidID("A-1"))
	assert.False(t, ValidID("auth-001"))
	assert.False(t, ValidID("AUTH001"))
	assert.False(t, ValidID("AUTH-001x"))
}

// --- filters ---

// Verifies: EXT-004
func TestFilters(t *testing.T) {
	prefix := ExcludePrefix("_")
	glob, err := Glob("**/spec-*.md")
	require.NoError(t, err)

	tests := []struct {
		path       string
		wantPrefix bool
		wantGlob   bool
	}{
		{"auth.md", true, false},
		{"_index.md", false, false},
		{"spec-auth.md", true, true},
		{"sub/deep/spec-nested.md", true, true},
		{"sub/_spec-hidden.md", false, false},
		{"notes.txt", false, false},
		{"README.MD", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.wantPrefix, prefix.Match(tt.path), "exclude-prefix")
			assert.Equal(t, tt.wantGlob, glob.Match(tt.path), "glob")
		})
	}
}

func TestFilterFromConfig(t *testing.T) {
	_, err := FilterFromConfig(types.SpecsConfig{Policy: "regex"})
	assert.Error(t, err)

	_, err = FilterFromConfig(types.SpecsConfig{Policy: types.FilterGlob})
	assert.Error(t, err, "glob without pattern")

	_, err = Glob("[unclosed")
	assert.Error(t, err)

	f, err := FilterFromConfig(types.SpecsConfig{Policy: types.FilterGlob, Pattern: "*.md"})
	require.NoError(t, err)
	assert.True(t, f.Match("a.md"))
	assert.False(t, f.Match("sub/a.md"))
}

// --- collection ---

func TestCollectFindsSpecsInAllMarkdownFiles(t *testing.T) {
	dir := t.TempDir()
	writeSpec(t, dir, "feature.md", "# Spec\n- **TEST-001**: First requirement\n- **TEST-002**: Second requirement\n")

	c, err := NewExtractor(dir, ExcludePrefix("_")).Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, c.Requirements, 2)
	assert.Equal(t, "TEST-001", c.Requirements[0].ID)
	assert.Equal(t, "First requirement", c.Requirements[0].Description)
	assert.Equal(t, "TEST-002", c.Requirements[1].ID)
	assert.Empty(t, c.Failures)
	assert.Empty(t, c.Duplicates)
}

// Verifies: EXT-004
func TestCollectPolicies(t *testing.T) {
	dir := t.TempDir()
	writeSpec(t, dir, "auth.md", "- **AUTH-001**: Auth spec")
	writeSpec(t, dir, "_index.md", "- **INDEX-001**: Should be ignored")
	writeSpec(t, dir, "spec-root.md", "- **ROOT-001**: Root spec")
	writeSpec(t, dir, "subdir/deep/spec-nested.md", "- **NEST-001**: Nested spec")

	tests := []struct {
		name   string
		filter func(t *testing.T) Filter
		want   []string
	}{
		{
			name:   "exclude underscore files",
			filter: func(t *testing.T) Filter { return ExcludePrefix("_") },
			want:   []string{"AUTH-001", "ROOT-001", "NEST-001"},
		},
		{
			name: "naming convention",
			filter: func(t *testing.T) Filter {
				f, err := Glob("**/spec-*.md")
				require.NoError(t, err)
				return f
			},
			want: []string{"ROOT-001", "NEST-001"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewExtractor(dir, tt.filter(t)).Collect(context.Background())
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, ids(c.Requirements))
		})
	}
}

// Verifies: EXT-006
func TestCollectMissingDirectory(t *testing.T) {
	c, err := NewExtractor(filepath.Join(t.TempDir(), "nope"), nil).Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, c.Requirements)
}

// Verifies: EXT-007
func TestCollectDuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	writeSpec(t, dir, "a.md", "- **DUP-001**: from a\n- **A-001**: only a")
	writeSpec(t, dir, "b.md", "- **DUP-001**: from b")

	c, err := NewExtractor(dir, nil).Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"DUP-001", "A-001"}, ids(c.Requirements))
	assert.Equal(t, "from a", c.Requirements[0].Description, "first occurrence is kept")

	require.Len(t, c.Duplicates, 1)
	d := c.Duplicates[0]
	assert.Equal(t, "DUP-001", d.ID)
	assert.Equal(t, filepath.Join(dir, "b.md"), d.Other.SourceFile)

	diags := c.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, types.DiagDuplicateID, diags[0].Kind)
	assert.Contains(t, diags[0].Message, "a.md:1")
}

// Verifies: EXT-005
func TestCollectUnreadableFile(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}
	dir := t.TempDir()
	writeSpec(t, dir, "good.md", "- **GOOD-001**: readable")
	bad := writeSpec(t, dir, "bad.md", "- **BAD-001**: unreadable")
	require.NoError(t, os.Chmod(bad, 0o000))
	t.Cleanup(func() { os.Chmod(bad, 0o644) })

	c, err := NewExtractor(dir, nil).Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"GOOD-001"}, ids(c.Requirements))
	require.Len(t, c.Failures, 1)
	assert.Equal(t, bad, c.Failures[0].Path)
	assert.Equal(t, types.DiagFileReadFailure, c.Diagnostics()[0].Kind)
}

// Verifies: EXT-008
func TestAllIsLazyAndRestartable(t *testing.T) {
	dir := t.TempDir()
	writeSpec(t, dir, "a.md", "- **A-001**: one\n- **A-002**: two")
	writeSpec(t, dir, "b.md", "- **B-001**: three")

	e := NewExtractor(dir, nil)
	ctx := context.Background()

	var first []string
	for r, err := range e.All(ctx) {
		require.NoError(t, err)
		first = append(first, r.ID)
	}
	assert.Equal(t, []string{"A-001", "A-002", "B-001"}, first)

	var second []string
	for r, err := range e.All(ctx) {
		require.NoError(t, err)
		second = append(second, r.ID)
	}
	assert.Equal(t, first, second)

	var stopped []string
	for r := range e.All(ctx) {
		stopped = append(stopped, r.ID)
		break
	}
	assert.Equal(t, []string{"A-001"}, stopped)
}

func TestAllCancelled(t *testing.T) {
	dir := t.TempDir()
	writeSpec(t, dir, "a.md", "- **A-001**: one")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var gotErr error
	for _, err := range NewExtractor(dir, nil).All(ctx) {
		if err != nil {
			gotErr = err
		}
	}
	assert.True(t, errors.Is(gotErr, context.Canceled))
}

func TestFileErrorUnwrap(t *testing.T) {
	err := &FileError{Path: "x.md", Err: os.ErrPermission}
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Contains(t, err.Error(), "x.md")
}
