// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package verify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/spectrace/pkg/contract"
	"github.com/pdiddy/spectrace/pkg/registry"
	"github.com/pdiddy/spectrace/pkg/spec"
	"github.com/pdiddy/spectrace/pkg/types"
)

// --- test helpers ---

const authSpec = `# Auth

## Requirements
- **AUTH-001**: Reject empty password
- **AUTH-002** [manual]: Code reviewed for SQL injection
`

func specDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func binding(name string, outcome types.TestOutcome) types.TestBinding {
	return types.TestBinding{IDs: []string{"X-001"}, Name: name, Outcome: outcome}
}

type failingSource struct{}

func (failingSource) Collect(context.Context) (spec.Collection, error) {
	return spec.Collection{}, errors.New("disk on fire")
}

// --- classification ---

// Verifies: VER-001
func TestClassify(t *testing.T) {
	testReq := types.Requirement{ID: "X-001", Kind: types.KindTest}
	tests := []struct {
		name           string
		req            types.Requirement
		bindings       []types.TestBinding
		wantStatus     types.Status
		wantUnexecuted bool
		wantTest       string
	}{
		{
			name:       "skip wins regardless of tests",
			req:        types.Requirement{ID: "X-001", Kind: types.KindSkip},
			bindings:   []types.TestBinding{binding("TestA", types.OutcomeFailed)},
			wantStatus: types.StatusSkipped,
		},
		{
			name:       "manual needs no test",
			req:        types.Requirement{ID: "X-001", Kind: types.KindManual},
			wantStatus: types.StatusManual,
		},
		{
			name:       "no bindings",
			req:        testReq,
			wantStatus: types.StatusMissing,
		},
		{
			name:       "all passed",
			req:        testReq,
			bindings:   []types.TestBinding{binding("TestA", types.OutcomePassed), binding("TestB", types.OutcomePassed)},
			wantStatus: types.StatusPassing,
			wantTest:   "TestA",
		},
		{
			name:       "one failed",
			req:        testReq,
			bindings:   []types.TestBinding{binding("TestA", types.OutcomePassed), binding("TestB", types.OutcomeFailed)},
			wantStatus: types.StatusFailing,
			wantTest:   "TestB",
		},
		{
			name:       "error counts as failing",
			req:        testReq,
			bindings:   []types.TestBinding{binding("TestA", types.OutcomeError)},
			wantStatus: types.StatusFailing,
			wantTest:   "TestA",
		},
		{
			name:       "failure outranks not run",
			req:        testReq,
			bindings:   []types.TestBinding{binding("TestA", types.OutcomeNotRun), binding("TestB", types.OutcomeFailed)},
			wantStatus: types.StatusFailing,
			wantTest:   "TestB",
		},
		{
			name:           "bound but not executed",
			req:            testReq,
			bindings:       []types.TestBinding{binding("TestA", types.OutcomePassed), binding("TestB", types.OutcomeNotRun)},
			wantStatus:     types.StatusMissing,
			wantUnexecuted: true,
			wantTest:       "TestB",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.req, tt.bindings)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantUnexecuted, got.Unexecuted)
			if tt.wantTest == "" {
				assert.Nil(t, got.Test)
			} else {
				require.NotNil(t, got.Test)
				assert.Equal(t, tt.wantTest, got.Test.Name)
			}

			again := Classify(tt.req, tt.bindings)
			assert.Empty(t, cmp.Diff(got, again), "classification is deterministic")
		})
	}
}

func TestClassifyFailingDetail(t *testing.T) {
	b := binding("TestA", types.OutcomeFailed)
	b.Detail = "expected 1, got 2"
	got := Classify(types.Requirement{Kind: types.KindTest}, []types.TestBinding{b})
	assert.Equal(t, "expected 1, got 2", got.Detail)

	got = Classify(types.Requirement{Kind: types.KindTest}, []types.TestBinding{binding("TestB", types.OutcomeError)})
	assert.Equal(t, "TestB error", got.Detail)
}

func TestTagPriorityManualAndSkip(t *testing.T) {
	dir := specDir(t, map[string]string{"a.md": "- **X-001** [manual] [skip]: both tags\n"})
	v := New(spec.NewExtractor(dir, nil))

	report, err := v.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, types.StatusSkipped, report.Outcomes[0].Status)
	assert.Equal(t, 0, report.Manual)
}

// --- end to end ---

func TestRunEndToEnd(t *testing.T) {
	tests := []struct {
		name        string
		register    func(r *registry.Registry)
		wantPassing int
		wantMissing int
		wantFailing int
	}{
		{
			name: "passing test bound",
			register: func(r *registry.Registry) {
				r.Register([]string{"AUTH-001"}, nil, "Reject empty password", WithOutcome(types.OutcomePassed))
			},
			wantPassing: 1,
		},
		{
			name:        "test absent",
			register:    func(*registry.Registry) {},
			wantMissing: 1,
		},
		{
			name: "test failing",
			register: func(r *registry.Registry) {
				r.Register([]string{"AUTH-001"}, nil, "", WithOutcome(types.OutcomeFailed))
			},
			wantFailing: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := specDir(t, map[string]string{"auth.md": authSpec})
			tests := registry.New()
			tt.register(tests)

			v := New(spec.NewExtractor(dir, spec.ExcludePrefix("_")), WithTests(tests))
			report, err := v.Run(context.Background())
			require.NoError(t, err)

			assert.Equal(t, 2, report.Total)
			assert.Equal(t, 1, report.Manual)
			assert.Equal(t, tt.wantPassing, report.Passing)
			assert.Equal(t, tt.wantMissing, report.Missing)
			assert.Equal(t, tt.wantFailing, report.Failing)
			assert.Equal(t, report.Total, len(report.Outcomes))
		})
	}
}

// WithOutcome sets the binding's outcome as if a test run had reported it.
func WithOutcome(o types.TestOutcome) registry.Option {
	return func(b *types.TestBinding) { b.Outcome = o }
}

// Verifies: VER-003
func TestRunIsIdempotent(t *testing.T) {
	dir := specDir(t, map[string]string{
		"auth.md":  authSpec,
		"store.md": "- **STORE-001**: Persist\n- **STORE-002** [skip]: Later\n- **STORE-003**: Unexecuted\n",
	})
	tests := registry.New()
	tests.Register([]string{"AUTH-001", "STORE-001"}, nil, "", registry.WithName("TestBoth"), WithOutcome(types.OutcomePassed))
	tests.Register([]string{"STORE-003"}, nil, "", registry.WithName("TestLater"))

	v := New(spec.NewExtractor(dir, nil), WithTests(tests))
	first, err := v.Run(context.Background())
	require.NoError(t, err)
	second, err := v.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, cmp.Diff(first.Outcomes, second.Outcomes))
	assert.Equal(t, first.Statuses(), second.Statuses())
	assert.Equal(t, 2, first.Passing)
	assert.Equal(t, 1, first.Missing)
	assert.Equal(t, 1, first.Unexecuted)
	assert.Equal(t, 1, first.Skipped)
}

func TestRunAttachesContract(t *testing.T) {
	dir := specDir(t, map[string]string{"auth.md": authSpec})
	contracts := contract.NewRegistry()
	login := contract.Wrap(contracts, contract.Spec[string, bool]{
		RequirementID: "AUTH-001",
		Requires:      []func(string) bool{func(pw string) bool { return pw != "" }},
	}, func(pw string) (bool, error) { return true, nil })
	_, _ = login.Call("")

	report, err := New(spec.NewExtractor(dir, nil), WithContracts(contracts)).Run(context.Background())
	require.NoError(t, err)

	c := report.Outcomes[0].Contract
	require.NotNil(t, c)
	assert.Equal(t, 1, c.Requires)
	assert.Equal(t, int64(1), c.Violations)
	assert.Equal(t, types.StatusMissing, report.Outcomes[0].Status, "contracts do not change status")
	assert.Nil(t, report.Outcomes[1].Contract)
}

func TestRunDuplicateDiagnostics(t *testing.T) {
	dir := specDir(t, map[string]string{
		"a.md": "- **DUP-001**: first\n",
		"b.md": "- **DUP-001**: second\n",
	})
	report, err := New(spec.NewExtractor(dir, nil)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Total)
	require.Len(t, report.Diagnostics, 1)
	assert.Equal(t, types.DiagDuplicateID, report.Diagnostics[0].Kind)
}

func TestRunSourceError(t *testing.T) {
	_, err := New(failingSource{}).Run(context.Background())
	assert.ErrorContains(t, err, "disk on fire")
}

// Verifies: VER-004
func TestSingle(t *testing.T) {
	dir := specDir(t, map[string]string{"auth.md": authSpec})
	tests := registry.New()
	tests.Register([]string{"AUTH-001"}, nil, "", WithOutcome(types.OutcomePassed))
	v := New(spec.NewExtractor(dir, nil), WithTests(tests))

	o, ok, err := v.Single(context.Background(), "AUTH-001")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.StatusPassing, o.Status)

	report, err := v.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.Outcomes[0].Status, o.Status, "single and full runs agree")

	o, ok, err = v.Single(context.Background(), "NOPE-404")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, o)
}

func TestOrphans(t *testing.T) {
	dir := specDir(t, map[string]string{"auth.md": authSpec})
	tests := registry.New()
	tests.Register([]string{"AUTH-001", "GONE-001"}, nil, "")
	contracts := contract.NewRegistry()
	contract.Wrap(contracts, contract.Spec[int, int]{RequirementID: "GONE-002"}, func(x int) (int, error) { return x, nil })

	v := New(spec.NewExtractor(dir, nil), WithTests(tests), WithContracts(contracts))
	report, err := v.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"GONE-001", "GONE-002"}, v.Orphans(report))
}

func TestNewUsesIsolatedRegistries(t *testing.T) {
	a := New(failingSource{})
	b := New(failingSource{})
	assert.NotSame(t, a.Tests(), b.Tests())
	assert.NotSame(t, registry.Default, a.Tests())
	assert.NotSame(t, contract.Default, a.Contracts())
}
