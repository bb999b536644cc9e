// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metrics

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/spectrace/pkg/types"
)

func sample() *types.Report {
	return types.NewReport([]types.Outcome{
		{Requirement: types.Requirement{ID: "A-001"}, Status: types.StatusPassing},
		{Requirement: types.Requirement{ID: "A-002"}, Status: types.StatusPassing},
		{Requirement: types.Requirement{ID: "A-003"}, Status: types.StatusMissing, Unexecuted: true},
		{Requirement: types.Requirement{ID: "A-004"}, Status: types.StatusSkipped},
	}, []types.Diagnostic{{Kind: types.DiagDuplicateID}})
}

func TestObserve(t *testing.T) {
	c := New()
	c.Observe(sample())

	assert.Equal(t, 2.0, testutil.ToFloat64(c.requirements.WithLabelValues("passing")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.requirements.WithLabelValues("failing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requirements.WithLabelValues("missing")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.total))
	assert.InDelta(t, 2.0/3.0, testutil.ToFloat64(c.coverage), 1e-9)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.unexecuted))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.diagnostics.WithLabelValues(string(types.DiagDuplicateID))))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.diagnostics.WithLabelValues(string(types.DiagFileReadFailure))))

	// A second observation replaces rather than accumulates.
	c.Observe(sample())
	assert.Equal(t, 1.0, testutil.ToFloat64(c.diagnostics.WithLabelValues(string(types.DiagDuplicateID))))
}

func TestExportTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "textfile", "spectrace.prom")
	require.NoError(t, Publish(context.Background(), types.MetricsConfig{File: path}, sample(), nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `spectrace_requirements{status="passing"} 2`)
	assert.Contains(t, out, `spectrace_requirements{status="manual"} 0`)
	assert.Contains(t, out, "spectrace_requirements_total 4")
	assert.Contains(t, out, "# TYPE spectrace_coverage_ratio gauge")
}
