// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics exports verification results as Prometheus gauges, either
// in the node-exporter textfile format or pushed to a Pushgateway.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pdiddy/spectrace/pkg/types"
)

const namespace = "spectrace"

var statuses = []types.Status{
	types.StatusPassing,
	types.StatusFailing,
	types.StatusMissing,
	types.StatusManual,
	types.StatusSkipped,
}

// Collector holds the gauges for one report. It owns a private registry so
// repeated exports never collide with the default one.
type Collector struct {
	reg          *prometheus.Registry
	requirements *prometheus.GaugeVec
	total        prometheus.Gauge
	coverage     prometheus.Gauge
	unexecuted   prometheus.Gauge
	diagnostics  *prometheus.GaugeVec
	lastRun      prometheus.Gauge
}

// New returns a Collector with every gauge registered.
func New() *Collector {
	c := &Collector{
		reg: prometheus.NewRegistry(),
		requirements: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requirements",
			Help:      "Requirements by verification status.",
		}, []string{"status"}),
		total: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requirements_total",
			Help:      "Requirements extracted from the specification documents.",
		}),
		coverage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "coverage_ratio",
			Help:      "Covered requirements as a fraction of non-skipped requirements.",
		}),
		unexecuted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requirements_unexecuted",
			Help:      "Missing requirements whose bound tests did not run.",
		}),
		diagnostics: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "diagnostics",
			Help:      "Extraction diagnostics by kind.",
		}, []string{"kind"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the report was generated.",
		}),
	}
	c.reg.MustRegister(c.requirements, c.total, c.coverage, c.unexecuted, c.diagnostics, c.lastRun)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// Observe sets every gauge from r. Statuses with no requirements are set
// to zero so they still appear in the output.
func (c *Collector) Observe(r *types.Report) {
	counts := map[types.Status]int{
		types.StatusPassing: r.Passing,
		types.StatusFailing: r.Failing,
		types.StatusMissing: r.Missing,
		types.StatusManual:  r.Manual,
		types.StatusSkipped: r.Skipped,
	}
	for _, s := range statuses {
		c.requirements.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
	c.total.Set(float64(r.Total))
	c.coverage.Set(r.CoveragePercent() / 100)
	c.unexecuted.Set(float64(r.Unexecuted))

	c.diagnostics.Reset()
	for _, kind := range []types.DiagnosticKind{types.DiagFileReadFailure, types.DiagDuplicateID} {
		c.diagnostics.WithLabelValues(string(kind)).Set(0)
	}
	for _, d := range r.Diagnostics {
		c.diagnostics.WithLabelValues(string(d.Kind)).Inc()
	}
	if !r.GeneratedAt.IsZero() {
		c.lastRun.Set(float64(r.GeneratedAt.Unix()))
	}
}

// WriteTextfile writes the gauges to path atomically.
func (c *Collector) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	if err := prometheus.WriteToTextfile(path, c.reg); err != nil {
		return fmt.Errorf("writing metrics textfile %s: %w", path, err)
	}
	return nil
}
