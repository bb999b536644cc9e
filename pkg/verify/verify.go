// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package verify reconciles extracted requirements against the test and
// contract registries and produces a verification report.
package verify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/spectrace/pkg/contract"
	"github.com/pdiddy/spectrace/pkg/registry"
	"github.com/pdiddy/spectrace/pkg/spec"
	"github.com/pdiddy/spectrace/pkg/types"
)

// SpecSource supplies the requirements for a run. *spec.Extractor
// implements it.
type SpecSource interface {
	Collect(ctx context.Context) (spec.Collection, error)
}

// Verifier runs verification over one spec source and a pair of registries.
type Verifier struct {
	specs     SpecSource
	tests     *registry.Registry
	contracts *contract.Registry
	logger    *zap.Logger
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithTests sets the test registry. Pass registry.Default to verify
// bindings made by registry.Test and registry.Verifies.
func WithTests(r *registry.Registry) Option {
	return func(v *Verifier) { v.tests = r }
}

// WithContracts sets the contract registry.
func WithContracts(r *contract.Registry) Option {
	return func(v *Verifier) { v.contracts = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(v *Verifier) {
		if l != nil {
			v.logger = l
		}
	}
}

// New returns a Verifier over specs. Without options it uses fresh, empty
// registries so independent runs never share state.
func New(specs SpecSource, opts ...Option) *Verifier {
	v := &Verifier{specs: specs, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(v)
	}
	if v.tests == nil {
		v.tests = registry.New()
	}
	if v.contracts == nil {
		v.contracts = contract.NewRegistry()
	}
	return v
}

// Tests returns the verifier's test registry.
func (v *Verifier) Tests() *registry.Registry { return v.tests }

// Contracts returns the verifier's contract registry.
func (v *Verifier) Contracts() *contract.Registry { return v.contracts }

// Classification is the result of classifying one requirement.
type Classification struct {
	Status     types.Status
	Unexecuted bool
	// Test is the binding that decided the status, if any.
	Test   *types.TestBinding
	Detail string
}

// Classify computes a requirement's status from its kind and the outcomes
// of its bound tests. It is a pure function of its inputs.
func Classify(req types.Requirement, bindings []types.TestBinding) Classification {
	switch req.Kind {
	case types.KindSkip:
		return Classification{Status: types.StatusSkipped, Detail: "marked skip"}
	case types.KindManual:
		return Classification{Status: types.StatusManual, Detail: "verified manually"}
	}

	if len(bindings) == 0 {
		return Classification{Status: types.StatusMissing, Detail: "no test bound"}
	}

	for i := range bindings {
		if bindings[i].Outcome.Failed() {
			b := bindings[i]
			detail := b.Detail
			if detail == "" {
				detail = fmt.Sprintf("%s %s", b.Name, b.Outcome)
			}
			return Classification{Status: types.StatusFailing, Test: &b, Detail: detail}
		}
	}

	var notRun []string
	var firstNotRun *types.TestBinding
	for i := range bindings {
		if bindings[i].Outcome != types.OutcomePassed {
			if firstNotRun == nil {
				b := bindings[i]
				firstNotRun = &b
			}
			notRun = append(notRun, bindings[i].Name)
		}
	}
	if firstNotRun != nil {
		return Classification{
			Status:     types.StatusMissing,
			Unexecuted: true,
			Test:       firstNotRun,
			Detail:     "bound but not executed: " + strings.Join(notRun, ", "),
		}
	}

	b := bindings[0]
	return Classification{Status: types.StatusPassing, Test: &b}
}

// outcome builds the full outcome for req from registry snapshots.
func outcome(req types.Requirement, tests map[string][]types.TestBinding, contracts map[string]contract.Record) types.Outcome {
	bindings := tests[req.ID]
	c := Classify(req, bindings)
	o := types.Outcome{
		Requirement: req,
		Test:        c.Test,
		Tests:       bindings,
		Status:      c.Status,
		Unexecuted:  c.Unexecuted,
		Detail:      c.Detail,
	}
	if rec, ok := contracts[req.ID]; ok {
		o.Contract = &types.ContractSummary{
			Func:       rec.FullName(),
			Requires:   rec.Requires,
			Ensures:    rec.Ensures,
			Calls:      rec.Calls,
			Violations: rec.Violations,
		}
	}
	return o
}

// Run extracts requirements, snapshots both registries once, and classifies
// every requirement in extraction order.
func (v *Verifier) Run(ctx context.Context) (*types.Report, error) {
	c, err := v.specs.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("collecting requirements: %w", err)
	}

	tests := v.tests.Snapshot()
	contracts := v.contracts.Snapshot()

	outcomes := make([]types.Outcome, 0, len(c.Requirements))
	for _, req := range c.Requirements {
		outcomes = append(outcomes, outcome(req, tests, contracts))
	}

	report := types.NewReport(outcomes, c.Diagnostics())
	v.logger.Info("verification complete",
		zap.Int("total", report.Total),
		zap.Int("passing", report.Passing),
		zap.Int("failing", report.Failing),
		zap.Int("missing", report.Missing),
		zap.Int("manual", report.Manual),
		zap.Int("skipped", report.Skipped),
		zap.Int("diagnostics", len(report.Diagnostics)))
	return report, nil
}

// Single classifies one requirement. The boolean is false when id was not
// extracted; that is not an error.
func (v *Verifier) Single(ctx context.Context, id string) (*types.Outcome, bool, error) {
	c, err := v.specs.Collect(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("collecting requirements: %w", err)
	}
	for _, req := range c.Requirements {
		if req.ID != id {
			continue
		}
		tests := map[string][]types.TestBinding{id: v.tests.Lookup(id)}
		contracts := map[string]contract.Record{}
		if rec, ok := v.contracts.Lookup(id); ok {
			contracts[id] = rec
		}
		o := outcome(req, tests, contracts)
		return &o, true, nil
	}
	return nil, false, nil
}

// Orphans returns requirement IDs bound to tests or contracts that do not
// appear in report, sorted.
func (v *Verifier) Orphans(report *types.Report) []string {
	known := make(map[string]bool, len(report.Outcomes))
	for _, o := range report.Outcomes {
		known[o.Requirement.ID] = true
	}
	seen := make(map[string]bool)
	var orphans []string
	for _, ids := range [][]string{v.tests.IDs(), v.contracts.IDs()} {
		for _, id := range ids {
			if !known[id] && !seen[id] {
				seen[id] = true
				orphans = append(orphans, id)
			}
		}
	}
	sort.Strings(orphans)
	return orphans
}
