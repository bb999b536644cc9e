// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Status is the verification classification of one requirement.
type Status string

const (
	StatusPassing Status = "passing"
	StatusFailing Status = "failing"
	StatusMissing Status = "missing"
	StatusManual  Status = "manual"
	StatusSkipped Status = "skipped"
)

// ContractSummary describes the runtime contract linked to a requirement.
type ContractSummary struct {
	Func       string `json:"func" yaml:"func"`
	Requires   int    `json:"requires" yaml:"requires"`
	Ensures    int    `json:"ensures" yaml:"ensures"`
	Calls      int64  `json:"calls" yaml:"calls"`
	Violations int64  `json:"violations" yaml:"violations"`
}

// Outcome is the verification result for one requirement.
type Outcome struct {
	Requirement Requirement `json:"requirement" yaml:"requirement"`

	// Test is the binding that decided the status: the first failing test
	// for failing requirements, otherwise the first declared test.
	Test *TestBinding `json:"test,omitempty" yaml:"test,omitempty"`

	// Tests lists every binding for the requirement in registration order.
	Tests []TestBinding `json:"tests,omitempty" yaml:"tests,omitempty"`

	Contract *ContractSummary `json:"contract,omitempty" yaml:"contract,omitempty"`

	Status Status `json:"status" yaml:"status"`

	// Unexecuted marks a missing requirement that has bound tests which were
	// never run. It is counted with Missing.
	Unexecuted bool `json:"unexecuted,omitempty" yaml:"unexecuted,omitempty"`

	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// DiagnosticKind names the class of a non-fatal extraction problem.
type DiagnosticKind string

const (
	DiagFileReadFailure DiagnosticKind = "file_read_failure"
	DiagDuplicateID     DiagnosticKind = "duplicate_requirement_id"
)

// Diagnostic is a problem surfaced alongside a report without failing it.
type Diagnostic struct {
	Kind          DiagnosticKind `json:"kind" yaml:"kind"`
	File          string         `json:"file" yaml:"file"`
	Line          int            `json:"line,omitempty" yaml:"line,omitempty"`
	RequirementID string         `json:"requirement_id,omitempty" yaml:"requirement_id,omitempty"`
	Message       string         `json:"message" yaml:"message"`
}

// Report is the aggregate result of one verification run. Build it with
// NewReport so the counters always match Outcomes.
type Report struct {
	GeneratedAt time.Time    `json:"generated_at" yaml:"generated_at"`
	Outcomes    []Outcome    `json:"outcomes" yaml:"outcomes"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`

	Passing    int `json:"passing" yaml:"passing"`
	Failing    int `json:"failing" yaml:"failing"`
	Missing    int `json:"missing" yaml:"missing"`
	Manual     int `json:"manual" yaml:"manual"`
	Skipped    int `json:"skipped" yaml:"skipped"`
	Total      int `json:"total" yaml:"total"`
	Unexecuted int `json:"unexecuted" yaml:"unexecuted"`
}

// NewReport partitions outcomes by status into the summary counters.
func NewReport(outcomes []Outcome, diags []Diagnostic) *Report {
	r := &Report{
		GeneratedAt: time.Now().UTC(),
		Outcomes:    outcomes,
		Diagnostics: diags,
		Total:       len(outcomes),
	}
	for _, o := range outcomes {
		switch o.Status {
		case StatusPassing:
			r.Passing++
		case StatusFailing:
			r.Failing++
		case StatusMissing:
			r.Missing++
			if o.Unexecuted {
				r.Unexecuted++
			}
		case StatusManual:
			r.Manual++
		case StatusSkipped:
			r.Skipped++
		}
	}
	return r
}

// Covered returns the number of requirements counted as covered.
func (r *Report) Covered() int {
	return r.Passing + r.Manual
}

// CoveragePercent returns covered requirements as a share of the
// non-skipped ones, or 100 when nothing needs verification.
func (r *Report) CoveragePercent() float64 {
	denom := r.Total - r.Skipped
	if denom <= 0 {
		return 100
	}
	return float64(r.Covered()) * 100 / float64(denom)
}

// ByStatus returns the outcomes with the given status, in report order.
func (r *Report) ByStatus(s Status) []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status == s {
			out = append(out, o)
		}
	}
	return out
}

// Statuses maps requirement ID to status. Two runs over unchanged inputs
// produce equal maps.
func (r *Report) Statuses() map[string]Status {
	m := make(map[string]Status, len(r.Outcomes))
	for _, o := range r.Outcomes {
		m[o.Requirement.ID] = o.Status
	}
	return m
}

// OK reports whether automation should treat the run as a success.
func (r *Report) OK(failOnMissing bool) bool {
	return r.ExitCode(failOnMissing) == 0
}

// ExitCode maps the report to a process exit status: 1 when any requirement
// fails, 2 when requirements are missing and failOnMissing is set, else 0.
func (r *Report) ExitCode(failOnMissing bool) int {
	if r.Failing > 0 {
		return 1
	}
	if failOnMissing && r.Missing > 0 {
		return 2
	}
	return 0
}
