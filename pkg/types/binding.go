// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "fmt"

// TestOutcome is the execution result attached to a binding after a test run.
type TestOutcome string

const (
	OutcomePassed TestOutcome = "passed"
	OutcomeFailed TestOutcome = "failed"
	OutcomeError  TestOutcome = "error"
	OutcomeNotRun TestOutcome = "not_run"
)

// Failed reports whether the outcome counts against the requirement.
func (o TestOutcome) Failed() bool {
	return o == OutcomeFailed || o == OutcomeError
}

// TestBinding associates one test with the requirement IDs it verifies.
// The same binding value is stored under every ID it declares.
type TestBinding struct {
	// IDs are the requirement IDs declared by the test, in declaration order.
	IDs []string `json:"ids" yaml:"ids"`

	// Name is the test function name, e.g. "TestLogin".
	Name string `json:"name" yaml:"name"`

	// Package is the import path of the package declaring the test, if known.
	Package string `json:"package,omitempty" yaml:"package,omitempty"`

	// Description is the human-readable text given at registration.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	SourceFile string `json:"source_file,omitempty" yaml:"source_file,omitempty"`
	SourceLine int    `json:"source_line,omitempty" yaml:"source_line,omitempty"`

	// Outcome is NotRun until an execution step supplies a result.
	Outcome TestOutcome `json:"outcome" yaml:"outcome"`

	// Detail carries failure output for failed or errored tests.
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`

	// Ref is the callable test unit. Statically discovered bindings have none.
	Ref any `json:"-" yaml:"-"`
}

// Path returns the qualified test name used to match runner results.
func (b TestBinding) Path() string {
	if b.Package == "" {
		return b.Name
	}
	return b.Package + "." + b.Name
}

// Location renders file:line, or the empty string when unknown.
func (b TestBinding) Location() string {
	if b.SourceFile == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", b.SourceFile, b.SourceLine)
}
