// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Verifies: EXT-003
func TestKindFromTags(t *testing.T) {
	tests := []struct {
		name string
		tags []string
		want VerificationKind
	}{
		{"no tags", nil, KindTest},
		{"manual", []string{"manual"}, KindManual},
		{"skip uppercase", []string{"SKIP"}, KindSkip},
		{"skip beats manual", []string{"manual", "skip"}, KindSkip},
		{"order independent", []string{"Skip", "Manual"}, KindSkip},
		{"unknown ignored", []string{"wip", "security"}, KindTest},
		{"unknown with manual", []string{"wip", "MANUAL"}, KindManual},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindFromTags(tt.tags))
		})
	}
}

// Verifies: VER-002
func TestNewReportCounts(t *testing.T) {
	outcomes := []Outcome{
		{Requirement: Requirement{ID: "A-1"}, Status: StatusPassing},
		{Requirement: Requirement{ID: "A-2"}, Status: StatusFailing},
		{Requirement: Requirement{ID: "A-3"}, Status: StatusMissing},
		{Requirement: Requirement{ID: "A-4"}, Status: StatusMissing, Unexecuted: true},
		{Requirement: Requirement{ID: "A-5"}, Status: StatusManual},
		{Requirement: Requirement{ID: "A-6"}, Status: StatusSkipped},
	}

	r := NewReport(outcomes, nil)

	assert.Equal(t, 6, r.Total)
	assert.Equal(t, 1, r.Passing)
	assert.Equal(t, 1, r.Failing)
	assert.Equal(t, 2, r.Missing)
	assert.Equal(t, 1, r.Unexecuted)
	assert.Equal(t, 1, r.Manual)
	assert.Equal(t, 1, r.Skipped)
	assert.Equal(t, r.Total, r.Passing+r.Failing+r.Missing+r.Manual+r.Skipped)
	assert.Len(t, r.ByStatus(StatusMissing), 2)
	assert.InDelta(t, 40.0, r.CoveragePercent(), 0.001)
}

// Verifies: VER-005
func TestReportExitCode(t *testing.T) {
	tests := []struct {
		name          string
		statuses      []Status
		failOnMissing bool
		want          int
	}{
		{"all passing", []Status{StatusPassing, StatusManual}, true, 0},
		{"failing wins", []Status{StatusFailing, StatusMissing}, true, 1},
		{"missing fails", []Status{StatusPassing, StatusMissing}, true, 2},
		{"missing tolerated", []Status{StatusPassing, StatusMissing}, false, 0},
		{"empty", nil, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var outcomes []Outcome
			for _, s := range tt.statuses {
				outcomes = append(outcomes, Outcome{Status: s})
			}
			r := NewReport(outcomes, nil)
			assert.Equal(t, tt.want, r.ExitCode(tt.failOnMissing))
			assert.Equal(t, tt.want == 0, r.OK(tt.failOnMissing))
		})
	}
}

func TestEmptyReportCoverage(t *testing.T) {
	r := NewReport(nil, nil)
	assert.Equal(t, 0, r.Total)
	assert.Equal(t, 100.0, r.CoveragePercent())
}
