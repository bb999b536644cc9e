// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types holds the records shared by the extractor, the registries,
// the verifier, and the report renderers.
package types

import (
	"fmt"
	"strings"
)

// VerificationKind states how a requirement is expected to be verified.
type VerificationKind string

const (
	KindTest   VerificationKind = "test"
	KindManual VerificationKind = "manual"
	KindSkip   VerificationKind = "skip"
)

// KindFromTags resolves a requirement's tags to a VerificationKind.
// Tags are matched case-insensitively and in any order; skip wins over
// manual, which wins over test. Unrecognized tags are ignored.
func KindFromTags(tags []string) VerificationKind {
	var manual bool
	for _, t := range tags {
		switch strings.ToLower(t) {
		case string(KindSkip):
			return KindSkip
		case string(KindManual):
			manual = true
		}
	}
	if manual {
		return KindManual
	}
	return KindTest
}

// Requirement is a single identified obligation extracted from documentation.
type Requirement struct {
	// ID is the PREFIX-NNN token, unique within one extraction pass.
	ID string `json:"id" yaml:"id"`

	// Description is the text following the colon, trimmed.
	Description string `json:"description" yaml:"description"`

	// SourceFile is the path of the document the requirement was found in.
	SourceFile string `json:"source_file" yaml:"source_file"`

	// SourceLine is the 1-based line number within SourceFile.
	SourceLine int `json:"source_line" yaml:"source_line"`

	// Kind is resolved from Tags.
	Kind VerificationKind `json:"kind" yaml:"kind"`

	// Tags are the bracketed tags as written, e.g. "manual", "SKIP".
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Location renders file:line for diagnostics.
func (r Requirement) Location() string {
	return fmt.Sprintf("%s:%d", r.SourceFile, r.SourceLine)
}
