// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package spec extracts requirement records from Markdown documents.
//
// A requirement is a line containing a bold ID token, optional bracketed
// tags, a colon, and a description:
//
//	- **AUTH-001**: Reject empty password
//	- **AUTH-002** [manual]: Code reviewed for SQL injection
//	- **AUTH-003** [manual] [SKIP]: Legacy SSO flow
//
// Lines that do not match are ignored. Files are discovered under a root
// directory through a Filter chosen by the caller.
package spec

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/pdiddy/spectrace/pkg/types"
)

var (
	linePattern = regexp.MustCompile(`\*\*([A-Z]+-\d+)\*\*((?:\s*\[\w+\])*):\s*(.+?)\s*$`)
	tagPattern  = regexp.MustCompile(`\[(\w+)\]`)
	idPattern   = regexp.MustCompile(`^[A-Z]+-\d+$`)
)

// ValidID reports whether id has the PREFIX-NUMBER form.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// ParseLine matches a single line against the requirement pattern.
func ParseLine(line string) (id string, tags []string, description string, ok bool) {
	m := linePattern.FindStringSubmatch(line)
	if m == nil {
		return "", nil, "", false
	}
	for _, t := range tagPattern.FindAllStringSubmatch(m[2], -1) {
		tags = append(tags, t[1])
	}
	return m[1], tags, strings.TrimSpace(m[3]), true
}

// Parse reads r line by line and returns the requirements found, each
// positioned by its 1-based line number within file.
func Parse(r io.Reader, file string) ([]types.Requirement, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var reqs []types.Requirement
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		id, tags, desc, ok := ParseLine(scanner.Text())
		if !ok {
			continue
		}
		reqs = append(reqs, types.Requirement{
			ID:          id,
			Description: desc,
			SourceFile:  file,
			SourceLine:  lineNum,
			Kind:        types.KindFromTags(tags),
			Tags:        tags,
		})
	}
	if err := scanner.Err(); err != nil {
		return reqs, fmt.Errorf("scanning %s: %w", file, err)
	}
	return reqs, nil
}
