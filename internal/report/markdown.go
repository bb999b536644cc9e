// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/spectrace/pkg/types"
)

// Markdown writes the report as a Markdown document: a summary table, the
// failing and missing requirements, then every requirement.
func Markdown(w io.Writer, r *types.Report) error {
	var b strings.Builder

	b.WriteString("# Specification Verification Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", r.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))

	b.WriteString("## Summary\n\n")
	b.WriteString("| Status | Count |\n|---|---|\n")
	for _, row := range []struct {
		label string
		n     int
	}{
		{"Passing", r.Passing},
		{"Failing", r.Failing},
		{"Missing", r.Missing},
		{"Manual", r.Manual},
		{"Skipped", r.Skipped},
		{"**Total**", r.Total},
	} {
		fmt.Fprintf(&b, "| %s | %d |\n", row.label, row.n)
	}
	fmt.Fprintf(&b, "\nCoverage: %.1f%%\n", r.CoveragePercent())

	if failing := r.ByStatus(types.StatusFailing); len(failing) > 0 {
		b.WriteString("\n## Failing\n\n")
		for _, o := range failing {
			fmt.Fprintf(&b, "- **%s**: %s\n", o.Requirement.ID, o.Requirement.Description)
			if ref := testRef(o); ref != "" {
				fmt.Fprintf(&b, "  - Test: `%s`\n", ref)
			}
			if o.Detail != "" {
				fmt.Fprintf(&b, "  - Error: %s\n", strings.ReplaceAll(o.Detail, "\n", " "))
			}
		}
	}

	if missing := r.ByStatus(types.StatusMissing); len(missing) > 0 {
		b.WriteString("\n## Missing Tests\n\n")
		for _, o := range missing {
			fmt.Fprintf(&b, "- **%s**: %s\n", o.Requirement.ID, o.Requirement.Description)
			fmt.Fprintf(&b, "  - Source: `%s`\n", o.Requirement.Location())
			if o.Unexecuted {
				fmt.Fprintf(&b, "  - %s\n", o.Detail)
			}
		}
	}

	if len(r.Diagnostics) > 0 {
		b.WriteString("\n## Diagnostics\n\n")
		for _, d := range r.Diagnostics {
			fmt.Fprintf(&b, "- `%s`: %s\n", d.Kind, d.Message)
		}
	}

	b.WriteString("\n## All Requirements\n\n")
	b.WriteString("| Status | ID | Description | Test |\n|---|---|---|---|\n")
	for _, o := range r.Outcomes {
		ref := testRef(o)
		if ref != "" {
			ref = "`" + ref + "`"
		}
		fmt.Fprintf(&b, "| %s %s | %s | %s | %s |\n",
			Symbol(o.Status), o.Status, o.Requirement.ID, escapeCell(o.Requirement.Description), ref)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
