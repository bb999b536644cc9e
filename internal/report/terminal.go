// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pdiddy/spectrace/pkg/types"
)

type palette struct {
	title  lipgloss.Style
	dim    lipgloss.Style
	bold   lipgloss.Style
	status map[types.Status]lipgloss.Style
}

func newPalette(w io.Writer) palette {
	r := lipgloss.NewRenderer(w)
	return palette{
		title: r.NewStyle().Bold(true).Underline(true),
		dim:   r.NewStyle().Foreground(lipgloss.Color("241")),
		bold:  r.NewStyle().Bold(true),
		status: map[types.Status]lipgloss.Style{
			types.StatusPassing: r.NewStyle().Foreground(lipgloss.Color("42")),
			types.StatusFailing: r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
			types.StatusMissing: r.NewStyle().Foreground(lipgloss.Color("214")),
			types.StatusManual:  r.NewStyle().Foreground(lipgloss.Color("39")),
			types.StatusSkipped: r.NewStyle().Foreground(lipgloss.Color("241")),
		},
	}
}

// Terminal writes a human-readable report. Colours are only emitted when w
// is a terminal.
func Terminal(w io.Writer, r *types.Report, opts Options) error {
	p := newPalette(w)
	var b strings.Builder

	b.WriteString(p.title.Render("Specification Verification Report"))
	b.WriteString("\n\n")

	idWidth := 0
	for _, o := range r.Outcomes {
		idWidth = max(idWidth, len(o.Requirement.ID))
	}

	for _, o := range r.Outcomes {
		st := p.status[o.Status]
		fmt.Fprintf(&b, "  %s %-*s  %s", st.Render(Symbol(o.Status)), idWidth, o.Requirement.ID, o.Requirement.Description)
		if ref := testRef(o); ref != "" && (opts.Verbose || o.Status == types.StatusFailing) {
			b.WriteString("  " + p.dim.Render(ref))
		}
		b.WriteString("\n")

		showDetail := o.Status == types.StatusFailing || o.Unexecuted || opts.Verbose
		if showDetail && o.Detail != "" {
			for _, line := range strings.Split(o.Detail, "\n") {
				b.WriteString("      " + st.Render(line) + "\n")
			}
		}
		if opts.Verbose {
			b.WriteString("      " + p.dim.Render(o.Requirement.Location()) + "\n")
			if c := o.Contract; c != nil {
				summary := fmt.Sprintf("contract %s: %d requires, %d ensures", c.Func, c.Requires, c.Ensures)
				if c.Calls > 0 {
					summary += fmt.Sprintf(", %d calls, %d violations", c.Calls, c.Violations)
				}
				fmt.Fprintf(&b, "      %s\n", p.dim.Render(summary))
			}
		}
	}

	if len(r.Diagnostics) > 0 {
		b.WriteString("\n" + p.bold.Render("Diagnostics") + "\n")
		for _, d := range r.Diagnostics {
			loc := d.File
			if d.Line > 0 {
				loc = fmt.Sprintf("%s:%d", d.File, d.Line)
			}
			fmt.Fprintf(&b, "  %s %s\n", p.dim.Render(loc), d.Message)
		}
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s, %s, %s, %s, %s  (%.1f%% coverage)\n",
		p.bold.Render(fmt.Sprintf("%d requirements:", r.Total)),
		p.status[types.StatusPassing].Render(fmt.Sprintf("%d passing", r.Passing)),
		p.status[types.StatusFailing].Render(fmt.Sprintf("%d failing", r.Failing)),
		p.status[types.StatusMissing].Render(fmt.Sprintf("%d missing", r.Missing)),
		p.status[types.StatusManual].Render(fmt.Sprintf("%d manual", r.Manual)),
		p.status[types.StatusSkipped].Render(fmt.Sprintf("%d skipped", r.Skipped)),
		r.CoveragePercent())
	if r.Unexecuted > 0 {
		fmt.Fprintf(&b, "%s\n", p.dim.Render(fmt.Sprintf("%d missing requirements have tests that did not run", r.Unexecuted)))
	}

	switch code := r.ExitCode(opts.FailOnMissing); code {
	case 0:
		b.WriteString(p.status[types.StatusPassing].Render("PASS") + "\n")
	case 1:
		b.WriteString(p.status[types.StatusFailing].Render("FAIL: failing requirements") + "\n")
	default:
		b.WriteString(p.status[types.StatusMissing].Render("FAIL: missing requirements") + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
