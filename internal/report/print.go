package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

const rule = "=============================="

// Printer renders progress and the final summary for a human reader.
type Printer struct {
	w       io.Writer
	verbose bool

	ok   *color.Color
	fail *color.Color
	dim  *color.Color
}

// NewPrinter returns a Printer writing to w. With colored false, no escape
// sequences are emitted regardless of the terminal.
func NewPrinter(w io.Writer, colored, verbose bool) *Printer {
	p := &Printer{
		w:       w,
		verbose: verbose,
		ok:      color.New(color.FgGreen, color.Bold),
		fail:    color.New(color.FgRed, color.Bold),
		dim:     color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.ok, p.fail, p.dim} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Header prints the banner shown before the first case runs.
func (p *Printer) Header(suite string) {
	title := "Executing test for " + suite
	fmt.Fprintln(p.w, title)
	fmt.Fprintln(p.w, strings.Repeat("=", len(title)))
	fmt.Fprintln(p.w)
}

// Case prints the command line and verdict of a finished case. Failed
// checks are listed below the verdict; passing checks only when verbose.
func (p *Printer) Case(c CaseReport) {
	fmt.Fprintln(p.w, c.CommandLine)
	if c.Status == Passed {
		p.ok.Fprintln(p.w, "OK")
	} else {
		p.fail.Fprintln(p.w, "FAILED")
	}
	for _, r := range c.Results {
		switch {
		case !r.Passed:
			fmt.Fprintf(p.w, "  %s [%s]\n", r.Check, r.Kind)
			if r.Message != "" {
				fmt.Fprintln(p.w, indent(r.Message, "    "))
			}
		case p.verbose:
			msg := r.Check + ": ok"
			if r.Message != "" {
				msg += " (" + r.Message + ")"
			}
			p.dim.Fprintln(p.w, "  "+msg)
		}
	}
}

// Summary prints the totals block.
func (p *Printer) Summary(r *RunReport) {
	fmt.Fprintln(p.w, rule)
	fmt.Fprintf(p.w, "     total tests: %d\n", r.Total())
	fmt.Fprintf(p.w, "    failed tests: %d\n", r.Failed())
	fmt.Fprintf(p.w, "successful tests: %d\n", r.Succeeded())
	fmt.Fprintln(p.w, rule)
	if n := r.Faults(); n > 0 {
		p.fail.Fprintf(p.w, "harness faults: %d\n", n)
	}
}

// Format renders a whole report as text, as Summary and Case would print it.
func Format(r *RunReport, verbose bool) string {
	var b strings.Builder
	p := NewPrinter(&b, false, verbose)
	fmt.Fprintf(&b, "Run: %s\n", r.ID)
	if r.Suite != "" {
		fmt.Fprintf(&b, "Suite: %s\n", r.Suite)
	}
	fmt.Fprintln(&b)
	for _, c := range r.Cases {
		p.Case(c)
	}
	p.Summary(r)
	return b.String()
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
