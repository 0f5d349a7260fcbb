package verify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/deixis/apptest/internal/caseerr"
	"github.com/deixis/apptest/internal/transform"
)

// DefaultDiffLines caps the unified diff included in a mismatch message.
const DefaultDiffLines = 40

// Diff compares an actual output file with its golden counterpart. The
// transforms are applied to the actual content only; golden files are
// stored already normalised.
type Diff struct {
	Golden     string
	Actual     string
	Transforms []transform.Transform
	MaxLines   int // unified diff lines kept in the message; 0 means DefaultDiffLines
}

// Evaluate implements Verifier.
func (d Diff) Evaluate(_ context.Context) Result {
	check := "diff " + filepath.Base(d.Actual)
	if err := d.compare(); err != nil {
		return Fail(check, err)
	}
	return Pass(check, "")
}

func (d Diff) compare() error {
	want, err := os.ReadFile(d.Golden)
	if err != nil {
		return caseerr.Wrap(caseerr.DiffMismatch, err, "reading golden file")
	}
	got, err := os.ReadFile(d.Actual)
	if err != nil {
		return caseerr.Wrap(caseerr.DiffMismatch, err, "reading actual output")
	}

	golden := normalizeNewlines(string(want))
	actual := transform.Apply(normalizeNewlines(string(got)), d.Transforms...)
	if golden == actual {
		return nil
	}

	line, wantLine, gotLine := firstDifference(golden, actual)
	var b strings.Builder
	fmt.Fprintf(&b, "%s differs from %s at line %d:\n", d.Actual, d.Golden, line)
	fmt.Fprintf(&b, "  want: %q\n", wantLine)
	fmt.Fprintf(&b, "  got:  %q\n", gotLine)

	ud, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(golden),
		B:        difflib.SplitLines(actual),
		FromFile: d.Golden,
		ToFile:   d.Actual,
		Context:  3,
	})
	if err == nil && ud != "" {
		b.WriteString(truncateLines(ud, d.maxLines()))
	}
	return caseerr.New(caseerr.DiffMismatch, "%s", strings.TrimRight(b.String(), "\n"))
}

func (d Diff) maxLines() int {
	if d.MaxLines > 0 {
		return d.MaxLines
	}
	return DefaultDiffLines
}

// firstDifference returns the 1-based number of the first line that
// differs, and both versions of it. A missing line is reported as "<EOF>".
func firstDifference(a, b string) (int, string, string) {
	al := strings.Split(a, "\n")
	bl := strings.Split(b, "\n")
	for i := 0; i < len(al) || i < len(bl); i++ {
		x, y := "<EOF>", "<EOF>"
		if i < len(al) {
			x = al[i]
		}
		if i < len(bl) {
			y = bl[i]
		}
		if x != y {
			return i + 1, x, y
		}
	}
	return 0, "", ""
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

func truncateLines(s string, maxLines int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= maxLines {
		return strings.Join(lines, "\n")
	}
	result := strings.Join(lines[:maxLines], "\n")
	result += fmt.Sprintf("\n... (%d more lines)", len(lines)-maxLines)
	return result
}
