// Package transform rewrites captured program output into a host
// independent form before it is compared with a golden file.
package transform

import (
	"fmt"
	"regexp"
	"strings"
)

// Transform is a pure text rewrite rule.
type Transform interface {
	Apply(text string) string
}

// Apply runs ts over text in order, each one seeing the previous output.
func Apply(text string, ts ...Transform) string {
	for _, t := range ts {
		text = t.Apply(text)
	}
	return text
}

// Anchor restricts where a Replace matches.
type Anchor int

const (
	// Anywhere matches every occurrence.
	Anywhere Anchor = iota
	// Left matches only at the start of a line.
	Left
	// Right matches only at the end of a line.
	Right
)

func (a Anchor) String() string {
	switch a {
	case Anywhere:
		return "anywhere"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("Anchor(%d)", int(a))
	}
}

// ParseAnchor parses the textual form used in suite files. The empty string
// is Anywhere.
func ParseAnchor(s string) (Anchor, error) {
	switch strings.ToLower(s) {
	case "", "anywhere":
		return Anywhere, nil
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	default:
		return Anywhere, fmt.Errorf("unknown anchor %q (want anywhere, left or right)", s)
	}
}

// Replace substitutes the literal Old with New.
//
// Anchored matches are evaluated per line, excluding the newline. When New
// does not contain Old the rewrite repeats until Old no longer matches, so
// applying a Replace to its own output changes nothing.
type Replace struct {
	Old    string
	New    string
	Anchor Anchor
}

// StripPath removes the path prefix p from the output.
func StripPath(p string, anchor Anchor) Replace {
	return Replace{Old: p, Anchor: anchor}
}

// Apply implements Transform.
func (r Replace) Apply(text string) string {
	if r.Old == "" {
		return text
	}
	fixpoint := !strings.Contains(r.New, r.Old)
	if r.Anchor == Anywhere {
		out := strings.ReplaceAll(text, r.Old, r.New)
		for fixpoint && strings.Contains(out, r.Old) {
			out = strings.ReplaceAll(out, r.Old, r.New)
		}
		return out
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = r.applyLine(line, fixpoint)
	}
	return strings.Join(lines, "\n")
}

func (r Replace) applyLine(line string, fixpoint bool) string {
	// A trailing \r belongs to the line terminator.
	cr := ""
	if strings.HasSuffix(line, "\r") {
		line, cr = line[:len(line)-1], "\r"
	}
	for {
		var next string
		switch r.Anchor {
		case Left:
			if !strings.HasPrefix(line, r.Old) {
				return line + cr
			}
			next = r.New + line[len(r.Old):]
		case Right:
			if !strings.HasSuffix(line, r.Old) {
				return line + cr
			}
			next = line[:len(line)-len(r.Old)] + r.New
		default:
			return line + cr
		}
		if !fixpoint || next == line {
			return next + cr
		}
		line = next
	}
}

func (r Replace) String() string {
	return fmt.Sprintf("replace(%q -> %q, %s)", r.Old, r.New, r.Anchor)
}

// exponentRE matches a decimal mantissa followed by an exponent. The leading
// group keeps tokens that are glued to identifier characters out.
var exponentRE = regexp.MustCompile(`(^|[^0-9A-Za-z_.])([-+]?(?:[0-9]+(?:\.[0-9]*)?|\.[0-9]+))[eE](?:\+|(-))?0*([0-9]+)\b`)

// NormalizeExponents rewrites floating point exponents into a single form:
// lowercase e, no plus sign, no leading zeros. "1e+005", "1E5" and "1e05"
// all become "1e5"; "2.5e-007" becomes "2.5e-7".
type NormalizeExponents struct{}

// Apply implements Transform.
func (NormalizeExponents) Apply(text string) string {
	return exponentRE.ReplaceAllString(text, "${1}${2}e${3}${4}")
}

func (NormalizeExponents) String() string {
	return "normalize-exponents"
}
