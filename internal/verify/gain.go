package verify

import (
	"context"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/deixis/apptest/internal/caseerr"
	"github.com/deixis/apptest/internal/runner"
)

// gainLine is the zero-based stdout line holding the gain value in the
// metric tool's positional report format.
const gainLine = 2

// GainChecker runs the metric tool on the pre- and post-correction reads
// and requires the reported gain to reach MinGain.
type GainChecker struct {
	Tool      string
	Reference string
	Pre       string
	Post      string
	MinGain   float64

	// Field, when set, names a "Field: VALUE" line to read the gain from.
	// Output without such a line falls back to the positional format.
	Field string

	Runner CommandRunner
	Logger *log.Logger
}

// Command returns the metric tool invocation.
func (g GainChecker) Command() runner.Command {
	return runner.Command{Argv: []string{g.Tool, "-g", g.Reference, "--pre", g.Pre, "--post", g.Post}}
}

// Evaluate implements Verifier.
func (g GainChecker) Evaluate(ctx context.Context) Result {
	const check = "gain"
	gain, err := g.measure(ctx)
	if err != nil {
		return Fail(check, err)
	}
	if gain < g.MinGain {
		return Fail(check, caseerr.New(caseerr.GainBelowThreshold,
			"gain too low: expected >= %s, got %s", FormatGain(g.MinGain), FormatGain(gain)))
	}
	return Pass(check, "gain "+FormatGain(gain)+" >= "+FormatGain(g.MinGain))
}

func (g GainChecker) measure(ctx context.Context) (float64, error) {
	cmd := g.Command()
	g.logger().Info("computing gain", "cmd", cmd.String())

	res, err := g.Runner.Run(ctx, cmd)
	if err != nil {
		return 0, err
	}
	if res.ExitCode != 0 {
		// Output of a failed run is not trusted.
		return 0, caseerr.New(caseerr.ToolExecutionError, "%s exited with status %d", g.Tool, res.ExitCode)
	}
	return ParseGain(res.Stdout, g.Field)
}

func (g GainChecker) logger() *log.Logger {
	if g.Logger == nil {
		return log.New(io.Discard)
	}
	return g.Logger
}

// ParseGain extracts the gain value from metric tool output.
//
// With field set, a line of the form "field: VALUE" or "field=VALUE" takes
// precedence. Otherwise the first whitespace-separated token of the third
// line is the gain.
func ParseGain(stdout []byte, field string) (float64, error) {
	lines := strings.Split(strings.ReplaceAll(string(stdout), "\r\n", "\n"), "\n")

	if field != "" {
		for _, line := range lines {
			if v, ok := labeledValue(line, field); ok {
				return parseGainToken(v)
			}
		}
	}

	if len(lines) <= gainLine {
		return 0, caseerr.New(caseerr.MalformedMetricOutput, "expected at least %d lines of output, got %d", gainLine+1, countLines(lines))
	}
	tokens := strings.Fields(lines[gainLine])
	if len(tokens) == 0 {
		return 0, caseerr.New(caseerr.MalformedMetricOutput, "line %d of output is empty", gainLine+1)
	}
	return parseGainToken(tokens[0])
}

func labeledValue(line, field string) (string, bool) {
	line = strings.TrimSpace(line)
	if len(line) <= len(field) || !strings.EqualFold(line[:len(field)], field) {
		return "", false
	}
	rest := strings.TrimSpace(line[len(field):])
	if rest == "" || (rest[0] != ':' && rest[0] != '=') {
		return "", false
	}
	tokens := strings.Fields(rest[1:])
	if len(tokens) == 0 {
		return "", false
	}
	return tokens[0], true
}

func parseGainToken(tok string) (float64, error) {
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, caseerr.New(caseerr.MalformedMetricOutput, "gain %q is not a finite number", tok)
	}
	return v, nil
}

// countLines ignores the empty element produced by a trailing newline.
func countLines(lines []string) int {
	n := len(lines)
	if n > 0 && lines[n-1] == "" {
		n--
	}
	return n
}

// FormatGain prints v with the shortest exact representation and at least
// one decimal, so 40 prints as "40.0" and 55.3 as "55.3".
func FormatGain(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
