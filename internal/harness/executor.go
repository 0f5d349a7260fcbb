package harness

import (
	"context"
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/deixis/apptest/internal/caseerr"
	"github.com/deixis/apptest/internal/runner"
	"github.com/deixis/apptest/internal/verify"
)

// Executor runs a single test case to completion.
type Executor struct {
	Runner verify.CommandRunner
	Logger *log.Logger
}

// Run launches the case's program, waits for it, and evaluates its checks.
// Every failure is returned as a failing Result; Run itself never fails.
//
// A case that cannot be launched, times out, or exits non-zero is not
// checked further. Otherwise every diff pair is evaluated, then the custom
// verifier. A case with neither passes on a zero exit status alone.
func (e *Executor) Run(ctx context.Context, tc TestCase) []verify.Result {
	if tc.SetupErr != nil {
		return []verify.Result{verify.Fail("setup", tc.SetupErr)}
	}

	e.logger().Debug("running case", "case", tc.Name, "cmd", tc.CommandLine())
	res, err := e.Runner.Run(ctx, runner.Command{
		Argv:    tc.Argv(),
		Stdout:  tc.Stdout,
		Stderr:  tc.Stderr,
		Timeout: tc.Timeout,
	})
	if err != nil {
		return []verify.Result{verify.Fail("run", err)}
	}
	if res.ExitCode != 0 {
		err := caseerr.New(caseerr.NonZeroExit, "%s exited with status %d%s",
			tc.Program, res.ExitCode, stderrTail(res.Stderr))
		return []verify.Result{verify.Fail("exit", err)}
	}

	results := []verify.Result{verify.Pass("exit", "")}
	for _, d := range tc.Diffs {
		results = append(results, verify.Diff{Golden: d.Golden, Actual: d.Actual, Transforms: d.Transforms}.Evaluate(ctx))
	}
	if tc.Verifier != nil {
		results = append(results, tc.Verifier.Evaluate(ctx))
	}
	return results
}

func (e *Executor) logger() *log.Logger {
	if e.Logger == nil {
		return log.New(io.Discard)
	}
	return e.Logger
}

const stderrTailLines = 10

// stderrTail formats the last lines of a failed program's stderr for the
// diagnostic.
func stderrTail(stderr []byte) string {
	if len(stderr) == 0 {
		return ""
	}
	lines := strings.Split(strings.TrimRight(string(stderr), "\n"), "\n")
	if len(lines) > stderrTailLines {
		lines = lines[len(lines)-stderrTailLines:]
	}
	return "\n--- stderr ---\n" + strings.Join(lines, "\n")
}
