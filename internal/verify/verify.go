// Package verify decides whether a test case produced acceptable output.
//
// Every check is a Verifier. Golden-file comparison (Diff) and the metric
// threshold check (GainChecker) are the two built-in implementations; the
// executor treats them identically.
package verify

import (
	"context"

	"github.com/deixis/apptest/internal/caseerr"
	"github.com/deixis/apptest/internal/runner"
)

// Verifier evaluates one check of a finished test case.
type Verifier interface {
	Evaluate(ctx context.Context) Result
}

// Func adapts a plain function to a Verifier.
type Func func(ctx context.Context) Result

// Evaluate implements Verifier.
func (f Func) Evaluate(ctx context.Context) Result {
	return f(ctx)
}

// CommandRunner executes commands. Implemented by runner.Runner.
type CommandRunner interface {
	Run(ctx context.Context, cmd runner.Command) (*runner.Result, error)
}

// Result is the outcome of one check.
type Result struct {
	Check   string       // what was checked, e.g. "diff reads.i1.stdout"
	Passed  bool
	Kind    caseerr.Kind // empty when Passed
	Message string       // human-readable diagnostic
}

// Pass returns a passing Result for check.
func Pass(check, message string) Result {
	return Result{Check: check, Passed: true, Message: message}
}

// Fail converts err into a failing Result for check.
func Fail(check string, err error) Result {
	return Result{
		Check:   check,
		Kind:    caseerr.KindOf(err),
		Message: caseerr.Message(err),
	}
}
