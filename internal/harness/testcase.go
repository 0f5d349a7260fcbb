// Package harness runs test cases against external programs and
// aggregates their verdicts.
package harness

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/deixis/apptest/internal/caseerr"
	"github.com/deixis/apptest/internal/transform"
	"github.com/deixis/apptest/internal/verify"
)

// DiffPair names a golden file, the output file compared with it, and the
// transforms applied to the output first.
type DiffPair struct {
	Golden     string
	Actual     string
	Transforms []transform.Transform
}

// TestCase describes one check of a program. Build it with NewTestCase;
// the executor never modifies it.
type TestCase struct {
	Name     string
	Program  string
	Args     []string
	Stdout   string // redirect target for stdout, optional
	Stderr   string // redirect target for stderr, optional
	Diffs    []DiffPair
	Verifier verify.Verifier // optional custom check
	Timeout  time.Duration   // optional, overrides the runner default

	// SetupErr records why the case could not be prepared (for example a
	// binary that was not found). Such a case fails without being launched.
	SetupErr error
}

// NewTestCase validates tc and returns a copy that shares no slices with it.
func NewTestCase(tc TestCase) (TestCase, error) {
	if err := tc.Validate(); err != nil {
		return TestCase{}, err
	}
	out := tc
	out.Args = slices.Clone(tc.Args)
	out.Diffs = make([]DiffPair, len(tc.Diffs))
	for i, d := range tc.Diffs {
		out.Diffs[i] = DiffPair{Golden: d.Golden, Actual: d.Actual, Transforms: slices.Clone(d.Transforms)}
	}
	return out, nil
}

// Validate reports every missing or contradictory field.
func (tc TestCase) Validate() error {
	var errs []error
	if tc.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if tc.Program == "" && tc.SetupErr == nil {
		errs = append(errs, errors.New("program is required"))
	}
	if tc.Stdout != "" && tc.Stdout == tc.Stderr {
		errs = append(errs, fmt.Errorf("stdout and stderr both redirect to %s", tc.Stdout))
	}
	if tc.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout %s is negative", tc.Timeout))
	}
	for i, d := range tc.Diffs {
		if d.Golden == "" {
			errs = append(errs, fmt.Errorf("diff[%d]: golden is required", i))
		}
		if d.Actual == "" {
			errs = append(errs, fmt.Errorf("diff[%d]: actual is required", i))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	name := tc.Name
	if name == "" {
		name = "<unnamed>"
	}
	return caseerr.Wrap(caseerr.InvalidCase, errors.Join(errs...), "test case %s", name)
}

// Argv returns the program followed by its arguments.
func (tc TestCase) Argv() []string {
	return append([]string{tc.Program}, tc.Args...)
}

// CommandLine returns the invocation as printed in the report.
func (tc TestCase) CommandLine() string {
	if tc.Program == "" {
		return tc.Name
	}
	return strings.Join(tc.Argv(), " ")
}
