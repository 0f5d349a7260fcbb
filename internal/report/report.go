// Package report records the verdicts of a batch run and renders them.
package report

import (
	"time"

	"github.com/deixis/apptest/internal/caseerr"
	"github.com/deixis/apptest/internal/verify"
)

// Status is the lifecycle state of one test case.
type Status string

const (
	Pending Status = "pending"
	Running Status = "running"
	Passed  Status = "passed"
	Failed  Status = "failed"
)

// CaseReport holds the verdict of one test case.
type CaseReport struct {
	Name        string
	CommandLine string
	Status      Status
	Results     []verify.Result
	Duration    time.Duration
	Fault       bool // the harness itself failed while running the case
}

// Failures returns the failing results of the case.
func (c *CaseReport) Failures() []verify.Result {
	var out []verify.Result
	for _, r := range c.Results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// RunReport aggregates the verdicts of a batch, in submission order.
type RunReport struct {
	ID       string
	Suite    string
	Started  time.Time
	Finished time.Time
	Cases    []CaseReport
}

// Total returns the number of recorded cases.
func (r *RunReport) Total() int {
	return len(r.Cases)
}

// Failed returns the number of failed cases.
func (r *RunReport) Failed() int {
	n := 0
	for _, c := range r.Cases {
		if c.Status == Failed {
			n++
		}
	}
	return n
}

// Succeeded returns the number of passed cases.
func (r *RunReport) Succeeded() int {
	n := 0
	for _, c := range r.Cases {
		if c.Status == Passed {
			n++
		}
	}
	return n
}

// Faults returns the number of cases that failed because of a harness fault.
func (r *RunReport) Faults() int {
	n := 0
	for _, c := range r.Cases {
		if c.Fault {
			n++
		}
	}
	return n
}

// ExitCode returns the process exit status for the run: 0 when every case
// passed, 10 when the harness faulted, 1 otherwise.
func (r *RunReport) ExitCode() int {
	switch {
	case r.Faults() > 0:
		return caseerr.HarnessFault.ExitCode()
	case r.Failed() > 0:
		return 1
	default:
		return 0
	}
}

// Case returns the report of the named case.
func (r *RunReport) Case(name string) (*CaseReport, bool) {
	for i := range r.Cases {
		if r.Cases[i].Name == name {
			return &r.Cases[i], true
		}
	}
	return nil, false
}
