package harness

import (
	"context"
	"io"
	"runtime/debug"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/deixis/apptest/internal/caseerr"
	"github.com/deixis/apptest/internal/report"
	"github.com/deixis/apptest/internal/verify"
)

// CaseRunner runs one test case. Implemented by Executor.
type CaseRunner interface {
	Run(ctx context.Context, tc TestCase) []verify.Result
}

// Cleaner releases the batch's ephemeral output. Implemented by
// paths.Resolver.
type Cleaner interface {
	Cleanup() error
}

// Batch runs test cases sequentially and records their verdicts.
type Batch struct {
	Suite   string
	Cases   CaseRunner
	Cleaner Cleaner         // optional
	Printer *report.Printer // optional
	Logger  *log.Logger     // optional
}

// RunAll runs every case in order and returns the report. No case failure
// stops the batch. A panic while running a case is recorded as a harness
// fault on that case. The Cleaner runs after the last verdict is recorded,
// whatever the outcome.
func (b *Batch) RunAll(ctx context.Context, cases []TestCase) *report.RunReport {
	rep := &report.RunReport{
		ID:      uuid.New().String(),
		Suite:   b.Suite,
		Started: time.Now(),
		Cases:   make([]report.CaseReport, 0, len(cases)),
	}
	defer b.cleanup()

	for _, tc := range cases {
		cr := report.CaseReport{
			Name:        tc.Name,
			CommandLine: tc.CommandLine(),
			Status:      report.Running,
		}
		start := time.Now()
		if err := ctx.Err(); err != nil {
			cr.Results = []verify.Result{verify.Fail("run", caseerr.Wrap(caseerr.Timeout, err, "not started"))}
		} else {
			cr.Results, cr.Fault = b.runCase(ctx, tc)
		}
		cr.Duration = time.Since(start)
		cr.Status = verdict(cr.Results)

		b.logger().Debug("case finished", "case", tc.Name, "status", cr.Status, "duration", cr.Duration)
		rep.Cases = append(rep.Cases, cr)
		if b.Printer != nil {
			b.Printer.Case(cr)
		}
	}
	rep.Finished = time.Now()
	return rep
}

// runCase isolates one case. Errors already arrive as failing results;
// a panic means the harness is broken and is reported as such.
func (b *Batch) runCase(ctx context.Context, tc TestCase) (results []verify.Result, fault bool) {
	defer func() {
		if r := recover(); r != nil {
			b.logger().Error("harness panic", "case", tc.Name, "panic", r)
			err := caseerr.New(caseerr.HarnessFault, "panic: %v\n%s", r, debug.Stack())
			results = append(results, verify.Fail("harness", err))
			fault = true
		}
	}()
	return b.Cases.Run(ctx, tc), false
}

func (b *Batch) cleanup() {
	if b.Cleaner == nil {
		return
	}
	if err := b.Cleaner.Cleanup(); err != nil {
		b.logger().Warn("cleanup failed", "err", err)
	}
}

func (b *Batch) logger() *log.Logger {
	if b.Logger == nil {
		return log.New(io.Discard)
	}
	return b.Logger
}

// verdict is Passed only when there is at least one result and all of them
// passed.
func verdict(results []verify.Result) report.Status {
	if len(results) == 0 {
		return report.Failed
	}
	for _, r := range results {
		if !r.Passed {
			return report.Failed
		}
	}
	return report.Passed
}

// Summary prints the totals of rep through the batch's Printer.
func (b *Batch) Summary(rep *report.RunReport) {
	if b.Printer != nil {
		b.Printer.Summary(rep)
	}
}
