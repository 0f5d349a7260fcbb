// Package workflow loads a suite, runs its cases and reports the verdicts.
// It is consumed by both the MCP server and the CLI commands.
package workflow

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/deixis/apptest/internal/caseerr"
	"github.com/deixis/apptest/internal/harness"
	"github.com/deixis/apptest/internal/paths"
	"github.com/deixis/apptest/internal/report"
	"github.com/deixis/apptest/internal/suite"
	"github.com/deixis/apptest/internal/verify"
)

// Engine holds shared dependencies for all workflow operations.
type Engine struct {
	Runner verify.CommandRunner
	Locate suite.LocateFunc // optional, defaults to locate.Locate
	Logger *log.Logger      // optional
}

// Request names the suite to run and the trees it runs against.
type Request struct {
	SourceRoot string // holds the fixture directory
	BinaryRoot string // holds the built programs
	Suite      string // suite file; empty means the default file in TestsDir
	TestsDir   string // fixture directory used to find the default suite
	Cases      []string
}

// Plan is a suite expanded into cases, ready to run.
type Plan struct {
	SuitePath string
	File      *suite.File
	Resolver  *paths.Resolver
	Cases     []harness.TestCase
}

// SuitePath returns the absolute path of the suite file for req.
//
// An explicit Suite is taken relative to the working directory. Otherwise
// the default file is looked up in SourceRoot/TestsDir.
func (e *Engine) SuitePath(req Request) (string, error) {
	p := req.Suite
	if p == "" {
		p = suite.DefaultPath(filepath.Join(req.SourceRoot, req.TestsDir))
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", caseerr.Wrap(caseerr.Environment, err, "resolving suite path %s", p)
	}
	return abs, nil
}

// Plan loads and expands the suite for req. The caller owns the returned
// Resolver and must call its Cleanup.
func (e *Engine) Plan(req Request) (*Plan, error) {
	for _, dir := range []struct{ flag, path string }{
		{"source root", req.SourceRoot},
		{"binary root", req.BinaryRoot},
	} {
		if err := requireDir(dir.flag, dir.path); err != nil {
			return nil, err
		}
	}

	suitePath, err := e.SuitePath(req)
	if err != nil {
		return nil, err
	}
	f, err := suite.Load(suitePath)
	if err != nil {
		return nil, err
	}

	// Fixtures default to the directory holding the suite file.
	testsDir := f.TestsDir
	base := req.SourceRoot
	if testsDir == "" {
		base, testsDir = "", filepath.Dir(suitePath)
	}
	res, err := paths.New(base, testsDir)
	if err != nil {
		return nil, caseerr.Wrap(caseerr.Environment, err, "suite %s", f.Name)
	}

	b := &suite.Builder{
		Resolver:   res,
		BinaryRoot: req.BinaryRoot,
		Runner:     e.Runner,
		Locate:     e.Locate,
		Logger:     e.Logger,
	}
	cases, err := b.Build(f)
	if err == nil {
		cases, err = filter(cases, req.Cases)
	}
	if err != nil {
		if cerr := res.Cleanup(); cerr != nil {
			e.logger().Warn("cleanup failed", "err", cerr)
		}
		return nil, err
	}

	e.logger().Debug("loaded suite", "suite", f.Name, "path", suitePath, "cases", len(cases))
	return &Plan{SuitePath: suitePath, File: f, Resolver: res, Cases: cases}, nil
}

// Run executes every planned case of req in order. Progress and the
// summary are written through p, which may be nil. The returned error is
// non-nil only when the run could not start; case failures are recorded in
// the report.
func (e *Engine) Run(ctx context.Context, req Request, p *report.Printer) (*report.RunReport, error) {
	plan, err := e.Plan(req)
	if err != nil {
		return nil, err
	}
	if p != nil {
		p.Header(plan.File.Name)
	}

	b := &harness.Batch{
		Suite:   plan.File.Name,
		Cases:   &harness.Executor{Runner: e.Runner, Logger: e.Logger},
		Cleaner: plan.Resolver,
		Printer: p,
		Logger:  e.Logger,
	}
	rep := b.RunAll(ctx, plan.Cases)
	b.Summary(rep)
	return rep, nil
}

// List returns the command line of every planned case without running
// anything. Cases that could not be prepared carry their setup error.
func (e *Engine) List(req Request) ([]Listing, error) {
	plan, err := e.Plan(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := plan.Resolver.Cleanup(); err != nil {
			e.logger().Warn("cleanup failed", "err", err)
		}
	}()

	out := make([]Listing, 0, len(plan.Cases))
	for _, tc := range plan.Cases {
		out = append(out, Listing{Name: tc.Name, CommandLine: tc.CommandLine(), SetupErr: tc.SetupErr})
	}
	return out, nil
}

// Listing describes one planned case.
type Listing struct {
	Name        string
	CommandLine string
	SetupErr    error
}

func (e *Engine) logger() *log.Logger {
	if e.Logger == nil {
		return log.New(io.Discard)
	}
	return e.Logger
}

// filter keeps the cases whose name matches one of patterns (path.Match
// syntax). No patterns keeps everything. A pattern matching nothing is an
// error so typos do not silently skip cases.
func filter(cases []harness.TestCase, patterns []string) ([]harness.TestCase, error) {
	if len(patterns) == 0 {
		return cases, nil
	}
	matched := make([]bool, len(patterns))
	var out []harness.TestCase
	for _, tc := range cases {
		keep := false
		for i, p := range patterns {
			ok, err := path.Match(p, tc.Name)
			if err != nil {
				return nil, caseerr.Wrap(caseerr.InvalidCase, err, "case pattern %q", p)
			}
			if ok {
				matched[i] = true
				keep = true
			}
		}
		if keep {
			out = append(out, tc)
		}
	}
	for i, ok := range matched {
		if !ok {
			return nil, caseerr.New(caseerr.InvalidCase, "case pattern %q matches no case", patterns[i])
		}
	}
	return out, nil
}

func requireDir(what, dir string) error {
	if dir == "" {
		return caseerr.New(caseerr.Environment, "%s is required", what)
	}
	fi, err := os.Stat(dir)
	if err != nil {
		return caseerr.Wrap(caseerr.Environment, err, "%s", what)
	}
	if !fi.IsDir() {
		return caseerr.New(caseerr.Environment, "%s %s is not a directory", what, dir)
	}
	return nil
}

// String formats the listing as apptest list prints it.
func (l Listing) String() string {
	if l.SetupErr != nil {
		return fmt.Sprintf("%s (%s)", l.CommandLine, caseerr.Message(l.SetupErr))
	}
	return l.CommandLine
}
