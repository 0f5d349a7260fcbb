package suite

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/deixis/apptest/internal/harness"
	"github.com/deixis/apptest/internal/locate"
	"github.com/deixis/apptest/internal/paths"
	"github.com/deixis/apptest/internal/transform"
	"github.com/deixis/apptest/internal/verify"
)

// LocateFunc finds an executable under a build tree. locate.Locate is the
// default.
type LocateFunc func(buildRoot, subpath, name string) (string, error)

// Builder turns a validated suite into test cases for one batch.
type Builder struct {
	Resolver   *paths.Resolver
	BinaryRoot string
	Runner     verify.CommandRunner // runs the gain tool
	Locate     LocateFunc           // optional
	Logger     *log.Logger          // optional
}

// Build expands every case of f in document order.
//
// A binary that cannot be located does not fail the build: the cases that
// need it carry the lookup error and fail without being launched. Only an
// unusable output area is returned as an error.
func (b *Builder) Build(f *File) ([]harness.TestCase, error) {
	bins := make(map[string]binary, len(f.Binaries))
	for _, name := range sortedKeys(f.Binaries) {
		path, err := b.locate()(b.BinaryRoot, f.BinaryDir, f.Binaries[name])
		if err != nil {
			b.logger().Warn("binary not found", "binary", name, "err", err)
		} else {
			b.logger().Debug("located binary", "binary", name, "path", path)
		}
		bins[name] = binary{path: path, err: err}
	}

	lists, err := b.transformLists(f)
	if err != nil {
		return nil, err
	}

	var cases []harness.TestCase
	for i, c := range f.Cases {
		for j, vars := range c.matrixEntries() {
			ec, err := c.expand(vars)
			if err != nil {
				return nil, fmt.Errorf("cases[%d] matrix[%d]: %w", i, j, err)
			}
			if ec.Timeout == "" {
				ec.Timeout = f.Timeout
			}
			tc, err := b.buildCase(ec, bins, lists)
			if err != nil {
				return nil, fmt.Errorf("case %s: %w", ec.Name, err)
			}
			cases = append(cases, tc)
		}
	}
	return cases, nil
}

type binary struct {
	path string
	err  error
}

func (b *Builder) buildCase(c CaseSpec, bins map[string]binary, lists map[string][]transform.Transform) (harness.TestCase, error) {
	tc := harness.TestCase{Name: c.Name}

	prog := bins[c.Program]
	tc.Program, tc.SetupErr = prog.path, prog.err

	ex := &expander{resolver: b.Resolver, bins: bins}
	for _, a := range c.Args {
		tc.Args = append(tc.Args, ex.expand(a))
	}
	var err error
	if tc.Stdout, err = b.output(c.Stdout); err != nil {
		return harness.TestCase{}, err
	}
	if tc.Stderr, err = b.output(c.Stderr); err != nil {
		return harness.TestCase{}, err
	}
	for _, d := range c.Diff {
		actual, err := b.Resolver.OutputPath(d.Actual)
		if err != nil {
			return harness.TestCase{}, err
		}
		tc.Diffs = append(tc.Diffs, harness.DiffPair{
			Golden:     b.Resolver.InputPath(d.Golden),
			Actual:     actual,
			Transforms: lists[d.Transforms],
		})
	}
	if c.Timeout != "" {
		tc.Timeout, _ = parseTimeout(c.Timeout)
	}

	if g := c.Gain; g != nil {
		tool := bins[g.Tool]
		if tool.err != nil && tc.SetupErr == nil {
			tc.SetupErr = tool.err
		}
		post, err := b.Resolver.OutputPath(g.Post)
		if err != nil {
			return harness.TestCase{}, err
		}
		minGain, _ := strconv.ParseFloat(g.Min, 64)
		tc.Verifier = verify.GainChecker{
			Tool:      tool.path,
			Reference: b.Resolver.InputPath(g.Reference),
			Pre:       b.Resolver.InputPath(g.Pre),
			Post:      post,
			MinGain:   minGain,
			Field:     g.Field,
			Runner:    b.Runner,
			Logger:    b.Logger,
		}
	}

	if ex.err != nil {
		return harness.TestCase{}, ex.err
	}
	if tc.SetupErr == nil {
		tc.SetupErr = ex.setupErr
	}
	return harness.NewTestCase(tc)
}

func (b *Builder) output(name string) (string, error) {
	if name == "" {
		return "", nil
	}
	return b.Resolver.OutputPath(name)
}

// transformLists builds every named transform list. Lists are built once
// and shared by all cases referencing them.
func (b *Builder) transformLists(f *File) (map[string][]transform.Transform, error) {
	if len(f.Transforms) == 0 {
		return nil, nil
	}
	outDir, err := b.Resolver.OutputDir()
	if err != nil {
		return nil, err
	}
	dirs := strings.NewReplacer(
		"{tests_dir}", b.Resolver.FixtureDir()+string(os.PathSeparator),
		"{out_dir}", outDir+string(os.PathSeparator),
	)

	lists := make(map[string][]transform.Transform, len(f.Transforms))
	for _, name := range sortedKeys(f.Transforms) {
		var ts []transform.Transform
		for _, spec := range f.Transforms[name] {
			anchor, _ := transform.ParseAnchor(spec.Anchor)
			switch {
			case spec.NormalizeExponents:
				ts = append(ts, transform.NormalizeExponents{})
			case spec.Strip != "":
				ts = append(ts, transform.StripPath(dirs.Replace(spec.Strip), anchor))
			default:
				ts = append(ts, transform.Replace{Old: dirs.Replace(spec.Replace), New: spec.With, Anchor: anchor})
			}
		}
		lists[name] = ts
	}
	return lists, nil
}

func (b *Builder) locate() LocateFunc {
	if b.Locate == nil {
		return locate.Locate
	}
	return b.Locate
}

func (b *Builder) logger() *log.Logger {
	if b.Logger == nil {
		return log.New(io.Discard)
	}
	return b.Logger
}

// expander resolves {in:}, {out:} and {bin:} placeholders. The first
// output-area error and the first binary lookup error are kept.
type expander struct {
	resolver *paths.Resolver
	bins     map[string]binary
	err      error
	setupErr error
}

func (e *expander) expand(s string) string {
	return anyPlaceholder.ReplaceAllStringFunc(s, func(m string) string {
		sub := anyPlaceholder.FindStringSubmatch(m)
		kind, arg := sub[1], sub[2]
		switch kind {
		case "in":
			return e.resolver.InputPath(arg)
		case "out":
			p, err := e.resolver.OutputPath(arg)
			if err != nil && e.err == nil {
				e.err = err
			}
			return p
		case "bin":
			bin := e.bins[arg]
			if bin.err != nil {
				if e.setupErr == nil {
					e.setupErr = bin.err
				}
				return arg
			}
			return bin.path
		}
		return m
	})
}

// DefaultPath returns the suite file expected inside fixtureDir.
func DefaultPath(fixtureDir string) string {
	return filepath.Join(fixtureDir, DefaultFileName)
}
