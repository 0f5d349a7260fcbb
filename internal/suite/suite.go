// Package suite loads declarative YAML test suites and turns them into
// validated test cases.
//
// A suite names the fixture directory, the binaries it needs and a list of
// cases. Case strings may reference files and binaries through
// placeholders:
//
//	{in:NAME}   fixture file NAME
//	{out:NAME}  file NAME in the ephemeral output area
//	{bin:NAME}  located path of logical binary NAME
//	{var:KEY}   value of KEY in the current matrix entry
//
// Transform strip values may use {tests_dir} and {out_dir}, which expand
// to the directory followed by the path separator.
package suite

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/deixis/apptest/internal/caseerr"
	"github.com/deixis/apptest/internal/transform"
)

// DefaultFileName is the suite file looked up inside a fixture directory.
const DefaultFileName = "apptest.yaml"

// CurrentVersion is the only suite format version understood.
const CurrentVersion = 1

// File is a parsed suite file.
type File struct {
	Version    int                        `yaml:"version"`
	Name       string                     `yaml:"name"`
	TestsDir   string                     `yaml:"tests_dir"`  // fixture dir, relative to the source root
	BinaryDir  string                     `yaml:"binary_dir"` // subpath searched under the binary root
	Timeout    string                     `yaml:"timeout"`    // default per-case timeout
	Binaries   map[string]string          `yaml:"binaries"`   // logical name -> executable name
	Transforms map[string][]TransformSpec `yaml:"transforms"`
	Cases      []CaseSpec                 `yaml:"cases"`
}

// TransformSpec describes one transform. Exactly one of Strip, Replace or
// NormalizeExponents is set.
type TransformSpec struct {
	Strip              string `yaml:"strip"`
	Replace            string `yaml:"replace"`
	With               string `yaml:"with"`
	Anchor             string `yaml:"anchor"`
	NormalizeExponents bool   `yaml:"normalize_exponents"`
}

// CaseSpec describes one case, or one case per matrix entry.
type CaseSpec struct {
	Name    string              `yaml:"name"`
	Program string              `yaml:"program"` // logical binary name
	Args    []string            `yaml:"args"`
	Stdout  string              `yaml:"stdout"` // output name
	Stderr  string              `yaml:"stderr"` // output name
	Diff    []DiffSpec          `yaml:"diff"`
	Gain    *GainSpec           `yaml:"gain"`
	Timeout string              `yaml:"timeout"`
	Matrix  []map[string]string `yaml:"matrix"`
}

// DiffSpec compares fixture Golden with output Actual after applying the
// named transform list.
type DiffSpec struct {
	Golden     string `yaml:"golden"`
	Actual     string `yaml:"actual"`
	Transforms string `yaml:"transforms"`
}

// GainSpec configures the metric threshold check. Reference and Pre are
// fixture names, Post is an output name and Tool a logical binary.
type GainSpec struct {
	Tool      string `yaml:"tool"`
	Reference string `yaml:"reference"`
	Pre       string `yaml:"pre"`
	Post      string `yaml:"post"`
	Min       string `yaml:"min"` // may be a {var:KEY} placeholder
	Field     string `yaml:"field"`
}

// Load reads and validates the suite file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, caseerr.Wrap(caseerr.Environment, err, "reading suite")
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates a suite document. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	f := &File{}
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return nil, caseerr.Wrap(caseerr.InvalidCase, err, "parsing suite")
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate reports every problem in the suite, each prefixed with its
// path in the document.
func (f *File) Validate() error {
	var errs []error
	add := func(path, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%s: %s", path, fmt.Sprintf(format, args...)))
	}

	if f.Version != CurrentVersion {
		add("version", "unsupported version %d (want %d)", f.Version, CurrentVersion)
	}
	if f.Name == "" {
		add("name", "is required")
	}
	if f.Timeout != "" {
		if _, err := parseTimeout(f.Timeout); err != nil {
			add("timeout", "%v", err)
		}
	}
	for _, name := range sortedKeys(f.Binaries) {
		if f.Binaries[name] == "" {
			add("binaries."+name, "executable name is required")
		}
	}
	for _, name := range sortedKeys(f.Transforms) {
		for i, ts := range f.Transforms[name] {
			if err := ts.validate(); err != nil {
				add(fmt.Sprintf("transforms.%s[%d]", name, i), "%v", err)
			}
		}
	}

	seen := make(map[string]string)
	for i, c := range f.Cases {
		base := fmt.Sprintf("cases[%d]", i)
		for j, vars := range c.matrixEntries() {
			path := base
			if len(c.Matrix) > 0 {
				path = fmt.Sprintf("%s(matrix[%d])", base, j)
			}
			ec, err := c.expand(vars)
			if err != nil {
				add(path, "%v", err)
				continue
			}
			for _, e := range f.validateCase(ec) {
				add(path+"."+e.field, "%s", e.msg)
			}
			if ec.Name != "" {
				if prev, ok := seen[ec.Name]; ok {
					add(path+".name", "duplicate case name %q (also %s)", ec.Name, prev)
				} else {
					seen[ec.Name] = path
				}
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	name := f.Name
	if name == "" {
		name = "<unnamed>"
	}
	return caseerr.Wrap(caseerr.InvalidCase, errors.Join(errs...), "suite %s", name)
}

type fieldError struct {
	field string
	msg   string
}

func (f *File) validateCase(c CaseSpec) []fieldError {
	var errs []fieldError
	add := func(field, format string, args ...any) {
		errs = append(errs, fieldError{field, fmt.Sprintf(format, args...)})
	}

	if c.Name == "" {
		add("name", "is required")
	}
	if c.Program == "" {
		add("program", "is required")
	} else if _, ok := f.Binaries[c.Program]; !ok {
		add("program", "unknown binary %q", c.Program)
	}
	for i, a := range c.Args {
		for _, e := range f.checkPlaceholders(a) {
			add(fmt.Sprintf("args[%d]", i), "%s", e)
		}
	}
	if c.Stdout != "" && c.Stdout == c.Stderr {
		add("stderr", "same output as stdout (%s)", c.Stdout)
	}
	if c.Timeout != "" {
		if _, err := parseTimeout(c.Timeout); err != nil {
			add("timeout", "%v", err)
		}
	}
	for i, d := range c.Diff {
		p := fmt.Sprintf("diff[%d]", i)
		if d.Golden == "" {
			add(p+".golden", "is required")
		}
		if d.Actual == "" {
			add(p+".actual", "is required")
		}
		if d.Transforms != "" {
			if _, ok := f.Transforms[d.Transforms]; !ok {
				add(p+".transforms", "unknown transform list %q", d.Transforms)
			}
		}
	}
	if g := c.Gain; g != nil {
		if g.Tool == "" {
			add("gain.tool", "is required")
		} else if _, ok := f.Binaries[g.Tool]; !ok {
			add("gain.tool", "unknown binary %q", g.Tool)
		}
		for field, v := range map[string]string{"reference": g.Reference, "pre": g.Pre, "post": g.Post} {
			if v == "" {
				add("gain."+field, "is required")
			}
		}
		if _, err := strconv.ParseFloat(g.Min, 64); err != nil {
			add("gain.min", "not a number: %q", g.Min)
		}
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].field < errs[j].field })
	return errs
}

// checkPlaceholders reports malformed or unresolvable placeholders in s.
// It runs after {var:} expansion.
func (f *File) checkPlaceholders(s string) []string {
	var errs []string
	for _, m := range anyPlaceholder.FindAllStringSubmatch(s, -1) {
		kind, arg := m[1], m[2]
		switch kind {
		case "in", "out":
			if arg == "" {
				errs = append(errs, fmt.Sprintf("empty {%s:} name", kind))
			}
		case "bin":
			if _, ok := f.Binaries[arg]; !ok {
				errs = append(errs, fmt.Sprintf("unknown binary %q", arg))
			}
		default:
			errs = append(errs, fmt.Sprintf("unknown placeholder {%s:%s}", kind, arg))
		}
	}
	return errs
}

func (ts TransformSpec) validate() error {
	set := 0
	if ts.Strip != "" {
		set++
	}
	if ts.Replace != "" {
		set++
	}
	if ts.NormalizeExponents {
		set++
	}
	if set != 1 {
		return errors.New("exactly one of strip, replace or normalize_exponents must be set")
	}
	if ts.With != "" && ts.Replace == "" {
		return errors.New("with is only valid together with replace")
	}
	if _, err := transform.ParseAnchor(ts.Anchor); err != nil {
		return err
	}
	return nil
}

var (
	varPlaceholder = regexp.MustCompile(`\{var:([^{}]*)\}`)
	anyPlaceholder = regexp.MustCompile(`\{([a-z]+):([^{}]*)\}`)
)

// matrixEntries returns the variable sets the case expands to. A case
// without a matrix expands once with no variables.
func (c CaseSpec) matrixEntries() []map[string]string {
	if len(c.Matrix) == 0 {
		return []map[string]string{nil}
	}
	return c.Matrix
}

// expand substitutes {var:KEY} in every string field of c.
func (c CaseSpec) expand(vars map[string]string) (CaseSpec, error) {
	var missing []string
	sub := func(s string) string {
		return varPlaceholder.ReplaceAllStringFunc(s, func(m string) string {
			key := varPlaceholder.FindStringSubmatch(m)[1]
			v, ok := vars[key]
			if !ok {
				missing = append(missing, key)
				return m
			}
			return v
		})
	}

	out := CaseSpec{
		Name:    sub(c.Name),
		Program: sub(c.Program),
		Stdout:  sub(c.Stdout),
		Stderr:  sub(c.Stderr),
		Timeout: sub(c.Timeout),
	}
	for _, a := range c.Args {
		out.Args = append(out.Args, sub(a))
	}
	for _, d := range c.Diff {
		out.Diff = append(out.Diff, DiffSpec{Golden: sub(d.Golden), Actual: sub(d.Actual), Transforms: sub(d.Transforms)})
	}
	if g := c.Gain; g != nil {
		out.Gain = &GainSpec{
			Tool:      sub(g.Tool),
			Reference: sub(g.Reference),
			Pre:       sub(g.Pre),
			Post:      sub(g.Post),
			Min:       sub(g.Min),
			Field:     sub(g.Field),
		}
	}
	if len(missing) > 0 {
		return CaseSpec{}, fmt.Errorf("undefined matrix variable %s", strings.Join(dedupe(missing), ", "))
	}
	return out, nil
}

func parseTimeout(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s is not positive", s)
	}
	return d, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func dedupe(ss []string) []string {
	sort.Strings(ss)
	out := ss[:0]
	for i, s := range ss {
		if i == 0 || s != ss[i-1] {
			out = append(out, s)
		}
	}
	return out
}
