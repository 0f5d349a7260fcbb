package verify

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deixis/apptest/internal/caseerr"
	"github.com/deixis/apptest/internal/transform"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDiff_EqualAfterTransforms(t *testing.T) {
	dir := t.TempDir()
	golden := writeFile(t, dir, "golden.stdout", "Reading reads.fq\nerror rate 1.5e-3\n")
	actual := writeFile(t, dir, "actual.stdout", "Reading "+dir+"/reads.fq\nerror rate 1.5e-003\n")

	res := Diff{
		Golden: golden,
		Actual: actual,
		Transforms: []transform.Transform{
			transform.StripPath(dir+"/", transform.Anywhere),
			transform.NormalizeExponents{},
		},
	}.Evaluate(context.Background())

	assert.True(t, res.Passed, res.Message)
	assert.Equal(t, "diff actual.stdout", res.Check)
	assert.Empty(t, res.Kind)
}

func TestDiff_GoldenNotTransformed(t *testing.T) {
	dir := t.TempDir()
	// The golden side keeps its non-canonical exponent, so it can never match.
	golden := writeFile(t, dir, "golden", "x 1e+005\n")
	actual := writeFile(t, dir, "actual", "x 1e+005\n")

	res := Diff{Golden: golden, Actual: actual, Transforms: []transform.Transform{transform.NormalizeExponents{}}}.
		Evaluate(context.Background())
	assert.False(t, res.Passed)
	assert.Equal(t, caseerr.DiffMismatch, res.Kind)
}

func TestDiff_MismatchReportsFirstLine(t *testing.T) {
	dir := t.TempDir()
	golden := writeFile(t, dir, "golden", "a\nb\nc\n")
	actual := writeFile(t, dir, "actual", "a\nB\nc\n")

	res := Diff{Golden: golden, Actual: actual}.Evaluate(context.Background())
	require.False(t, res.Passed)
	assert.Equal(t, caseerr.DiffMismatch, res.Kind)
	assert.Contains(t, res.Message, "at line 2")
	assert.Contains(t, res.Message, `want: "b"`)
	assert.Contains(t, res.Message, `got:  "B"`)
	assert.Contains(t, res.Message, "-b")
	assert.Contains(t, res.Message, "+B")
}

func TestDiff_MissingTrailingLine(t *testing.T) {
	dir := t.TempDir()
	golden := writeFile(t, dir, "golden", "a\nb")
	actual := writeFile(t, dir, "actual", "a")

	res := Diff{Golden: golden, Actual: actual}.Evaluate(context.Background())
	require.False(t, res.Passed)
	assert.Contains(t, res.Message, "at line 2")
	assert.Contains(t, res.Message, "<EOF>")
}

func TestDiff_CRLFGolden(t *testing.T) {
	dir := t.TempDir()
	golden := writeFile(t, dir, "golden", "a\r\nb\r\n")
	actual := writeFile(t, dir, "actual", "a\nb\n")

	res := Diff{Golden: golden, Actual: actual}.Evaluate(context.Background())
	assert.True(t, res.Passed, res.Message)
}

func TestDiff_MissingFiles(t *testing.T) {
	dir := t.TempDir()
	present := writeFile(t, dir, "present", "x\n")

	res := Diff{Golden: filepath.Join(dir, "nope"), Actual: present}.Evaluate(context.Background())
	assert.False(t, res.Passed)
	assert.Equal(t, caseerr.DiffMismatch, res.Kind)
	assert.Contains(t, res.Message, "reading golden file")

	res = Diff{Golden: present, Actual: filepath.Join(dir, "nope")}.Evaluate(context.Background())
	assert.False(t, res.Passed)
	assert.Contains(t, res.Message, "reading actual output")
}

func TestDiff_TruncatesLongDiff(t *testing.T) {
	dir := t.TempDir()
	var a, b strings.Builder
	for i := 0; i < 200; i++ {
		a.WriteString("same\n")
		b.WriteString("different\n")
	}
	golden := writeFile(t, dir, "golden", a.String())
	actual := writeFile(t, dir, "actual", b.String())

	res := Diff{Golden: golden, Actual: actual, MaxLines: 10}.Evaluate(context.Background())
	require.False(t, res.Passed)
	assert.Contains(t, res.Message, "more lines)")
}
