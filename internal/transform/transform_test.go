package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	fixtureDir = "/src/core/apps/fiona/tests/"
	outDir     = "/tmp/apptest-123456/"
)

func builtins() []Transform {
	return []Transform{
		StripPath(fixtureDir, Anywhere),
		StripPath(outDir, Anywhere),
		NormalizeExponents{},
	}
}

func TestStripPath_Anywhere(t *testing.T) {
	in := "Reading " + fixtureDir + "reads.fq\nWriting " + outDir + "out.fa\n"
	got := Apply(in, builtins()...)
	assert.Equal(t, "Reading reads.fq\nWriting out.fa\n", got)
}

func TestStripPath_RightOnlyTrailing(t *testing.T) {
	p := "/tmp/out/"
	strip := StripPath(p, Right)

	assert.Equal(t, "written to ", strip.Apply("written to "+p))
	assert.Equal(t, p+"reads.fa", strip.Apply(p+"reads.fa"), "non-trailing occurrence must be kept")
	assert.Equal(t, "a "+p+" b", strip.Apply("a "+p+" b"))
}

func TestStripPath_RightPerLine(t *testing.T) {
	p := "/tmp/out"
	strip := StripPath(p, Right)

	in := "dir " + p + "\n" + p + "/file\n"
	assert.Equal(t, "dir \n"+p+"/file\n", strip.Apply(in))
}

func TestStripPath_RightKeepsCRLF(t *testing.T) {
	strip := StripPath("/tmp/out", Right)
	assert.Equal(t, "dir \r\nnext\r\n", strip.Apply("dir /tmp/out\r\nnext\r\n"))
}

func TestStripPath_Left(t *testing.T) {
	strip := StripPath("/src/", Left)
	assert.Equal(t, "a.fq\nx /src/b.fq", strip.Apply("/src/a.fq\nx /src/b.fq"))
}

func TestReplace_EmptyOldIsNoop(t *testing.T) {
	assert.Equal(t, "abc", Replace{}.Apply("abc"))
}

func TestReplace_FixpointMakesStripIdempotent(t *testing.T) {
	strip := StripPath("ab", Anywhere)
	once := strip.Apply("aabb")
	assert.Equal(t, "", once)
	assert.Equal(t, once, strip.Apply(once))

	right := StripPath("ab", Right)
	once = right.Apply("xabab")
	assert.Equal(t, "x", once)
	assert.Equal(t, once, right.Apply(once))
}

func TestReplace_SelfContainingReplacementSinglePass(t *testing.T) {
	r := Replace{Old: "a", New: "aa"}
	assert.Equal(t, "xaax", r.Apply("xax"))
}

func TestNormalizeExponents(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"1e+005", "1e5"},
		{"1e5", "1e5"},
		{"1E05", "1e5"},
		{"2.5e-007", "2.5e-7"},
		{"-3.25E+10", "-3.25e10"},
		{".5e+01", ".5e1"},
		{"7.e-03", "7.e-3"},
		{"1e+000", "1e0"},
		{"1e-000", "1e-0"},
		{"gain 1.5e+001 and 2e-002\n", "gain 1.5e1 and 2e-2\n"},
		{"line1\n3.0e+02\n", "line1\n3.0e2\n"},
		{"(1e+05,2e+06)", "(1e5,2e6)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeExponents{}.Apply(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeExponents_LeavesIdentifiersAlone(t *testing.T) {
	for _, in := range []string{
		"read_1e+05",
		"chr1e05x",
		"0x1e+05",
		"version 1.2e",
		"ACGTE+05",
		"file.1e+05",
	} {
		assert.Equal(t, in, NormalizeExponents{}.Apply(in), "input %q", in)
	}
}

func TestApply_Order(t *testing.T) {
	// Replace runs before normalisation, so the rewritten token is normalised.
	ts := []Transform{Replace{Old: "X", New: "1e+05"}, NormalizeExponents{}}
	assert.Equal(t, "v=1e5", Apply("v=X", ts...))

	// Reversed, the token produced last stays as written.
	ts = []Transform{NormalizeExponents{}, Replace{Old: "X", New: "1e+05"}}
	assert.Equal(t, "v=1e+05", Apply("v=X", ts...))
}

func TestApply_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"plain text without anything\n",
		"Reading " + fixtureDir + "reads.illumina.fq\n",
		"error rate 1.5E-003, genome 1e+004\n",
		outDir + "reads.corrected.i1.fa written\r\n" + "k=2.0e+01\n",
		fixtureDir + fixtureDir + "x",
		"/src/core/apps/fiona/tests//tmp/apptest-123456/ 1e+05",
	}
	ts := builtins()
	for _, in := range inputs {
		once := Apply(in, ts...)
		assert.Equal(t, once, Apply(once, ts...), "input %q", in)
	}
}

func TestParseAnchor(t *testing.T) {
	for in, want := range map[string]Anchor{"": Anywhere, "anywhere": Anywhere, "LEFT": Left, "right": Right} {
		got, err := ParseAnchor(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		if in != "" && in != "LEFT" {
			assert.Equal(t, in, got.String())
		}
	}
	_, err := ParseAnchor("middle")
	assert.Error(t, err)
}
