package verify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deixis/apptest/internal/caseerr"
	"github.com/deixis/apptest/internal/runner"
)

// fakeRunner returns a canned result and records the commands it saw.
type fakeRunner struct {
	res   *runner.Result
	err   error
	calls []runner.Command
}

func (f *fakeRunner) Run(_ context.Context, cmd runner.Command) (*runner.Result, error) {
	f.calls = append(f.calls, cmd)
	return f.res, f.err
}

func metricOutput(third string) []byte {
	return []byte("pre-correction errors: 1200\npost-correction errors: 537\n" + third + "\n")
}

func newChecker(r CommandRunner, minGain float64) GainChecker {
	return GainChecker{
		Tool:      "/bin/compute_gain",
		Reference: "/fx/genome.10k.fa",
		Pre:       "/fx/reads.illumina.sam",
		Post:      "/out/reads.illumina.corrected.i1.fa",
		MinGain:   minGain,
		Runner:    r,
	}
}

func TestGainChecker_Command(t *testing.T) {
	r := &fakeRunner{res: &runner.Result{Stdout: metricOutput("55.3 %")}}
	newChecker(r, 50).Evaluate(context.Background())

	require.Len(t, r.calls, 1)
	assert.Equal(t, []string{
		"/bin/compute_gain",
		"-g", "/fx/genome.10k.fa",
		"--pre", "/fx/reads.illumina.sam",
		"--post", "/out/reads.illumina.corrected.i1.fa",
	}, r.calls[0].Argv)
}

func TestGainChecker_AboveThreshold(t *testing.T) {
	r := &fakeRunner{res: &runner.Result{Stdout: metricOutput("55.3 other tokens")}}
	res := newChecker(r, 50.0).Evaluate(context.Background())
	assert.True(t, res.Passed, res.Message)
	assert.Equal(t, "gain", res.Check)
}

func TestGainChecker_BelowThreshold(t *testing.T) {
	r := &fakeRunner{res: &runner.Result{Stdout: metricOutput("55.3 other tokens")}}
	res := newChecker(r, 60.0).Evaluate(context.Background())
	require.False(t, res.Passed)
	assert.Equal(t, caseerr.GainBelowThreshold, res.Kind)
	assert.Contains(t, res.Message, "60.0")
	assert.Contains(t, res.Message, "55.3")
}

func TestGainChecker_EqualToThresholdPasses(t *testing.T) {
	r := &fakeRunner{res: &runner.Result{Stdout: metricOutput("40")}}
	res := newChecker(r, 40.0).Evaluate(context.Background())
	assert.True(t, res.Passed, res.Message)
}

func TestGainChecker_ScientificNotation(t *testing.T) {
	r := &fakeRunner{res: &runner.Result{Stdout: metricOutput("4.2e+01")}}
	res := newChecker(r, 40.0).Evaluate(context.Background())
	assert.True(t, res.Passed, res.Message)
}

func TestGainChecker_NonZeroExitSkipsParsing(t *testing.T) {
	// Stdout would pass if it were parsed.
	r := &fakeRunner{res: &runner.Result{ExitCode: 1, Stdout: metricOutput("99.0")}}
	res := newChecker(r, 40.0).Evaluate(context.Background())
	require.False(t, res.Passed)
	assert.Equal(t, caseerr.ToolExecutionError, res.Kind)
	assert.Contains(t, res.Message, "status 1")
}

func TestGainChecker_LaunchFailure(t *testing.T) {
	r := &fakeRunner{err: caseerr.New(caseerr.LaunchFailure, "executing compute_gain")}
	res := newChecker(r, 40.0).Evaluate(context.Background())
	assert.False(t, res.Passed)
	assert.Equal(t, caseerr.LaunchFailure, res.Kind)
}

func TestParseGain_Malformed(t *testing.T) {
	for name, out := range map[string]string{
		"too few lines": "a\nb\n",
		"empty line":    "a\nb\n   \n",
		"not a number":  "a\nb\ngain 55.3\n",
		"nan":           "a\nb\nNaN\n",
		"empty":         "",
	} {
		_, err := ParseGain([]byte(out), "")
		require.Error(t, err, name)
		assert.Equal(t, caseerr.MalformedMetricOutput, caseerr.KindOf(err), name)
	}
}

func TestParseGain_Positional(t *testing.T) {
	got, err := ParseGain([]byte("x\r\ny\r\n  55.3\tother\r\n"), "")
	require.NoError(t, err)
	assert.InDelta(t, 55.3, got, 1e-9)
}

func TestParseGain_LabeledField(t *testing.T) {
	out := []byte("header\nnot the gain 1.0\nsomething else\ngain: 61.5 %\n")
	got, err := ParseGain(out, "gain")
	require.NoError(t, err)
	assert.InDelta(t, 61.5, got, 1e-9)

	got, err = ParseGain([]byte("GAIN=12.5\n"), "gain")
	require.NoError(t, err)
	assert.InDelta(t, 12.5, got, 1e-9)
}

func TestParseGain_LabeledFallsBackToPosition(t *testing.T) {
	got, err := ParseGain(metricOutput("42.0 %"), "gain")
	require.NoError(t, err)
	assert.InDelta(t, 42.0, got, 1e-9)
}

func TestFormatGain(t *testing.T) {
	assert.Equal(t, "40.0", FormatGain(40))
	assert.Equal(t, "55.3", FormatGain(55.3))
	assert.Equal(t, "-1.0", FormatGain(-1))
	assert.Equal(t, "0.125", FormatGain(0.125))
}
