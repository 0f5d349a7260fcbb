package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deixis/apptest/internal/caseerr"
)

func TestInputPath_NoSideEffects(t *testing.T) {
	root := t.TempDir()
	r, err := New(root, "core/apps/fiona/tests")
	require.NoError(t, err)

	got := r.InputPath("reads.illumina.fq")
	assert.Equal(t, filepath.Join(root, "core/apps/fiona/tests", "reads.illumina.fq"), got)
	assert.True(t, filepath.IsAbs(got))

	_, err = os.Stat(filepath.Join(root, "core"))
	assert.True(t, os.IsNotExist(err), "InputPath must not create directories")
	assert.False(t, r.Created())
}

func TestNew_RelativeRoot(t *testing.T) {
	r, err := New(".", "tests")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(r.FixtureDir()))
}

func TestOutputPath_LazySingleDirectory(t *testing.T) {
	r, err := New(t.TempDir(), "tests")
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Cleanup() })

	assert.False(t, r.Created())

	a, err := r.OutputPath("a.stdout")
	require.NoError(t, err)
	b, err := r.OutputPath("b.stdout")
	require.NoError(t, err)

	assert.True(t, r.Created())
	assert.Equal(t, filepath.Dir(a), filepath.Dir(b))

	info, err := os.Stat(filepath.Dir(a))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOutputPath_Dash(t *testing.T) {
	r, err := New(t.TempDir(), "tests")
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Cleanup() })

	dir, err := r.OutputPath("-")
	require.NoError(t, err)
	got, err := r.OutputDir()
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

func TestCleanup_RemovesEverything(t *testing.T) {
	r, err := New(t.TempDir(), "tests")
	require.NoError(t, err)

	p, err := r.OutputPath("nested.txt")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	dir := filepath.Dir(p)

	require.NoError(t, r.Cleanup())
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
	assert.False(t, r.Created())
}

func TestCleanup_Idempotent(t *testing.T) {
	r, err := New(t.TempDir(), "tests")
	require.NoError(t, err)

	// Never created.
	require.NoError(t, r.Cleanup())

	_, err = r.OutputPath("x")
	require.NoError(t, err)
	require.NoError(t, r.Cleanup())
	require.NoError(t, r.Cleanup())
}

func TestOutputPath_AfterCleanup(t *testing.T) {
	r, err := New(t.TempDir(), "tests")
	require.NoError(t, err)
	_, err = r.OutputPath("x")
	require.NoError(t, err)
	require.NoError(t, r.Cleanup())

	_, err = r.OutputPath("y")
	require.Error(t, err)
	assert.Equal(t, caseerr.Environment, caseerr.KindOf(err))
}

func TestResolvers_Independent(t *testing.T) {
	r1, err := New(t.TempDir(), "tests")
	require.NoError(t, err)
	r2, err := New(t.TempDir(), "tests")
	require.NoError(t, err)

	d1, err := r1.OutputDir()
	require.NoError(t, err)
	d2, err := r2.OutputDir()
	require.NoError(t, err)
	assert.NotEqual(t, d1, d2)

	require.NoError(t, r1.Cleanup())
	_, err = os.Stat(d2)
	assert.NoError(t, err, "cleaning one resolver must not affect another")
	require.NoError(t, r2.Cleanup())
}
