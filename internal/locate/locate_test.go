package locate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deixis/apptest/internal/caseerr"
)

func writeExe(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))
}

func TestLocate_BinDirectoryFirst(t *testing.T) {
	root := t.TempDir()
	writeExe(t, filepath.Join(root, "bin", "fiona"))
	writeExe(t, filepath.Join(root, "core/apps/fiona", "fiona"))

	got, err := Locate(root, "core/apps/fiona", "fiona")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "bin", "fiona"), got)
}

func TestLocate_Subpath(t *testing.T) {
	root := t.TempDir()
	writeExe(t, filepath.Join(root, "core/apps/fiona", "compute_gain"))

	got, err := Locate(root, "core/apps/fiona", "compute_gain")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "core/apps/fiona", "compute_gain"), got)
}

func TestLocate_ReleaseDirectory(t *testing.T) {
	root := t.TempDir()
	writeExe(t, filepath.Join(root, "bin", "Release", "fiona_illumina"))

	got, err := Locate(root, "core/apps/fiona", "fiona_illumina")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "bin", "Release", "fiona_illumina"), got)
}

func TestLocate_WalkSingleMatch(t *testing.T) {
	root := t.TempDir()
	deep := filepath.Join(root, "core/apps/fiona", "build", "x86_64", "fiona")
	writeExe(t, deep)

	got, err := Locate(root, "core/apps/fiona", "fiona")
	require.NoError(t, err)
	assert.Equal(t, deep, got)
}

func TestLocate_NotFound(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "core/apps/fiona"), 0o755))

	_, err := Locate(root, "core/apps/fiona", "fiona")
	require.Error(t, err)
	assert.Equal(t, caseerr.BinaryNotFound, caseerr.KindOf(err))
}

func TestLocate_MissingSubpath(t *testing.T) {
	_, err := Locate(t.TempDir(), "does/not/exist", "fiona")
	require.Error(t, err)
	assert.Equal(t, caseerr.BinaryNotFound, caseerr.KindOf(err))
}

func TestLocate_NonExecutableIgnored(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "core/apps/fiona", "sub", "fiona")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("source"), 0o644))

	_, err := Locate(root, "core/apps/fiona", "fiona")
	assert.Equal(t, caseerr.BinaryNotFound, caseerr.KindOf(err))
}

func TestLocate_Ambiguous(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "core/apps/fiona", "debug", "fiona")
	b := filepath.Join(root, "core/apps/fiona", "release", "fiona")
	writeExe(t, a)
	writeExe(t, b)

	_, err := Locate(root, "core/apps/fiona", "fiona")
	require.Error(t, err)
	assert.Equal(t, caseerr.AmbiguousBinary, caseerr.KindOf(err))
	assert.Contains(t, err.Error(), a)
	assert.Contains(t, err.Error(), b)
}
