// Package paths maps logical fixture and output names to absolute paths.
//
// Inputs live in a static fixture directory. Outputs live in a single
// ephemeral directory that is created on first use and removed by Cleanup.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/deixis/apptest/internal/caseerr"
)

// Resolver resolves logical names for one batch. The zero value is not
// usable; construct with New.
type Resolver struct {
	fixtureDir string

	mu      sync.Mutex
	outDir  string
	removed bool
}

// New returns a Resolver for fixtures under sourceRoot/testsDir.
func New(sourceRoot, testsDir string) (*Resolver, error) {
	dir, err := filepath.Abs(filepath.Join(sourceRoot, testsDir))
	if err != nil {
		return nil, fmt.Errorf("resolving fixture directory: %w", err)
	}
	return &Resolver{fixtureDir: dir}, nil
}

// FixtureDir returns the absolute fixture directory.
func (r *Resolver) FixtureDir() string {
	return r.fixtureDir
}

// InputPath returns the absolute path of a fixture file. It never touches
// the filesystem.
func (r *Resolver) InputPath(name string) string {
	return filepath.Join(r.fixtureDir, name)
}

// OutputPath returns the absolute path of an output file inside the
// ephemeral area, creating the area on first call. The name "-" only
// forces creation and returns the area itself.
func (r *Resolver) OutputPath(name string) (string, error) {
	dir, err := r.ensureDir()
	if err != nil {
		return "", err
	}
	if name == "-" {
		return dir, nil
	}
	return filepath.Join(dir, name), nil
}

// OutputDir returns the ephemeral area, creating it if needed.
func (r *Resolver) OutputDir() (string, error) {
	return r.ensureDir()
}

// Created reports whether the ephemeral area currently exists.
func (r *Resolver) Created() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outDir != "" && !r.removed
}

// Cleanup removes the ephemeral area and everything under it. It is a no-op
// when the area was never created or was already removed.
func (r *Resolver) Cleanup() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outDir == "" || r.removed {
		return nil
	}
	r.removed = true
	if err := os.RemoveAll(r.outDir); err != nil {
		return fmt.Errorf("removing output directory %s: %w", r.outDir, err)
	}
	return nil
}

func (r *Resolver) ensureDir() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.removed {
		return "", caseerr.New(caseerr.Environment, "output directory %s was already removed", r.outDir)
	}
	if r.outDir != "" {
		return r.outDir, nil
	}
	dir, err := os.MkdirTemp("", "apptest-*")
	if err != nil {
		return "", caseerr.Wrap(caseerr.Environment, err, "creating output directory")
	}
	r.outDir = dir
	return dir, nil
}
