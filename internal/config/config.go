// Package config loads and validates the optional .apptest YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

// FileName is the name of the configuration file looked up by Load.
const FileName = ".apptest"

// Default values for runner configuration.
const (
	DefaultTimeout   = 30 * time.Minute
	DefaultMaxOutput = 16 << 20 // 16 MiB
	DefaultLogLevel  = log.WarnLevel
)

// Color modes accepted by the color key.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Config holds the parsed .apptest configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version      int    `yaml:"version"`
	RawTimeout   string `yaml:"timeout"`    // e.g. "30m", "90s"
	RawMaxOutput int    `yaml:"max_output"` // bytes kept per stream
	Color        string `yaml:"color"`      // auto, always or never
	RawLogLevel  string `yaml:"log_level"`  // debug, info, warn, error
}

// Timeout returns the configured default case timeout or DefaultTimeout.
func (c *Config) Timeout() time.Duration {
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err == nil && d > 0 {
			return d
		}
	}
	return DefaultTimeout
}

// MaxOutputBytes returns the configured max output size or the default.
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return DefaultMaxOutput
}

// Colored reports whether output should be colored given whether stdout is
// a terminal.
func (c *Config) Colored(terminal bool) bool {
	switch c.Color {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		return terminal
	}
}

// LogLevel returns the configured diagnostic log level or DefaultLogLevel.
func (c *Config) LogLevel() log.Level {
	if c.RawLogLevel != "" {
		if lvl, err := log.ParseLevel(c.RawLogLevel); err == nil {
			return lvl
		}
	}
	return DefaultLogLevel
}

// Validate reports every malformed value. Accessors fall back to defaults
// for such values; Validate lets the CLI reject them instead.
func (c *Config) Validate() error {
	var errs []error
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("timeout: %w", err))
		case d <= 0:
			errs = append(errs, fmt.Errorf("timeout: %s is not positive", c.RawTimeout))
		}
	}
	if c.RawMaxOutput < 0 {
		errs = append(errs, fmt.Errorf("max_output: %d is negative", c.RawMaxOutput))
	}
	switch c.Color {
	case "", ColorAuto, ColorAlways, ColorNever:
	default:
		errs = append(errs, fmt.Errorf("color: unknown mode %q (want auto, always or never)", c.Color))
	}
	if c.RawLogLevel != "" {
		if _, err := log.ParseLevel(c.RawLogLevel); err != nil {
			errs = append(errs, fmt.Errorf("log_level: %w", err))
		}
	}
	return errors.Join(errs...)
}

// LoadResult holds the parsed config and where it was found.
type LoadResult struct {
	Config *Config
	Path   string // empty when no file was found
}

// Load looks for a .apptest file in dir and each of its parents, nearest
// first. If none exists, a default Config is returned.
func Load(dir string) (*LoadResult, error) {
	path, err := find(dir)
	if err != nil {
		return &LoadResult{Config: &Config{}}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return &LoadResult{Config: cfg, Path: path}, nil
}

// find walks upward from dir looking for a regular .apptest file.
func find(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		p := filepath.Join(dir, FileName)
		if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
			return p, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%s not found", FileName)
		}
		dir = parent
	}
}
