// Package runner provides command execution with optional stream redirects,
// timeouts, and output size limits.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/deixis/apptest/internal/caseerr"
)

// waitDelay bounds how long Wait blocks on pipes held open by grandchildren
// after the direct child has exited or been killed.
const waitDelay = 2 * time.Second

// Command describes one process invocation.
type Command struct {
	Argv    []string
	Dir     string        // working directory; empty means the current one
	Stdout  string        // if set, stdout is also written to this file
	Stderr  string        // if set, stderr is also written to this file
	Timeout time.Duration // overrides Runner.Timeout when positive
}

// String returns the command line joined by spaces.
func (c Command) String() string {
	return strings.Join(c.Argv, " ")
}

// Runner executes commands and captures their output.
type Runner struct {
	Timeout   time.Duration // zero disables the time limit
	MaxOutput int           // bytes captured per stream; zero means unlimited
	Logger    *log.Logger
}

// Run executes cmd and waits for it to exit.
//
// Launch failures are returned as caseerr.LaunchFailure with a nil Result.
// Expiry of the time limit or cancellation of ctx is returned as
// caseerr.Timeout together with the partial Result. A non-zero exit is not
// an error; callers inspect Result.ExitCode.
func (r *Runner) Run(ctx context.Context, cmd Command) (*Result, error) {
	if len(cmd.Argv) == 0 {
		return nil, caseerr.New(caseerr.LaunchFailure, "empty argv")
	}

	timeout := r.Timeout
	if cmd.Timeout > 0 {
		timeout = cmd.Timeout
	}
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	runID := uuid.New().String()

	var stdout, stderr bytes.Buffer
	stdoutW, closeStdout, err := r.sink(&stdout, cmd.Stdout)
	if err != nil {
		return nil, caseerr.Wrap(caseerr.LaunchFailure, err, "opening stdout redirect")
	}
	defer closeStdout()
	stderrW, closeStderr, err := r.sink(&stderr, cmd.Stderr)
	if err != nil {
		return nil, caseerr.Wrap(caseerr.LaunchFailure, err, "opening stderr redirect")
	}
	defer closeStderr()

	// #nosec G204 -- argv comes from the suite definition.
	c := exec.CommandContext(runCtx, cmd.Argv[0], cmd.Argv[1:]...)
	c.Dir = cmd.Dir
	c.Stdout = stdoutW
	c.Stderr = stderrW
	c.WaitDelay = waitDelay

	r.logger().Debug("starting process", "run", runID, "argv", cmd.String())
	start := time.Now()
	runErr := c.Run()
	elapsed := time.Since(start)

	res := &Result{
		RunID:     runID,
		Stdout:    stdout.Bytes(),
		Stderr:    stderr.Bytes(),
		Truncated: r.MaxOutput > 0 && (stdout.Len() >= r.MaxOutput || stderr.Len() >= r.MaxOutput),
		Duration:  elapsed,
	}
	if c.ProcessState != nil {
		res.ExitCode = c.ProcessState.ExitCode()
	}

	if runCtx.Err() != nil && (c.ProcessState == nil || !c.ProcessState.Success()) {
		if ctx.Err() != nil {
			return res, caseerr.Wrap(caseerr.Timeout, ctx.Err(), "%s canceled after %s", cmd.Argv[0], elapsed.Round(time.Millisecond))
		}
		return res, caseerr.New(caseerr.Timeout, "%s exceeded time limit of %s", cmd.Argv[0], timeout)
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			// Binary not found, not executable, or similar.
			return nil, caseerr.Wrap(caseerr.LaunchFailure, runErr, "executing %s", cmd.Argv[0])
		}
	}

	r.logger().Debug("process exited", "run", runID, "exit", res.ExitCode, "duration", elapsed)
	return res, nil
}

// sink returns the writer for one stream: the capped in-memory buffer,
// teed into the redirect file when path is set.
func (r *Runner) sink(buf *bytes.Buffer, path string) (io.Writer, func(), error) {
	var w io.Writer = buf
	if r.MaxOutput > 0 {
		w = &limitWriter{buf: buf, limit: r.MaxOutput}
	}
	if path == "" {
		return w, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating %s: %w", path, err)
	}
	return io.MultiWriter(f, w), func() { _ = f.Close() }, nil
}

func (r *Runner) logger() *log.Logger {
	if r.Logger == nil {
		return discard
	}
	return r.Logger
}

var discard = log.New(io.Discard)

// limitWriter writes up to limit bytes to buf, then silently discards the rest.
type limitWriter struct {
	buf   *bytes.Buffer
	limit int
}

func (w *limitWriter) Write(p []byte) (int, error) {
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		return len(p), nil // discard
	}
	if len(p) > remaining {
		// Write only what fits, but report all bytes as consumed
		// to avoid short write errors from io.Copy.
		w.buf.Write(p[:remaining])
		return len(p), nil
	}
	return w.buf.Write(p)
}
