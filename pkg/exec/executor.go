// Package exec provides command execution abstractions for the relay service:
// buffered runs for short git operations and streaming starts for the
// long-running Claude CLI subprocess.
package exec

import (
	"context"
	"io"
	"time"
)

// Executor defines the interface for executing commands.
type Executor interface {
	// Run executes a command to completion and returns the buffered result.
	// A non-zero exit code is reported in the Result, not as an error.
	Run(ctx context.Context, cmd []string, opts *Opts) (Result, error)

	// Start launches a command and returns a handle exposing its stdout as a
	// stream. The caller must call Wait on the returned Process.
	Start(ctx context.Context, cmd []string, opts *Opts) (*Process, error)

	// Name returns the executor name for logging.
	Name() string
}

// Opts contains options for command execution.
type Opts struct {
	// Env contains extra environment variables (KEY=VALUE format), appended
	// to the current process environment.
	Env []string

	// Timeout is the maximum duration for command execution. Zero means no
	// executor-imposed timeout (the context may still impose one).
	Timeout time.Duration

	// WorkDir is the working directory for the command.
	WorkDir string
}

// Result contains the result of a buffered command execution.
type Result struct {
	Stdout   string
	Stderr   string
	Duration time.Duration
	ExitCode int
}

// Process is a handle to a started streaming command.
type Process struct {
	// Stdout streams the command's standard output.
	Stdout io.ReadCloser

	// Stderr streams the command's standard error.
	Stderr io.ReadCloser

	wait func() error
}

// Wait blocks until the command exits and returns its raw error (an
// *exec.ExitError on non-zero exit). Stdout must be drained first.
func (p *Process) Wait() error {
	return p.wait()
}
