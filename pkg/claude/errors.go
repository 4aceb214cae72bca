package claude

import (
	"errors"
	"fmt"
)

// ErrCLINotFound indicates the claude binary is not installed or not
// on PATH. Never retryable.
var ErrCLINotFound = errors.New("claude CLI not found")

// ProcessError indicates the CLI process exited non-zero.
type ProcessError struct {
	ExitCode int
	Stderr   string
}

func (e *ProcessError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("claude process exited with code %d: %s", e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("claude process exited with code %d", e.ExitCode)
}

// SDKError indicates the CLI reported an error event on its stream
// (rate limits, auth failures, quota exhaustion).
type SDKError struct {
	Message string
}

func (e *SDKError) Error() string {
	return "claude sdk error: " + e.Message
}
