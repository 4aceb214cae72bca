package recovery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"relay/pkg/claude"
)

// Kind classifies a task failure for recovery decisions.
type Kind string

const (
	KindTimeout      Kind = "timeout"
	KindProcessError Kind = "process_error"
	KindSDKError     Kind = "sdk_error"
	KindCLINotFound  Kind = "cli_not_found"
	KindWebhookError Kind = "webhook_error"
	KindUnknown      Kind = "unknown_error"
)

// Context carries the details a recovery decision needs.
type Context struct {
	ExitCode   int
	StatusCode int
	Message    string
}

// WebhookError indicates a notification delivery failure that should
// abort the attempt (as opposed to best-effort sends, which never
// surface errors).
type WebhookError struct {
	StatusCode int
}

func (e *WebhookError) Error() string {
	return fmt.Sprintf("webhook delivery failed: status %d", e.StatusCode)
}

// Classify maps an attempt failure to a recovery kind and context.
func Classify(err error) (Kind, Context) {
	if err == nil {
		return KindUnknown, Context{}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout, Context{Message: err.Error()}
	}
	if errors.Is(err, claude.ErrCLINotFound) {
		return KindCLINotFound, Context{Message: err.Error()}
	}

	var procErr *claude.ProcessError
	if errors.As(err, &procErr) {
		return KindProcessError, Context{ExitCode: procErr.ExitCode, Message: err.Error()}
	}

	var sdkErr *claude.SDKError
	if errors.As(err, &sdkErr) {
		return KindSDKError, Context{Message: sdkErr.Message}
	}

	var whErr *WebhookError
	if errors.As(err, &whErr) {
		return KindWebhookError, Context{StatusCode: whErr.StatusCode, Message: err.Error()}
	}
	if strings.Contains(strings.ToLower(err.Error()), "webhook") {
		// No typed status available, treat as a server-side failure
		return KindWebhookError, Context{StatusCode: 500, Message: err.Error()}
	}

	return KindUnknown, Context{Message: err.Error()}
}
