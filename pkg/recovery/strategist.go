// Package recovery decides whether and how a failed task attempt is
// retried. Each failure kind has its own backoff and retry policy.
package recovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"relay/pkg/logx"
)

// Strategist evaluates failures against per-kind recovery policies.
type Strategist struct {
	logger *logx.Logger

	// Sleep performs backoff waits. Overridable in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewStrategist creates a Strategist.
func NewStrategist() *Strategist {
	return &Strategist{
		logger: logx.NewLogger("recovery"),
		Sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Decide reports whether the task should be retried after a failure,
// sleeping any backoff the policy calls for. maxRetries is the bound
// for this task, which callers may set per request. The returned
// reason is human-readable and ends up in logs and failure
// notifications.
func (s *Strategist) Decide(ctx context.Context, kind Kind, taskID string, ec Context, retryCount, maxRetries int) (bool, string) {
	if retryCount >= maxRetries {
		s.logger.Error("Maximum retries exceeded: task=%s kind=%s retries=%d", taskID, kind, retryCount)
		return false, "Maximum retries exceeded"
	}

	s.logger.Info("Attempting error recovery: task=%s kind=%s retry=%d", taskID, kind, retryCount)

	switch kind {
	case KindTimeout:
		return s.timeoutRecovery(ctx, taskID, retryCount)
	case KindProcessError:
		return s.processRecovery(taskID, ec, retryCount)
	case KindSDKError:
		return s.sdkRecovery(ctx, taskID, ec, retryCount)
	case KindCLINotFound:
		return false, "CLI not found: requires system installation"
	case KindWebhookError:
		return s.webhookRecovery(ctx, ec, retryCount)
	default:
		s.logger.Warn("No recovery strategy for error kind: task=%s kind=%s", taskID, kind)
		return false, fmt.Sprintf("No recovery strategy for %s", kind)
	}
}

func (s *Strategist) timeoutRecovery(ctx context.Context, taskID string, retryCount int) (bool, string) {
	delay := backoff(retryCount, 30*time.Second)
	s.logger.Info("Timeout recovery: waiting before retry task=%s delay=%s retry=%d", taskID, delay, retryCount)
	if err := s.Sleep(ctx, delay); err != nil {
		return false, "recovery aborted: " + err.Error()
	}
	return true, "Timeout recovery: retry after backoff"
}

func (s *Strategist) processRecovery(taskID string, ec Context, retryCount int) (bool, string) {
	switch ec.ExitCode {
	case 1:
		s.logger.Info("Process error recovery: reducing options task=%s", taskID)
		return true, "Process error recovery: retry with reduced options"
	case 2:
		s.logger.Info("Process error recovery: changing permission mode task=%s", taskID)
		return true, "Process error recovery: retry with different permissions"
	default:
		if retryCount < 1 {
			return true, fmt.Sprintf("Process error recovery: retry for exit code %d", ec.ExitCode)
		}
		return false, fmt.Sprintf("Process error recovery failed: exit code %d", ec.ExitCode)
	}
}

func (s *Strategist) sdkRecovery(ctx context.Context, taskID string, ec Context, retryCount int) (bool, string) {
	msg := strings.ToLower(ec.Message)
	switch {
	case strings.Contains(msg, "rate limit"):
		delay := minDuration(120*time.Second, time.Duration(30*(retryCount+1))*time.Second)
		s.logger.Info("SDK rate limit recovery: waiting task=%s delay=%s", taskID, delay)
		if err := s.Sleep(ctx, delay); err != nil {
			return false, "recovery aborted: " + err.Error()
		}
		return true, "SDK rate limit recovery: retry after extended wait"
	case strings.Contains(msg, "authentication"):
		return false, "SDK authentication error: no recovery possible"
	case strings.Contains(msg, "quota"):
		return false, "SDK quota exceeded: no recovery possible"
	default:
		if retryCount < 1 {
			if err := s.Sleep(ctx, 5*time.Second); err != nil {
				return false, "recovery aborted: " + err.Error()
			}
			return true, "SDK error recovery: retry after short delay"
		}
		return false, "SDK error recovery failed: unknown error"
	}
}

func (s *Strategist) webhookRecovery(ctx context.Context, ec Context, retryCount int) (bool, string) {
	switch {
	case ec.StatusCode >= 500:
		delay := backoff(retryCount, 10*time.Second)
		if err := s.Sleep(ctx, delay); err != nil {
			return false, "recovery aborted: " + err.Error()
		}
		return true, fmt.Sprintf("Webhook server error recovery: retry after %ds", int(delay.Seconds()))
	case ec.StatusCode == 404:
		return false, "Webhook not found: endpoint unavailable"
	case ec.StatusCode >= 400:
		if retryCount < 1 {
			if err := s.Sleep(ctx, 2*time.Second); err != nil {
				return false, "recovery aborted: " + err.Error()
			}
			return true, "Webhook client error recovery: retry once"
		}
		return false, fmt.Sprintf("Webhook client error: %d", ec.StatusCode)
	default:
		return false, fmt.Sprintf("Webhook error recovery failed: status %d", ec.StatusCode)
	}
}

// backoff is 2^retryCount seconds capped at max.
func backoff(retryCount int, max time.Duration) time.Duration {
	d := time.Duration(1<<uint(retryCount)) * time.Second
	return minDuration(max, d)
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
