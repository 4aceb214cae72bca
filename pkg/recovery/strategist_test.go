package recovery

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay/pkg/claude"
)

// newTestStrategist returns a strategist whose sleeps are recorded
// instead of performed.
func newTestStrategist() (*Strategist, *[]time.Duration) {
	s := NewStrategist()
	slept := &[]time.Duration{}
	s.Sleep = func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	return s, slept
}

func TestDecide_TimeoutBackoff(t *testing.T) {
	s, slept := newTestStrategist()

	for r, wantDelay := range map[int]time.Duration{
		0: 1 * time.Second,
		1: 2 * time.Second,
		2: 4 * time.Second,
	} {
		*slept = nil
		retry, _ := s.Decide(context.Background(), KindTimeout, "t1", Context{}, r, 3)
		assert.True(t, retry, "retry_count=%d should be retryable", r)
		require.Len(t, *slept, 1)
		assert.Equal(t, wantDelay, (*slept)[0], "retry_count=%d", r)
	}

	// Exhausted
	retry, reason := s.Decide(context.Background(), KindTimeout, "t1", Context{}, 3, 3)
	assert.False(t, retry)
	assert.Equal(t, "Maximum retries exceeded", reason)
}

func TestDecide_TimeoutBackoffCap(t *testing.T) {
	s, slept := newTestStrategist()

	retry, _ := s.Decide(context.Background(), KindTimeout, "t1", Context{}, 6, 10)
	assert.True(t, retry)
	require.Len(t, *slept, 1)
	assert.Equal(t, 30*time.Second, (*slept)[0], "backoff capped at 30s")
}

func TestDecide_ProcessError(t *testing.T) {
	s, slept := newTestStrategist()

	tests := []struct {
		exitCode   int
		retryCount int
		wantRetry  bool
	}{
		{exitCode: 1, retryCount: 0, wantRetry: true},
		{exitCode: 1, retryCount: 2, wantRetry: true},
		{exitCode: 2, retryCount: 2, wantRetry: true},
		{exitCode: 127, retryCount: 0, wantRetry: true},
		{exitCode: 127, retryCount: 1, wantRetry: false},
	}
	for _, tc := range tests {
		retry, _ := s.Decide(context.Background(), KindProcessError, "t1", Context{ExitCode: tc.exitCode}, tc.retryCount, 3)
		assert.Equal(t, tc.wantRetry, retry, "exit=%d retry_count=%d", tc.exitCode, tc.retryCount)
	}
	assert.Empty(t, *slept, "process error recovery never sleeps")
}

func TestDecide_SDKError(t *testing.T) {
	s, slept := newTestStrategist()

	// Rate limits wait 30*(r+1) seconds, capped at 120
	retry, _ := s.Decide(context.Background(), KindSDKError, "t1", Context{Message: "Rate Limit exceeded"}, 1, 3)
	assert.True(t, retry)
	require.Len(t, *slept, 1)
	assert.Equal(t, 60*time.Second, (*slept)[0])

	*slept = nil
	retry, _ = s.Decide(context.Background(), KindSDKError, "t1", Context{Message: "rate limit"}, 2, 3)
	assert.True(t, retry)
	assert.Equal(t, 90*time.Second, (*slept)[0])

	// Auth and quota never retry
	retry, reason := s.Decide(context.Background(), KindSDKError, "t1", Context{Message: "authentication failed"}, 0, 3)
	assert.False(t, retry)
	assert.Contains(t, reason, "authentication")

	retry, _ = s.Decide(context.Background(), KindSDKError, "t1", Context{Message: "quota exceeded"}, 0, 3)
	assert.False(t, retry)

	// Generic SDK errors get one extra shot with a 5s delay
	*slept = nil
	retry, _ = s.Decide(context.Background(), KindSDKError, "t1", Context{Message: "boom"}, 0, 3)
	assert.True(t, retry)
	assert.Equal(t, 5*time.Second, (*slept)[0])

	retry, _ = s.Decide(context.Background(), KindSDKError, "t1", Context{Message: "boom"}, 1, 3)
	assert.False(t, retry)
}

func TestDecide_CLINotFoundNeverRetries(t *testing.T) {
	s, _ := newTestStrategist()

	for r := 0; r < 3; r++ {
		retry, reason := s.Decide(context.Background(), KindCLINotFound, "t1", Context{}, r, 3)
		assert.False(t, retry, "retry_count=%d", r)
		assert.Contains(t, reason, "CLI not found")
	}
}

func TestDecide_WebhookError(t *testing.T) {
	s, slept := newTestStrategist()

	// Server errors back off min(10, 2^r)
	retry, _ := s.Decide(context.Background(), KindWebhookError, "t1", Context{StatusCode: 503}, 0, 3)
	assert.True(t, retry)
	require.Len(t, *slept, 1)
	assert.Equal(t, 1*time.Second, (*slept)[0])

	*slept = nil
	retry, _ = s.Decide(context.Background(), KindWebhookError, "t1", Context{StatusCode: 500}, 4, 6)
	assert.True(t, retry)
	assert.Equal(t, 10*time.Second, (*slept)[0], "webhook backoff capped at 10s")

	// 404 never retries regardless of retry count
	for r := 0; r < 3; r++ {
		retry, _ := s.Decide(context.Background(), KindWebhookError, "t1", Context{StatusCode: 404}, r, 3)
		assert.False(t, retry, "retry_count=%d", r)
	}

	// Other client errors get one retry after 2s
	*slept = nil
	retry, _ = s.Decide(context.Background(), KindWebhookError, "t1", Context{StatusCode: 429}, 0, 3)
	assert.True(t, retry)
	assert.Equal(t, 2*time.Second, (*slept)[0])

	retry, _ = s.Decide(context.Background(), KindWebhookError, "t1", Context{StatusCode: 429}, 1, 3)
	assert.False(t, retry)

	// Anything below 400 is not a retryable webhook failure
	retry, _ = s.Decide(context.Background(), KindWebhookError, "t1", Context{StatusCode: 302}, 0, 3)
	assert.False(t, retry)
}

func TestDecide_UnknownKind(t *testing.T) {
	s, _ := newTestStrategist()

	retry, reason := s.Decide(context.Background(), KindUnknown, "t1", Context{}, 0, 3)
	assert.False(t, retry)
	assert.Equal(t, "No recovery strategy for unknown_error", reason)
}

func TestDecide_MaxRetriesBeatsPolicy(t *testing.T) {
	s, _ := newTestStrategist()

	// Even an always-retryable kind is refused once retries are spent
	retry, reason := s.Decide(context.Background(), KindTimeout, "t1", Context{}, 5, 3)
	assert.False(t, retry)
	assert.Equal(t, "Maximum retries exceeded", reason)
}

func TestDecide_MaxRetriesIsPerCall(t *testing.T) {
	s, slept := newTestStrategist()

	// The same strategist honors whatever bound each caller passes, so
	// a task allowed more retries than the service default keeps going.
	retry, _ := s.Decide(context.Background(), KindTimeout, "t1", Context{}, 4, 6)
	assert.True(t, retry)
	require.Len(t, *slept, 1)

	retry, reason := s.Decide(context.Background(), KindTimeout, "t2", Context{}, 4, 4)
	assert.False(t, retry)
	assert.Equal(t, "Maximum retries exceeded", reason)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"timeout", context.DeadlineExceeded, KindTimeout},
		{"wrapped timeout", fmt.Errorf("attempt: %w", context.DeadlineExceeded), KindTimeout},
		{"cli not found", fmt.Errorf("%w: claude", claude.ErrCLINotFound), KindCLINotFound},
		{"process error", &claude.ProcessError{ExitCode: 2}, KindProcessError},
		{"sdk error", &claude.SDKError{Message: "rate limit"}, KindSDKError},
		{"typed webhook error", &WebhookError{StatusCode: 503}, KindWebhookError},
		{"stringly webhook error", errors.New("webhook delivery refused"), KindWebhookError},
		{"unknown", errors.New("something else"), KindUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			kind, _ := Classify(tc.err)
			assert.Equal(t, tc.want, kind)
		})
	}
}

func TestClassify_Context(t *testing.T) {
	kind, ec := Classify(&claude.ProcessError{ExitCode: 2, Stderr: "denied"})
	assert.Equal(t, KindProcessError, kind)
	assert.Equal(t, 2, ec.ExitCode)

	kind, ec = Classify(&WebhookError{StatusCode: 503})
	assert.Equal(t, KindWebhookError, kind)
	assert.Equal(t, 503, ec.StatusCode)

	// Stringified webhook mentions default to a server-side status
	_, ec = Classify(errors.New("webhook timed out"))
	assert.Equal(t, 500, ec.StatusCode)
}
