// Package notify delivers webhook notifications for task progress.
// Delivery is best-effort: failures are logged and recorded, never
// surfaced to the caller.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"relay/pkg/logx"
)

// Notification types.
const (
	TypeStatus = "status"
	TypeQuery  = "query"
	TypeError  = "error"
)

// Notification statuses.
const (
	StatusUserMessage = "user_message"
	StatusProcessing  = "processing"
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
)

// Step statuses for project initialization.
const (
	StepInProgress = "IN_PROGRESS"
	StepCompleted  = "COMPLETED"
	StepFailed     = "FAILED"
)

// Payload is the notification body for query tasks.
type Payload struct {
	TaskID         string         `json:"task_id"`
	SessionID      string         `json:"session_id,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Type           string         `json:"type"`
	Status         string         `json:"status"`
	Result         string         `json:"result,omitempty"`
	Error          string         `json:"error,omitempty"`
	MessageType    string         `json:"message_type,omitempty"`
	ContentType    string         `json:"content_type,omitempty"`
	ToolName       string         `json:"tool_name,omitempty"`
	ToolInput      map[string]any `json:"tool_input,omitempty"`
	Subtype        string         `json:"subtype,omitempty"`
	DurationMS     int64          `json:"duration_ms,omitempty"`
	DurationAPIMS  int64          `json:"duration_api_ms,omitempty"`
	IsError        bool           `json:"is_error,omitempty"`
	NumTurns       int            `json:"num_turns,omitempty"`
	TotalCostUSD   float64        `json:"total_cost_usd,omitempty"`
	Usage          map[string]any `json:"usage,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// StepPayload is the notification body for project initialization steps.
type StepPayload struct {
	TaskID            string         `json:"task_id"`
	Task              string         `json:"task"`
	StepName          string         `json:"step_name"`
	CompletionMessage string         `json:"completion_message"`
	Status            string         `json:"status"`
	Timestamp         time.Time      `json:"timestamp"`
	Error             string         `json:"error,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// Recorder receives webhook delivery outcomes for bookkeeping.
type Recorder interface {
	RecordWebhook(taskID string, statusCode int)
}

// Notifier posts JSON payloads to callback URLs with a bounded timeout.
type Notifier struct {
	client   *http.Client
	recorder Recorder
	logger   *logx.Logger
}

// NewNotifier creates a Notifier. recorder may be nil.
func NewNotifier(timeout time.Duration, recorder Recorder) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		client:   &http.Client{Timeout: timeout},
		recorder: recorder,
		logger:   logx.NewLogger("notify"),
	}
}

// Send delivers a query notification. Transport and HTTP errors are
// logged and recorded but never returned; the task proceeds regardless.
func (n *Notifier) Send(ctx context.Context, url string, p *Payload) {
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now().UTC()
	}
	status := n.post(ctx, url, p, p.TaskID)
	if n.recorder != nil {
		n.recorder.RecordWebhook(p.TaskID, status)
	}
}

// SendStep delivers a project initialization step notification.
func (n *Notifier) SendStep(ctx context.Context, url string, p *StepPayload) {
	if p.Task == "" {
		p.Task = "INIT_PROJECT"
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now().UTC()
	}
	n.post(ctx, url, p, p.TaskID)
}

// post returns the HTTP status code, or 500 when the request could not
// be sent at all.
func (n *Notifier) post(ctx context.Context, url string, body any, taskID string) int {
	data, err := json.Marshal(body)
	if err != nil {
		n.logger.Error("Failed to encode webhook payload: task=%s err=%v", taskID, err)
		return http.StatusInternalServerError
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		n.logger.Error("Failed to build webhook request: task=%s url=%s err=%v", taskID, url, err)
		return http.StatusInternalServerError
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Error("Failed to send webhook: task=%s url=%s err=%v", taskID, url, err)
		return http.StatusInternalServerError
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		n.logger.Error("Webhook failed: task=%s url=%s status=%d", taskID, url, resp.StatusCode)
	} else {
		n.logger.Debug("Webhook sent: task=%s url=%s status=%d", taskID, url, resp.StatusCode)
	}
	return resp.StatusCode
}
