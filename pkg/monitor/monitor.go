// Package monitor tracks per-task query metrics in memory.
package monitor

import (
	"sync"
	"time"

	"relay/pkg/logx"
)

// maxHistory bounds the completed-query history.
const maxHistory = 1000

// Record statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrorEntry is one error recorded during a query.
type ErrorEntry struct {
	Type       string    `json:"type"`
	Message    string    `json:"message,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Record is the monitoring state of one query.
type Record struct {
	TaskID           string       `json:"task_id"`
	StartTime        time.Time    `json:"start_time"`
	EndTime          time.Time    `json:"end_time"`
	Duration         float64      `json:"duration,omitempty"`
	Status           string       `json:"status"`
	MessagesReceived int          `json:"messages_received"`
	WebhookCalls     int          `json:"webhook_calls"`
	Errors           []ErrorEntry `json:"errors"`
}

// PerformanceStats aggregates the completed-query history.
type PerformanceStats struct {
	TotalQueries            int     `json:"total_queries"`
	SuccessfulQueries       int     `json:"successful_queries"`
	FailedQueries           int     `json:"failed_queries"`
	SuccessRate             float64 `json:"success_rate"`
	AverageDuration         float64 `json:"average_duration"`
	AverageMessagesPerQuery float64 `json:"average_messages_per_query"`
}

// Monitor tracks live queries and keeps a bounded history of completed
// ones. Safe for concurrent use.
type Monitor struct {
	mu      sync.Mutex
	live    map[string]*Record
	history []Record
	prom    *PrometheusRecorder
	logger  *logx.Logger
	now     func() time.Time
}

// NewMonitor creates a Monitor. prom may be nil to skip Prometheus
// recording.
func NewMonitor(prom *PrometheusRecorder) *Monitor {
	return &Monitor{
		live:   make(map[string]*Record),
		prom:   prom,
		logger: logx.NewLogger("monitor"),
		now:    time.Now,
	}
}

// Start begins monitoring a task.
func (m *Monitor) Start(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.live[taskID] = &Record{
		TaskID:    taskID,
		StartTime: m.now(),
		Status:    StatusRunning,
		Errors:    []ErrorEntry{},
	}
}

// RecordMessage counts one agent message for the task. No-op for
// unknown tasks.
func (m *Monitor) RecordMessage(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, ok := m.live[taskID]; ok {
		rec.MessagesReceived++
	}
}

// RecordWebhook counts one webhook delivery. Status codes >= 400 are
// recorded as errors. Implements notify.Recorder.
func (m *Monitor) RecordWebhook(taskID string, statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.live[taskID]
	if !ok {
		return
	}
	rec.WebhookCalls++
	if statusCode >= 400 {
		rec.Errors = append(rec.Errors, ErrorEntry{
			Type:       "webhook_error",
			StatusCode: statusCode,
			Timestamp:  m.now(),
		})
	}
}

// RecordError records an error for the task. No-op for unknown tasks.
func (m *Monitor) RecordError(taskID, errType, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, ok := m.live[taskID]; ok {
		rec.Errors = append(rec.Errors, ErrorEntry{
			Type:      errType,
			Message:   message,
			Timestamp: m.now(),
		})
	}
}

// Complete finishes monitoring a task and moves its record to history.
// No-op for unknown tasks.
func (m *Monitor) Complete(taskID string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.live[taskID]
	if !ok {
		return
	}
	rec.EndTime = m.now()
	rec.Duration = rec.EndTime.Sub(rec.StartTime).Seconds()
	if success {
		rec.Status = StatusCompleted
	} else {
		rec.Status = StatusFailed
	}

	m.history = append(m.history, *rec)
	if len(m.history) > maxHistory {
		m.history = m.history[len(m.history)-maxHistory:]
	}
	delete(m.live, taskID)

	if m.prom != nil {
		m.prom.ObserveQuery(rec.Status, rec.MessagesReceived, rec.WebhookCalls, len(rec.Errors), rec.Duration)
	}

	m.logger.Info("Query monitoring completed: task=%s duration=%.2fs success=%t messages=%d webhooks=%d errors=%d",
		taskID, rec.Duration, success, rec.MessagesReceived, rec.WebhookCalls, len(rec.Errors))
}

// ActiveCount returns the number of live queries.
func (m *Monitor) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// Get returns a copy of the live record for a task, or false.
func (m *Monitor) Get(taskID string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.live[taskID]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Stats aggregates the completed-query history. Zero-safe on an empty
// history.
func (m *Monitor) Stats() PerformanceStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := PerformanceStats{TotalQueries: len(m.history)}
	if len(m.history) == 0 {
		return stats
	}

	var durations float64
	var messages int
	for i := range m.history {
		switch m.history[i].Status {
		case StatusCompleted:
			stats.SuccessfulQueries++
			durations += m.history[i].Duration
			messages += m.history[i].MessagesReceived
		case StatusFailed:
			stats.FailedQueries++
		}
	}

	stats.SuccessRate = float64(stats.SuccessfulQueries) / float64(stats.TotalQueries)
	if stats.SuccessfulQueries > 0 {
		stats.AverageDuration = durations / float64(stats.SuccessfulQueries)
		stats.AverageMessagesPerQuery = float64(messages) / float64(stats.SuccessfulQueries)
	}
	return stats
}
