// Package session tracks Claude CLI session lifecycle in memory.
// State is intentionally not persisted; a restart starts clean.
package session

import (
	"sync"
	"time"

	"relay/pkg/logx"
)

// Session statuses.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// Info is the tracked state of one CLI session.
type Info struct {
	SessionID      string     `json:"session_id"`
	UserID         string     `json:"user_id,omitempty"`
	ConversationID string     `json:"conversation_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	LastUsed       time.Time  `json:"last_used"`
	QueryCount     int        `json:"query_count"`
	ToolsUsed      []string   `json:"tools_used"`
	Status         string     `json:"status"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// Stats summarizes all tracked sessions.
type Stats struct {
	ActiveSessions   int            `json:"active_sessions"`
	TotalQueries     int            `json:"total_queries"`
	SessionsByStatus map[string]int `json:"sessions_by_status"`
}

// Registry tracks sessions. Safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Info
	logger   *logx.Logger
	now      func() time.Time
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Info),
		logger:   logx.NewLogger("session"),
		now:      time.Now,
	}
}

// Track records a new session, or bumps last-used and query count for
// an existing one. The first Track leaves the count at zero; each
// subsequent Track for the same ID increments it.
func (r *Registry) Track(sessionID, userID, conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info, ok := r.sessions[sessionID]; ok {
		info.LastUsed = r.now()
		info.QueryCount++
		return
	}

	now := r.now()
	r.sessions[sessionID] = &Info{
		SessionID:      sessionID,
		UserID:         userID,
		ConversationID: conversationID,
		CreatedAt:      now,
		LastUsed:       now,
		ToolsUsed:      []string{},
		Status:         StatusActive,
	}
	r.logger.Info("New session tracked: session=%s conversation=%s", sessionID, conversationID)
}

// RecordTool appends a tool name to the session's tool list.
func (r *Registry) RecordTool(sessionID, tool string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info, ok := r.sessions[sessionID]; ok {
		info.ToolsUsed = append(info.ToolsUsed, tool)
	}
}

// Get returns a copy of the session info, or false if unknown.
func (r *Registry) Get(sessionID string) (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.sessions[sessionID]
	if !ok {
		return Info{}, false
	}
	return *info, true
}

// MarkCompleted marks the session completed. Idempotent; unknown IDs
// are ignored.
func (r *Registry) MarkCompleted(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info, ok := r.sessions[sessionID]; ok {
		info.Status = StatusCompleted
		if info.CompletedAt == nil {
			t := r.now()
			info.CompletedAt = &t
		}
	}
}

// Sweep removes sessions not used within maxAge and returns how many
// were removed.
func (r *Registry) Sweep(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxAge)
	removed := 0
	for id, info := range r.sessions {
		if info.LastUsed.Before(cutoff) {
			r.logger.Info("Cleaning up expired session: session=%s", id)
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// Stats returns aggregate counts over all tracked sessions.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := Stats{
		ActiveSessions:   len(r.sessions),
		SessionsByStatus: map[string]int{StatusActive: 0, StatusCompleted: 0},
	}
	for _, info := range r.sessions {
		stats.TotalQueries += info.QueryCount
		stats.SessionsByStatus[info.Status]++
	}
	return stats
}
