package api

import (
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"relay/pkg/orchestrator"
	"relay/pkg/scaffold"
)

type queryRequest struct {
	Prompt           string                `json:"prompt" binding:"required"`
	SessionID        string                `json:"session_id"`
	ConversationID   string                `json:"conversation_id"`
	WebhookURL       string                `json:"webhook_url" binding:"required"`
	OrganizationName string                `json:"organization_name"`
	ProjectPath      string                `json:"project_path"`
	Options          *orchestrator.Options `json:"options"`
}

type initProjectRequest struct {
	OrganizationName string                     `json:"organization_name" binding:"required"`
	ProjectPath      string                     `json:"project_path" binding:"required"`
	GithubRepoURL    string                     `json:"github_repo_url" binding:"required"`
	WebhookURL       string                     `json:"webhook_url" binding:"required"`
	MCPServers       []scaffold.ServerSelection `json:"mcp_servers"`
}

// handleQuery accepts a fire-and-forget task: it mints a task id,
// schedules processing in the background, and acknowledges immediately.
func (s *Server) handleQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	taskID := uuid.New().String()
	s.logger.Info("New query submitted: task=%s session=%s project=%s/%s",
		taskID, req.SessionID, req.OrganizationName, req.ProjectPath)

	opts := req.Options
	if opts == nil {
		opts = &orchestrator.Options{}
	}
	if req.OrganizationName != "" && req.ProjectPath != "" {
		opts.WorkDir = filepath.Join(s.cfg.ProjectsDir(), req.OrganizationName, req.ProjectPath)
	}
	opts.PermissionMode = "interactive"

	s.processor.Launch(&orchestrator.Request{
		TaskID:         taskID,
		Prompt:         req.Prompt,
		WebhookURL:     req.WebhookURL,
		SessionID:      req.SessionID,
		ConversationID: req.ConversationID,
		Options:        opts,
	})

	c.JSON(http.StatusOK, gin.H{"task_id": taskID, "status": "accepted"})
}

// handleInitProject accepts a project scaffolding task and acknowledges
// immediately; progress arrives via step notifications.
func (s *Server) handleInitProject(c *gin.Context) {
	var req initProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	taskID := uuid.New().String()
	s.logger.Info("Project initialization submitted: task=%s project=%s/%s repo=%s",
		taskID, req.OrganizationName, req.ProjectPath, req.GithubRepoURL)

	s.initializer.Launch(&scaffold.Request{
		TaskID:           taskID,
		OrganizationName: req.OrganizationName,
		ProjectPath:      req.ProjectPath,
		RepoURL:          req.GithubRepoURL,
		WebhookURL:       req.WebhookURL,
		MCPServers:       req.MCPServers,
	})

	c.JSON(http.StatusOK, gin.H{
		"task_id": taskID,
		"status":  "accepted",
		"message": "Project initialization started",
	})
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "relay",
		"status":  "running",
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleMetrics returns the JSON metrics snapshot: session statistics,
// aggregate performance, and the live query count.
func (s *Server) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"session_stats":     s.processor.Sessions().Stats(),
		"performance_stats": s.processor.Monitor().Stats(),
		"active_queries":    s.processor.ActiveTasks(),
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleGetSession(c *gin.Context) {
	sessionID := c.Param("session_id")
	info, ok := s.processor.Sessions().Get(sessionID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Session not found"})
		return
	}
	c.JSON(http.StatusOK, info)
}

// handleCleanupSessions removes sessions idle longer than
// max_age_hours (default 24).
func (s *Server) handleCleanupSessions(c *gin.Context) {
	maxAge := s.cfg.SessionMaxAge
	if hours := c.Query("max_age_hours"); hours != "" {
		if d, err := time.ParseDuration(hours + "h"); err == nil && d > 0 {
			maxAge = d
		}
	}

	removed := s.processor.Sessions().Sweep(maxAge)
	c.JSON(http.StatusOK, gin.H{
		"cleaned_sessions": removed,
		"max_age_hours":    int(maxAge.Hours()),
	})
}
