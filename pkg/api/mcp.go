package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"relay/pkg/scaffold"
)

// handleListMCPServers returns every known MCP server with its
// connection status.
func (s *Server) handleListMCPServers(c *gin.Context) {
	c.JSON(http.StatusOK, s.catalog.List())
}

// handleConnectMCPServer adds a server to the global configuration.
// The body may carry a custom connector definition; without one the
// server id must match a preset.
func (s *Server) handleConnectMCPServer(c *gin.Context) {
	serverID := c.Param("server_id")

	var custom *scaffold.CustomConnector
	if c.Request.ContentLength > 0 {
		var body scaffold.CustomConnector
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
			return
		}
		custom = &body
	}

	if err := s.catalog.Connect(serverID, custom); err != nil {
		if errors.Is(err, scaffold.ErrServerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
			return
		}
		s.logger.Error("Failed to connect MCP server: id=%s err=%v", serverID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "connected", "server_id": serverID})
}

// handleDisconnectMCPServer removes a server from the global
// configuration.
func (s *Server) handleDisconnectMCPServer(c *gin.Context) {
	serverID := c.Param("server_id")

	if err := s.catalog.Disconnect(serverID); err != nil {
		switch {
		case errors.Is(err, scaffold.ErrNoServerConfig),
			errors.Is(err, scaffold.ErrServerNotConnected),
			errors.Is(err, scaffold.ErrApprovalProtected):
			c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		default:
			s.logger.Error("Failed to disconnect MCP server: id=%s err=%v", serverID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "disconnected", "server_id": serverID})
}
