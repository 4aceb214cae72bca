// Package api exposes the HTTP surface of the relay service: task
// submission, project initialization, session inspection, and metrics.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"relay/pkg/config"
	"relay/pkg/logx"
	"relay/pkg/orchestrator"
	"relay/pkg/scaffold"
)

// Server is the HTTP front end.
type Server struct {
	cfg         *config.Settings
	processor   *orchestrator.Processor
	initializer *scaffold.Initializer
	catalog     *scaffold.ServerCatalog
	engine      *gin.Engine
	httpServer  *http.Server
	logger      *logx.Logger
}

// NewServer builds the router and wires the handlers.
func NewServer(cfg *config.Settings, processor *orchestrator.Processor, initializer *scaffold.Initializer) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSOrigins) == 1 && cfg.CORSOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"}
	engine.Use(cors.New(corsConfig))

	s := &Server{
		cfg:         cfg,
		processor:   processor,
		initializer: initializer,
		catalog:     scaffold.NewServerCatalog(cfg.GlobalMCPConfigPath()),
		engine:      engine,
		logger:      logx.NewLogger("api"),
	}
	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/", s.handleRoot)
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/metrics", s.handleMetrics)
	s.engine.GET("/metrics/prom", gin.WrapH(promhttp.Handler()))

	apiGroup := s.engine.Group("/api")
	apiGroup.POST("/query", s.handleQuery)

	s.engine.POST("/init-project", s.handleInitProject)

	sessions := s.engine.Group("/sessions")
	sessions.GET("/:session_id", s.handleGetSession)
	sessions.POST("/cleanup", s.handleCleanupSessions)

	mcp := s.engine.Group("/mcp")
	mcp.GET("/servers", s.handleListMCPServers)
	mcp.POST("/connect/:server_id", s.handleConnectMCPServer)
	mcp.DELETE("/disconnect/:server_id", s.handleDisconnectMCPServer)
}

// Start serves HTTP until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server: addr=%s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the underlying handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}
