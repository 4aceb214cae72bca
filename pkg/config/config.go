// Package config provides configuration loading and defaults for the relay
// service. Settings come from an optional YAML file with environment variable
// overrides layered on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MCPConfigFilename is the MCP server configuration file looked up under
// <project>/.claude and the global project root.
const MCPConfigFilename = "mcp-servers.json"

// Settings holds all runtime configuration for the relay service.
type Settings struct {
	// API configuration.
	Port        int      `yaml:"port"`
	ServerURL   string   `yaml:"server_url"`
	CORSOrigins []string `yaml:"cors_origins"`

	// Timeouts and retry bounds.
	WebhookTimeout time.Duration `yaml:"webhook_timeout"`
	QueryTimeout   time.Duration `yaml:"query_timeout"`
	MaxRetries     int           `yaml:"max_retries"`

	// Paths.
	ProjectRoot string `yaml:"project_root"`

	// Claude CLI configuration.
	ClaudePath   string   `yaml:"claude_path"`
	ClaudeModel  string   `yaml:"claude_model"`
	MaxTurns     int      `yaml:"max_turns"`
	DefaultTools []string `yaml:"default_tools"`

	// Session housekeeping.
	SessionMaxAge time.Duration `yaml:"session_max_age"`

	// Logging.
	LogLevel string `yaml:"log_level"`
}

// Default returns Settings populated with documented defaults.
func Default() Settings {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return Settings{
		Port:           8001,
		ServerURL:      "http://localhost:8001",
		CORSOrigins:    []string{"*"},
		WebhookTimeout: 10 * time.Second,
		QueryTimeout:   300 * time.Second,
		MaxRetries:     3,
		ProjectRoot:    cwd,
		ClaudePath:     "claude",
		ClaudeModel:    "claude-3-5-sonnet-latest",
		MaxTurns:       8,
		DefaultTools:   []string{"Read", "Write", "LS", "Task"},
		SessionMaxAge:  24 * time.Hour,
		LogLevel:       "INFO",
	}
}

// Load builds Settings from defaults, an optional YAML file, and environment
// variable overrides, in that order of precedence.
func Load(path string) (Settings, error) {
	settings := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return settings, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &settings); err != nil {
			return settings, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(&settings)

	if err := settings.Validate(); err != nil {
		return settings, err
	}
	return settings, nil
}

// Validate checks the settings for obvious misconfiguration.
func (s *Settings) Validate() error {
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("invalid port: %d", s.Port)
	}
	if s.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0, got %d", s.MaxRetries)
	}
	if s.QueryTimeout <= 0 {
		return fmt.Errorf("query_timeout must be positive, got %s", s.QueryTimeout)
	}
	if s.WebhookTimeout <= 0 {
		return fmt.Errorf("webhook_timeout must be positive, got %s", s.WebhookTimeout)
	}
	return nil
}

// ProjectsDir returns the directory under which scaffolded projects live.
func (s *Settings) ProjectsDir() string {
	return filepath.Join(s.ProjectRoot, "projects")
}

// GlobalMCPConfigPath returns the path to the global MCP server configuration.
func (s *Settings) GlobalMCPConfigPath() string {
	return filepath.Join(s.ProjectRoot, MCPConfigFilename)
}

func applyEnvOverrides(s *Settings) {
	if v := os.Getenv("RELAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			s.Port = port
		}
	}
	if v := os.Getenv("RELAY_SERVER_URL"); v != "" {
		s.ServerURL = v
	}
	if v := os.Getenv("RELAY_CORS_ORIGINS"); v != "" {
		s.CORSOrigins = splitAndTrim(v)
	}
	if v := os.Getenv("RELAY_WEBHOOK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			s.WebhookTimeout = d
		}
	}
	if v := os.Getenv("RELAY_QUERY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			s.QueryTimeout = d
		}
	}
	if v := os.Getenv("RELAY_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.MaxRetries = n
		}
	}
	if v := os.Getenv("RELAY_PROJECT_ROOT"); v != "" {
		s.ProjectRoot = v
	}
	if v := os.Getenv("RELAY_CLAUDE_PATH"); v != "" {
		s.ClaudePath = v
	}
	if v := os.Getenv("RELAY_CLAUDE_MODEL"); v != "" {
		s.ClaudeModel = v
	}
	if v := os.Getenv("RELAY_MAX_TURNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.MaxTurns = n
		}
	}
	if v := os.Getenv("RELAY_DEFAULT_TOOLS"); v != "" {
		s.DefaultTools = splitAndTrim(v)
	}
	if v := os.Getenv("RELAY_LOG_LEVEL"); v != "" {
		s.LogLevel = v
	}
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
