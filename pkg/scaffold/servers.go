package scaffold

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"relay/pkg/claude"
	"relay/pkg/logx"
)

// Catalog errors. Handlers map these to HTTP statuses.
var (
	ErrServerNotFound     = errors.New("mcp server not found")
	ErrServerNotConnected = errors.New("mcp server not connected")
	ErrNoServerConfig     = errors.New("no mcp configuration found")
	ErrApprovalProtected  = errors.New("cannot disconnect approval server")
)

// ServerInfo describes one MCP server known to the catalog and whether
// it is present in the active configuration.
type ServerInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Command     string   `json:"command"`
	Args        []string `json:"args"`
	Description string   `json:"description,omitempty"`
	EnvVars     []string `json:"env_vars,omitempty"`
	Connected   bool     `json:"connected"`
}

// CustomConnector is a caller-supplied server configuration for servers
// outside the preset list.
type CustomConnector struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env,omitempty"`
}

// ServerCatalog manages the global MCP server configuration file:
// listing known presets with connection status, and connecting or
// disconnecting servers by rewriting the file.
type ServerCatalog struct {
	path   string
	logger *logx.Logger
}

// NewServerCatalog creates a catalog backed by the configuration file
// at path.
func NewServerCatalog(path string) *ServerCatalog {
	return &ServerCatalog{
		path:   path,
		logger: logx.NewLogger("mcp-catalog"),
	}
}

// presetServers are the connectable server definitions. The approval
// server is configuration plumbing, not a connectable preset.
func presetServers() []ServerInfo {
	return []ServerInfo{
		{
			ID:          ServerContextManager,
			Name:        "Context Manager",
			Command:     "npx",
			Args:        []string{"mcp-context-manager"},
			Description: "Manage context across conversations",
		},
		{
			ID:          ServerContext7,
			Name:        "Context7",
			Command:     "npx",
			Args:        []string{"-y", "@upstash/context7-mcp"},
			Description: "Access documentation and code examples",
		},
		{
			ID:          ServerGitHub,
			Name:        "GitHub",
			Command:     "docker",
			Args: []string{
				"run", "-i", "--rm",
				"-e", "GITHUB_PERSONAL_ACCESS_TOKEN",
				"ghcr.io/github/github-mcp-server",
			},
			Description: "Access GitHub repositories and issues",
			EnvVars:     []string{"GITHUB_PERSONAL_ACCESS_TOKEN"},
		},
		{
			ID:          ServerFigma,
			Name:        "Figma",
			Command:     "npx",
			Args:        []string{"-y", "figma-developer-mcp"},
			Description: "Access Figma designs and components",
			EnvVars:     []string{"FIGMA_API_KEY"},
		},
	}
}

// List returns every preset plus any custom entries found in the
// configuration, with connection status filled in.
func (c *ServerCatalog) List() []ServerInfo {
	servers := presetServers()

	configured, ok := c.load()
	if !ok {
		return servers
	}

	known := make(map[string]int, len(servers))
	for i, s := range servers {
		known[s.ID] = i
	}

	for id, cfg := range configured {
		if id == ServerApprovalServer {
			continue
		}
		if i, preset := known[id]; preset {
			servers[i].Connected = true
			continue
		}
		servers = append(servers, ServerInfo{
			ID:          id,
			Name:        titleCase(id),
			Command:     cfg.Command,
			Args:        cfg.Args,
			Description: "Custom MCP connector",
			Connected:   true,
		})
	}
	return servers
}

// Connect adds a server to the configuration. A custom connector with
// command and args is written as supplied; otherwise the server id must
// match a preset. The approval server is always kept in the file.
func (c *ServerCatalog) Connect(serverID string, custom *CustomConnector) error {
	configured, ok := c.load()
	if !ok {
		configured = map[string]claude.MCPServerConfig{}
	}
	if _, present := configured[ServerApprovalServer]; !present {
		configured[ServerApprovalServer] = claude.MCPServerConfig{
			Command: "python",
			Args:    []string{"mcp_approval_webhook_server.py"},
		}
	}

	if custom != nil && custom.Command != "" && len(custom.Args) > 0 {
		configured[serverID] = claude.MCPServerConfig{
			Command: custom.Command,
			Args:    custom.Args,
			Env:     custom.Env,
		}
		if err := c.save(configured); err != nil {
			return err
		}
		c.logger.Info("Connected custom MCP server: id=%s", serverID)
		return nil
	}

	var preset *ServerInfo
	for _, s := range presetServers() {
		if s.ID == serverID {
			preset = &s
			break
		}
	}
	if preset == nil {
		return fmt.Errorf("%w: %s", ErrServerNotFound, serverID)
	}

	entry := claude.MCPServerConfig{
		Command: preset.Command,
		Args:    append([]string(nil), preset.Args...),
	}
	if serverID == ServerFigma && custom != nil && custom.Env["FIGMA_API_KEY"] != "" {
		entry.Args = append(entry.Args,
			fmt.Sprintf("--figma-api-key=%s", custom.Env["FIGMA_API_KEY"]),
			"--stdio",
		)
	} else if custom != nil && len(custom.Env) > 0 {
		entry.Env = custom.Env
	}
	configured[serverID] = entry

	if err := c.save(configured); err != nil {
		return err
	}
	c.logger.Info("Connected MCP server: id=%s", serverID)
	return nil
}

// Disconnect removes a server from the configuration. The approval
// server cannot be removed.
func (c *ServerCatalog) Disconnect(serverID string) error {
	configured, ok := c.load()
	if !ok {
		return ErrNoServerConfig
	}
	if _, present := configured[serverID]; !present {
		return fmt.Errorf("%w: %s", ErrServerNotConnected, serverID)
	}
	if serverID == ServerApprovalServer {
		return ErrApprovalProtected
	}

	delete(configured, serverID)
	if err := c.save(configured); err != nil {
		return err
	}
	c.logger.Info("Disconnected MCP server: id=%s", serverID)
	return nil
}

func (c *ServerCatalog) load() (map[string]claude.MCPServerConfig, bool) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, false
	}
	var doc struct {
		MCPServers map[string]claude.MCPServerConfig `json:"mcpServers"`
	}
	if err := json.Unmarshal(data, &doc); err != nil || doc.MCPServers == nil {
		return nil, false
	}
	return doc.MCPServers, true
}

func (c *ServerCatalog) save(servers map[string]claude.MCPServerConfig) error {
	data, err := json.MarshalIndent(map[string]any{"mcpServers": servers}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", c.path, err)
	}
	return nil
}

// titleCase turns a hyphenated id into a display name.
func titleCase(id string) string {
	words := strings.Split(strings.ReplaceAll(id, "-", " "), " ")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
