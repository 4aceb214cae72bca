package orchestrator

import (
	"encoding/json"
	"os"
	"path/filepath"

	"relay/pkg/claude"
	"relay/pkg/config"
)

// approvalTool is the MCP tool that handles permission prompts in
// interactive mode.
const approvalTool = "mcp__approval-server__permissions__approve"

// mcpTools are appended to the allow-list when MCP servers are active.
var mcpTools = []string{"mcp__context-manager", "mcp__context7", "mcp__github", "mcp__figma"}

// Options is the caller-supplied option bag for a query.
type Options struct {
	WorkDir        string                            `json:"cwd,omitempty"`
	AllowedTools   []string                          `json:"allowed_tools,omitempty"`
	MaxTurns       int                               `json:"max_turns,omitempty"`
	PermissionMode string                            `json:"permission_mode,omitempty"`
	SystemPrompt   string                            `json:"system_prompt,omitempty"`
	MCPServers     map[string]claude.MCPServerConfig `json:"mcp_servers,omitempty"`
}

// buildOptions merges caller options over configured defaults and
// resolves the permission setup.
func (p *Processor) buildOptions(opts *Options, sessionID string) *claude.Options {
	if opts == nil {
		opts = &Options{}
	}

	out := &claude.Options{
		WorkDir:  p.cfg.ProjectRoot,
		MaxTurns: p.cfg.MaxTurns,
		Model:    p.cfg.ClaudeModel,
		Resume:   sessionID,
	}
	out.AllowedTools = append(out.AllowedTools, p.cfg.DefaultTools...)

	if opts.WorkDir != "" {
		out.WorkDir = opts.WorkDir
	}
	if len(opts.AllowedTools) > 0 {
		out.AllowedTools = append([]string(nil), opts.AllowedTools...)
	}
	if opts.MaxTurns > 0 {
		out.MaxTurns = opts.MaxTurns
	}
	if opts.SystemPrompt != "" {
		out.SystemPrompt = opts.SystemPrompt
	}

	mode := opts.PermissionMode
	if mode == "" {
		mode = "acceptEdits"
	}

	if mode == "interactive" {
		servers := p.resolveMCPServers(opts)
		if len(servers) > 0 {
			p.logger.Info("Configuring MCP interactive permissions: servers=%d", len(servers))
			out.PermissionMode = ""
			out.PermissionPromptTool = approvalTool
			out.MCPServers = servers
			out.AllowedTools = append(out.AllowedTools, mcpTools...)
		} else {
			// Must never fail the task
			p.logger.Warn("MCP config not found, falling back to acceptEdits")
			out.PermissionMode = "acceptEdits"
		}
	} else {
		out.PermissionMode = mode
	}

	return out
}

// resolveMCPServers finds MCP server configuration: caller-supplied map
// first, then the project-local config file, then the global one.
func (p *Processor) resolveMCPServers(opts *Options) map[string]claude.MCPServerConfig {
	if len(opts.MCPServers) > 0 {
		return opts.MCPServers
	}

	if opts.WorkDir != "" {
		path := filepath.Join(opts.WorkDir, ".claude", config.MCPConfigFilename)
		if servers := loadMCPConfig(path); servers != nil {
			p.logger.Info("Loaded MCP servers from project: path=%s servers=%d", path, len(servers))
			return servers
		}
		p.logger.Warn("No %s found at %s", config.MCPConfigFilename, path)
	}

	return loadMCPConfig(p.cfg.GlobalMCPConfigPath())
}

func loadMCPConfig(path string) map[string]claude.MCPServerConfig {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var doc struct {
		MCPServers map[string]claude.MCPServerConfig `json:"mcpServers"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil
	}
	return doc.MCPServers
}
