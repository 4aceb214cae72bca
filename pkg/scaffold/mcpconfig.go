package scaffold

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"relay/pkg/claude"
	"relay/pkg/config"
)

// Supported MCP server types for scaffolded projects.
const (
	ServerApprovalServer = "approval-server"
	ServerContextManager = "context-manager"
	ServerContext7       = "context7"
	ServerFigma          = "figma"
	ServerGitHub         = "github"
)

// ServerSelection is one MCP server requested for a new project.
type ServerSelection struct {
	ServerType  string `json:"server_type"`
	AccessToken string `json:"access_token,omitempty"`
}

// buildMCPServers maps server selections to launch configurations. The
// approval server is always included. Selections that require a token
// but lack one are skipped with an error entry in the returned list.
func buildMCPServers(selections []ServerSelection) (map[string]claude.MCPServerConfig, []string) {
	servers := map[string]claude.MCPServerConfig{
		ServerApprovalServer: {
			Command: "python",
			Args:    []string{".claude/mcp_approval_webhook_server.py"},
		},
	}

	var skipped []string
	for _, sel := range selections {
		switch sel.ServerType {
		case ServerContextManager:
			servers[ServerContextManager] = claude.MCPServerConfig{
				Command: "npx",
				Args:    []string{"mcp-context-manager"},
			}
		case ServerContext7:
			servers[ServerContext7] = claude.MCPServerConfig{
				Command: "npx",
				Args:    []string{"-y", "@upstash/context7-mcp"},
			}
		case ServerFigma:
			if sel.AccessToken == "" {
				skipped = append(skipped, ServerFigma)
				continue
			}
			servers[ServerFigma] = claude.MCPServerConfig{
				Command: "npx",
				Args: []string{
					"-y", "figma-developer-mcp",
					fmt.Sprintf("--figma-api-key=%s", sel.AccessToken),
					"--stdio",
				},
			}
		case ServerGitHub:
			if sel.AccessToken == "" {
				skipped = append(skipped, ServerGitHub)
				continue
			}
			servers[ServerGitHub] = claude.MCPServerConfig{
				Command: "docker",
				Args: []string{
					"run", "-i", "--rm",
					"-e", "GITHUB_PERSONAL_ACCESS_TOKEN",
					"ghcr.io/github/github-mcp-server",
				},
				Env: map[string]string{"GITHUB_PERSONAL_ACCESS_TOKEN": sel.AccessToken},
			}
		default:
			skipped = append(skipped, sel.ServerType)
		}
	}
	return servers, skipped
}

// writeMCPConfig writes .claude/mcp-servers.json in the project.
func writeMCPConfig(projectPath string, servers map[string]claude.MCPServerConfig) error {
	claudeDir := filepath.Join(projectPath, ".claude")
	if err := os.MkdirAll(claudeDir, 0o755); err != nil {
		return fmt.Errorf("create .claude directory: %w", err)
	}

	data, err := json.MarshalIndent(map[string]any{"mcpServers": servers}, "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(claudeDir, config.MCPConfigFilename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// updateGitignore ensures .claude/ is ignored in the project. Creates
// the file when missing, appends when the entry is absent.
func updateGitignore(projectPath string) error {
	path := filepath.Join(projectPath, ".gitignore")
	entry := ".claude/"

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return os.WriteFile(path, []byte(entry+"\n"), 0o644)
	}
	if err != nil {
		return err
	}

	for _, line := range splitLines(string(data)) {
		if line == entry || line == ".claude" {
			return nil
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	prefix := ""
	if len(data) > 0 && data[len(data)-1] != '\n' {
		prefix = "\n"
	}
	_, err = f.WriteString(prefix + entry + "\n")
	return err
}
