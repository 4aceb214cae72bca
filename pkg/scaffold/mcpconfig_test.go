package scaffold

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay/pkg/claude"
	"relay/pkg/config"
)

func TestBuildMCPServers_ApprovalAlwaysPresent(t *testing.T) {
	servers, skipped := buildMCPServers(nil)
	require.Contains(t, servers, ServerApprovalServer)
	assert.Equal(t, "python", servers[ServerApprovalServer].Command)
	assert.Empty(t, skipped)
}

func TestBuildMCPServers_Selections(t *testing.T) {
	servers, skipped := buildMCPServers([]ServerSelection{
		{ServerType: ServerContextManager},
		{ServerType: ServerContext7},
		{ServerType: ServerGitHub, AccessToken: "ghp_token"},
		{ServerType: ServerFigma, AccessToken: "fig_token"},
	})
	assert.Empty(t, skipped)
	require.Len(t, servers, 5)

	assert.Equal(t, []string{"mcp-context-manager"}, servers[ServerContextManager].Args)
	assert.Equal(t, []string{"-y", "@upstash/context7-mcp"}, servers[ServerContext7].Args)

	github := servers[ServerGitHub]
	assert.Equal(t, "docker", github.Command)
	assert.Equal(t, "ghp_token", github.Env["GITHUB_PERSONAL_ACCESS_TOKEN"])

	figma := servers[ServerFigma]
	assert.Equal(t, "npx", figma.Command)
	assert.Contains(t, figma.Args, "--figma-api-key=fig_token")
	assert.Contains(t, figma.Args, "--stdio")
}

func TestBuildMCPServers_SkipsTokenlessAndUnknown(t *testing.T) {
	servers, skipped := buildMCPServers([]ServerSelection{
		{ServerType: ServerGitHub},
		{ServerType: ServerFigma},
		{ServerType: "jira"},
	})
	assert.Len(t, servers, 1, "only the approval server remains")
	assert.ElementsMatch(t, []string{ServerGitHub, ServerFigma, "jira"}, skipped)
}

func TestWriteMCPConfig(t *testing.T) {
	dir := t.TempDir()
	servers := map[string]claude.MCPServerConfig{
		"context7": {Command: "npx", Args: []string{"-y", "@upstash/context7-mcp"}},
	}
	require.NoError(t, writeMCPConfig(dir, servers))

	data, err := os.ReadFile(filepath.Join(dir, ".claude", config.MCPConfigFilename))
	require.NoError(t, err)

	var doc struct {
		MCPServers map[string]claude.MCPServerConfig `json:"mcpServers"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, servers, doc.MCPServers)
}

func TestUpdateGitignore_CreatesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, updateGitignore(dir))

	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	assert.Equal(t, ".claude/\n", string(data))
}

func TestUpdateGitignore_AppendsEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".gitignore")
	require.NoError(t, os.WriteFile(path, []byte("node_modules/"), 0o644))

	require.NoError(t, updateGitignore(dir))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "node_modules/\n.claude/\n", string(data), "missing trailing newline is repaired before appending")
}

func TestUpdateGitignore_AlreadyPresent(t *testing.T) {
	for _, existing := range []string{".claude/\n", "dist/\n.claude\n"} {
		dir := t.TempDir()
		path := filepath.Join(dir, ".gitignore")
		require.NoError(t, os.WriteFile(path, []byte(existing), 0o644))

		require.NoError(t, updateGitignore(dir))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, existing, string(data), "no duplicate entry added")
	}
}
