package scaffold

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay/pkg/claude"
)

func newTestCatalog(t *testing.T) (*ServerCatalog, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mcp-servers.json")
	return NewServerCatalog(path), path
}

func readCatalogFile(t *testing.T, path string) map[string]claude.MCPServerConfig {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc struct {
		MCPServers map[string]claude.MCPServerConfig `json:"mcpServers"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc.MCPServers
}

func TestCatalogList_NoConfig(t *testing.T) {
	catalog, _ := newTestCatalog(t)

	servers := catalog.List()
	require.Len(t, servers, 4)
	for _, s := range servers {
		assert.False(t, s.Connected, "id=%s", s.ID)
		assert.NotEqual(t, ServerApprovalServer, s.ID, "approval server is not a connectable preset")
	}
}

func TestCatalogList_ConnectionStatus(t *testing.T) {
	catalog, path := newTestCatalog(t)
	doc := `{"mcpServers":{
		"approval-server":{"command":"python","args":["mcp_approval_webhook_server.py"]},
		"context7":{"command":"npx","args":["-y","@upstash/context7-mcp"]},
		"my-tool":{"command":"node","args":["tool.js"]}
	}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	servers := catalog.List()
	byID := map[string]ServerInfo{}
	for _, s := range servers {
		byID[s.ID] = s
	}

	assert.True(t, byID["context7"].Connected)
	assert.False(t, byID["context-manager"].Connected)
	assert.NotContains(t, byID, ServerApprovalServer)

	custom, ok := byID["my-tool"]
	require.True(t, ok, "configured non-preset entries are listed as custom connectors")
	assert.True(t, custom.Connected)
	assert.Equal(t, "My Tool", custom.Name)
	assert.Equal(t, "node", custom.Command)
}

func TestCatalogConnect_Preset(t *testing.T) {
	catalog, path := newTestCatalog(t)

	require.NoError(t, catalog.Connect(ServerContext7, nil))

	servers := readCatalogFile(t, path)
	assert.Contains(t, servers, ServerApprovalServer, "approval server is always kept")
	require.Contains(t, servers, ServerContext7)
	assert.Equal(t, []string{"-y", "@upstash/context7-mcp"}, servers[ServerContext7].Args)
}

func TestCatalogConnect_UnknownPreset(t *testing.T) {
	catalog, _ := newTestCatalog(t)

	err := catalog.Connect("jira", nil)
	require.ErrorIs(t, err, ErrServerNotFound)
	assert.Contains(t, err.Error(), "jira")
}

func TestCatalogConnect_FigmaToken(t *testing.T) {
	catalog, path := newTestCatalog(t)

	require.NoError(t, catalog.Connect(ServerFigma, &CustomConnector{
		Env: map[string]string{"FIGMA_API_KEY": "fig_tok"},
	}))

	entry := readCatalogFile(t, path)[ServerFigma]
	assert.Contains(t, entry.Args, "--figma-api-key=fig_tok")
	assert.Contains(t, entry.Args, "--stdio")
	assert.Empty(t, entry.Env, "figma token travels as an argument, not env")
}

func TestCatalogConnect_CustomConnector(t *testing.T) {
	catalog, path := newTestCatalog(t)

	require.NoError(t, catalog.Connect("my-tool", &CustomConnector{
		Command: "node",
		Args:    []string{"tool.js"},
		Env:     map[string]string{"TOKEN": "x"},
	}))

	entry := readCatalogFile(t, path)["my-tool"]
	assert.Equal(t, "node", entry.Command)
	assert.Equal(t, []string{"tool.js"}, entry.Args)
	assert.Equal(t, "x", entry.Env["TOKEN"])
}

func TestCatalogDisconnect(t *testing.T) {
	catalog, path := newTestCatalog(t)
	require.NoError(t, catalog.Connect(ServerContext7, nil))

	require.NoError(t, catalog.Disconnect(ServerContext7))

	servers := readCatalogFile(t, path)
	assert.NotContains(t, servers, ServerContext7)
	assert.Contains(t, servers, ServerApprovalServer)
}

func TestCatalogDisconnect_Errors(t *testing.T) {
	catalog, _ := newTestCatalog(t)
	assert.ErrorIs(t, catalog.Disconnect(ServerContext7), ErrNoServerConfig)

	require.NoError(t, catalog.Connect(ServerContext7, nil))
	assert.ErrorIs(t, catalog.Disconnect("context-manager"), ErrServerNotConnected)
	assert.ErrorIs(t, catalog.Disconnect(ServerApprovalServer), ErrApprovalProtected)
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "My Tool", titleCase("my-tool"))
	assert.Equal(t, "Context7", titleCase("context7"))
}
