package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	s := Default()
	assert.Equal(t, 8001, s.Port)
	assert.Equal(t, []string{"*"}, s.CORSOrigins)
	assert.Equal(t, 300*time.Second, s.QueryTimeout)
	assert.Equal(t, 10*time.Second, s.WebhookTimeout)
	assert.Equal(t, 3, s.MaxRetries)
	assert.Equal(t, "claude", s.ClaudePath)
	assert.Equal(t, 24*time.Hour, s.SessionMaxAge)
	assert.NoError(t, s.Validate())
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yaml")
	content := `
port: 9090
query_timeout: 120s
max_retries: 5
claude_model: claude-sonnet-4
default_tools:
  - Read
  - Bash
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, s.Port)
	assert.Equal(t, 120*time.Second, s.QueryTimeout)
	assert.Equal(t, 5, s.MaxRetries)
	assert.Equal(t, "claude-sonnet-4", s.ClaudeModel)
	assert.Equal(t, []string{"Read", "Bash"}, s.DefaultTools)

	// untouched fields keep their defaults
	assert.Equal(t, 10*time.Second, s.WebhookTimeout)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RELAY_PORT", "7070")
	t.Setenv("RELAY_QUERY_TIMEOUT", "90s")
	t.Setenv("RELAY_CORS_ORIGINS", "http://a.example, http://b.example")
	t.Setenv("RELAY_DEFAULT_TOOLS", "Read,Write")
	t.Setenv("RELAY_CLAUDE_PATH", "/usr/local/bin/claude")

	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7070, s.Port)
	assert.Equal(t, 90*time.Second, s.QueryTimeout)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, s.CORSOrigins)
	assert.Equal(t, []string{"Read", "Write"}, s.DefaultTools)
	assert.Equal(t, "/usr/local/bin/claude", s.ClaudePath)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9090\n"), 0o644))

	t.Setenv("RELAY_PORT", "7070")
	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, s.Port, "environment wins over the file")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"zero port", func(s *Settings) { s.Port = 0 }},
		{"port too large", func(s *Settings) { s.Port = 70000 }},
		{"negative retries", func(s *Settings) { s.MaxRetries = -1 }},
		{"zero query timeout", func(s *Settings) { s.QueryTimeout = 0 }},
		{"zero webhook timeout", func(s *Settings) { s.WebhookTimeout = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := Default()
			tc.mutate(&s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestPathHelpers(t *testing.T) {
	s := Default()
	s.ProjectRoot = "/srv/relay"
	assert.Equal(t, "/srv/relay/projects", s.ProjectsDir())
	assert.Equal(t, "/srv/relay/mcp-servers.json", s.GlobalMCPConfigPath())
}
