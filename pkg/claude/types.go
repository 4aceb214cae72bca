package claude

// Options controls a single Claude Code invocation.
type Options struct {
	// WorkDir is the working directory for the CLI process.
	WorkDir string

	// Model selects the model (e.g. "claude-3-5-sonnet-latest").
	Model string

	// MaxTurns caps the number of agent turns. Zero means CLI default.
	MaxTurns int

	// AllowedTools lists the tools the agent may use.
	AllowedTools []string

	// SystemPrompt is appended to the CLI's system prompt.
	SystemPrompt string

	// PermissionMode is the CLI permission mode (e.g. "acceptEdits").
	// Empty when PermissionPromptTool handles approvals instead.
	PermissionMode string

	// PermissionPromptTool names an MCP tool that approves permission
	// requests. Mutually exclusive with PermissionMode.
	PermissionPromptTool string

	// Resume resumes an existing session by ID.
	Resume string

	// SessionID pins the session ID for a new session. Ignored when
	// Resume is set.
	SessionID string

	// MCPServers configures MCP servers inline. Written to a temp
	// config file and passed via --mcp-config.
	MCPServers map[string]MCPServerConfig

	// MCPConfigPath points at an existing MCP config file. Ignored
	// when MCPServers is set.
	MCPConfigPath string
}

// MCPServerConfig describes one MCP server entry in the config file.
// Either Command (stdio transport) or URL (http/sse transport) is set.
type MCPServerConfig struct {
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Type    string            `json:"type,omitempty"`
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// EventType classifies a parsed stream event.
type EventType string

const (
	EventText       EventType = "text"
	EventToolUse    EventType = "tool_use"
	EventToolResult EventType = "tool_result"
	EventResult     EventType = "result"
	EventUnknown    EventType = "unknown"
)

// Event is one unit of Claude Code stream output. An assistant message
// with several content blocks produces one Event per block.
type Event struct {
	// Type is the content classification.
	Type EventType

	// MessageKind is the wire-level message type ("assistant", "user",
	// "result", "system", ...).
	MessageKind string

	// SessionID is the CLI session the event belongs to, when present
	// on the wire.
	SessionID string

	// Text holds assistant text content (for EventText).
	Text string

	// ToolName and ToolInput describe a tool call (for EventToolUse).
	ToolName  string
	ToolInput map[string]any

	// Content holds tool result content (for EventToolResult).
	Content string

	// IsError marks a failed tool result.
	IsError bool

	// Summary holds the terminal result (for EventResult).
	Summary *ResultSummary

	// Raw is the raw JSON line for debugging.
	Raw string
}

// ResultSummary is the terminal "result" event of a session.
type ResultSummary struct {
	SessionID     string
	Subtype       string
	Result        string
	DurationMS    int64
	DurationAPIMS int64
	IsError       bool
	NumTurns      int
	TotalCostUSD  float64
	Usage         map[string]any
}
