package claude

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	osexec "os/exec"
	"strings"
	"sync"
	"time"

	"relay/pkg/exec"
	"relay/pkg/logx"
)

// Runner executes the Claude Code CLI in print mode and streams parsed
// events back to the caller.
type Runner struct {
	executor   exec.Executor
	claudePath string
	logger     *logx.Logger
}

// NewRunner creates a Runner. claudePath defaults to "claude" when empty.
func NewRunner(executor exec.Executor, claudePath string, logger *logx.Logger) *Runner {
	if claudePath == "" {
		claudePath = "claude"
	}
	if logger == nil {
		logger = logx.NewLogger("claude-runner")
	}
	return &Runner{
		executor:   executor,
		claudePath: claudePath,
		logger:     logger,
	}
}

// Query runs one CLI invocation with the given prompt and streams each
// parsed event to onEvent as it arrives. It returns when the process
// exits. Failures map to typed errors: ErrCLINotFound when the binary
// is missing, *ProcessError on non-zero exit, *SDKError when the stream
// carried an error event, or the context error on cancellation.
func (r *Runner) Query(ctx context.Context, prompt string, opts *Options, onEvent func(Event)) error {
	if opts == nil {
		opts = &Options{}
	}

	mcpPath := opts.MCPConfigPath
	if len(opts.MCPServers) > 0 {
		path, cleanup, err := writeMCPConfig(opts.MCPServers)
		if err != nil {
			return fmt.Errorf("write mcp config: %w", err)
		}
		defer cleanup()
		mcpPath = path
	}

	cmd := r.buildCommand(prompt, opts, mcpPath)
	start := time.Now()
	r.logger.Debug("Starting claude: session=%s resume=%s mode=%s model=%s",
		opts.SessionID, opts.Resume, opts.PermissionMode, opts.Model)

	proc, err := r.executor.Start(ctx, cmd, &exec.Opts{WorkDir: opts.WorkDir})
	if err != nil {
		if errors.Is(err, osexec.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrCLINotFound, r.claudePath)
		}
		return fmt.Errorf("start claude: %w", err)
	}

	var stderr strings.Builder
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = io.Copy(&stderr, proc.Stderr)
	}()

	parser := NewStreamParser(onEvent, func(perr error) {
		r.logger.Debug("Stream parse error: %v", perr)
	})
	parseErr := parser.ParseReader(proc.Stdout)

	wg.Wait()
	waitErr := proc.Wait()
	r.logger.Debug("claude exited: lines=%d duration=%s", parser.LineCount(), time.Since(start))

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if waitErr != nil {
		var exitErr *osexec.ExitError
		if errors.As(waitErr, &exitErr) {
			return &ProcessError{ExitCode: exitErr.ExitCode(), Stderr: strings.TrimSpace(stderr.String())}
		}
		return fmt.Errorf("claude wait: %w", waitErr)
	}
	if msg := parser.StreamError(); msg != "" {
		return &SDKError{Message: msg}
	}
	if parseErr != nil {
		return parseErr
	}
	return nil
}

// buildCommand constructs the CLI invocation.
func (r *Runner) buildCommand(prompt string, opts *Options, mcpPath string) []string {
	cmd := []string{
		r.claudePath,
		"--print",
		"--verbose",
		"--output-format", "stream-json",
	}

	if opts.Model != "" {
		cmd = append(cmd, "--model", opts.Model)
	}
	if opts.MaxTurns > 0 {
		cmd = append(cmd, "--max-turns", fmt.Sprintf("%d", opts.MaxTurns))
	}
	if len(opts.AllowedTools) > 0 {
		cmd = append(cmd, "--allowedTools", strings.Join(opts.AllowedTools, ","))
	}
	if opts.SystemPrompt != "" {
		cmd = append(cmd, "--append-system-prompt", opts.SystemPrompt)
	}
	if opts.PermissionPromptTool != "" {
		cmd = append(cmd, "--permission-prompt-tool", opts.PermissionPromptTool)
	} else if opts.PermissionMode != "" {
		cmd = append(cmd, "--permission-mode", opts.PermissionMode)
	}
	if mcpPath != "" {
		cmd = append(cmd, "--mcp-config", mcpPath)
	}

	// In print mode --resume requires the session ID as its argument.
	// --session-id only pins the ID for a brand new session.
	if opts.Resume != "" {
		cmd = append(cmd, "--resume", opts.Resume)
	} else if opts.SessionID != "" {
		cmd = append(cmd, "--session-id", opts.SessionID)
	}

	// -- separator so prompts starting with - are not parsed as flags
	cmd = append(cmd, "--", prompt)
	return cmd
}

// writeMCPConfig writes an inline server map to a temp config file.
// The CLI's --mcp-config flag expects a file path, not inline JSON.
func writeMCPConfig(servers map[string]MCPServerConfig) (string, func(), error) {
	data, err := json.Marshal(map[string]any{"mcpServers": servers})
	if err != nil {
		return "", nil, err
	}

	f, err := os.CreateTemp("", "relay-mcp-*.json")
	if err != nil {
		return "", nil, err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, err
	}

	path := f.Name()
	return path, func() { os.Remove(path) }, nil
}
