// Package scaffold initializes project repositories: directory setup,
// git clone and branch, MCP configuration, instruction templates, and
// agent-assisted documentation. Progress is reported step by step to a
// callback URL.
package scaffold

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"relay/pkg/claude"
	"relay/pkg/config"
	"relay/pkg/exec"
	"relay/pkg/logx"
	"relay/pkg/notify"
	"relay/pkg/orchestrator"
)

// initPrompt is the agent command that generates CLAUDE.md.
const initPrompt = "/init"

// contextManagerPrompts are run best-effort after setup when the
// context-manager MCP server is selected.
var contextManagerPrompts = []string{
	"use context manager mcp and Use setup_context for the current directory",
	"use context manager mcp and Use update_context for the current directory",
	"use context manager mcp and Use persist_context for the current directory",
}

// Request describes one project initialization.
type Request struct {
	TaskID           string
	OrganizationName string
	ProjectPath      string
	RepoURL          string
	WebhookURL       string
	MCPServers       []ServerSelection
}

// Initializer runs the scaffolding sequence.
type Initializer struct {
	cfg       *config.Settings
	executor  exec.Executor
	processor *orchestrator.Processor
	notifier  *notify.Notifier
	logger    *logx.Logger
}

// NewInitializer wires an Initializer from its collaborators.
func NewInitializer(cfg *config.Settings, executor exec.Executor, processor *orchestrator.Processor, notifier *notify.Notifier) *Initializer {
	return &Initializer{
		cfg:       cfg,
		executor:  executor,
		processor: processor,
		notifier:  notifier,
		logger:    logx.NewLogger("scaffold"),
	}
}

// Launch runs the initialization in the background.
func (in *Initializer) Launch(req *Request) {
	go func() {
		if err := in.Run(context.Background(), req); err != nil {
			in.logger.Error("Project initialization failed: task=%s err=%v", req.TaskID, err)
		}
	}()
}

// Run executes the step sequence. Structural failures (directory
// exists, clone failure) abort; auxiliary agent steps are best-effort.
// Every step sends an IN_PROGRESS and a COMPLETED or FAILED
// notification.
func (in *Initializer) Run(ctx context.Context, req *Request) error {
	projectName := filepath.Base(req.ProjectPath)
	target := filepath.Join(in.cfg.ProjectsDir(), req.OrganizationName, req.ProjectPath)

	// Step 1: create the project directory
	in.stepStarted(ctx, req, "create_directory", "Creating project directory "+target)
	if _, err := os.Stat(target); err == nil {
		err := fmt.Errorf("directory already exists: %s", target)
		in.stepFailed(ctx, req, "create_directory", err)
		return err
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		in.stepFailed(ctx, req, "create_directory", err)
		return err
	}
	in.stepCompleted(ctx, req, "create_directory", "Created project directory", nil)

	// Step 2: clone the repository
	in.stepStarted(ctx, req, "clone_repository", "Cloning "+req.RepoURL)
	result, err := in.executor.Run(ctx, []string{"git", "clone", req.RepoURL, target}, &exec.Opts{})
	if err != nil || result.ExitCode != 0 {
		if err == nil {
			err = fmt.Errorf("git clone exited with code %d: %s", result.ExitCode, result.Stderr)
		}
		os.RemoveAll(target)
		in.stepFailed(ctx, req, "clone_repository", err)
		return err
	}
	in.stepCompleted(ctx, req, "clone_repository", "Cloned repository", nil)

	// Step 3: create and check out a working branch. Non-fatal.
	in.stepStarted(ctx, req, "checkout_branch", "Creating branch "+projectName)
	result, err = in.executor.Run(ctx, []string{"git", "checkout", "-b", projectName}, &exec.Opts{WorkDir: target})
	if err != nil || result.ExitCode != 0 {
		in.logger.Warn("Failed to create branch: task=%s branch=%s stderr=%s", req.TaskID, projectName, result.Stderr)
		in.stepFailed(ctx, req, "checkout_branch", fmt.Errorf("branch creation failed: %s", result.Stderr))
	} else {
		in.stepCompleted(ctx, req, "checkout_branch", "Checked out branch "+projectName, nil)
	}

	// Step 4: write MCP configuration and ignore rules
	in.stepStarted(ctx, req, "write_mcp_config", "Writing MCP server configuration")
	servers, skipped := buildMCPServers(req.MCPServers)
	if err := writeMCPConfig(target, servers); err != nil {
		in.stepFailed(ctx, req, "write_mcp_config", err)
		return err
	}
	if err := updateGitignore(target); err != nil {
		in.logger.Warn("Failed to update .gitignore: task=%s err=%v", req.TaskID, err)
	}
	meta := map[string]any{"servers": len(servers)}
	if len(skipped) > 0 {
		meta["skipped"] = skipped
	}
	in.stepCompleted(ctx, req, "write_mcp_config", fmt.Sprintf("Configured %d MCP servers", len(servers)), meta)

	// Step 5: copy slash command templates. Best-effort.
	in.stepStarted(ctx, req, "copy_slash_commands", "Copying slash commands")
	copied, ok, err := copySlashCommands(filepath.Join(in.cfg.ProjectRoot, "resources"), target)
	if err != nil || !ok {
		if err == nil {
			err = fmt.Errorf("no slash commands copied")
		}
		in.stepFailed(ctx, req, "copy_slash_commands", err)
	} else {
		in.stepCompleted(ctx, req, "copy_slash_commands", fmt.Sprintf("Copied %d slash commands", copied), nil)
	}

	// Step 6: write AI instruction templates. Best-effort.
	in.stepStarted(ctx, req, "copy_ai_files", "Writing AI instruction files")
	written, err := writeAIInstructionFiles(target)
	if err != nil {
		in.stepFailed(ctx, req, "copy_ai_files", err)
	} else {
		in.stepCompleted(ctx, req, "copy_ai_files", fmt.Sprintf("Wrote %d AI instruction files", len(written)),
			map[string]any{"files": written})
	}

	// Step 7: agent-generated CLAUDE.md with a static fallback
	in.stepStarted(ctx, req, "claude_init", "Generating CLAUDE.md")
	in.runClaudeInit(ctx, req, target, projectName)

	// Step 8: context-manager setup prompts, each best-effort
	if _, selected := servers[ServerContextManager]; selected {
		in.stepStarted(ctx, req, "context_manager_init", "Running context manager setup")
		results := in.runContextManagerPrompts(ctx, req, target, servers)
		in.stepCompleted(ctx, req, "context_manager_init", "Context manager setup finished",
			map[string]any{"results": results})
	}

	// Final summary
	in.stepCompleted(ctx, req, "completed", "Project initialized successfully", map[string]any{
		"project_path": target,
		"branch":       projectName,
		"mcp_servers":  len(servers),
	})
	in.logger.Info("Project initialized: task=%s path=%s", req.TaskID, target)
	return nil
}

// runClaudeInit asks the agent to generate CLAUDE.md, falling back to
// the static template when the agent fails or produces nothing.
func (in *Initializer) runClaudeInit(ctx context.Context, req *Request, target, projectName string) {
	agentReq := &orchestrator.Request{
		TaskID:     uuid.New().String(),
		Prompt:     initPrompt,
		WebhookURL: req.WebhookURL,
		Options: &orchestrator.Options{
			WorkDir:        target,
			PermissionMode: "bypassPermissions",
			SystemPrompt:   "Only include files that are in the current directory",
			AllowedTools:   []string{"Read", "Write", "LS", "Edit", "MultiEdit"},
			MaxTurns:       16,
		},
		Timeout: 600 * time.Second,
	}

	err := in.processor.ProcessWithRetry(ctx, agentReq)
	claudeMD := filepath.Join(target, "CLAUDE.md")
	if _, statErr := os.Stat(claudeMD); err == nil && statErr == nil {
		in.stepCompleted(ctx, req, "claude_init", "Generated CLAUDE.md", nil)
		return
	}

	in.logger.Warn("Agent /init failed, writing basic CLAUDE.md: task=%s err=%v", req.TaskID, err)
	if werr := writeBasicClaudeMD(target, projectName, req.RepoURL); werr != nil {
		in.stepFailed(ctx, req, "claude_init", werr)
		return
	}
	in.stepCompleted(ctx, req, "claude_init", "Created basic CLAUDE.md template", nil)
}

// runContextManagerPrompts runs each setup prompt independently; one
// failure does not stop the rest.
func (in *Initializer) runContextManagerPrompts(ctx context.Context, req *Request, target string, servers map[string]claude.MCPServerConfig) []map[string]any {
	results := make([]map[string]any, 0, len(contextManagerPrompts))
	for i, prompt := range contextManagerPrompts {
		in.logger.Info("Running context manager prompt %d/%d: task=%s", i+1, len(contextManagerPrompts), req.TaskID)
		agentReq := &orchestrator.Request{
			TaskID:     uuid.New().String(),
			Prompt:     prompt,
			WebhookURL: req.WebhookURL,
			Options: &orchestrator.Options{
				WorkDir:        target,
				PermissionMode: "interactive",
				AllowedTools:   []string{"mcp__context-manager", "Read", "Write", "LS"},
				MCPServers:     servers,
				MaxTurns:       4,
			},
			Timeout: 60 * time.Second,
		}

		entry := map[string]any{"command": prompt, "task_id": agentReq.TaskID}
		if err := in.processor.ProcessWithRetry(ctx, agentReq); err != nil {
			in.logger.Error("Context manager prompt failed: task=%s err=%v", req.TaskID, err)
			entry["success"] = false
			entry["error"] = err.Error()
		} else {
			entry["success"] = true
		}
		results = append(results, entry)
	}
	return results
}

func (in *Initializer) stepStarted(ctx context.Context, req *Request, step, message string) {
	in.notifier.SendStep(ctx, req.WebhookURL, &notify.StepPayload{
		TaskID:            req.TaskID,
		StepName:          step,
		CompletionMessage: message,
		Status:            notify.StepInProgress,
	})
}

func (in *Initializer) stepCompleted(ctx context.Context, req *Request, step, message string, metadata map[string]any) {
	in.notifier.SendStep(ctx, req.WebhookURL, &notify.StepPayload{
		TaskID:            req.TaskID,
		StepName:          step,
		CompletionMessage: message,
		Status:            notify.StepCompleted,
		Metadata:          metadata,
	})
}

func (in *Initializer) stepFailed(ctx context.Context, req *Request, step string, err error) {
	in.notifier.SendStep(ctx, req.WebhookURL, &notify.StepPayload{
		TaskID:            req.TaskID,
		StepName:          step,
		CompletionMessage: "Step failed: " + step,
		Status:            notify.StepFailed,
		Error:             err.Error(),
	})
}
