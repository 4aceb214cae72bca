// Package orchestrator drives fire-and-forget agent tasks: it runs the
// Claude CLI for a prompt, streams progress to a callback URL, and
// retries failed attempts according to the recovery policy.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"relay/pkg/claude"
	"relay/pkg/config"
	"relay/pkg/logx"
	"relay/pkg/monitor"
	"relay/pkg/notify"
	"relay/pkg/recovery"
	"relay/pkg/session"
)

// Agent runs one prompt and streams events back. *claude.Runner is the
// production implementation.
type Agent interface {
	Query(ctx context.Context, prompt string, opts *claude.Options, onEvent func(claude.Event)) error
}

// Request describes one task submission.
type Request struct {
	TaskID         string
	Prompt         string
	WebhookURL     string
	SessionID      string
	ConversationID string
	Options        *Options

	// Timeout and MaxRetries override the configured defaults when
	// positive. Scaffolding uses shorter timeouts for its agent steps.
	Timeout    time.Duration
	MaxRetries int
}

func (r *Request) timeout(cfg *config.Settings) time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return cfg.QueryTimeout
}

func (r *Request) maxRetries(cfg *config.Settings) int {
	if r.MaxRetries > 0 {
		return r.MaxRetries
	}
	return cfg.MaxRetries
}

// Processor owns all task execution state. Construct once at startup
// and share.
type Processor struct {
	cfg        *config.Settings
	agent      Agent
	notifier   *notify.Notifier
	sessions   *session.Registry
	monitor    *monitor.Monitor
	strategist *recovery.Strategist
	logger     *logx.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewProcessor wires a Processor from its collaborators.
func NewProcessor(cfg *config.Settings, agent Agent, notifier *notify.Notifier, sessions *session.Registry, mon *monitor.Monitor) *Processor {
	return &Processor{
		cfg:        cfg,
		agent:      agent,
		notifier:   notifier,
		sessions:   sessions,
		monitor:    mon,
		strategist: recovery.NewStrategist(),
		logger:     logx.NewLogger("orchestrator"),
		active:     make(map[string]context.CancelFunc),
	}
}

// Strategist exposes the recovery strategist, mainly so tests can
// replace its sleep function.
func (p *Processor) Strategist() *recovery.Strategist {
	return p.strategist
}

// Sessions returns the session registry.
func (p *Processor) Sessions() *session.Registry {
	return p.sessions
}

// Monitor returns the progress monitor.
func (p *Processor) Monitor() *monitor.Monitor {
	return p.monitor
}

// Launch starts task processing in the background and returns
// immediately. All failures end in a "failed" notification and a log
// line; nothing escapes to crash the process.
func (p *Processor) Launch(req *Request) {
	go func() {
		if err := p.ProcessWithRetry(context.Background(), req); err != nil {
			p.logger.Error("Task failed after all recovery attempts: task=%s err=%v", req.TaskID, err)
		}
	}()
}

// ProcessWithRetry runs the task, asking the recovery strategist after
// each failed attempt whether to try again.
func (p *Processor) ProcessWithRetry(ctx context.Context, req *Request) error {
	retryCount := 0
	maxRetries := req.maxRetries(p.cfg)
	var lastErr error

	for retryCount <= maxRetries {
		err := p.ProcessWithTimeout(ctx, req)
		if err == nil {
			return nil
		}
		lastErr = err

		kind, ec := recovery.Classify(err)
		p.logger.Warn("Query attempt failed: task=%s retry=%d kind=%s err=%v", req.TaskID, retryCount, kind, err)

		if retryCount >= maxRetries {
			p.logger.Error("All retry attempts exhausted: task=%s retries=%d err=%v", req.TaskID, maxRetries, err)
			break
		}

		canRecover, reason := p.strategist.Decide(ctx, kind, req.TaskID, ec, retryCount, maxRetries)
		if !canRecover {
			p.logger.Error("Error recovery failed, aborting: task=%s retry=%d reason=%s", req.TaskID, retryCount, reason)
			break
		}
		p.logger.Info("Error recovery successful, retrying: task=%s retry=%d reason=%s", req.TaskID, retryCount+1, reason)
		retryCount++
	}

	return lastErr
}

// ProcessWithTimeout runs a single attempt under the configured query
// timeout. Monitoring registration and the active-task entry are always
// cleaned up, even on cancellation.
func (p *Processor) ProcessWithTimeout(ctx context.Context, req *Request) (err error) {
	p.monitor.Start(req.TaskID)
	if req.SessionID != "" {
		p.sessions.Track(req.SessionID, "", req.ConversationID)
	}

	timeout := req.timeout(p.cfg)
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	p.registerTask(req.TaskID, cancel)

	defer func() {
		cancel()
		p.unregisterTask(req.TaskID)
		p.monitor.Complete(req.TaskID, err == nil)
	}()

	err = p.processQuery(attemptCtx, req)
	if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		seconds := int(timeout.Seconds())
		msg := fmt.Sprintf("Query timed out after %d seconds", seconds)
		p.logger.Warn("Query timed out: task=%s timeout=%ds", req.TaskID, seconds)
		p.monitor.RecordError(req.TaskID, "timeout", msg)
		p.sendErrorWebhook(ctx, req, req.SessionID, msg)
		return context.DeadlineExceeded
	}
	return err
}

// processQuery performs the streaming attempt: user_message
// notification, agent invocation with per-event query notifications,
// then a terminal completed or failed notification.
func (p *Processor) processQuery(ctx context.Context, req *Request) error {
	p.logger.Info("Starting query processing: task=%s session=%s conversation=%s prompt_len=%d",
		req.TaskID, req.SessionID, req.ConversationID, len(req.Prompt))

	p.notifier.Send(ctx, req.WebhookURL, &notify.Payload{
		TaskID:         req.TaskID,
		SessionID:      req.SessionID,
		ConversationID: req.ConversationID,
		Type:           notify.TypeStatus,
		Status:         notify.StatusUserMessage,
		Result:         req.Prompt,
	})

	opts := p.buildOptions(req.Options, req.SessionID)

	sessionID := req.SessionID
	var fragments []string
	var finalResult string
	var haveFinal bool

	onEvent := func(ev claude.Event) {
		if ev.SessionID != "" {
			sessionID = ev.SessionID
		}
		switch ev.Type {
		case claude.EventText:
			fragments = append(fragments, ev.Text)
			p.monitor.RecordMessage(req.TaskID)
			p.sendQueryWebhook(ctx, req, sessionID, &notify.Payload{
				MessageType: ev.MessageKind,
				ContentType: "text",
				Result:      ev.Text,
			})
		case claude.EventToolUse:
			if sessionID != "" {
				p.sessions.RecordTool(sessionID, ev.ToolName)
			}
			p.sendQueryWebhook(ctx, req, sessionID, &notify.Payload{
				MessageType: ev.MessageKind,
				ContentType: "tool_use",
				ToolName:    ev.ToolName,
				ToolInput:   ev.ToolInput,
				Result:      "Tool: " + ev.ToolName,
			})
		case claude.EventToolResult:
			payload := &notify.Payload{
				MessageType: ev.MessageKind,
				ContentType: "tool_result",
				Result:      ev.Content,
			}
			if ev.IsError {
				payload.Error = ev.Content
			}
			p.sendQueryWebhook(ctx, req, sessionID, payload)
		case claude.EventResult:
			if ev.Summary != nil {
				if ev.Summary.SessionID != "" {
					sessionID = ev.Summary.SessionID
				}
				if ev.Summary.Result != "" {
					finalResult = ev.Summary.Result
					haveFinal = true
				}
				p.sendQueryWebhook(ctx, req, sessionID, &notify.Payload{
					MessageType:   ev.MessageKind,
					ContentType:   "result",
					Result:        ev.Summary.Result,
					Subtype:       ev.Summary.Subtype,
					DurationMS:    ev.Summary.DurationMS,
					DurationAPIMS: ev.Summary.DurationAPIMS,
					IsError:       ev.Summary.IsError,
					NumTurns:      ev.Summary.NumTurns,
					TotalCostUSD:  ev.Summary.TotalCostUSD,
					Usage:         ev.Summary.Usage,
				})
			}
		default:
			p.sendQueryWebhook(ctx, req, sessionID, &notify.Payload{
				MessageType: ev.MessageKind,
				ContentType: "unknown",
				Result:      ev.Raw,
			})
		}
	}

	if err := p.agent.Query(ctx, req.Prompt, opts, onEvent); err != nil {
		if ctx.Err() != nil {
			// Timeout notification is handled by ProcessWithTimeout
			return err
		}
		msg := describeAgentError(err)
		p.logger.Error("Query attempt error: task=%s err=%v", req.TaskID, err)
		p.sendErrorWebhook(ctx, req, sessionID, msg)
		return err
	}

	resultText := finalResult
	if !haveFinal {
		resultText = strings.Join(fragments, "\n")
	}

	p.notifier.Send(ctx, req.WebhookURL, &notify.Payload{
		TaskID:         req.TaskID,
		SessionID:      sessionID,
		ConversationID: req.ConversationID,
		Type:           notify.TypeStatus,
		Status:         notify.StatusCompleted,
		Result:         resultText,
	})

	p.logger.Info("Query completed successfully: task=%s session=%s result_len=%d",
		req.TaskID, sessionID, len(resultText))
	return nil
}

func (p *Processor) sendQueryWebhook(ctx context.Context, req *Request, sessionID string, payload *notify.Payload) {
	payload.TaskID = req.TaskID
	payload.SessionID = sessionID
	payload.ConversationID = req.ConversationID
	payload.Type = notify.TypeQuery
	payload.Status = notify.StatusProcessing
	p.notifier.Send(ctx, req.WebhookURL, payload)
}

func (p *Processor) sendErrorWebhook(ctx context.Context, req *Request, sessionID, msg string) {
	p.notifier.Send(ctx, req.WebhookURL, &notify.Payload{
		TaskID:         req.TaskID,
		SessionID:      sessionID,
		ConversationID: req.ConversationID,
		Type:           notify.TypeError,
		Status:         notify.StatusFailed,
		Error:          msg,
	})
}

// describeAgentError turns a typed agent failure into the
// human-readable text carried by the failed notification.
func describeAgentError(err error) string {
	if errors.Is(err, claude.ErrCLINotFound) {
		return "Claude Code CLI not found. Install with: npm install -g @anthropic-ai/claude-code"
	}
	var procErr *claude.ProcessError
	if errors.As(err, &procErr) {
		return fmt.Sprintf("Claude process failed with exit code %d", procErr.ExitCode)
	}
	var sdkErr *claude.SDKError
	if errors.As(err, &sdkErr) {
		return "Claude SDK error: " + sdkErr.Message
	}
	return "Unexpected error: " + err.Error()
}

func (p *Processor) registerTask(taskID string, cancel context.CancelFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active[taskID] = cancel
}

func (p *Processor) unregisterTask(taskID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.active, taskID)
}

// ActiveTasks returns the number of in-flight attempts.
func (p *Processor) ActiveTasks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

// Cancel cancels the in-flight attempt for a task id. Returns false if
// the task is not active.
func (p *Processor) Cancel(taskID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	cancel, ok := p.active[taskID]
	if ok {
		cancel()
	}
	return ok
}
