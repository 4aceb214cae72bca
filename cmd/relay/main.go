// Command relay runs the Claude task orchestration service: accepts
// fire-and-forget prompts over HTTP, executes them through the Claude
// Code CLI, and reports progress to caller-supplied webhook URLs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"relay/pkg/api"
	"relay/pkg/claude"
	"relay/pkg/config"
	"relay/pkg/exec"
	"relay/pkg/logx"
	"relay/pkg/monitor"
	"relay/pkg/notify"
	"relay/pkg/orchestrator"
	"relay/pkg/scaffold"
	"relay/pkg/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "relay: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logx.SetLevel(logx.ParseLevel(cfg.LogLevel))
	logger := logx.NewLogger("relay")

	prom := monitor.NewPrometheusRecorder()
	mon := monitor.NewMonitor(prom)
	notifier := notify.NewNotifier(cfg.WebhookTimeout, mon)
	sessions := session.NewRegistry()
	executor := exec.NewLocalExec()
	runner := claude.NewRunner(executor, cfg.ClaudePath, nil)

	processor := orchestrator.NewProcessor(&cfg, runner, notifier, sessions, mon)
	initializer := scaffold.NewInitializer(&cfg, executor, processor, notifier)
	server := api.NewServer(&cfg, processor, initializer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweepSessions(ctx, sessions, cfg.SessionMaxAge)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("Relay started: port=%d model=%s", cfg.Port, cfg.ClaudeModel)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Relay stopped")
	return nil
}

// sweepSessions periodically removes sessions idle longer than maxAge.
func sweepSessions(ctx context.Context, sessions *session.Registry, maxAge time.Duration) {
	logger := logx.NewLogger("sweeper")
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := sessions.Sweep(maxAge); removed > 0 {
				logger.Info("Removed %d expired sessions", removed)
			}
		}
	}
}
