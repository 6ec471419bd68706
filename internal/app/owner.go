package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dimiro1/banner"

	"github.com/rbright/talkthru/internal/cli"
	"github.com/rbright/talkthru/internal/config"
	"github.com/rbright/talkthru/internal/feed"
	"github.com/rbright/talkthru/internal/indicator"
	"github.com/rbright/talkthru/internal/ipc"
	"github.com/rbright/talkthru/internal/language"
	"github.com/rbright/talkthru/internal/output"
	"github.com/rbright/talkthru/internal/session"
	"github.com/rbright/talkthru/internal/summary"
	"github.com/rbright/talkthru/internal/version"
)

// commandSession owns the conversation: it holds the runtime socket, serves
// control commands, and drives the outer surfaces until the session ends.
func (r Runner) commandSession(ctx context.Context, parsed cli.Parsed, cfg config.Config, logger *slog.Logger) int {
	initiator := firstNonEmpty(parsed.Initiator, cfg.Languages.Initiator)
	respondent := firstNonEmpty(parsed.Respondent, cfg.Languages.Respondent)
	binding, err := language.NewBinding(initiator, respondent)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	providers, err := buildBackends(cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	labels := labelsFromConfig(cfg)
	controller := session.NewController(
		logger,
		providers.transcriber,
		providers.translator,
		summary.NewGenerator(providers.summarizer, labels, logger),
		session.Options{
			Binding:          binding,
			Labels:           labels,
			SameRole:         session.SameRolePolicy(cfg.Turn.SameRolePolicy),
			MaxCapture:       cfg.Turn.MaxCapture,
			TranslateTimeout: cfg.Turn.TranslateTimeout,
		},
	)

	surfaceCtx, stopSurfaces := context.WithCancel(context.Background())
	defer stopSurfaces()

	notifier := indicator.New(cfg.Indicator, labels, logger)
	controller.Subscribe(notifier)
	surfacesDone := make(chan struct{})
	go func() {
		defer close(surfacesDone)
		notifier.Run(surfaceCtx)
	}()

	if speaker := output.NewSpeaker(cfg.Output, logger); speaker != nil {
		controller.Subscribe(speaker)
		go speaker.Run(surfaceCtx)
	}

	var events *feed.Server
	if cfg.Feed.Listen != "" {
		events = feed.New(cfg.Feed, controller, logger)
		if err := events.Start(surfaceCtx); err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		controller.Subscribe(events)
	}

	printBanner(r, binding, labels, events)
	logger.Info("session owner started",
		"socket", socketPath,
		"initiator", binding.Initiator.Code,
		"respondent", binding.Respondent.Code,
		"transcription", cfg.Transcription.Backend,
		"translation", cfg.Translation.Backend,
		"summary", providers.summarizer != nil,
	)

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, controller)
	}()

	result := controller.Run(ctx)
	serverCancel()
	serverErr := <-serverErrCh

	stopSurfaces()
	<-surfacesDone
	if events != nil {
		_ = events.Close()
	}

	logSessionResult(logger, result)

	if serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}
	if result.Err != nil && !errors.Is(result.Err, context.Canceled) {
		fmt.Fprintf(r.Stderr, "error: %v\n", result.Err)
		return 1
	}
	fmt.Fprintf(r.Stdout, "session ended: %d exchanges, %d failed, %d canceled\n", result.Committed, result.Failed, result.Canceled)
	return 0
}

func printBanner(r Runner, binding language.Binding, labels language.Labels, events *feed.Server) {
	tpl := "{{ .Title \"TalkThru\" \"\" 0 }}\nVersion: " + version.String() + "\n"
	banner.Init(r.Stdout, true, false, bytes.NewBufferString(tpl))

	fmt.Fprintf(r.Stdout, "%s: %s\n", labels.For(language.RoleInitiator), binding.Initiator)
	fmt.Fprintf(r.Stdout, "%s: %s\n", labels.For(language.RoleRespondent), binding.Respondent)
	if events != nil {
		fmt.Fprintf(r.Stdout, "feed: ws://%s%s\n", events.Addr(), feed.EventsPath)
	}
}

func logSessionResult(logger *slog.Logger, result session.Result) {
	if logger == nil {
		return
	}
	fields := []any{
		"committed", result.Committed,
		"failed", result.Failed,
		"canceled", result.Canceled,
		"summaries", result.Summaries,
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
	}

	if result.Err != nil && !errors.Is(result.Err, context.Canceled) {
		logger.Error("session failed", append(fields, "error", result.Err.Error())...)
		return
	}
	logger.Info("session complete", fields...)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
