package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/rbright/talkthru/internal/audio"
	"github.com/rbright/talkthru/internal/cli"
	"github.com/rbright/talkthru/internal/config"
	"github.com/rbright/talkthru/internal/doctor"
	"github.com/rbright/talkthru/internal/ipc"
	"github.com/rbright/talkthru/internal/language"
	"github.com/rbright/talkthru/internal/ledger"
	"github.com/rbright/talkthru/internal/logging"
	"github.com/rbright/talkthru/internal/summary"
	"github.com/rbright/talkthru/internal/version"
)

const binaryName = "talkthru"

// forwardTimeout bounds quick control commands sent to the session owner.
const forwardTimeout = 220 * time.Millisecond

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText(binaryName))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText(binaryName))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandLanguages:
		return r.commandLanguages(cfgLoaded.Config)
	case cli.CommandSession:
		return r.commandSession(ctx, parsed, cfgLoaded.Config, logger)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandSpeak:
		return r.forwardOrFail(ctx, ipc.Request{Command: ipc.CommandSpeak, Role: parsed.Role}, speakTimeout(cfgLoaded.Config))
	case cli.CommandStop:
		return r.forwardOrFail(ctx, ipc.Request{Command: ipc.CommandStop}, forwardTimeout)
	case cli.CommandCancel:
		return r.forwardOrFail(ctx, ipc.Request{Command: ipc.CommandCancel}, forwardTimeout)
	case cli.CommandReset:
		return r.forwardOrFail(ctx, ipc.Request{Command: ipc.CommandReset}, forwardTimeout)
	case cli.CommandEnd:
		return r.forwardOrFail(ctx, ipc.Request{Command: ipc.CommandEnd}, forwardTimeout)
	case cli.CommandHistory:
		return r.commandHistory(ctx, cfgLoaded.Config)
	case cli.CommandSummary:
		return r.commandSummary(ctx, cfgLoaded.Config)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return 0
}

// commandLanguages marks the configured session languages with '*'.
func (r Runner) commandLanguages(cfg config.Config) int {
	configured := map[string]bool{}
	for _, code := range []string{cfg.Languages.Initiator, cfg.Languages.Respondent} {
		if lang, err := language.Lookup(code); err == nil {
			configured[lang.Code] = true
		}
	}

	for _, lang := range language.All() {
		mark := " "
		if configured[lang.Code] {
			mark = "*"
		}
		fmt.Fprintf(r.Stdout, "%s %-3s %s\n", mark, lang.Code, lang)
	}
	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.Request{Command: ipc.CommandStatus}, forwardTimeout)
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if resp.Phase == "" {
			resp.Phase = "idle"
		}
		if resp.Role != "" {
			fmt.Fprintf(r.Stdout, "%s %s\n", resp.Phase, resp.Role)
			return 0
		}
		fmt.Fprintln(r.Stdout, resp.Phase)
		return 0
	}

	fmt.Fprintln(r.Stdout, "idle")
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, req ipc.Request, timeout time.Duration) int {
	resp, ok := r.forward(ctx, req, timeout)
	if !ok {
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// forward sends req to the owner and reports failures on stderr.
func (r Runner) forward(ctx context.Context, req ipc.Request, timeout time.Duration) (ipc.Response, bool) {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return ipc.Response{}, false
	}

	resp, handled, err := tryForward(ctx, socketPath, req, timeout)
	if !handled {
		fmt.Fprintf(r.Stderr, "error: no active talkthru session\n")
		return ipc.Response{}, false
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return ipc.Response{}, false
	}
	return resp, true
}

func (r Runner) commandHistory(ctx context.Context, cfg config.Config) int {
	resp, ok := r.forward(ctx, ipc.Request{Command: ipc.CommandHistory}, forwardTimeout)
	if !ok {
		return 1
	}

	var exchanges []ledger.Exchange
	if len(resp.Data) > 0 {
		if err := resp.DecodeData(&exchanges); err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
	}
	if len(exchanges) == 0 {
		fmt.Fprintln(r.Stdout, "no exchanges yet")
		return 0
	}

	fmt.Fprint(r.Stdout, formatHistory(exchanges, labelsFromConfig(cfg)))
	return 0
}

func (r Runner) commandSummary(ctx context.Context, cfg config.Config) int {
	resp, ok := r.forward(ctx, ipc.Request{Command: ipc.CommandSummary}, summaryTimeout(cfg))
	if !ok {
		return 1
	}

	var syn summary.Synopsis
	if err := resp.DecodeData(&syn); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprint(r.Stdout, formatSynopsis(syn, []string{cfg.Languages.Initiator, cfg.Languages.Respondent}))
	return 0
}

func formatHistory(exchanges []ledger.Exchange, labels language.Labels) string {
	var b strings.Builder
	for _, ex := range exchanges {
		fmt.Fprintf(&b, "%d. %s [%s->%s] %s\n", ex.Seq, labels.For(ex.Speaker), ex.SourceLang, ex.TargetLang, ex.SourceText)
		fmt.Fprintf(&b, "   %s\n", ex.TargetText)
	}
	return b.String()
}

// formatSynopsis prints the session languages first, then any others in the
// synopsis, then the action items.
func formatSynopsis(syn summary.Synopsis, preferred []string) string {
	var b strings.Builder
	seen := map[string]bool{}
	write := func(code string) {
		text := strings.TrimSpace(syn.Text(code))
		if text == "" || seen[code] {
			return
		}
		seen[code] = true
		name := code
		if lang, err := language.Lookup(code); err == nil {
			name = lang.String()
		}
		fmt.Fprintf(&b, "%s:\n%s\n\n", name, text)
	}
	for _, code := range preferred {
		if lang, err := language.Lookup(code); err == nil {
			write(lang.Code)
		}
	}
	for _, lang := range language.All() {
		write(lang.Code)
	}
	if len(syn.ActionItems) > 0 {
		b.WriteString("Action items:\n")
		for _, item := range syn.ActionItems {
			fmt.Fprintf(&b, "- %s\n", item)
		}
	}
	return b.String()
}

func labelsFromConfig(cfg config.Config) language.Labels {
	return language.Labels{
		Initiator:  cfg.Languages.InitiatorLabel,
		Respondent: cfg.Languages.RespondentLabel,
	}
}

// speakTimeout covers the recognizer dial that happens before the owner replies.
func speakTimeout(cfg config.Config) time.Duration {
	return cfg.Transcription.DialTimeout + time.Second
}

func summaryTimeout(cfg config.Config) time.Duration {
	return cfg.Summary.Timeout + 2*time.Second
}

func tryForward(ctx context.Context, socketPath string, req ipc.Request, timeout time.Duration) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, req, timeout)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		if resp.Kind != "" {
			return resp, true, fmt.Errorf("%s (%s)", resp.Error, resp.Kind)
		}
		return resp, true, errors.New(resp.Error)
	}

	if ipc.IsNoOwner(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", req.Command, err)
}
