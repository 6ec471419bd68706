// Package indicator mirrors turn progress as desktop notifications and
// audio cues.
package indicator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/talkthru/internal/config"
	"github.com/rbright/talkthru/internal/fsm"
	"github.com/rbright/talkthru/internal/language"
	"github.com/rbright/talkthru/internal/logging"
	"github.com/rbright/talkthru/internal/session"
)

// persistentMS keeps in-progress notifications up until they are replaced.
const persistentMS = 300000

// Notifier is a session.Listener. Events are queued and rendered on the
// Run goroutine so the controller never waits on DBus or playback.
type Notifier struct {
	cfg      config.IndicatorConfig
	labels   language.Labels
	logger   *slog.Logger
	messages messages

	events chan session.Event

	mu             sync.Mutex
	notificationID uint32

	notify  func(ctx context.Context, appName string, replaceID uint32, summary, body string, timeoutMS int) (uint32, error)
	dismiss func(ctx context.Context, id uint32) error
	cue     func(ctx context.Context, kind cueKind) error
}

// New returns a Notifier. Call Run to start rendering.
func New(cfg config.IndicatorConfig, labels language.Labels, logger *slog.Logger) *Notifier {
	n := &Notifier{
		cfg:      cfg,
		labels:   labels,
		logger:   logging.Component(logger, "indicator"),
		messages: messagesFromEnv(),
		events:   make(chan session.Event, 64),
		notify:   desktopNotify,
		dismiss:  desktopDismiss,
	}
	n.cue = func(ctx context.Context, kind cueKind) error { return emitCue(ctx, kind, n.cfg) }
	return n
}

// OnEvent queues ev. Events are dropped when the queue is full.
func (n *Notifier) OnEvent(ev session.Event) {
	select {
	case n.events <- ev:
	default:
		n.logger.Debug("indicator event dropped", "kind", string(ev.Kind))
	}
}

// Run renders queued events until ctx ends, then dismisses the notification.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			n.hide(context.WithoutCancel(ctx))
			return
		case ev := <-n.events:
			n.render(ctx, ev)
		}
	}
}

func (n *Notifier) render(ctx context.Context, ev session.Event) {
	switch ev.Kind {
	case session.EventSpeakingStart:
		n.playCue(ctx, cueStart)
		n.show(ctx, n.messages.listening, n.speakerLine(ev.Role), persistentMS)
	case session.EventCaptureTimeout:
		n.playCue(ctx, cueStop)
	case session.EventPhaseChanged:
		if ev.Phase == fsm.PhaseTranslating {
			n.show(ctx, n.messages.translating, n.speakerLine(ev.Role), persistentMS)
		}
	case session.EventExchangeReady:
		n.playCue(ctx, cueComplete)
		if ex := ev.Exchange; ex != nil {
			n.show(ctx, ex.TargetText, fmt.Sprintf("%s: %s", n.labels.For(ex.Speaker), ex.SourceText), n.timeout())
		}
	case session.EventTurnFailed:
		n.playCue(ctx, cueCancel)
		n.show(ctx, n.messages.failed, ev.Message, n.timeout())
	case session.EventTurnCanceled:
		n.playCue(ctx, cueCancel)
		n.hide(ctx)
	case session.EventSummaryReady:
		n.show(ctx, n.messages.summary, "", n.timeout())
	case session.EventSummaryFailed:
		n.show(ctx, n.messages.summaryFail, ev.Message, n.timeout())
	case session.EventSessionEnded:
		n.hide(ctx)
	}
}

func (n *Notifier) speakerLine(role language.Role) string {
	if role == "" {
		return ""
	}
	return n.labels.For(role)
}

func (n *Notifier) timeout() int {
	if n.cfg.TimeoutMS <= 0 {
		return 1600
	}
	return n.cfg.TimeoutMS
}

// show replaces the current notification so one session keeps one bubble.
func (n *Notifier) show(ctx context.Context, summary string, body string, timeoutMS int) {
	if !n.cfg.Enable {
		return
	}
	n.mu.Lock()
	replaceID := n.notificationID
	n.mu.Unlock()

	appName := strings.TrimSpace(n.cfg.DesktopAppName)
	if appName == "" {
		appName = "talkthru"
	}

	n.run(ctx, func(ctx context.Context) error {
		id, err := n.notify(ctx, appName, replaceID, summary, body, timeoutMS)
		if err != nil {
			return err
		}
		n.mu.Lock()
		n.notificationID = id
		n.mu.Unlock()
		return nil
	})
}

func (n *Notifier) hide(ctx context.Context) {
	if !n.cfg.Enable {
		return
	}
	n.mu.Lock()
	id := n.notificationID
	n.notificationID = 0
	n.mu.Unlock()
	if id == 0 {
		return
	}
	n.run(ctx, func(ctx context.Context) error { return n.dismiss(ctx, id) })
}

func (n *Notifier) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	if err := fn(runCtx); err != nil {
		n.logger.Debug("indicator dispatch failed", "error", err.Error())
	}
}

func (n *Notifier) playCue(ctx context.Context, kind cueKind) {
	if !n.cfg.SoundEnable {
		return
	}
	if err := n.cue(ctx, kind); err != nil {
		n.logger.Debug("indicator audio cue failed", "cue", kind.String(), "error", err.Error())
	}
}

var _ session.Listener = (*Notifier)(nil)
