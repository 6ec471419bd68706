package indicator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/talkthru/internal/config"
	"github.com/rbright/talkthru/internal/fsm"
	"github.com/rbright/talkthru/internal/language"
	"github.com/rbright/talkthru/internal/ledger"
	"github.com/rbright/talkthru/internal/logging"
	"github.com/rbright/talkthru/internal/session"
)

type cueRecorder struct {
	mu    sync.Mutex
	kinds []cueKind
}

func (r *cueRecorder) play(_ context.Context, kind cueKind) error {
	r.mu.Lock()
	r.kinds = append(r.kinds, kind)
	r.mu.Unlock()
	return nil
}

func (r *cueRecorder) played() []cueKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]cueKind(nil), r.kinds...)
}

func newTestNotifier(t *testing.T, cfg config.IndicatorConfig) (*Notifier, *cueRecorder) {
	t.Helper()
	t.Setenv("LANG", "en_US.UTF-8")
	n := New(cfg, language.DefaultLabels(), logging.Discard().Logger)
	rec := &cueRecorder{}
	n.cue = rec.play
	return n, rec
}

func installBusctlStub(t *testing.T, body string) string {
	t.Helper()

	dir := t.TempDir()
	argsFile := filepath.Join(dir, "busctl-args.log")
	script := "#!/usr/bin/env bash\nset -euo pipefail\nprintf '%s\\n' \"$*\" >> " + argsFile + "\n" + body + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "busctl"), []byte(script), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))
	return argsFile
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestRenderTurnLifecycle(t *testing.T) {
	argsFile := installBusctlStub(t, `echo "u 7"`)

	cfg := config.Default().Indicator
	cfg.TimeoutMS = 2000
	n, cues := newTestNotifier(t, cfg)
	ctx := context.Background()

	n.render(ctx, session.Event{Kind: session.EventSpeakingStart, Role: language.RoleInitiator})
	n.render(ctx, session.Event{Kind: session.EventPhaseChanged, Phase: fsm.PhaseTranslating, Role: language.RoleInitiator})
	n.render(ctx, session.Event{Kind: session.EventExchangeReady, Exchange: &ledger.Exchange{
		Speaker:    language.RoleInitiator,
		SourceText: "Hoe gaat het?",
		TargetText: "How are you?",
	}})
	n.render(ctx, session.Event{Kind: session.EventSessionEnded})

	lines := readLines(t, argsFile)
	require.Len(t, lines, 4)
	require.Contains(t, lines[0], "Notify susssasa{sv}i talkthru 0  Listening… Coach / Vrijwilliger 0 0 300000")
	require.Contains(t, lines[1], "Notify susssasa{sv}i talkthru 7  Translating… Coach / Vrijwilliger 0 0 300000")
	require.Contains(t, lines[2], "How are you? Coach / Vrijwilliger: Hoe gaat het? 0 0 2000")
	require.Contains(t, lines[3], "CloseNotification u 7")

	require.Equal(t, []cueKind{cueStart, cueComplete}, cues.played())
}

func TestRenderFailureAndCancel(t *testing.T) {
	argsFile := installBusctlStub(t, `echo "u 3"`)

	cfg := config.Default().Indicator
	cfg.TimeoutMS = 0
	n, cues := newTestNotifier(t, cfg)
	ctx := context.Background()

	n.render(ctx, session.Event{Kind: session.EventCaptureTimeout})
	n.render(ctx, session.Event{Kind: session.EventTurnFailed, Message: "capture failed: no speech recognized"})
	n.render(ctx, session.Event{Kind: session.EventTurnCanceled})

	lines := readLines(t, argsFile)
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "Turn failed capture failed: no speech recognized 0 0 1600")
	require.Contains(t, lines[1], "CloseNotification u 3")
	require.Equal(t, []cueKind{cueStop, cueCancel, cueCancel}, cues.played())
}

func TestDisabledSkipsNotificationsAndSounds(t *testing.T) {
	argsFile := installBusctlStub(t, `echo "u 1"`)

	cfg := config.Default().Indicator
	cfg.Enable = false
	cfg.SoundEnable = false
	n, cues := newTestNotifier(t, cfg)

	n.render(context.Background(), session.Event{Kind: session.EventSpeakingStart, Role: language.RoleRespondent})
	n.render(context.Background(), session.Event{Kind: session.EventSummaryReady})

	_, err := os.Stat(argsFile)
	require.True(t, os.IsNotExist(err))
	require.Empty(t, cues.played())
}

func TestNotifyFailureKeepsPreviousID(t *testing.T) {
	installBusctlStub(t, `echo "bus unavailable" >&2; exit 1`)

	n, _ := newTestNotifier(t, config.Default().Indicator)
	n.notificationID = 9
	n.render(context.Background(), session.Event{Kind: session.EventSummaryReady})
	require.Equal(t, uint32(9), n.notificationID)
}

func TestRunDrainsQueueAndHidesOnShutdown(t *testing.T) {
	argsFile := installBusctlStub(t, `echo "u 5"`)

	n, _ := newTestNotifier(t, config.Default().Indicator)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.Run(ctx)
		close(done)
	}()

	n.OnEvent(session.Event{Kind: session.EventSummaryReady})
	require.Eventually(t, func() bool {
		n.mu.Lock()
		defer n.mu.Unlock()
		return n.notificationID == 5
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
	lines := readLines(t, argsFile)
	require.Contains(t, lines[len(lines)-1], "CloseNotification u 5")
}

func TestDesktopNotifyRejectsMalformedReply(t *testing.T) {
	installBusctlStub(t, `echo "s nope"`)
	_, err := desktopNotify(context.Background(), "talkthru", 0, "x", "", 100)
	require.ErrorContains(t, err, "invalid response")
}

func TestMessagesFollowLocale(t *testing.T) {
	require.Equal(t, localeDutch, resolveLocale("nl_NL.UTF-8"))
	require.Equal(t, localeEnglish, resolveLocale("fr_FR.UTF-8"))
	require.Equal(t, "Luisteren…", indicatorMessages(localeDutch).listening)
	require.Equal(t, "Translating…", indicatorMessages(localeEnglish).translating)
}
