package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rbright/talkthru/internal/fsm"
	"github.com/rbright/talkthru/internal/language"
	"github.com/rbright/talkthru/internal/provider"
	"github.com/stretchr/testify/require"
)

// fakeCapture delivers its configured result when ended, unless the test
// pushes a result directly.
type fakeCapture struct {
	once      sync.Once
	result    chan provider.CaptureResult
	onEnd     provider.CaptureResult
	endErr    error
	endCalls  atomic.Int32
	cancelled atomic.Int32
}

func newFakeCapture(onEnd provider.CaptureResult) *fakeCapture {
	return &fakeCapture{result: make(chan provider.CaptureResult, 1), onEnd: onEnd}
}

func (f *fakeCapture) deliver(res provider.CaptureResult) {
	f.once.Do(func() { f.result <- res })
}

func (f *fakeCapture) End(context.Context) error {
	f.endCalls.Add(1)
	if f.endErr != nil {
		return f.endErr
	}
	f.deliver(f.onEnd)
	return nil
}

func (f *fakeCapture) Cancel() error {
	f.cancelled.Add(1)
	f.once.Do(func() { close(f.result) })
	return nil
}

func (f *fakeCapture) Result() <-chan provider.CaptureResult {
	return f.result
}

type fakeTranscriber struct {
	mu       sync.Mutex
	texts    []string
	beginErr error
	endErr   error
	captures []*fakeCapture
	langs    []string
	gate     chan struct{}
}

func (f *fakeTranscriber) Begin(ctx context.Context, lang language.Language) (provider.Capture, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.langs = append(f.langs, lang.Code)
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	text := ""
	if len(f.texts) > 0 {
		text = f.texts[0]
		f.texts = f.texts[1:]
	}
	c := newFakeCapture(provider.CaptureResult{Text: text, Confidence: 0.9})
	c.endErr = f.endErr
	f.captures = append(f.captures, c)
	return c, nil
}

func (f *fakeTranscriber) last(t *testing.T) *fakeCapture {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.captures)
	return f.captures[len(f.captures)-1]
}

func (f *fakeTranscriber) languages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.langs...)
}

// blockingTranslator holds every call until release is closed or ctx ends.
type blockingTranslator struct {
	release chan struct{}
	started chan struct{}
	out     string
	calls   atomic.Int32
}

func newBlockingTranslator(out string) *blockingTranslator {
	return &blockingTranslator{release: make(chan struct{}), started: make(chan struct{}, 8), out: out}
}

func (b *blockingTranslator) Translate(ctx context.Context, _ string, _ language.Pair) (string, error) {
	b.calls.Add(1)
	b.started <- struct{}{}
	select {
	case <-b.release:
		return b.out, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type blockingSummarizer struct {
	release chan struct{}
	started chan struct{}
}

func (b *blockingSummarizer) Summarize(ctx context.Context, _ string) (string, error) {
	b.started <- struct{}{}
	select {
	case <-b.release:
		return "[summary:en]\nok\n[actions]\n- follow up", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnEvent(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, 0, len(r.events))
	for _, ev := range r.events {
		if ev.Kind != EventPhaseChanged {
			out = append(out, ev.Kind)
		}
	}
	return out
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) phaseChange(phase fsm.Phase) (int, Event, bool) {
	for i, ev := range r.all() {
		if ev.Kind == EventPhaseChanged && ev.Phase == phase {
			return i, ev, true
		}
	}
	return -1, Event{}, false
}

func (r *recorder) find(kind EventKind) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.Kind == kind {
			return ev, true
		}
	}
	return Event{}, false
}

func (r *recorder) waitFor(t *testing.T, kind EventKind) Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ev, ok := r.find(kind); ok {
			return ev
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s; saw %v", kind, r.kinds())
	return Event{}
}

func waitForPhase(t *testing.T, ctrl *Controller, want fsm.Phase) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ctrl.Phase() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for phase %s (current=%s)", want, ctrl.Phase())
}

func enNL(t *testing.T) language.Binding {
	t.Helper()
	b, err := language.NewBinding("en", "nl")
	require.NoError(t, err)
	return b
}

var errBoom = errors.New("boom")
