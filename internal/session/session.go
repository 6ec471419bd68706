// Package session runs the turn-taking floor of one two-person conversation:
// who may speak, how a finished utterance is transcribed and translated, and
// how committed exchanges reach the ledger.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbright/talkthru/internal/fsm"
	"github.com/rbright/talkthru/internal/language"
	"github.com/rbright/talkthru/internal/ledger"
	"github.com/rbright/talkthru/internal/provider"
	"github.com/rbright/talkthru/internal/summary"
)

// SameRolePolicy decides what a repeated speak request from the active
// speaker does while capturing.
type SameRolePolicy string

const (
	SameRoleToggle SameRolePolicy = "toggle"
	SameRoleIgnore SameRolePolicy = "ignore"
)

// SpeakOutcome tells the caller what RequestSpeak did.
type SpeakOutcome string

const (
	SpeakStarted SpeakOutcome = "started"
	SpeakStopped SpeakOutcome = "stopped"
	SpeakIgnored SpeakOutcome = "ignored"
)

// Options configures a Controller.
type Options struct {
	Binding  language.Binding
	Labels   language.Labels
	SameRole SameRolePolicy
	// MaxCapture stops a capture automatically. Zero disables the limit.
	MaxCapture time.Duration
	// TranslateTimeout bounds one translation call. Zero leaves it to the provider.
	TranslateTimeout time.Duration
}

// State is an immutable view of the controller.
type State struct {
	Phase         fsm.Phase        `json:"phase"`
	ActiveRole    language.Role    `json:"active_role,omitempty"`
	Turn          uint64           `json:"turn,omitempty"`
	TurnStartedAt time.Time        `json:"turn_started_at,omitempty"`
	StopRequested bool             `json:"stop_requested,omitempty"`
	Binding       language.Binding `json:"binding"`
	Exchanges     int              `json:"exchanges"`
	Ended         bool             `json:"ended,omitempty"`
}

// Result summarizes one Run.
type Result struct {
	Committed  int
	Failed     int
	Canceled   int
	Summaries  int
	StartedAt  time.Time
	FinishedAt time.Time
	Err        error
}

type turn struct {
	id            uint64
	role          language.Role
	pair          language.Pair
	startedAt     time.Time
	capture       provider.Capture
	stopRequested bool
	ctx           context.Context
	cancel        context.CancelFunc
	timer         *time.Timer
}

// Controller owns the floor, the ledger and the providers of one session.
type Controller struct {
	logger      *slog.Logger
	transcriber provider.Transcriber
	translator  provider.Translator
	summaries   *summary.Generator
	ledger      *ledger.Ledger
	opts        Options
	now         func() time.Time

	mu        sync.Mutex
	phase     fsm.Phase
	active    *turn
	nextTurn  uint64
	summaryID uint64
	sumCancel context.CancelFunc
	ended     bool
	lastSum   *summary.Synopsis
	listeners []Listener
	queue     []Event

	emitMu sync.Mutex
	state  atomic.Pointer[State]

	committed  atomic.Int64
	failed     atomic.Int64
	canceled   atomic.Int64
	summarized atomic.Int64

	endCh   chan struct{}
	endOnce sync.Once
}

// NewController wires a controller. Nil providers fall back to implementations
// that fail with provider.ErrProviderUnavailable.
func NewController(
	logger *slog.Logger,
	transcriber provider.Transcriber,
	translator provider.Translator,
	summaries *summary.Generator,
	opts Options,
) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if transcriber == nil {
		transcriber = unavailableTranscriber{}
	}
	if translator == nil {
		translator = unavailableTranslator{}
	}
	if summaries == nil {
		summaries = summary.NewGenerator(nil, opts.Labels, logger)
	}
	if opts.SameRole == "" {
		opts.SameRole = SameRoleToggle
	}

	c := &Controller{
		logger:      logger,
		transcriber: transcriber,
		translator:  translator,
		summaries:   summaries,
		ledger:      ledger.New(),
		opts:        opts,
		now:         time.Now,
		phase:       fsm.PhaseIdle,
		endCh:       make(chan struct{}),
	}
	c.publishLocked()
	return c
}

// Snapshot returns the latest published state. It never blocks.
func (c *Controller) Snapshot() State {
	return *c.state.Load()
}

// Phase is a shorthand for Snapshot().Phase.
func (c *Controller) Phase() fsm.Phase {
	return c.Snapshot().Phase
}

// History returns the committed exchanges in commit order.
func (c *Controller) History() []ledger.Exchange {
	return c.ledger.Snapshot()
}

// LastSummary returns the most recent synopsis, if any.
func (c *Controller) LastSummary() (summary.Synopsis, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastSum == nil {
		return summary.Synopsis{}, false
	}
	return *c.lastSum, true
}

// RequestSpeak gives role the floor and starts capturing in its language.
func (c *Controller) RequestSpeak(ctx context.Context, role language.Role) (SpeakOutcome, error) {
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", role)
	}

	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return "", ErrSessionEnded
	}
	if c.phase == fsm.PhaseCapturing && c.active != nil && c.active.role == role {
		policy := c.opts.SameRole
		c.mu.Unlock()
		if policy == SameRoleIgnore {
			return SpeakIgnored, nil
		}
		if err := c.EndSpeak(ctx); err != nil && !errors.Is(err, ErrNoActiveTurn) {
			return "", err
		}
		return SpeakStopped, nil
	}
	if c.phase.HoldsFloor() {
		err := c.busyLocked()
		c.mu.Unlock()
		return "", err
	}
	prev, err := c.advanceLocked(fsm.EventSpeak)
	if err != nil {
		c.mu.Unlock()
		return "", err
	}

	c.nextTurn++
	turnCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t := &turn{
		id:        c.nextTurn,
		role:      role,
		pair:      c.opts.Binding.Pair(role),
		startedAt: c.now(),
		ctx:       turnCtx,
		cancel:    cancel,
	}
	c.active = t
	c.enqueueLocked(Event{Kind: EventPhaseChanged, Turn: t.id, Role: role, Message: string(prev) + "->" + string(c.phase)})
	// speaking_started precedes anything a stop or cancel racing Begin emits.
	c.enqueueLocked(Event{Kind: EventSpeakingStart, Turn: t.id, Role: role})
	c.publishLocked()
	c.mu.Unlock()
	c.flush()

	c.logger.Info("turn started",
		"turn", t.id,
		"role", string(role),
		"pair", t.pair.String(),
	)

	capture, err := c.transcriber.Begin(t.ctx, t.pair.Source)
	if err != nil {
		c.failTurn(t, classifyCapture(fmt.Errorf("begin capture: %w", err)))
		return "", classifyCapture(err)
	}

	c.mu.Lock()
	if c.active != t {
		c.mu.Unlock()
		_ = capture.Cancel()
		return SpeakStarted, nil
	}
	t.capture = capture
	stopNow := t.stopRequested
	if !stopNow && c.opts.MaxCapture > 0 {
		t.timer = time.AfterFunc(c.opts.MaxCapture, func() { c.captureTimeout(t) })
	}
	c.mu.Unlock()

	go c.await(t)

	if stopNow {
		c.endCapture(t)
	}
	return SpeakStarted, nil
}

// EndSpeak stops the active capture. With nothing capturing it returns
// ErrNoActiveTurn and changes nothing.
func (c *Controller) EndSpeak(_ context.Context) error {
	return c.stop(nil, false)
}

// stop moves a capturing turn to translating and tells the provider to finish.
// A non-nil target only stops that turn.
func (c *Controller) stop(target *turn, timedOut bool) error {
	c.mu.Lock()
	t := c.active
	if c.phase != fsm.PhaseCapturing || t == nil || (target != nil && t != target) {
		c.mu.Unlock()
		return ErrNoActiveTurn
	}
	if timedOut {
		c.enqueueLocked(Event{Kind: EventCaptureTimeout, Turn: t.id, Role: t.role, Message: c.opts.MaxCapture.String()})
	}
	if err := c.transitionLocked(fsm.EventStop); err != nil {
		c.mu.Unlock()
		return err
	}
	t.stopRequested = true
	stopTimer(t)
	capture := t.capture
	c.publishLocked()
	c.mu.Unlock()
	c.flush()

	if capture != nil {
		c.endCapture(t)
	}
	return nil
}

// Cancel discards the in-flight turn or summary without committing anything.
func (c *Controller) Cancel(_ context.Context) error {
	c.mu.Lock()
	if c.phase == fsm.PhaseSummarizing {
		c.abortSummaryLocked(fsm.EventCancel)
		c.mu.Unlock()
		c.flush()
		return nil
	}
	t := c.active
	if !c.phase.InTurn() || t == nil {
		c.mu.Unlock()
		return ErrNoActiveTurn
	}
	// turn_canceled is the only event a cancel emits; it carries the idle phase.
	if _, err := c.advanceLocked(fsm.EventCancel); err != nil {
		c.mu.Unlock()
		return err
	}
	c.dropTurnLocked(t, "canceled")
	c.mu.Unlock()
	c.flush()

	releaseTurn(t)
	return nil
}

// Reset forces the floor back to idle from any phase.
func (c *Controller) Reset(_ context.Context) error {
	c.mu.Lock()
	prev := c.phase
	t := c.active
	switch {
	case prev == fsm.PhaseSummarizing:
		c.abortSummaryLocked(fsm.EventReset)
	case t != nil:
		if err := c.transitionLocked(fsm.EventReset); err != nil {
			c.mu.Unlock()
			return err
		}
		c.dropTurnLocked(t, "reset")
	default:
		c.phase = fsm.PhaseIdle
		c.publishLocked()
	}
	c.mu.Unlock()
	c.flush()

	if t != nil {
		releaseTurn(t)
	}
	c.logger.Info("controller reset", "from_phase", string(prev))
	return nil
}

// Summarize holds the floor while the generator folds the ledger.
func (c *Controller) Summarize(ctx context.Context) (summary.Synopsis, error) {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return summary.Synopsis{}, ErrSessionEnded
	}
	if c.phase.HoldsFloor() {
		err := c.busyLocked()
		c.mu.Unlock()
		return summary.Synopsis{}, err
	}
	if err := c.transitionLocked(fsm.EventSummarize); err != nil {
		c.mu.Unlock()
		return summary.Synopsis{}, err
	}
	c.summaryID++
	id := c.summaryID
	sumCtx, cancel := context.WithCancel(ctx)
	c.sumCancel = cancel
	c.publishLocked()
	c.mu.Unlock()
	c.flush()
	defer cancel()

	pair := language.Pair{Source: c.opts.Binding.Initiator, Target: c.opts.Binding.Respondent}
	syn, err := c.summaries.Generate(sumCtx, c.ledger.Snapshot(), pair)

	c.mu.Lock()
	if c.summaryID != id || c.phase != fsm.PhaseSummarizing {
		c.mu.Unlock()
		return summary.Synopsis{}, fmt.Errorf("summary discarded: %w", context.Canceled)
	}
	c.sumCancel = nil
	if err != nil {
		_ = c.transitionLocked(fsm.EventFail)
		c.publishLocked()
		c.enqueueLocked(Event{Kind: EventSummaryFailed, ErrorKind: ErrorKind(err), Message: err.Error(), Err: err})
		c.mu.Unlock()
		c.flush()
		c.logger.Warn("summary failed", "error", err.Error(), "kind", ErrorKind(err))
		return summary.Synopsis{}, err
	}
	_ = c.transitionLocked(fsm.EventSummarized)
	c.lastSum = &syn
	c.publishLocked()
	c.enqueueLocked(Event{Kind: EventSummaryReady, Summary: &syn})
	c.mu.Unlock()
	c.flush()

	c.summarized.Add(1)
	return syn, nil
}

// End discards anything in flight and the ledger, then stops Run.
func (c *Controller) End(ctx context.Context) error {
	_ = c.Reset(ctx)

	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return nil
	}
	c.ended = true
	c.ledger.Clear()
	c.publishLocked()
	c.enqueueLocked(Event{Kind: EventSessionEnded})
	c.mu.Unlock()
	c.flush()

	c.endOnce.Do(func() { close(c.endCh) })
	c.logger.Info("session ended")
	return nil
}

// Run blocks until ctx is done or End is called.
func (c *Controller) Run(ctx context.Context) Result {
	result := Result{StartedAt: c.now()}

	select {
	case <-ctx.Done():
		result.Err = ctx.Err()
		_ = c.Reset(context.Background())
	case <-c.endCh:
	}

	result.Committed = int(c.committed.Load())
	result.Failed = int(c.failed.Load())
	result.Canceled = int(c.canceled.Load())
	result.Summaries = int(c.summarized.Load())
	result.FinishedAt = c.now()
	return result
}

// await waits for the capture result and drives the rest of the turn.
func (c *Controller) await(t *turn) {
	var (
		res provider.CaptureResult
		ok  bool
	)
	select {
	case res, ok = <-t.capture.Result():
		if !ok {
			c.failTurn(t, fmt.Errorf("%w: capture closed without a result", provider.ErrCaptureFailed))
			return
		}
	case <-t.ctx.Done():
		return
	}

	c.mu.Lock()
	if c.active != t {
		c.mu.Unlock()
		return
	}
	if c.phase == fsm.PhaseCapturing {
		_ = c.transitionLocked(fsm.EventTranscribed)
		stopTimer(t)
		c.publishLocked()
	}
	c.mu.Unlock()
	c.flush()

	if res.Err != nil {
		c.failTurn(t, classifyCapture(res.Err))
		return
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		c.failTurn(t, fmt.Errorf("%w: no speech recognized", provider.ErrCaptureFailed))
		return
	}

	translateCtx := t.ctx
	if c.opts.TranslateTimeout > 0 {
		var cancel context.CancelFunc
		translateCtx, cancel = context.WithTimeout(t.ctx, c.opts.TranslateTimeout)
		defer cancel()
	}
	translated, err := c.translator.Translate(translateCtx, text, t.pair)
	if t.ctx.Err() != nil {
		return
	}
	if err != nil {
		c.failTurn(t, classifyTranslation(err))
		return
	}
	translated = strings.TrimSpace(translated)
	if translated == "" {
		c.failTurn(t, fmt.Errorf("%w: empty translation", provider.ErrTranslationFailed))
		return
	}

	c.commit(t, text, translated, res.Confidence)
}

func (c *Controller) commit(t *turn, source, target string, confidence float64) {
	c.mu.Lock()
	if c.active != t {
		c.mu.Unlock()
		return
	}
	ex, err := c.ledger.Append(ledger.Exchange{
		Speaker:    t.role,
		SourceLang: t.pair.Source.Code,
		TargetLang: t.pair.Target.Code,
		SourceText: source,
		TargetText: target,
		Confidence: confidence,
		CapturedAt: t.startedAt,
	})
	if err != nil {
		c.mu.Unlock()
		c.failTurn(t, fmt.Errorf("%w: %v", provider.ErrTranslationFailed, err))
		return
	}
	_ = c.transitionLocked(fsm.EventCommit)
	c.active = nil
	c.publishLocked()
	c.enqueueLocked(Event{Kind: EventExchangeReady, Turn: t.id, Role: t.role, Outcome: fsm.OutcomeCommitted, Exchange: &ex})
	c.mu.Unlock()
	c.flush()

	t.cancel()
	c.committed.Add(1)
	c.logger.Info("turn committed",
		"turn", t.id,
		"role", string(t.role),
		"exchange", ex.ID,
		"seq", ex.Seq,
		"source_chars", len(source),
		"target_chars", len(target),
		"duration_ms", ex.CommittedAt.Sub(t.startedAt).Milliseconds(),
	)
}

// failTurn ends t as Failed and frees the floor. Stale turns are ignored.
func (c *Controller) failTurn(t *turn, err error) {
	c.mu.Lock()
	if c.active != t {
		c.mu.Unlock()
		return
	}
	_ = c.transitionLocked(fsm.EventFail)
	c.active = nil
	c.publishLocked()
	c.enqueueLocked(Event{
		Kind:      EventTurnFailed,
		Turn:      t.id,
		Role:      t.role,
		Outcome:   fsm.OutcomeFailed,
		ErrorKind: ErrorKind(err),
		Message:   err.Error(),
		Err:       err,
	})
	c.mu.Unlock()
	c.flush()

	releaseTurn(t)
	c.failed.Add(1)
	c.logger.Warn("turn failed",
		"turn", t.id,
		"role", string(t.role),
		"kind", ErrorKind(err),
		"error", err.Error(),
	)
}

func (c *Controller) endCapture(t *turn) {
	if err := t.capture.End(t.ctx); err != nil && t.ctx.Err() == nil {
		c.failTurn(t, classifyCapture(fmt.Errorf("end capture: %w", err)))
	}
}

func (c *Controller) captureTimeout(t *turn) {
	if err := c.stop(t, true); err == nil {
		c.logger.Info("capture limit reached", "turn", t.id, "max_capture", c.opts.MaxCapture.String())
	}
}

// dropTurnLocked clears the active turn after a cancel or reset transition.
func (c *Controller) dropTurnLocked(t *turn, reason string) {
	c.active = nil
	c.publishLocked()
	c.enqueueLocked(Event{Kind: EventTurnCanceled, Turn: t.id, Role: t.role, Outcome: fsm.OutcomeCanceled, Message: reason})
	c.canceled.Add(1)
	c.logger.Info("turn canceled", "turn", t.id, "role", string(t.role), "reason", reason)
}

func (c *Controller) abortSummaryLocked(event fsm.Event) {
	if c.sumCancel != nil {
		c.sumCancel()
		c.sumCancel = nil
	}
	c.summaryID++
	_ = c.transitionLocked(event)
	c.publishLocked()
	c.enqueueLocked(Event{Kind: EventSummaryFailed, ErrorKind: "canceled", Message: "summary " + string(event)})
}

func (c *Controller) busyLocked() error {
	if c.phase == fsm.PhaseSummarizing {
		return fmt.Errorf("%w: summary in progress", ErrBusy)
	}
	if c.active != nil {
		return fmt.Errorf("%w: %s is %s", ErrBusy, c.active.role, c.phase)
	}
	return fmt.Errorf("%w: %s", ErrBusy, c.phase)
}

// transitionLocked applies one FSM event and announces the phase change,
// attributed to the active turn if there is one. Caller holds c.mu.
func (c *Controller) transitionLocked(event fsm.Event) error {
	prev, err := c.advanceLocked(event)
	if err != nil || prev == c.phase {
		return err
	}
	ev := Event{Kind: EventPhaseChanged, Phase: c.phase, Message: string(prev) + "->" + string(c.phase)}
	if t := c.active; t != nil {
		ev.Turn = t.id
		ev.Role = t.role
	}
	c.enqueueLocked(ev)
	return nil
}

// advanceLocked applies one FSM event without emitting anything and returns
// the phase it left. Caller holds c.mu.
func (c *Controller) advanceLocked(event fsm.Event) (fsm.Phase, error) {
	prev := c.phase
	next, err := fsm.Transition(prev, event)
	if err != nil {
		return prev, err
	}
	c.phase = next
	return prev, nil
}

// publishLocked stores a fresh immutable State for Snapshot readers.
func (c *Controller) publishLocked() {
	st := &State{
		Phase:     c.phase,
		Binding:   c.opts.Binding,
		Exchanges: c.ledger.Len(),
		Ended:     c.ended,
	}
	if t := c.active; t != nil {
		st.ActiveRole = t.role
		st.Turn = t.id
		st.TurnStartedAt = t.startedAt
		st.StopRequested = t.stopRequested
	}
	c.state.Store(st)
}

func stopTimer(t *turn) {
	if t.timer != nil {
		t.timer.Stop()
	}
}

// releaseTurn cancels the turn context and the provider capture.
func releaseTurn(t *turn) {
	stopTimer(t)
	t.cancel()
	if t.capture != nil {
		_ = t.capture.Cancel()
	}
}
