package session

import (
	"time"

	"github.com/rbright/talkthru/internal/fsm"
	"github.com/rbright/talkthru/internal/language"
	"github.com/rbright/talkthru/internal/ledger"
	"github.com/rbright/talkthru/internal/summary"
)

type EventKind string

const (
	EventPhaseChanged   EventKind = "phase_changed"
	EventSpeakingStart  EventKind = "speaking_started"
	EventExchangeReady  EventKind = "exchange_ready"
	EventTurnFailed     EventKind = "turn_failed"
	EventTurnCanceled   EventKind = "turn_canceled"
	EventSummaryReady   EventKind = "summary_ready"
	EventSummaryFailed  EventKind = "summary_failed"
	EventSessionEnded   EventKind = "session_ended"
	EventCaptureTimeout EventKind = "capture_timeout"
)

// Event is one observable controller change.
type Event struct {
	Kind      EventKind         `json:"kind"`
	At        time.Time         `json:"at"`
	Turn      uint64            `json:"turn,omitempty"`
	Phase     fsm.Phase         `json:"phase"`
	Role      language.Role     `json:"role,omitempty"`
	Outcome   fsm.Outcome       `json:"outcome,omitempty"`
	Exchange  *ledger.Exchange  `json:"exchange,omitempty"`
	Summary   *summary.Synopsis `json:"summary,omitempty"`
	ErrorKind string            `json:"error_kind,omitempty"`
	Message   string            `json:"message,omitempty"`
	Err       error             `json:"-"`
}

// Listener observes controller events. Calls happen outside the controller
// lock, one at a time, in the order the events occurred.
type Listener interface {
	OnEvent(Event)
}

type ListenerFunc func(Event)

func (f ListenerFunc) OnEvent(ev Event) {
	f(ev)
}

// Subscribe registers l for all subsequent events.
func (c *Controller) Subscribe(l Listener) {
	if l == nil {
		return
	}
	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()
}

// enqueueLocked records ev for delivery. Caller holds c.mu.
func (c *Controller) enqueueLocked(ev Event) {
	if ev.At.IsZero() {
		ev.At = c.now()
	}
	if ev.Phase == "" {
		ev.Phase = c.phase
	}
	c.queue = append(c.queue, ev)
}

// flush delivers queued events. Only one goroutine delivers at a time; a
// caller that loses the race leaves its events to the current deliverer, which
// re-checks the queue after releasing emitMu. Listeners may call back into the
// controller.
func (c *Controller) flush() {
	for {
		if !c.emitMu.TryLock() {
			return
		}
		for {
			c.mu.Lock()
			if len(c.queue) == 0 {
				c.mu.Unlock()
				break
			}
			ev := c.queue[0]
			c.queue = c.queue[1:]
			listeners := c.listeners
			c.mu.Unlock()

			for _, l := range listeners {
				l.OnEvent(ev)
			}
		}
		c.emitMu.Unlock()

		c.mu.Lock()
		pending := len(c.queue)
		c.mu.Unlock()
		if pending == 0 {
			return
		}
	}
}
