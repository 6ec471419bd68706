package fsm

import "fmt"

// Phase is the controller-wide position of the floor.
type Phase string

type Event string

const (
	PhaseIdle        Phase = "idle"
	PhaseCapturing   Phase = "capturing"
	PhaseTranslating Phase = "translating"
	PhaseSummarizing Phase = "summarizing"
)

const (
	EventSpeak       Event = "speak"
	EventStop        Event = "stop"
	EventTranscribed Event = "transcribed"
	EventCommit      Event = "commit"
	EventFail        Event = "fail"
	EventCancel      Event = "cancel"
	EventSummarize   Event = "summarize"
	EventSummarized  Event = "summarized"
	EventReset       Event = "reset"
)

// Outcome is the terminal result of one turn.
type Outcome string

const (
	OutcomeCommitted Outcome = "committed"
	OutcomeFailed    Outcome = "failed"
	OutcomeCanceled  Outcome = "canceled"
)

// HoldsFloor reports whether the phase blocks a new turn or summary.
func (p Phase) HoldsFloor() bool {
	return p != PhaseIdle
}

// InTurn reports whether a speak-transcribe-translate turn is active.
func (p Phase) InTurn() bool {
	return p == PhaseCapturing || p == PhaseTranslating
}

func Transition(current Phase, event Event) (Phase, error) {
	if event == EventReset {
		switch current {
		case PhaseIdle, PhaseCapturing, PhaseTranslating, PhaseSummarizing:
			return PhaseIdle, nil
		}
	}

	switch current {
	case PhaseIdle:
		switch event {
		case EventSpeak:
			return PhaseCapturing, nil
		case EventSummarize:
			return PhaseSummarizing, nil
		default:
			return current, invalidTransition(current, event)
		}
	case PhaseCapturing:
		switch event {
		case EventStop, EventTranscribed:
			return PhaseTranslating, nil
		case EventFail, EventCancel:
			return PhaseIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case PhaseTranslating:
		switch event {
		case EventCommit, EventFail, EventCancel:
			return PhaseIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case PhaseSummarizing:
		switch event {
		case EventSummarized, EventFail, EventCancel:
			return PhaseIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown phase %q", current)
	}
}

func invalidTransition(phase Phase, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", phase, event)
}
