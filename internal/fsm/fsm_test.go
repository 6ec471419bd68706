package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionCommitPath(t *testing.T) {
	p := PhaseIdle

	next, err := Transition(p, EventSpeak)
	require.NoError(t, err)
	require.Equal(t, PhaseCapturing, next)

	next, err = Transition(next, EventStop)
	require.NoError(t, err)
	require.Equal(t, PhaseTranslating, next)

	next, err = Transition(next, EventCommit)
	require.NoError(t, err)
	require.Equal(t, PhaseIdle, next)
}

func TestTransitionSelfDeliveredTranscript(t *testing.T) {
	next, err := Transition(PhaseCapturing, EventTranscribed)
	require.NoError(t, err)
	require.Equal(t, PhaseTranslating, next)
}

func TestTransitionResetFromAnyPhaseGoesIdle(t *testing.T) {
	for _, phase := range []Phase{PhaseIdle, PhaseCapturing, PhaseTranslating, PhaseSummarizing} {
		next, err := Transition(phase, EventReset)
		require.NoError(t, err)
		require.Equal(t, PhaseIdle, next)
	}
}

func TestTransitionMatrix(t *testing.T) {
	tests := []struct {
		name    string
		phase   Phase
		event   Event
		want    Phase
		wantErr bool
	}{
		{name: "idle stop invalid", phase: PhaseIdle, event: EventStop, want: PhaseIdle, wantErr: true},
		{name: "idle cancel invalid", phase: PhaseIdle, event: EventCancel, want: PhaseIdle, wantErr: true},
		{name: "idle commit invalid", phase: PhaseIdle, event: EventCommit, want: PhaseIdle, wantErr: true},
		{name: "idle summarize", phase: PhaseIdle, event: EventSummarize, want: PhaseSummarizing},
		{name: "capturing speak invalid", phase: PhaseCapturing, event: EventSpeak, want: PhaseCapturing, wantErr: true},
		{name: "capturing commit invalid", phase: PhaseCapturing, event: EventCommit, want: PhaseCapturing, wantErr: true},
		{name: "capturing summarize invalid", phase: PhaseCapturing, event: EventSummarize, want: PhaseCapturing, wantErr: true},
		{name: "capturing fail", phase: PhaseCapturing, event: EventFail, want: PhaseIdle},
		{name: "capturing cancel", phase: PhaseCapturing, event: EventCancel, want: PhaseIdle},
		{name: "translating stop invalid", phase: PhaseTranslating, event: EventStop, want: PhaseTranslating, wantErr: true},
		{name: "translating speak invalid", phase: PhaseTranslating, event: EventSpeak, want: PhaseTranslating, wantErr: true},
		{name: "translating fail", phase: PhaseTranslating, event: EventFail, want: PhaseIdle},
		{name: "translating cancel", phase: PhaseTranslating, event: EventCancel, want: PhaseIdle},
		{name: "summarizing speak invalid", phase: PhaseSummarizing, event: EventSpeak, want: PhaseSummarizing, wantErr: true},
		{name: "summarizing done", phase: PhaseSummarizing, event: EventSummarized, want: PhaseIdle},
		{name: "summarizing fail", phase: PhaseSummarizing, event: EventFail, want: PhaseIdle},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Transition(tc.phase, tc.event)
			require.Equal(t, tc.want, next)
			if tc.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), "invalid transition")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTransitionUnknownPhase(t *testing.T) {
	next, err := Transition(Phase("mystery"), EventSpeak)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown phase")
	require.Equal(t, Phase("mystery"), next)

	_, err = Transition(Phase("mystery"), EventReset)
	require.Error(t, err)
}

func TestPhaseFloorHelpers(t *testing.T) {
	require.False(t, PhaseIdle.HoldsFloor())
	require.True(t, PhaseCapturing.HoldsFloor())
	require.True(t, PhaseSummarizing.HoldsFloor())
	require.True(t, PhaseTranslating.InTurn())
	require.False(t, PhaseSummarizing.InTurn())
}
