package session

import (
	"context"
	"testing"

	"github.com/rbright/talkthru/internal/fsm"
	"github.com/rbright/talkthru/internal/ipc"
	"github.com/rbright/talkthru/internal/ledger"
	"github.com/rbright/talkthru/internal/provider/mock"
	"github.com/stretchr/testify/require"
)

func TestHandleStatusAndUnknownCommand(t *testing.T) {
	ctrl, _ := newTestController(t, &fakeTranscriber{}, mock.NewTranslator(nil), Options{})

	status := ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandStatus})
	require.True(t, status.OK)
	require.Equal(t, string(fsm.PhaseIdle), status.Phase)

	var st State
	require.NoError(t, status.DecodeData(&st))
	require.Equal(t, "en", st.Binding.Initiator.Code)
	require.Equal(t, "nl", st.Binding.Respondent.Code)

	unknown := ctrl.Handle(context.Background(), ipc.Request{Command: "definitely-unknown"})
	require.False(t, unknown.OK)
	require.Equal(t, "unknown_command", unknown.Kind)
	require.Contains(t, unknown.Error, "unknown command")
}

func TestHandleStopAndCancelAreNoopsWhenIdle(t *testing.T) {
	ctrl, _ := newTestController(t, &fakeTranscriber{}, mock.NewTranslator(nil), Options{})

	stop := ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandStop})
	require.True(t, stop.OK)
	require.Equal(t, "nothing to stop", stop.Message)

	cancel := ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandCancel})
	require.True(t, cancel.OK)
	require.Equal(t, "nothing to cancel", cancel.Message)
}

func TestHandleSpeakFlow(t *testing.T) {
	tr := &fakeTranscriber{texts: []string{"Hello, how are you?"}}
	ctrl, rec := newTestController(t, tr, mock.NewTranslator(nil), Options{})
	ctx := context.Background()

	bad := ctrl.Handle(ctx, ipc.Request{Command: ipc.CommandSpeak, Role: "moderator"})
	require.False(t, bad.OK)
	require.Contains(t, bad.Error, "unknown role")

	speak := ctrl.Handle(ctx, ipc.Request{Command: ipc.CommandSpeak, Role: "person1"})
	require.True(t, speak.OK)
	require.Equal(t, "capturing", speak.Phase)
	require.Equal(t, "initiator", speak.Role)
	require.Equal(t, "initiator started", speak.Message)

	busy := ctrl.Handle(ctx, ipc.Request{Command: ipc.CommandSpeak, Role: "respondent"})
	require.False(t, busy.OK)
	require.Equal(t, "busy", busy.Kind)

	toggle := ctrl.Handle(ctx, ipc.Request{Command: ipc.CommandSpeak, Role: "initiator"})
	require.True(t, toggle.OK)
	require.Equal(t, "initiator stopped", toggle.Message)
	rec.waitFor(t, EventExchangeReady)

	history := ctrl.Handle(ctx, ipc.Request{Command: ipc.CommandHistory})
	require.True(t, history.OK)
	var exchanges []ledger.Exchange
	require.NoError(t, history.DecodeData(&exchanges))
	require.Len(t, exchanges, 1)
	require.Equal(t, "Hallo, hoe gaat het?", exchanges[0].TargetText)
}

func TestHandleSummaryWithoutBackend(t *testing.T) {
	ctrl, _ := newTestController(t, &fakeTranscriber{}, mock.NewTranslator(nil), Options{})

	resp := ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandSummary})
	require.False(t, resp.OK)
	require.Equal(t, "empty_ledger", resp.Kind)
}

func TestHandleResetAndEnd(t *testing.T) {
	ctrl, _ := newTestController(t, &fakeTranscriber{texts: []string{"x"}}, mock.NewTranslator(nil), Options{})
	ctx := context.Background()

	require.True(t, ctrl.Handle(ctx, ipc.Request{Command: ipc.CommandSpeak, Role: "2"}).OK)
	reset := ctrl.Handle(ctx, ipc.Request{Command: ipc.CommandReset})
	require.True(t, reset.OK)
	require.Equal(t, "idle", reset.Phase)

	end := ctrl.Handle(ctx, ipc.Request{Command: ipc.CommandEnd})
	require.True(t, end.OK)
	again := ctrl.Handle(ctx, ipc.Request{Command: ipc.CommandSpeak, Role: "1"})
	require.False(t, again.OK)
	require.Equal(t, "session_ended", again.Kind)
}
