package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/rbright/talkthru/internal/ipc"
	"github.com/rbright/talkthru/internal/language"
)

// Handle serves IPC commands for the session owner.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		return c.reply("status", nil).WithData(c.Snapshot())
	case ipc.CommandSpeak:
		role, err := language.ParseRole(req.Role)
		if err != nil {
			return c.reply("", err)
		}
		outcome, err := c.RequestSpeak(ctx, role)
		if err != nil {
			return c.reply("", err)
		}
		return c.reply(fmt.Sprintf("%s %s", role, outcome), nil)
	case ipc.CommandStop:
		return c.noop(c.EndSpeak(ctx), "stop requested", "nothing to stop")
	case ipc.CommandCancel:
		return c.noop(c.Cancel(ctx), "canceled", "nothing to cancel")
	case ipc.CommandReset:
		return c.reply("reset", c.Reset(ctx))
	case ipc.CommandSummary:
		syn, err := c.Summarize(ctx)
		if err != nil {
			return c.reply("", err)
		}
		return c.reply("summary ready", nil).WithData(syn)
	case ipc.CommandHistory:
		return c.reply("history", nil).WithData(c.History())
	case ipc.CommandEnd:
		return c.reply("session ended", c.End(ctx))
	default:
		resp := c.reply("", fmt.Errorf("unknown command: %s", req.Command))
		resp.Kind = "unknown_command"
		return resp
	}
}

// noop treats ErrNoActiveTurn as a successful no-op.
func (c *Controller) noop(err error, done string, idle string) ipc.Response {
	if errors.Is(err, ErrNoActiveTurn) {
		return c.reply(idle, nil)
	}
	return c.reply(done, err)
}

func (c *Controller) reply(message string, err error) ipc.Response {
	st := c.Snapshot()
	resp := ipc.Response{
		OK:      err == nil,
		Phase:   string(st.Phase),
		Role:    string(st.ActiveRole),
		Message: message,
	}
	if err != nil {
		resp.Error = err.Error()
		resp.Kind = ErrorKind(err)
	}
	return resp
}
