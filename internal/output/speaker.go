// Package output plays committed translations through an external
// text-to-speech command.
package output

import (
	"context"
	"log/slog"
	"time"

	"github.com/rbright/talkthru/internal/config"
	"github.com/rbright/talkthru/internal/ledger"
	"github.com/rbright/talkthru/internal/logging"
	"github.com/rbright/talkthru/internal/session"
)

const (
	// LangEnv carries the target language code to the speak command.
	LangEnv = "TALKTHRU_LANG"
	// SpeakerEnv carries the role that spoke the source text.
	SpeakerEnv = "TALKTHRU_SPEAKER"
)

// Speaker is a session.Listener that runs output.speak_command for every
// committed exchange, in commit order.
type Speaker struct {
	argv    []string
	timeout time.Duration
	logger  *slog.Logger

	queue chan ledger.Exchange
}

// NewSpeaker returns nil when no speak command is configured.
func NewSpeaker(cfg config.OutputConfig, logger *slog.Logger) *Speaker {
	if len(cfg.SpeakArgv) == 0 {
		return nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Speaker{
		argv:    cfg.SpeakArgv,
		timeout: timeout,
		logger:  logging.Component(logger, "output"),
		queue:   make(chan ledger.Exchange, 16),
	}
}

func (s *Speaker) OnEvent(ev session.Event) {
	if ev.Kind != session.EventExchangeReady || ev.Exchange == nil {
		return
	}
	select {
	case s.queue <- *ev.Exchange:
	default:
		s.logger.Warn("speak queue full; exchange skipped", "exchange", ev.Exchange.ID)
	}
}

// Run speaks queued exchanges until ctx ends.
func (s *Speaker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ex := <-s.queue:
			if err := s.Speak(ctx, ex); err != nil && ctx.Err() == nil {
				s.logger.Error("speak command failed", "exchange", ex.ID, "error", err.Error())
			}
		}
	}
}

// Speak runs the command once for ex.
func (s *Speaker) Speak(ctx context.Context, ex ledger.Exchange) error {
	if ex.TargetText == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	err := runCommandWithInput(ctx, s.argv, ex.TargetText,
		LangEnv+"="+ex.TargetLang,
		SpeakerEnv+"="+string(ex.Speaker),
	)
	if err != nil {
		return err
	}
	s.logger.Debug("exchange spoken", "exchange", ex.ID, "lang", ex.TargetLang, "duration_ms", time.Since(started).Milliseconds())
	return nil
}

var _ session.Listener = (*Speaker)(nil)
