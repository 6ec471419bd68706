package session

import (
	"context"
	"errors"

	"github.com/rbright/talkthru/internal/provider"
	"github.com/rbright/talkthru/internal/summary"
)

var (
	// ErrBusy means another turn or a summary holds the floor.
	ErrBusy = errors.New("floor is busy")
	// ErrNoActiveTurn is returned by stop/cancel with nothing in flight. Callers treat it as a no-op.
	ErrNoActiveTurn = errors.New("no active turn")
	// ErrSessionEnded rejects commands after End.
	ErrSessionEnded = errors.New("session ended")
)

// ErrorKind maps err onto the stable kind names used in events and IPC replies.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrNoActiveTurn):
		return "no_active_turn"
	case errors.Is(err, ErrSessionEnded):
		return "session_ended"
	case errors.Is(err, provider.ErrUnsupportedLanguage):
		return "unsupported_language"
	case errors.Is(err, provider.ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, provider.ErrCaptureFailed):
		return "capture_failed"
	case errors.Is(err, provider.ErrTranslationFailed):
		return "translation_failed"
	case errors.Is(err, summary.ErrEmptyLedger):
		return "empty_ledger"
	case errors.Is(err, provider.ErrProviderUnavailable):
		return "provider_unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}

// classifyTranslation keeps taxonomy errors and folds everything else into
// provider.ErrTranslationFailed.
func classifyTranslation(err error) error {
	switch {
	case errors.Is(err, provider.ErrUnsupportedLanguage),
		errors.Is(err, provider.ErrMissingCredential),
		errors.Is(err, provider.ErrProviderUnavailable),
		errors.Is(err, provider.ErrTranslationFailed):
		return err
	default:
		return errors.Join(provider.ErrTranslationFailed, err)
	}
}

// classifyCapture folds transcription failures into provider.ErrCaptureFailed.
func classifyCapture(err error) error {
	switch {
	case errors.Is(err, provider.ErrCaptureFailed),
		errors.Is(err, provider.ErrUnsupportedLanguage),
		errors.Is(err, provider.ErrMissingCredential),
		errors.Is(err, provider.ErrProviderUnavailable):
		return err
	default:
		return errors.Join(provider.ErrCaptureFailed, err)
	}
}
