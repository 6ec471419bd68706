// Package provider defines the narrow contracts between the turn controller and
// the external speech, translation and generation services.
package provider

import (
	"context"
	"errors"

	"github.com/rbright/talkthru/internal/language"
)

var (
	ErrCaptureFailed       = errors.New("capture failed")
	ErrUnsupportedLanguage = language.ErrUnsupportedLanguage
	ErrMissingCredential   = errors.New("missing credential")
	ErrTranslationFailed   = errors.New("translation failed")
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// CaptureResult is the single outcome of one capture cycle.
type CaptureResult struct {
	Text       string
	Confidence float64
	Err        error
}

// Capture is one in-flight recording started by Transcriber.Begin.
//
// Result delivers exactly one value per cycle, either after End or on its own
// when the provider decides the utterance is over. After Cancel the channel may
// be closed without a value.
type Capture interface {
	End(ctx context.Context) error
	Cancel() error
	Result() <-chan CaptureResult
}

// Transcriber turns speech in one language into text.
type Transcriber interface {
	Begin(ctx context.Context, lang language.Language) (Capture, error)
}

// Translator converts text between two registry languages.
type Translator interface {
	Translate(ctx context.Context, text string, pair language.Pair) (string, error)
}

// Summarizer runs a free-form generation prompt.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// TranslateFunc adapts a function to Translator.
type TranslateFunc func(ctx context.Context, text string, pair language.Pair) (string, error)

func (f TranslateFunc) Translate(ctx context.Context, text string, pair language.Pair) (string, error) {
	return f(ctx, text, pair)
}

// SummarizeFunc adapts a function to Summarizer.
type SummarizeFunc func(ctx context.Context, prompt string) (string, error)

func (f SummarizeFunc) Summarize(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
