package session

import (
	"context"

	"github.com/rbright/talkthru/internal/language"
	"github.com/rbright/talkthru/internal/provider"
)

// unavailableTranscriber stands in when no speech backend is wired.
type unavailableTranscriber struct{}

func (unavailableTranscriber) Begin(context.Context, language.Language) (provider.Capture, error) {
	return nil, provider.ErrProviderUnavailable
}

// unavailableTranslator stands in when no translation backend is wired.
type unavailableTranslator struct{}

func (unavailableTranslator) Translate(context.Context, string, language.Pair) (string, error) {
	return "", provider.ErrProviderUnavailable
}
