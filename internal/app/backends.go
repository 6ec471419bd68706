package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rbright/talkthru/internal/audio"
	"github.com/rbright/talkthru/internal/config"
	"github.com/rbright/talkthru/internal/deepgram"
	"github.com/rbright/talkthru/internal/pipeline"
	"github.com/rbright/talkthru/internal/provider"
	"github.com/rbright/talkthru/internal/provider/mock"
	"github.com/rbright/talkthru/internal/provider/openai"
	"github.com/rbright/talkthru/internal/speechrpc"
)

// backends are the providers one session is built from. A nil summarizer
// disables summaries.
type backends struct {
	transcriber provider.Transcriber
	translator  provider.Translator
	summarizer  provider.Summarizer
}

func buildBackends(cfg config.Config, logger *slog.Logger) (backends, error) {
	var out backends

	switch cfg.Transcription.Backend {
	case "mock":
		out.transcriber = mock.NewTranscriber(cfg.Transcription.MockDuration)
	case "speechrpc":
		out.transcriber = pipeline.NewTranscriber(pipeline.Options{
			Open: pipeline.PulseOpener(audioPreference(cfg), logger),
			Dial: pipeline.SpeechRPCDialer(speechrpc.Options{
				Endpoint:             cfg.Transcription.Endpoint,
				Model:                cfg.Transcription.Model,
				AutomaticPunctuation: cfg.Transcription.AutomaticPunctuation,
				DialTimeout:          cfg.Transcription.DialTimeout,
			}, cfg.Transcription.DebugDump),
			DebugDump: cfg.Transcription.DebugDump,
			Logger:    logger,
		})
	case "deepgram":
		out.transcriber = pipeline.NewTranscriber(pipeline.Options{
			Open: pipeline.PulseOpener(audioPreference(cfg), logger),
			Dial: pipeline.DeepgramDialer(deepgram.Options{
				APIKey: cfg.Transcription.APIKey,
				Model:  cfg.Transcription.Model,
				Logger: logger,
			}),
			DebugDump: cfg.Transcription.DebugDump,
			Logger:    logger,
		})
	default:
		return backends{}, fmt.Errorf("unsupported transcription backend %q", cfg.Transcription.Backend)
	}

	var summarizer provider.Summarizer
	switch cfg.Translation.Backend {
	case "mock":
		out.translator = mock.NewTranslator(nil)
		summarizer = mock.Summarizer{}
	case "openai":
		client := openai.New(openai.Options{
			BaseURL:    cfg.Translation.BaseURL,
			APIKey:     cfg.Translation.APIKey,
			Model:      cfg.Translation.Model,
			Timeout:    cfg.Translation.Timeout,
			MaxRetries: cfg.Translation.MaxRetries,
			Logger:     logger,
		})
		out.translator = client
		summarizer = client
	default:
		return backends{}, fmt.Errorf("unsupported translation backend %q", cfg.Translation.Backend)
	}

	if cfg.Summary.Enabled {
		out.summarizer = boundedSummarizer{next: summarizer, timeout: cfg.Summary.Timeout}
	}
	return out, nil
}

func audioPreference(cfg config.Config) audio.Preference {
	return audio.Preference{Input: cfg.Audio.Input, Fallback: cfg.Audio.Fallback}
}

// boundedSummarizer applies summary.timeout to every call.
type boundedSummarizer struct {
	next    provider.Summarizer
	timeout time.Duration
}

func (s boundedSummarizer) Summarize(ctx context.Context, prompt string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.next.Summarize(ctx, prompt)
}
