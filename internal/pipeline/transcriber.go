// Package pipeline wires microphone capture to a streaming recognizer and
// exposes the pair as a provider.Transcriber.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/talkthru/internal/audio"
	"github.com/rbright/talkthru/internal/language"
	"github.com/rbright/talkthru/internal/logging"
	"github.com/rbright/talkthru/internal/provider"
	"github.com/rbright/talkthru/internal/transcript"
)

// Source is one running recording.
type Source interface {
	Chunks() <-chan []byte
	Stop() error
	RawPCM() []byte
	BytesCaptured() int64
}

// Opener starts a recording and reports the device it records from.
type Opener func(ctx context.Context) (Source, audio.Device, error)

// Recognition is the recognizer output for one turn.
type Recognition struct {
	Segments   []string
	Confidence float64
	Latency    time.Duration
}

// Recognizer consumes PCM for one turn.
type Recognizer interface {
	SendAudio(chunk []byte) error
	Finish(ctx context.Context) (Recognition, error)
	Cancel() error
}

// Dialer opens a recognizer for the spoken language.
type Dialer func(ctx context.Context, lang language.Language) (Recognizer, error)

// Options configures a Transcriber.
type Options struct {
	Open Opener
	Dial Dialer
	// CollectTimeout bounds the wait for final results after capture ends.
	CollectTimeout time.Duration
	// DebugDump writes each turn's audio as WAV under the state directory.
	DebugDump bool
	Logger    *slog.Logger
}

// Transcriber runs capture -> recognize -> assemble for each turn.
type Transcriber struct {
	opts   Options
	logger *slog.Logger
}

// NewTranscriber returns a Transcriber. Open and Dial are required.
func NewTranscriber(opts Options) *Transcriber {
	if opts.CollectTimeout <= 0 {
		opts.CollectTimeout = 20 * time.Second
	}
	return &Transcriber{opts: opts, logger: logging.Component(opts.Logger, "pipeline")}
}

// Begin dials the recognizer for lang, then starts recording into it.
func (t *Transcriber) Begin(ctx context.Context, lang language.Language) (provider.Capture, error) {
	if t.opts.Open == nil || t.opts.Dial == nil {
		return nil, fmt.Errorf("%w: transcription pipeline is not configured", provider.ErrProviderUnavailable)
	}
	if _, err := language.Lookup(lang.Code); err != nil {
		return nil, err
	}

	rec, err := t.opts.Dial(ctx, lang)
	if err != nil {
		return nil, err
	}
	source, device, err := t.opts.Open(ctx)
	if err != nil {
		_ = rec.Cancel()
		return nil, errors.Join(provider.ErrCaptureFailed, err)
	}

	c := &capture{
		owner:   t,
		lang:    lang,
		device:  describeDevice(device),
		source:  source,
		rec:     rec,
		sendErr: make(chan error, 1),
		result:  make(chan provider.CaptureResult, 1),
	}
	go c.sendLoop()

	t.logger.Info("capture started", "language", lang.Code, "device", c.device)
	return c, nil
}

type capture struct {
	owner  *Transcriber
	lang   language.Language
	device string
	source Source
	rec    Recognizer

	sendErr chan error
	result  chan provider.CaptureResult

	mu       sync.Mutex
	ended    bool
	canceled bool
	once     sync.Once
}

func (c *capture) Result() <-chan provider.CaptureResult {
	return c.result
}

// End stops recording and collects the transcript in the background.
func (c *capture) End(ctx context.Context) error {
	c.mu.Lock()
	if c.ended || c.canceled {
		c.mu.Unlock()
		return nil
	}
	c.ended = true
	c.mu.Unlock()

	_ = c.source.Stop()
	go c.finish(ctx)
	return nil
}

// Cancel drops the turn. Result is closed without a value.
func (c *capture) Cancel() error {
	c.mu.Lock()
	if c.canceled {
		c.mu.Unlock()
		return nil
	}
	c.canceled = true
	ended := c.ended
	c.mu.Unlock()

	_ = c.source.Stop()
	err := c.rec.Cancel()
	if !ended {
		c.owner.dumpAudio(c.source.RawPCM())
		c.once.Do(func() { close(c.result) })
	}
	c.owner.logger.Info("capture canceled", "language", c.lang.Code, "bytes", c.source.BytesCaptured())
	return err
}

func (c *capture) finish(ctx context.Context) {
	res := c.collect(ctx)
	c.owner.dumpAudio(c.source.RawPCM())

	c.mu.Lock()
	canceled := c.canceled
	c.mu.Unlock()

	c.once.Do(func() {
		if !canceled {
			c.result <- res
		}
		close(c.result)
	})
}

func (c *capture) collect(ctx context.Context) provider.CaptureResult {
	if err := <-c.sendErr; err != nil {
		_ = c.rec.Cancel()
		return provider.CaptureResult{Err: &provider.Error{Provider: "pipeline", Kind: provider.ErrCaptureFailed, Err: fmt.Errorf("send audio: %w", err)}}
	}

	collectCtx, cancel := context.WithTimeout(ctx, c.owner.opts.CollectTimeout)
	defer cancel()
	recognition, err := c.rec.Finish(collectCtx)
	if err != nil {
		c.owner.logger.Warn("recognition failed", "language", c.lang.Code, "device", c.device, "error", err.Error())
		return provider.CaptureResult{Err: fmt.Errorf("collect transcript: %w", err)}
	}

	text := transcript.Assemble(recognition.Segments, transcript.Options{
		Language:            c.lang.Code,
		CapitalizeSentences: true,
	})
	c.owner.logger.Info("capture transcribed",
		"language", c.lang.Code,
		"device", c.device,
		"bytes", c.source.BytesCaptured(),
		"segments", len(recognition.Segments),
		"latency_ms", recognition.Latency.Milliseconds(),
	)
	return provider.CaptureResult{Text: text, Confidence: recognition.Confidence}
}

// sendLoop forwards chunks until the source closes, reporting the first
// send failure.
func (c *capture) sendLoop() {
	var sendErr error
	for chunk := range c.source.Chunks() {
		if sendErr != nil || len(chunk) == 0 {
			continue
		}
		if err := c.rec.SendAudio(chunk); err != nil {
			sendErr = err
			_ = c.source.Stop()
		}
	}
	c.sendErr <- sendErr
}

func describeDevice(device audio.Device) string {
	description := strings.TrimSpace(device.Description)
	id := strings.TrimSpace(device.ID)
	switch {
	case description == "":
		return id
	case id == "":
		return description
	default:
		return fmt.Sprintf("%s (%s)", description, id)
	}
}
