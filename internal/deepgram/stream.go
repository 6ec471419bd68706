// Package deepgram streams turn audio to Deepgram's live transcription API.
package deepgram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/rbright/talkthru/internal/logging"
	"github.com/rbright/talkthru/internal/provider"
)

// APIKeyEnv is read by the SDK when Options.APIKey is empty.
const APIKeyEnv = "DEEPGRAM_API_KEY"

// Options configures live transcription.
type Options struct {
	APIKey string
	Model  string
	// SettleWait is how long CloseAndCollect waits for trailing results after
	// the last message before closing the socket.
	SettleWait time.Duration
	Logger     *slog.Logger
}

// Transcript is the merged output of one closed stream.
type Transcript struct {
	Segments   []string
	Confidence float64
}

// Stream is one live transcription socket for a single turn.
type Stream struct {
	ws     *client.WSCallback
	ctx    context.Context
	cancel context.CancelFunc
	pr     *io.PipeReader
	pw     *io.PipeWriter
	logger *slog.Logger
	settle time.Duration

	acc      *accumulator
	stopOnce sync.Once
}

// Dial opens a live socket for languageCode and starts streaming.
func Dial(ctx context.Context, opts Options, languageCode string) (*Stream, error) {
	if strings.TrimSpace(opts.APIKey) == "" && strings.TrimSpace(os.Getenv(APIKeyEnv)) == "" {
		return nil, &provider.Error{Provider: "deepgram", Kind: provider.ErrMissingCredential, Err: errors.New("api key is not configured")}
	}
	if opts.SettleWait <= 0 {
		opts.SettleWait = 1200 * time.Millisecond
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "nova-2"
	}

	logger := logging.Component(opts.Logger, "deepgram")
	s := &Stream{logger: logger, settle: opts.SettleWait, acc: newAccumulator()}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.pr, s.pw = io.Pipe()

	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          model,
		Language:       languageCode,
		Encoding:       "linear16",
		SampleRate:     16000,
		Channels:       1,
		InterimResults: true,
		Punctuate:      true,
		SmartFormat:    true,
	}
	cOptions := &interfaces.ClientOptions{EnableKeepAlive: true}

	ws, err := client.NewWSUsingCallback(s.ctx, opts.APIKey, cOptions, tOptions, &callback{acc: s.acc, logger: logger})
	if err != nil {
		s.cancel()
		return nil, &provider.Error{Provider: "deepgram", Kind: provider.ErrProviderUnavailable, Err: err}
	}
	s.ws = ws

	if !ws.Connect() {
		s.cancel()
		return nil, &provider.Error{Provider: "deepgram", Kind: provider.ErrProviderUnavailable, Err: errors.New("connect failed")}
	}
	logger.Info("deepgram connected", "model", model, "language", languageCode)

	go func() {
		if err := ws.Stream(s.pr); err != nil && s.ctx.Err() == nil && !errors.Is(err, io.EOF) {
			s.acc.fail(err)
		}
	}()
	return s, nil
}

// SendAudio forwards one PCM chunk.
func (s *Stream) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	if err := s.acc.failure(); err != nil {
		return err
	}
	_, err := s.pw.Write(chunk)
	return err
}

// CloseAndCollect ends the audio stream, waits for trailing results to
// settle, and returns the merged transcript.
func (s *Stream) CloseAndCollect(ctx context.Context) (Transcript, time.Duration, error) {
	closedAt := time.Now()
	_ = s.pw.Close()

	err := s.acc.settle(ctx, s.settle)
	latency := time.Since(closedAt)
	s.stop()
	if err != nil {
		return Transcript{}, latency, err
	}
	if err := s.acc.failure(); err != nil {
		return Transcript{}, latency, err
	}
	return s.acc.transcript(), latency, nil
}

// Cancel drops the socket without collecting.
func (s *Stream) Cancel() error {
	_ = s.pw.CloseWithError(context.Canceled)
	s.stop()
	return nil
}

func (s *Stream) stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		s.ws.Stop()
	})
}

// accumulator merges live results. Finals are consecutive, non-overlapping
// segments; interim results revise the open segment.
type accumulator struct {
	mu          sync.Mutex
	segments    []string
	interim     string
	confidences []float64
	err         error
	closed      bool

	activity chan struct{}
}

func newAccumulator() *accumulator {
	return &accumulator{activity: make(chan struct{}, 1)}
}

func (a *accumulator) add(text string, confidence float64, final bool) {
	text = strings.Join(strings.Fields(text), " ")

	a.mu.Lock()
	switch {
	case final && text != "":
		a.segments = append(a.segments, text)
		a.interim = ""
		if confidence > 0 {
			a.confidences = append(a.confidences, confidence)
		}
	case final:
		a.interim = ""
	default:
		a.interim = text
	}
	a.mu.Unlock()
	a.touch()
}

func (a *accumulator) fail(err error) {
	a.mu.Lock()
	if a.err == nil {
		a.err = err
	}
	a.mu.Unlock()
	a.touch()
}

func (a *accumulator) markClosed() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	a.touch()
}

func (a *accumulator) touch() {
	select {
	case a.activity <- struct{}{}:
	default:
	}
}

func (a *accumulator) failure() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

func (a *accumulator) done() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed || a.err != nil
}

// settle returns once no result has arrived for quiet, the socket closed, or
// ctx ended.
func (a *accumulator) settle(ctx context.Context, quiet time.Duration) error {
	timer := time.NewTimer(quiet)
	defer timer.Stop()
	for {
		if a.done() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case <-a.activity:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(quiet)
		}
	}
}

func (a *accumulator) transcript() Transcript {
	a.mu.Lock()
	defer a.mu.Unlock()

	segments := append([]string(nil), a.segments...)
	if a.interim != "" {
		segments = append(segments, a.interim)
	}
	var conf float64
	for _, c := range a.confidences {
		conf += c
	}
	if len(a.confidences) > 0 {
		conf /= float64(len(a.confidences))
	}
	return Transcript{Segments: segments, Confidence: conf}
}

type callback struct {
	acc    *accumulator
	logger *slog.Logger
}

func (c *callback) Open(*msginterfaces.OpenResponse) error {
	c.logger.Debug("deepgram connection opened")
	return nil
}

func (c *callback) Message(mr *msginterfaces.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	alt := mr.Channel.Alternatives[0]
	c.acc.add(alt.Transcript, alt.Confidence, mr.IsFinal || mr.SpeechFinal)
	return nil
}

func (c *callback) Metadata(md *msginterfaces.MetadataResponse) error {
	c.logger.Debug("deepgram metadata", "request_id", md.RequestID)
	return nil
}

func (c *callback) SpeechStarted(*msginterfaces.SpeechStartedResponse) error {
	return nil
}

func (c *callback) UtteranceEnd(*msginterfaces.UtteranceEndResponse) error {
	c.acc.touch()
	return nil
}

func (c *callback) Close(*msginterfaces.CloseResponse) error {
	c.acc.markClosed()
	return nil
}

func (c *callback) Error(er *msginterfaces.ErrorResponse) error {
	c.logger.Warn("deepgram error", "code", er.ErrCode, "message", er.ErrMsg)
	c.acc.fail(&provider.Error{
		Provider: "deepgram",
		Kind:     provider.ErrCaptureFailed,
		Err:      fmt.Errorf("%s: %s", er.ErrCode, er.ErrMsg),
	})
	return nil
}

func (c *callback) UnhandledEvent(data []byte) error {
	c.logger.Debug("deepgram unhandled event", "bytes", len(data))
	return nil
}

var _ msginterfaces.LiveMessageCallback = (*callback)(nil)
