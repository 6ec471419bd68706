package speechrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Options controls stream initialization and recognition behavior.
type Options struct {
	Endpoint             string
	Model                string
	AutomaticPunctuation bool
	DialTimeout          time.Duration
	// DebugSink receives each server result as one JSON line.
	DebugSink io.Writer
	// DialOptions are appended to the defaults (insecure transport).
	DialOptions []grpc.DialOption
}

// Transcript is the merged output of one closed stream.
type Transcript struct {
	Segments   []string
	Confidence float64
}

// Stream wraps one active Recognize RPC lifecycle.
type Stream struct {
	conn   *grpc.ClientConn
	stream grpc.ClientStream
	cancel context.CancelFunc

	recvDone  chan struct{}
	debugSink io.Writer

	closeOnce sync.Once
	closeErr  error

	mu          sync.Mutex
	segments    []string // committed transcript segments (final and stable interim)
	lastInterim string
	lastStable  float64
	confidences []float64
	recvErr     error
	closedSend  bool
}

// stableInterim is the stability at which a superseded interim hypothesis is
// kept instead of being discarded.
const stableInterim = 0.9

// Dial establishes a stream for languageCode, sends the config, and starts
// the receive loop.
func Dial(ctx context.Context, opts Options, languageCode string) (*Stream, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, errors.New("speech endpoint is empty")
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 3 * time.Second
	}
	if strings.TrimSpace(languageCode) == "" {
		return nil, errors.New("speech language code is empty")
	}

	dialOpts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts.DialOptions...)
	conn, err := grpc.NewClient(endpoint, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial speech grpc %q: %w", endpoint, err)
	}

	readyCtx, cancelReady := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancelReady()
	conn.Connect()
	if err := waitForReady(readyCtx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("wait for speech grpc readiness: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := conn.NewStream(streamCtx, &recognizeStream, recognizeMethod)
	if err != nil {
		cancel()
		_ = conn.Close()
		return nil, fmt.Errorf("open streaming recognizer: %w", err)
	}

	cfg, err := Config{
		LanguageCode:         languageCode,
		Model:                strings.TrimSpace(opts.Model),
		AutomaticPunctuation: opts.AutomaticPunctuation,
		SampleRateHertz:      SampleRateHertz,
	}.toStruct()
	if err == nil {
		err = stream.SendMsg(cfg)
	}
	if err != nil {
		cancel()
		_ = conn.Close()
		return nil, fmt.Errorf("send initial streaming config: %w", err)
	}

	s := &Stream{
		conn:      conn,
		stream:    stream,
		cancel:    cancel,
		recvDone:  make(chan struct{}),
		debugSink: opts.DebugSink,
	}
	go s.recvLoop()
	return s, nil
}

// recvLoop receives recognition results until the server closes the stream.
func (s *Stream) recvLoop() {
	defer close(s.recvDone)

	for {
		msg := new(structpb.Struct)
		err := s.stream.RecvMsg(msg)
		if err == nil {
			s.record(resultFromStruct(msg), msg)
			continue
		}
		if errors.Is(err, io.EOF) {
			return
		}

		s.mu.Lock()
		s.recvErr = err
		s.mu.Unlock()
		return
	}
}

// record merges one result into stream state.
func (s *Stream) record(res Result, raw *structpb.Struct) {
	if s.debugSink != nil && raw != nil {
		if b, err := json.Marshal(raw.AsMap()); err == nil {
			_, _ = s.debugSink.Write(append(b, '\n'))
		}
	}

	transcript := cleanSegment(res.Transcript)
	if transcript == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if res.IsFinal {
		s.segments = appendSegment(s.segments, transcript)
		if res.Confidence > 0 {
			s.confidences = append(s.confidences, res.Confidence)
		}
		s.lastInterim = ""
		s.lastStable = 0
		return
	}

	if s.lastInterim != "" && s.lastStable >= stableInterim && !isInterimContinuation(s.lastInterim, transcript) {
		s.segments = appendSegment(s.segments, s.lastInterim)
	}
	s.lastInterim = transcript
	s.lastStable = res.Stability
}

// SendAudio sends one chunk of PCM audio over the active stream.
func (s *Stream) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.mu.Lock()
	closed := s.closedSend
	recvErr := s.recvErr
	s.mu.Unlock()

	if closed {
		return errors.New("stream already closed for sending")
	}
	if recvErr != nil {
		return fmt.Errorf("stream receive loop failed: %w", recvErr)
	}

	return s.stream.SendMsg(wrapperspb.Bytes(chunk))
}

// CloseAndCollect half-closes the stream and returns the merged transcript
// once the server finishes.
func (s *Stream) CloseAndCollect(ctx context.Context) (Transcript, time.Duration, error) {
	closedAt := time.Now()

	s.mu.Lock()
	if !s.closedSend {
		s.closedSend = true
		_ = s.stream.CloseSend()
	}
	s.mu.Unlock()

	select {
	case <-s.recvDone:
	case <-ctx.Done():
		_ = s.Cancel()
		return Transcript{}, 0, ctx.Err()
	}
	latency := time.Since(closedAt)
	defer s.shutdown()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recvErr != nil {
		return Transcript{}, latency, s.recvErr
	}

	return Transcript{
		Segments:   collectSegments(s.segments, s.lastInterim),
		Confidence: mean(s.confidences),
	}, latency, nil
}

// Cancel aborts the RPC and closes the connection.
func (s *Stream) Cancel() error {
	s.mu.Lock()
	s.closedSend = true
	s.mu.Unlock()
	return s.shutdown()
}

func (s *Stream) shutdown() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// waitForReady blocks until gRPC connection enters Ready or fails.
func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return errors.New("grpc connection entered shutdown state")
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("grpc readiness wait timed out in state %s", state.String())
		}
	}
}
