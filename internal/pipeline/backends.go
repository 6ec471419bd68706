package pipeline

import (
	"context"
	"log/slog"
	"os"

	"github.com/rbright/talkthru/internal/audio"
	"github.com/rbright/talkthru/internal/deepgram"
	"github.com/rbright/talkthru/internal/language"
	"github.com/rbright/talkthru/internal/speechrpc"
)

// PulseOpener records from the device chosen for pref.
func PulseOpener(pref audio.Preference, logger *slog.Logger) Opener {
	return func(ctx context.Context) (Source, audio.Device, error) {
		capture, sel, err := audio.Open(ctx, pref)
		if err != nil {
			return nil, audio.Device{}, err
		}
		if sel.Warning != "" && logger != nil {
			logger.Warn(sel.Warning)
		}
		return capture, sel.Device, nil
	}
}

// SpeechRPCDialer dials the gRPC recognizer. With debugDump set, each
// turn's raw results are written as JSON lines next to the audio dumps.
func SpeechRPCDialer(opts speechrpc.Options, debugDump bool) Dialer {
	return func(ctx context.Context, lang language.Language) (Recognizer, error) {
		o := opts
		var sink *os.File
		if debugDump {
			if f, err := createDebugFile("speechrpc", "jsonl"); err == nil {
				sink = f
				o.DebugSink = f
			}
		}
		stream, err := speechrpc.Dial(ctx, o, lang.Code)
		if err != nil {
			closeSink(sink)
			return nil, err
		}
		return &speechRPCRecognizer{stream: stream, sink: sink}, nil
	}
}

type speechRPCRecognizer struct {
	stream *speechrpc.Stream
	sink   *os.File
}

func (r *speechRPCRecognizer) SendAudio(chunk []byte) error {
	return r.stream.SendAudio(chunk)
}

func (r *speechRPCRecognizer) Finish(ctx context.Context) (Recognition, error) {
	defer closeSink(r.sink)
	out, latency, err := r.stream.CloseAndCollect(ctx)
	if err != nil {
		return Recognition{Latency: latency}, err
	}
	return Recognition{Segments: out.Segments, Confidence: out.Confidence, Latency: latency}, nil
}

func (r *speechRPCRecognizer) Cancel() error {
	defer closeSink(r.sink)
	return r.stream.Cancel()
}

// DeepgramDialer opens a live Deepgram socket per turn.
func DeepgramDialer(opts deepgram.Options) Dialer {
	return func(ctx context.Context, lang language.Language) (Recognizer, error) {
		stream, err := deepgram.Dial(ctx, opts, lang.Code)
		if err != nil {
			return nil, err
		}
		return &deepgramRecognizer{stream: stream}, nil
	}
}

type deepgramRecognizer struct {
	stream *deepgram.Stream
}

func (r *deepgramRecognizer) SendAudio(chunk []byte) error {
	return r.stream.SendAudio(chunk)
}

func (r *deepgramRecognizer) Finish(ctx context.Context) (Recognition, error) {
	out, latency, err := r.stream.CloseAndCollect(ctx)
	if err != nil {
		return Recognition{Latency: latency}, err
	}
	return Recognition{Segments: out.Segments, Confidence: out.Confidence, Latency: latency}, nil
}

func (r *deepgramRecognizer) Cancel() error {
	return r.stream.Cancel()
}

func closeSink(f *os.File) {
	if f != nil {
		_ = f.Close()
	}
}
