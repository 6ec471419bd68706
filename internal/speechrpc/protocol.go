// Package speechrpc is a streaming speech recognizer client over gRPC.
//
// The wire protocol uses protobuf well-known types only, so recognizer
// backends need no generated stubs: the first client message is a
// structpb.Struct carrying Config, every following client message is a
// wrapperspb.BytesValue of 16 kHz mono LINEAR16 audio, and the server replies
// with structpb.Struct results.
package speechrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "talkthru.speech.v1.Recognizer"

	recognizeMethod = "/" + ServiceName + "/Recognize"

	// SampleRateHertz is the only audio rate the client sends.
	SampleRateHertz = 16000
)

var recognizeStream = grpc.StreamDesc{
	StreamName:    "Recognize",
	Handler:       recognizeHandler,
	ServerStreams: true,
	ClientStreams: true,
}

// Config opens one recognition stream.
type Config struct {
	LanguageCode         string
	Model                string
	AutomaticPunctuation bool
	SampleRateHertz      int
}

func (c Config) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"language_code":         c.LanguageCode,
		"model":                 c.Model,
		"automatic_punctuation": c.AutomaticPunctuation,
		"sample_rate_hertz":     c.SampleRateHertz,
		"encoding":              "LINEAR16",
	})
}

func configFromStruct(s *structpb.Struct) Config {
	fields := s.GetFields()
	return Config{
		LanguageCode:         fields["language_code"].GetStringValue(),
		Model:                fields["model"].GetStringValue(),
		AutomaticPunctuation: fields["automatic_punctuation"].GetBoolValue(),
		SampleRateHertz:      int(fields["sample_rate_hertz"].GetNumberValue()),
	}
}

// Result is one recognition hypothesis from the server.
type Result struct {
	Transcript string
	IsFinal    bool
	Stability  float64
	Confidence float64
}

func (r Result) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"transcript": r.Transcript,
		"is_final":   r.IsFinal,
		"stability":  r.Stability,
		"confidence": r.Confidence,
	})
}

func resultFromStruct(s *structpb.Struct) Result {
	fields := s.GetFields()
	return Result{
		Transcript: fields["transcript"].GetStringValue(),
		IsFinal:    fields["is_final"].GetBoolValue(),
		Stability:  fields["stability"].GetNumberValue(),
		Confidence: fields["confidence"].GetNumberValue(),
	}
}

// RecognizeServer is the server half of one Recognize stream.
type RecognizeServer interface {
	Context() context.Context
	// Recv returns the next audio chunk, or io.EOF once the client closes.
	Recv() ([]byte, error)
	Send(Result) error
}

// RecognizerServer is implemented by recognizer backends.
type RecognizerServer interface {
	Recognize(cfg Config, stream RecognizeServer) error
}

// RegisterRecognizerServer exposes impl on s.
func RegisterRecognizerServer(s grpc.ServiceRegistrar, impl RecognizerServer) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*RecognizerServer)(nil),
		Streams:     []grpc.StreamDesc{recognizeStream},
	}, impl)
}

func recognizeHandler(srv any, stream grpc.ServerStream) error {
	first := new(structpb.Struct)
	if err := stream.RecvMsg(first); err != nil {
		return err
	}
	return srv.(RecognizerServer).Recognize(configFromStruct(first), &serverStream{ServerStream: stream})
}

type serverStream struct {
	grpc.ServerStream
}

func (s *serverStream) Recv() ([]byte, error) {
	msg := new(wrapperspb.BytesValue)
	if err := s.RecvMsg(msg); err != nil {
		return nil, err
	}
	return msg.GetValue(), nil
}

func (s *serverStream) Send(r Result) error {
	msg, err := r.toStruct()
	if err != nil {
		return err
	}
	return s.SendMsg(msg)
}
