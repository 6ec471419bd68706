package audio

import (
	"context"
	"fmt"

	"github.com/jfreymuth/pulse"
)

// Play renders mono s16 samples at sampleRate and blocks until drained or
// ctx ends.
func Play(ctx context.Context, samples []int16, sampleRate int, mediaName string) error {
	if len(samples) == 0 {
		return nil
	}

	client, err := connect("audio-speakers")
	if err != nil {
		return err
	}
	defer client.Close()

	cursor := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if cursor >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[cursor:])
		cursor += n
		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	stream, err := client.NewPlayback(
		reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName(mediaName),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	done := make(chan struct{})
	go func() {
		stream.Start()
		stream.Drain()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// Close (deferred) aborts the pending drain request.
		return ctx.Err()
	}
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play %s: %w", mediaName, err)
	}
	return nil
}
