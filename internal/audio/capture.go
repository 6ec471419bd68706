package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	// SampleRate is the capture rate every recognizer backend is configured for.
	SampleRate = 16000

	// ChunkSize is 20ms of 16kHz mono s16.
	ChunkSize = 640
)

// Capture records one turn from a Pulse source and emits fixed-size chunks.
type Capture struct {
	device Device

	client *pulse.Client
	stream *pulse.RecordStream

	chunks chan []byte
	stopCh chan struct{}

	mu      sync.Mutex
	pending []byte
	raw     []byte
	stopped bool

	inflight sync.WaitGroup
	bytes    atomic.Int64
}

// Open selects a device for pref and starts capturing from it.
func Open(ctx context.Context, pref Preference) (*Capture, Selection, error) {
	sel, err := SelectDevice(ctx, pref)
	if err != nil {
		return nil, Selection{}, err
	}
	capture, err := StartCapture(ctx, sel.Device)
	if err != nil {
		return nil, sel, err
	}
	return capture, sel, nil
}

// StartCapture starts a 16kHz mono s16 record stream on device. The capture
// stops on its own when ctx ends.
func StartCapture(ctx context.Context, device Device) (*Capture, error) {
	client, err := connect("audio-input-microphone")
	if err != nil {
		return nil, err
	}

	source, err := client.SourceByID(device.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", device.ID, err)
	}

	c := newCapture(device)
	c.client = client

	stream, err := client.NewRecord(
		pulse.NewWriter(writerFunc(c.onPCM), pulseproto.FormatInt16LE),
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(SampleRate),
		pulse.RecordBufferFragmentSize(ChunkSize),
		pulse.RecordMediaName(ClientName+" turn"),
	)
	if err != nil {
		_ = c.Stop()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}
	c.stream = stream
	stream.Start()

	go func() {
		select {
		case <-ctx.Done():
			_ = c.Stop()
		case <-c.stopCh:
		}
	}()
	return c, nil
}

func newCapture(device Device) *Capture {
	return &Capture{
		device: device,
		chunks: make(chan []byte, 128),
		stopCh: make(chan struct{}),
	}
}

// Device returns the source being recorded.
func (c *Capture) Device() Device {
	return c.device
}

// Chunks is closed after Stop has flushed the residual tail.
func (c *Capture) Chunks() <-chan []byte {
	return c.chunks
}

func (c *Capture) BytesCaptured() int64 {
	return c.bytes.Load()
}

// RawPCM returns a copy of everything captured so far.
func (c *Capture) RawPCM() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.raw...)
}

// Stop halts recording, flushes the partial chunk, and closes Chunks. It is
// safe to call more than once.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.stopCh)
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}

	c.inflight.Wait()

	c.mu.Lock()
	tail := c.pending
	c.pending = nil
	c.mu.Unlock()

	if len(tail) > 0 {
		select {
		case c.chunks <- tail:
		default:
		}
	}
	close(c.chunks)
	return nil
}

func (c *Capture) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return 0, io.EOF
	}
	// Add happens under mu so Stop's Wait cannot race it.
	c.inflight.Add(1)
	defer c.inflight.Done()

	c.raw = append(c.raw, buffer...)
	c.pending = append(c.pending, buffer...)
	var ready [][]byte
	for len(c.pending) >= ChunkSize {
		ready = append(ready, append([]byte(nil), c.pending[:ChunkSize]...))
		c.pending = c.pending[ChunkSize:]
	}
	c.pending = append([]byte(nil), c.pending...)
	c.mu.Unlock()

	c.bytes.Add(int64(len(buffer)))

	for _, chunk := range ready {
		select {
		case <-c.stopCh:
			return 0, io.EOF
		case c.chunks <- chunk:
		}
	}
	return len(buffer), nil
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
