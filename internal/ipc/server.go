package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

const (
	maxRequestBytes = 64 * 1024
	readTimeout     = 5 * time.Second
)

// Handler processes one request from a CLI client.
type Handler interface {
	Handle(context.Context, Request) Response
}

type HandlerFunc func(context.Context, Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// Serve answers one JSON line request per connection until ctx is done or the
// listener closes. In-flight handlers finish before Serve returns.
func Serve(ctx context.Context, listener net.Listener, handler Handler) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	stop := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stop()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept ipc connection: %w", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			serveConn(ctx, conn, handler)
		}()
	}
}

func serveConn(ctx context.Context, conn net.Conn, handler Handler) {
	defer conn.Close()
	enc := json.NewEncoder(conn)

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxRequestBytes)
	if !scanner.Scan() {
		err := scanner.Err()
		if err == nil {
			err = errors.New("connection closed before request")
		}
		_ = enc.Encode(Response{Error: fmt.Sprintf("read request: %v", err), Kind: "internal"})
		return
	}

	var req Request
	if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
		_ = enc.Encode(Response{Error: fmt.Sprintf("decode request: %v", err), Kind: "internal"})
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	_ = enc.Encode(handler.Handle(ctx, req))
}
