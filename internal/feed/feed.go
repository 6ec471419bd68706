// Package feed broadcasts controller events to UI shells over websocket.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rbright/talkthru/internal/config"
	"github.com/rbright/talkthru/internal/ledger"
	"github.com/rbright/talkthru/internal/logging"
	"github.com/rbright/talkthru/internal/session"
	"github.com/rbright/talkthru/internal/summary"
)

const (
	// EventsPath is the websocket endpoint.
	EventsPath = "/events"

	writeWait  = 2 * time.Second
	sendBuffer = 32
)

// Message is one frame on the wire. A client first receives a snapshot,
// then one event frame per controller event.
type Message struct {
	Type    string            `json:"type"`
	State   *session.State    `json:"state,omitempty"`
	History []ledger.Exchange `json:"history,omitempty"`
	Summary *summary.Synopsis `json:"summary,omitempty"`
	Event   *session.Event    `json:"event,omitempty"`
}

// Snapshotter supplies the connect-time snapshot.
type Snapshotter interface {
	Snapshot() session.State
	History() []ledger.Exchange
	LastSummary() (summary.Synopsis, bool)
}

// Server is a session.Listener fanning events out to websocket clients.
type Server struct {
	addr     string
	origins  []string
	source   Snapshotter
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	clients  map[*client]struct{}
	server   *http.Server
	listener net.Listener
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// New returns a feed bound to cfg.Listen (host:port).
func New(cfg config.FeedConfig, source Snapshotter, logger *slog.Logger) *Server {
	s := &Server{
		addr:    cfg.Listen,
		origins: cfg.AllowedOrigins,
		source:  source,
		logger:  logging.Component(logger, "feed"),
		clients: make(map[*client]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// checkOrigin admits non-browser clients (no Origin header), loopback pages,
// and the configured origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := strings.TrimSuffix(strings.TrimSpace(r.Header.Get("Origin")), "/")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if isLoopback(u.Hostname()) {
		return true
	}
	for _, allowed := range s.origins {
		allowed = strings.TrimSuffix(strings.TrimSpace(allowed), "/")
		if strings.Contains(allowed, "://") {
			if strings.EqualFold(allowed, origin) {
				return true
			}
			continue
		}
		if strings.EqualFold(allowed, u.Host) {
			return true
		}
	}
	return false
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Start binds the listener and serves until ctx ends or Close is called.
func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen feed %q: %w", s.addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle(EventsPath, s)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	s.mu.Lock()
	s.listener = lis
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	srv := s.server
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()
	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("feed server stopped", "error", err.Error())
		}
	}()
	s.logger.Info("feed listening", "addr", lis.Addr().String())
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Close stops the server and disconnects all clients.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	clients := s.clients
	s.clients = make(map[*client]struct{})
	s.mu.Unlock()

	for c := range clients {
		c.close()
	}
	if srv == nil {
		return nil
	}
	return srv.Close()
}

// ServeHTTP upgrades the request and streams frames until the peer leaves.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("feed upgrade refused", "remote", r.RemoteAddr, "origin", r.Header.Get("Origin"), "error", err.Error())
		return
	}

	// The snapshot and registration share one critical section so no event
	// lands between them: OnEvent queues behind the snapshot.
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	s.mu.Lock()
	if payload, err := s.snapshot(); err == nil {
		c.send <- payload
	}
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	s.logger.Debug("feed client connected", "remote", r.RemoteAddr)

	go s.readLoop(c)
	s.writeLoop(c)
}

// readLoop discards inbound frames; it exists to observe the peer closing.
func (s *Server) readLoop(c *client) {
	defer s.drop(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writeLoop(c *client) {
	defer c.conn.Close()
	for payload := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			s.drop(c)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

func (s *Server) drop(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	c.close()
}

func (s *Server) snapshot() ([]byte, error) {
	msg := Message{Type: "snapshot"}
	if s.source != nil {
		state := s.source.Snapshot()
		msg.State = &state
		msg.History = s.source.History()
		if sum, ok := s.source.LastSummary(); ok {
			msg.Summary = &sum
		}
	}
	return json.Marshal(msg)
}

// OnEvent marshals ev once and queues it for every client. A client whose
// buffer is full is disconnected.
func (s *Server) OnEvent(ev session.Event) {
	payload, err := json.Marshal(Message{Type: "event", Event: &ev})
	if err != nil {
		s.logger.Warn("feed event encode failed", "kind", string(ev.Kind), "error", err.Error())
		return
	}

	s.mu.Lock()
	var slow []*client
	for c := range s.clients {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		delete(s.clients, c)
	}
	s.mu.Unlock()

	for _, c := range slow {
		s.logger.Warn("feed client too slow; disconnected")
		c.close()
	}
}

var _ session.Listener = (*Server)(nil)
