// Package wsctl serves a WebSocket control endpoint: text messages sent by a
// client are delivered as commands, and every status change is broadcast to
// all connected clients.
package wsctl

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"libdb.so/tailglow/internal/mode"
)

const writeTimeout = 200 * time.Millisecond

// Commands is the command channel as seen by the server.
type Commands interface {
	Deliver(ctx context.Context, payload []byte) error
	Status() mode.Status
}

// Server is the WebSocket control server. It implements command.Publisher.
type Server struct {
	commands Commands
	logger   *slog.Logger
	upgrader websocket.Upgrader
	started  time.Time

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// New creates a control server.
func New(commands Commands, logger *slog.Logger) *Server {
	return &Server{
		commands: commands,
		logger:   logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		started: time.Now(),
		clients: map[*websocket.Conn]struct{}{},
	}
}

// Handler returns the HTTP handler serving /control, /status and /health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/control", s.handleControl)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Run serves on addr until ctx is canceled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("control server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "control server failed")
	case <-ctx.Done():
	}

	s.mu.Lock()
	for conn := range s.clients {
		conn.Close()
	}
	s.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("control server shutdown failed", "error", err)
	}
	return ctx.Err()
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	err = s.writeStatus(conn, s.commands.Status())
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
	}()

	if err != nil {
		return
	}

	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if typ != websocket.TextMessage {
			continue
		}
		if err := s.commands.Deliver(r.Context(), data); err != nil {
			s.logger.Warn(
				"failed to queue command",
				"remote", r.RemoteAddr,
				"error", err)
			return
		}
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.commands.Status())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	clients := len(s.clients)
	s.mu.Unlock()

	writeJSON(w, map[string]any{
		"status":   "ok",
		"uptime_s": time.Since(s.started).Seconds(),
		"clients":  clients,
	})
}

// PublishStatus implements command.Publisher. Clients that cannot be written
// to are dropped.
func (s *Server) PublishStatus(ctx context.Context, status mode.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for conn := range s.clients {
		if err := s.writeStatus(conn, status); err != nil {
			s.logger.Debug(
				"dropping control client",
				"remote", conn.RemoteAddr(),
				"error", err)
			conn.Close()
			delete(s.clients, conn)
		}
	}
	return nil
}

// writeStatus must be called with s.mu held.
func (s *Server) writeStatus(conn *websocket.Conn, status mode.Status) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(status)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
