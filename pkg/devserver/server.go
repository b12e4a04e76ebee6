// Package devserver serves the dev runtime queue: clients connect over a
// websocket, receive every current (module id, css) registration and then
// each new one as transforms produce it.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// WebSocketPath is where runtime clients connect.
	WebSocketPath = "/__dyntheme/ws"
	// QueuePath returns the current queue as JSON.
	QueuePath = "/__dyntheme/queue"

	keepAliveInterval = 30 * time.Second
	shutdownTimeout   = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server pushes queue registrations to websocket clients.
type Server struct {
	queue  *Queue
	hub    *hub
	logger *slog.Logger
}

// New creates a Server broadcasting every Push on queue.
func New(queue *Queue, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		queue:  queue,
		hub:    newHub(),
		logger: logger,
	}
	queue.setListener(func(msg Message) {
		s.hub.broadcast(msg)
	})
	return s
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	return s.hub.count()
}

// Handler returns the HTTP routes of the dev server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(WebSocketPath, s.handleWebSocket)
	mux.HandleFunc(QueuePath, s.handleQueue)
	return mux
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.queue.Snapshot()); err != nil {
		s.logger.Error("failed to encode queue", "error", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	l := s.logger.With("handler", "ws", "remote", r.RemoteAddr)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	s.hub.add(conn)
	defer s.hub.remove(conn)
	l.Debug("client connected", "clients", s.hub.count())

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	for _, msg := range s.queue.Snapshot() {
		if err := s.hub.writeJSON(conn, msg); err != nil {
			l.Debug("failed to send snapshot", "error", err)
			return
		}
	}

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			l.Debug("client disconnected")
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				l.Debug("keep-alive failed", "error", err)
				return
			}
		}
	}
}

// ListenAndServe serves on addr until ctx is cancelled. ready, when not
// nil, receives the bound address once the listener is open.
func (s *Server) ListenAndServe(ctx context.Context, addr string, ready chan<- string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.logger.Info("dev server listening", "addr", ln.Addr().String(), "ws", WebSocketPath)
	if ready != nil {
		ready <- ln.Addr().String()
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
