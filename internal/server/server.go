// Package server exposes the WebSocket endpoint plus the operational
// HTTP surface (metrics, health).
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/udisondev/agargo/internal/agent"
	"github.com/udisondev/agargo/internal/command"
	"github.com/udisondev/agargo/internal/db"
)

// Server accepts WebSocket connections and hands each one to a client
// agent bound to the hub queue.
type Server struct {
	addr       string
	hub        *command.Queue
	db         *db.DB
	bcryptCost int

	upgrader websocket.Upgrader
}

// New builds a server listening on addr once Run is called.
func New(addr string, hub *command.Queue, database *db.DB, bcryptCost int) *Server {
	return &Server{
		addr:       addr,
		hub:        hub,
		db:         database,
		bcryptCost: bcryptCost,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The browser client is served from anywhere; auth happens
			// inside the protocol, not at the HTTP layer.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Run serves until ctx is canceled, then shuts down gracefully. A bind
// failure is returned immediately.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWebSocket(ctx))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serving %s: %w", s.addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

func (s *Server) handleWebSocket(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "addr", r.RemoteAddr, "err", err)
			return
		}
		go agent.Serve(ctx, conn, s.hub, s.db, s.bcryptCost)
	}
}
