// Package dashboard serves a read-only status view of the relay:
// GET /api/nodes and GET /api/talkgroups snapshot the current state
// on demand, and GET /ws streams live change events. It never mutates
// relay state — the dispatcher remains the sole writer.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/kb9vcn/dmr-relay/pkg/logger"
)

// Config controls the dashboard HTTP server.
type Config struct {
	Enabled bool
	Port    int
}

// Server is the dashboard's HTTP+WebSocket front end.
type Server struct {
	config Config
	log    *logger.Logger
	hub    *Hub
	api    *api
	server *http.Server

	mu   sync.RWMutex
	addr string
}

// NewServer creates a dashboard server. nodes and talkgroups are
// called on every REST request to build a fresh snapshot; Hub is
// exposed via Hub() so the dispatcher can push live events to it.
func NewServer(cfg Config, log *logger.Logger, nodes NodeProvider, talkgroups TalkgroupProvider) *Server {
	return &Server{
		config: cfg,
		log:    log.WithComponent("dashboard"),
		hub:    NewHub(log.WithComponent("dashboard")),
		api:    &api{nodes: nodes, talkgroups: talkgroups},
	}
}

// Hub returns the WebSocket broadcast hub for the dispatcher to push
// live events into.
func (s *Server) Hub() *Hub { return s.hub }

// Start serves the dashboard until ctx is cancelled. It is a no-op if
// disabled.
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.log.Info("dashboard disabled")
		return nil
	}

	go s.hub.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/nodes", s.api.handleNodes)
	mux.HandleFunc("/api/talkgroups", s.api.handleTalkgroups)
	mux.Handle("/ws", s.hub.Handler())

	addr := fmt.Sprintf(":%d", s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.addr = listener.Addr().String()
	s.mu.Unlock()

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info("starting dashboard server", logger.String("address", s.addr))

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("shutting down dashboard server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("dashboard server shutdown error: %w", err)
		}
		return ctx.Err()
	case err := <-errChan:
		return err
	}
}

// Addr returns the address the server bound to, once started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}
