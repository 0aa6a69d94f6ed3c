package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"lane-clash/internal/config"
	"lane-clash/internal/game"

	"github.com/go-chi/chi/v5"
)

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with WebSocket hub for real-time updates.
type Server struct {
	engine      *game.Engine
	router      *chi.Mux
	wsHub       *WebSocketHub
	limiter     *RouteLimiter

	mu          sync.Mutex
	httpServer  *http.Server
	unsubscribe func()
}

// NewServer creates a new API server with default production configuration.
//
// IMPORTANT: Background workers do NOT start until Start() is called.
// This enables testing by allowing the server to be constructed without
// starting goroutines or opening network listeners.
//
// For testing HTTP endpoints without WebSocket support, use NewRouter() directly.
func NewServer(engine *game.Engine, cfg config.ServerConfig) *Server {
	s := &Server{
		engine: engine,
		wsHub:  NewWebSocketHub(cfg.Traffic),
	}

	s.limiter = NewRouteLimiter(cfg.Traffic)

	// Build router using the factory
	s.router = NewRouter(RouterConfig{
		Engine:      engine,
		Limiter:     s.limiter,
		AdminToken:  cfg.AdminToken,
		FrameWidth:  cfg.FrameWidth,
		FrameHeight: cfg.FrameHeight,
	})

	// WebSocket routes need the wsHub instance, so they can't be part of
	// the generic NewRouter factory.
	s.router.Get("/ws", s.wsHub.HandleWebSocket)

	return s
}

// Start begins the HTTP server AND starts background workers.
// This is the ONLY method that starts goroutines or opens network listeners.
// It blocks until the server stops; a graceful Shutdown returns nil.
func (s *Server) Start(addr string) error {
	// Start background workers NOW, not in constructor
	go s.wsHub.Run()
	s.wsHub.StartBroadcastLoop(s.engine, StateBroadcastInterval)

	unsub, err := s.engine.Subscribe(s.wsHub.ForwardEvents)
	if err != nil {
		return fmt.Errorf("subscribe websocket hub: %w", err)
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.mu.Lock()
	s.unsubscribe = unsub
	s.httpServer = srv
	s.mu.Unlock()

	log.Printf("🌐 API server starting on %s", addr)
	log.Printf("🗺️  Match state: http://localhost%s/api/state", addr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Router returns the HTTP handler for use with httptest.
// Use this in integration tests instead of calling Start().
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub returns the WebSocket hub
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Stop performs graceful shutdown of the listener and background workers.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	unsub, srv := s.unsubscribe, s.httpServer
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	s.wsHub.Stop()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}
