package api

import (
	"net/http"

	"lane-clash/internal/config"
	"lane-clash/internal/game"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// EngineInterface defines the simulation methods used by the API.
// This interface enables mocking for tests without spinning up the frame loop.
// Keep this minimal - only include methods the API layer actually calls.
type EngineInterface interface {
	// GetSnapshot returns the latest lock-free immutable snapshot
	GetSnapshot() *game.GameSnapshot
	// Reset discards the current match and starts a fresh one
	Reset()
	// RecentEvents returns up to n of the latest logged events
	RecentEvents(n int) []game.Event
	// GetEventLogStats returns event log counters for monitoring
	GetEventLogStats() map[string]interface{}
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
// This struct is designed for dependency injection and testability.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    Engine:  mockEngine,
//	    Traffic: config.TrafficLimits{FrameRate: 1, FrameBurst: 1},
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Engine is the simulation (required)
	Engine EngineInterface

	// Limiter is an optional pre-configured per-route limiter.
	// If nil, one is built from Traffic.
	Limiter *RouteLimiter

	// Traffic sets the per-route request budgets when Limiter is nil.
	// The zero value leaves every route unlimited.
	Traffic config.TrafficLimits

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, only local origins are allowed.
	CORSOrigins []string

	// AdminToken guards match control routes. Empty disables the check.
	AdminToken string

	// FrameWidth and FrameHeight size /api/frame.png (default 500x500)
	FrameWidth  int
	FrameHeight int

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the handler functions for the router.
type routerHandlers struct {
	engine EngineInterface
	frames *framePool
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// IMPORTANT: This function has no side effects: no goroutines are started,
// no listeners are opened and the simulation is never started, so it is safe
// to use in tests with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics)

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = NewRouteLimiter(cfg.Traffic)
	}

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	h := &routerHandlers{
		engine: cfg.Engine,
		frames: newFramePool(cfg.FrameWidth, cfg.FrameHeight),
	}

	r.Route("/api", func(r chi.Router) {
		// Match state and event log
		r.Group(func(r chi.Router) {
			r.Use(limiter.Limit(RoutePoll))
			r.Get("/state", h.handleGetState)
			r.Get("/stats", h.handleGetStats)
			r.Get("/events", h.handleGetEvents)
			r.Get("/events/stats", h.handleGetEventStats)
		})

		// Rendering has its own, smaller budget
		r.With(limiter.Limit(RouteFrame)).Get("/frame.png", h.handleGetFrame)

		// Match control
		r.Group(func(r chi.Router) {
			r.Use(limiter.Limit(RouteControl))
			r.Use(AdminTokenMiddleware(cfg.AdminToken))
			r.Post("/match/reset", h.handleMatchReset)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/state", http.StatusFound)
	})

	return r
}
