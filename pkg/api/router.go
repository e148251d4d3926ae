// Package api provides HTTP API server components.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/zcb617/openclaw-memory-pro/config"
	"github.com/zcb617/openclaw-memory-pro/pkg/api/handlers"
	"github.com/zcb617/openclaw-memory-pro/pkg/api/middleware"
	"github.com/zcb617/openclaw-memory-pro/pkg/logger"
)

// Handlers holds all HTTP handlers.
type Handlers struct {
	// Memory handles memory store and retrieval endpoints
	Memory *handlers.MemoryHandler

	// Health handles health check endpoints
	Health *handlers.HealthHandler

	// Events handles the websocket event stream
	Events http.Handler

	// Metrics is the optional metrics recorder
	Metrics middleware.MetricsRecorder
}

// NewRouter creates a new chi router with middleware and routes.
func NewRouter(cfg *config.Config, log logger.Logger, handlers *Handlers) chi.Router {
	r := chi.NewRouter()

	// Register global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))

	// Add metrics middleware if provided
	if handlers.Metrics != nil {
		r.Use(middleware.Metrics(handlers.Metrics))
	}

	r.Use(middleware.CORS(&cfg.Server.CORS))
	r.Use(middleware.Timeout(cfg.Server.HTTP.ReadTimeout))

	// Register routes
	RegisterRoutes(r, handlers)

	return r
}

// RegisterRoutes registers all API routes.
func RegisterRoutes(r chi.Router, handlers *Handlers) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		if handlers.Memory != nil {
			r.Route("/memory/{scope}", func(r chi.Router) {
				r.Post("/", handlers.Memory.StoreMemory)
				r.Post("/batch", handlers.Memory.BatchStoreMemory)
				r.Get("/", handlers.Memory.QueryMemory)
				r.Delete("/", handlers.Memory.DeleteMemory)
				r.Get("/list", handlers.Memory.ListMemory)
				r.Get("/stats", handlers.Memory.GetStats)
				r.Delete("/all", handlers.Memory.DeleteScope)
			})
		}
	})

	// Health check routes (not versioned)
	if handlers.Health != nil {
		r.Get("/health", handlers.Health.Health)
		r.Get("/ready", handlers.Health.Ready)
		r.Get("/status", handlers.Health.Status)
	}

	// Websocket event stream
	if handlers.Events != nil {
		r.Handle("/ws/events", handlers.Events)
	}
}
