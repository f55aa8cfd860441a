package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/RxGraph-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/RxGraph-Intelligence/internal/interfaces/http/middleware"
)

// RouterConfig aggregates all handler and middleware dependencies required
// to construct the complete HTTP route tree.
type RouterConfig struct {
	DocumentHandler *handlers.DocumentHandler
	EntityHandler   *handlers.EntityHandler
	HealthHandler   *handlers.HealthHandler

	CORS      *middleware.CORSConfig
	Logging   *middleware.LoggingConfig
	RateLimit middleware.RateLimiter

	Logger           logging.Logger
	MetricsCollector prometheus.MetricsCollector
}

// NewRouter constructs the complete HTTP route tree from the given
// configuration. Nil handlers and middleware are simply not mounted.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if cfg.CORS != nil {
		r.Use(middleware.CORS(*cfg.CORS))
	}
	if cfg.Logging != nil && cfg.Logger != nil {
		r.Use(middleware.RequestLogging(cfg.Logger, *cfg.Logging))
	}
	if cfg.RateLimit != nil {
		r.Use(middleware.RateLimit(cfg.RateLimit, middleware.DefaultRateLimitConfig()))
	}

	// Health endpoints stay outside the versioned API for probe configs.
	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
		r.Get("/healthz/detail", cfg.HealthHandler.Detailed)
	}

	if cfg.MetricsCollector != nil {
		r.Handle("/metrics", cfg.MetricsCollector.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		registerDocumentRoutes(api, cfg.DocumentHandler)
		registerEntityRoutes(api, cfg.EntityHandler)
	})

	return r
}

// registerDocumentRoutes mounts document submission and extraction lookup
// endpoints.
func registerDocumentRoutes(r chi.Router, h *handlers.DocumentHandler) {
	if h == nil {
		return
	}
	r.Route("/documents", func(dr chi.Router) {
		dr.Post("/", h.ProcessText)
		dr.Post("/upload", h.Upload)
	})
	r.Route("/extractions", func(er chi.Router) {
		er.Get("/", h.ListExtractions)
		er.Get("/{contentKey}", h.GetExtraction)
	})
}

// registerEntityRoutes mounts substance lookup, search and graph statistics
// endpoints.
func registerEntityRoutes(r chi.Router, h *handlers.EntityHandler) {
	if h == nil {
		return
	}
	r.Route("/entities", func(er chi.Router) {
		er.Get("/search", h.Search)
		er.Get("/{key}", h.Get)
	})
	r.Get("/graph/counts", h.Counts)
}
