// Package api provides the HTTP API server and handlers for shelfsync.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shelfsync/shelfsync-server/internal/dto"
	"github.com/shelfsync/shelfsync-server/internal/http/response"
	"github.com/shelfsync/shelfsync-server/internal/metrics"
	"github.com/shelfsync/shelfsync-server/internal/ratelimit"
	"github.com/shelfsync/shelfsync-server/internal/sse"
	"github.com/shelfsync/shelfsync-server/internal/validation"
)

const eventsPath = "/api/v1/events"

// Options configures the HTTP surface.
type Options struct {
	Version        string
	AllowedOrigins []string
	// Limiter throttles API requests per client IP. Nil disables throttling.
	Limiter *ratelimit.KeyedRateLimiter
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services   *Services
	enricher   *dto.Enricher
	validator  *validation.Validator
	sseManager *sse.Manager
	router     chi.Router
	api        huma.API
	logger     *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(services *Services, sseManager *sse.Manager, opts Options, logger *slog.Logger) *Server {
	if opts.Version == "" {
		opts.Version = "dev"
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(metrics.Middleware)
	router.Use(corsMiddleware(opts.AllowedOrigins))
	if opts.Limiter != nil {
		router.Use(RateLimitMiddleware(opts.Limiter, logger))
	}
	router.Use(middleware.Compress(5))

	router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.NotFound(w, "Route not found", logger)
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.MethodNotAllowed(w, "Method not allowed", logger)
	})

	humaConfig := huma.DefaultConfig("shelfsync API", opts.Version)
	humaConfig.Info.Description = "Local book library index: books, lists, views, builds and live events."
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	s := &Server{
		services:   services,
		enricher:   dto.NewEnricher(services.Library),
		validator:  validation.New(),
		sseManager: sseManager,
		router:     router,
		api:        humachi.New(router, humaConfig),
		logger:     logger,
	}
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerBookRoutes()
	s.registerBookmarkRoutes()
	s.registerLibraryRoutes()
	s.registerTreeRoutes()
	s.registerBuildRoutes()
	s.registerSearchRoutes()

	if sseManager != nil {
		router.Get(eventsPath, sse.NewHandler(sseManager, logger).ServeHTTP)
	}
	router.Handle("/metrics", promhttp.Handler())

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}
