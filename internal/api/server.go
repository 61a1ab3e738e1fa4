// Package api provides the HTTP server of CineShelf: the snapshot endpoints devices back
// up to and restore from, and the shared title catalog.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cineshelfapp/cineshelf/internal/ratelimit"
	"github.com/cineshelfapp/cineshelf/internal/snapshot"
	"github.com/cineshelfapp/cineshelf/internal/titles"
)

// DefaultMaxBodyBytes caps the size of an uploaded snapshot.
const DefaultMaxBodyBytes = 32 << 20

// Options holds the dependencies of a Server. Titles, Database, Index, and Limiter may be nil.
type Options struct {
	Snapshots    snapshot.Repository
	Titles       *titles.Service
	Database     Pinger
	Index        DocumentCounter
	Limiter      *ratelimit.KeyedRateLimiter
	CORSOrigins  []string
	MaxBodyBytes int64
	Logger       *slog.Logger
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	snapshots    snapshot.Repository
	titles       *titles.Service
	database     Pinger
	index        DocumentCounter
	limiter      *ratelimit.KeyedRateLimiter
	maxBodyBytes int64
	router       *chi.Mux
	api          huma.API
	logger       *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	s := &Server{
		snapshots:    opts.Snapshots,
		titles:       opts.Titles,
		database:     opts.Database,
		index:        opts.Index,
		limiter:      opts.Limiter,
		maxBodyBytes: maxBody,
		router:       chi.NewRouter(),
		logger:       logger,
	}

	// Middleware must be registered before huma adds its documentation routes.
	s.setupMiddleware(opts.CORSOrigins)

	humaConfig := huma.DefaultConfig("CineShelf API", "2.1")
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.setupRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router returns the underlying chi router.
func (s *Server) Router() chi.Router {
	return s.router
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware(origins []string) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(metricsMiddleware)

	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{
			"Content-Type",
			snapshot.HeaderUserID,
			snapshot.HeaderBackupVersion,
			"X-Restore-Version",
			"X-Device-Type",
		},
		MaxAge: 300,
	}))

	if s.limiter != nil {
		s.router.Use(RateLimitMiddleware(s.limiter, s.logger))
	}

	s.router.Use(middleware.Compress(5))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.registerSnapshotRoutes()
	s.registerBackupListRoutes()
	s.registerHealthRoutes()
	if s.titles != nil {
		s.registerTitleRoutes()
	}

	s.router.Handle("/metrics", promhttp.Handler())
}
