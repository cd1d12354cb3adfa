// Package api exposes the planning engine over HTTP: site listing,
// ephemeris queries, visibility and plan computations, footprint
// queries, and the sky frame stream. The API is a thin adapter; all
// semantics live in the engine packages.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jkmerchant/spot/internal/auth"
	"github.com/jkmerchant/spot/internal/catalog"
	"github.com/jkmerchant/spot/internal/health"
	"github.com/jkmerchant/spot/internal/metrics"
	"github.com/jkmerchant/spot/internal/site"
	"github.com/jkmerchant/spot/internal/skycache"
	"github.com/jkmerchant/spot/internal/stream"
)

// Deps are the engine components the API serves.
type Deps struct {
	Registry *site.Registry
	Store    *catalog.Store
	Cache    *skycache.Cache // optional
	Stream   *stream.Handler // optional
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, deps Deps, logger *slog.Logger, authCfg auth.Config) *Server {
	h := &handlers{deps: deps, logger: logger}
	mux := http.NewServeMux()

	// Register routes.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(func() bool {
		return deps.Registry != nil && deps.Registry.Len() > 0 && deps.Store.Get() != nil
	}))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/sites", h.handleSites)
	mux.HandleFunc("GET /api/v1/ephemeris", h.handleEphemeris)
	mux.HandleFunc("POST /api/v1/visibility", h.handleVisibility)
	mux.HandleFunc("POST /api/v1/plan", h.handlePlan)
	mux.HandleFunc("POST /api/v1/fov", h.handleFOV)
	if deps.Cache != nil {
		mux.HandleFunc("GET /api/v1/cache/stats", h.handleCacheStats)
	}
	if deps.Stream != nil {
		mux.HandleFunc("GET /api/v1/stream/sky", deps.Stream.HandleSky)
	}

	// Build middleware chain: metrics -> request id -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(authCfg)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// HTTPServer returns the underlying *http.Server for external control
// (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should
// not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// requestIDMiddleware assigns each request an id, echoed in the
// X-Request-ID response header. Incoming ids are preserved.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", r.RemoteAddr,
				"request_id", w.Header().Get("X-Request-ID"),
			)
		})
	}
}
