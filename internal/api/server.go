// Package api wires the HTTP surface: the embedded page, the JSON telemetry
// and TLE endpoints, the SSE stream and the operational probes.
package api

import (
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/star/orbitdash/internal/auth"
	"github.com/star/orbitdash/internal/health"
	"github.com/star/orbitdash/internal/httputil"
	"github.com/star/orbitdash/internal/metrics"
	"github.com/star/orbitdash/internal/propagation"
	"github.com/star/orbitdash/internal/stream"
	"github.com/star/orbitdash/internal/telemetry"
	"github.com/star/orbitdash/internal/tle"
)

// TLEConfig holds TLE source configuration loaded from environment variables.
type TLEConfig struct {
	EnableFetch     bool
	SourceURL       string
	ExtraSourceURLs []string
	CacheDir        string
	MaxFiles        int
	MaxAge          time.Duration
}

// Deps are the components the server routes to.
type Deps struct {
	Store     *tle.Store
	Refresher *tle.Refresher // nil when fetching is disabled
	Registry  *propagation.Registry
	Telemetry telemetry.Config // defaults for ?body=, ?count= and ?step=
	Stream    *stream.Handler
	Web       fs.FS
	Auth      auth.Config
	TLE       TLEConfig

	// TrustProxy takes client IPs from X-Forwarded-For in request logs.
	TrustProxy bool
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, logger *slog.Logger, deps Deps) *Server {
	logger = logger.With("component", "api")
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(deps.Store))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/telemetry/current", currentHandler(logger, deps))
	mux.HandleFunc("GET /api/v1/telemetry/series", seriesHandler(logger, deps))
	mux.HandleFunc("GET /api/v1/tle/metadata", tleMetadataHandler(deps))
	mux.HandleFunc("POST /api/v1/tle/fetch", tleFetchHandler(logger, deps))
	mux.HandleFunc("GET /api/v1/tle/bodies/{body}", tleBodyHandler(deps))
	if deps.Stream != nil {
		mux.HandleFunc("GET /api/v1/stream/telemetry", deps.Stream.HandleTelemetry)
	}
	if deps.Web != nil {
		mux.Handle("GET /", http.FileServerFS(deps.Web))
	}

	// Middleware chain: metrics -> logging -> tracing -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(deps.Auth)(handler)
	handler = tracingMiddleware(handler)
	handler = loggingMiddleware(logger, deps.TrustProxy)(handler)
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

// Handler returns the root handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE working through the middleware.
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
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
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
