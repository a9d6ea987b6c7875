package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/objmapper/objmapper/internal/logger"
	"github.com/objmapper/objmapper/pkg/api/handlers"
	"github.com/objmapper/objmapper/pkg/objmap/backend"
)

// NewRouter creates and configures the chi router for the admin surface.
//
// The router is configured with:
//   - Request ID middleware for request tracking
//   - Real IP extraction for proper client identification
//   - Custom request logging using the internal logger
//   - Panic recovery to prevent server crashes
//   - Request timeout to prevent hung requests
//
// Routes:
//   - GET  /healthz                      - liveness probe
//   - GET  /status                       - manager snapshot
//   - GET  /backends                     - backend inventory
//   - POST /backends                     - register a new local backend tier
//   - GET  /backends/{id}/objects        - objects resident on a backend
//   - POST /backends/{id}/migrate        - migrate an object between backends
//   - POST /backends/{id}/watermarks     - update a backend's cache watermarks
//   - POST /backends/{id}/enable         - enable or disable a backend
func NewRouter(manager *backend.Manager) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	healthHandler := handlers.NewHealthHandler(manager)
	backendHandler := handlers.NewBackendHandler(manager)

	r.Get("/healthz", healthHandler.Liveness)
	r.Get("/status", healthHandler.Status)

	r.Route("/backends", func(r chi.Router) {
		r.Get("/", backendHandler.List)
		r.Post("/", backendHandler.Register)
		r.Get("/{id}/objects", backendHandler.Objects)
		r.Post("/{id}/migrate", backendHandler.Migrate)
		r.Post("/{id}/watermarks", backendHandler.Watermarks)
		r.Post("/{id}/enable", backendHandler.SetEnabled)
	})

	return r
}

// requestLogger is a custom middleware that logs requests using the
// internal logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("admin API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Info("admin API request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}
