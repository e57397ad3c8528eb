// Package api provides the REST and SSE server for the tournament planner.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/logger"
	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/notify"
	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/storage"
	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/telemetry"
)

// DefaultKeepAliveInterval is how often idle SSE streams emit a comment frame.
const DefaultKeepAliveInterval = 15 * time.Second

// ServerOption configures the API server
type ServerOption func(*serverConfig)

// serverConfig holds the server configuration
type serverConfig struct {
	middlewares    []func(http.Handler) http.Handler
	metricsHandler http.Handler
	notifyMetrics  *telemetry.NotifyMetrics
	keepAlive      time.Duration
}

// WithMiddlewares adds middleware to the server
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithMetricsHandler mounts a scrape handler on GET /metrics
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.metricsHandler = h
	}
}

// WithNotifyMetrics attaches SSE session instrumentation
func WithNotifyMetrics(m *telemetry.NotifyMetrics) ServerOption {
	return func(cfg *serverConfig) {
		cfg.notifyMetrics = m
	}
}

// WithKeepAliveInterval overrides the SSE keep-alive interval
func WithKeepAliveInterval(d time.Duration) ServerOption {
	return func(cfg *serverConfig) {
		if d > 0 {
			cfg.keepAlive = d
		}
	}
}

// NewServer creates and configures the HTTP router with the given store,
// notification registry and options
func NewServer(store storage.Store, registry notify.Registry, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{
		middlewares: []func(http.Handler) http.Handler{},
		keepAlive:   DefaultKeepAliveInterval,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()

	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	// Mount health check routes directly at root
	r.Mount("/", HealthRouter(store))

	if cfg.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.metricsHandler)
	}

	routes := newRoutes(store, registry)
	r.Mount("/api/v1", routes.restRouter())

	sse := &subscribeHandler{
		registry:  registry,
		metrics:   cfg.notifyMetrics,
		keepAlive: cfg.keepAlive,
	}
	r.Get("/api/cr/subscribe/{kind}/{id}", sse.ServeHTTP)

	return r
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Debugf("HTTP %s %s %d %s %s",
			r.Method,
			r.URL.Path,
			ww.Status(),
			time.Since(start),
			middleware.GetReqID(r.Context()),
		)
	})
}
