// Package api serves extraction, stored products and reports over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/maltedev/catalog-scraper/internal/metrics"
)

type RouterOptions struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

func NewRouter(h *Handlers, m *metrics.Metrics, logger *slog.Logger, opts RouterOptions) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"http://localhost:*", "https://localhost:*"}
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger.With("component", "http"), m))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(opts.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Link"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)
	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/extract", h.Extract)

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Get("/{productID}", h.GetProduct)
		})

		r.Get("/quality", h.Quality)
		r.Get("/analytics", h.Analytics)
	})

	return r
}

// requestLogger logs each request and counts it by route pattern.
func requestLogger(logger *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}

			logger.Info("request",
				"method", r.Method,
				"route", route,
				"status", status,
				"bytes", ww.BytesWritten(),
				"took", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))

			if m != nil {
				m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
			}
		})
	}
}
