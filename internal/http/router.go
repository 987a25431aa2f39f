package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/possiblenow/calfeed/internal/api"
	"github.com/possiblenow/calfeed/internal/config"
	"github.com/possiblenow/calfeed/internal/feed"
	"github.com/possiblenow/calfeed/internal/http/ratelimit"
	"github.com/possiblenow/calfeed/internal/metrics"
	"github.com/possiblenow/calfeed/internal/store"
)

// NewRouter wires all HTTP routes for the JSON API and the ICS feed.
func NewRouter(cfg *config.Config, st *store.Store) http.Handler {
	r := chi.NewRouter()

	// API: 10 requests per second, burst of 20
	apiRateLimiter := ratelimit.NewIPRateLimiter(rate.Limit(10), 20, 5*time.Minute, cfg.TrustedProxies)
	// Feed: 20 requests per second, burst of 50 (calendar clients poll aggressively)
	feedRateLimiter := ratelimit.NewIPRateLimiter(rate.Limit(20), 50, 5*time.Minute, cfg.TrustedProxies)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := st.HealthCheck(ctx); err != nil {
			http.Error(w, "unready", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.PrometheusEnabled {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			metrics.Handler().ServeHTTP(w, r)
		})
	}

	apiHandler := api.NewHandler(st)
	r.Route("/api", func(r chi.Router) {
		r.Use(apiRateLimiter.Middleware())
		r.Get("/health", apiHandler.Health)

		r.Route("/events", func(r chi.Router) {
			r.Get("/", apiHandler.ListEvents)
			r.Post("/", apiHandler.CreateEvent)
			r.Get("/{id}", apiHandler.GetEvent)
			r.Patch("/{id}", apiHandler.PatchEvent)
			r.Delete("/{id}", apiHandler.DeleteEvent)
		})
	})

	// Public, unauthenticated ICS feed.
	feedHandler := feed.NewHandler(cfg, st)
	r.Group(func(r chi.Router) {
		r.Use(feedRateLimiter.Middleware())
		r.Get("/calendar.ics", feedHandler.Canonical)
		r.Get("/calendar/{slug}.ics", feedHandler.Slug)
	})

	return r
}

// requestLogger attaches a request-scoped zerolog logger to the context and
// emits one line per completed request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		logger := log.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
		ctx := logger.WithContext(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
