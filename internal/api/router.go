package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mw "github.com/fxgate/fxgate/internal/middleware"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// User handlers
	RegisterUser http.HandlerFunc
	ListUsers    http.HandlerFunc
	UpdateUser   http.HandlerFunc
	DeleteUser   http.HandlerFunc

	// Metered handlers
	ListCurrencies  http.HandlerFunc
	Convert         http.HandlerFunc
	HistoricalRates http.HandlerFunc

	// Admin bearer-token middleware
	AdminMiddleware func(http.Handler) http.Handler
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins  []string
	RegisterRateLimiter func(http.Handler) http.Handler
	// Checks are run by the readiness probe, keyed by dependency name.
	Checks map[string]HealthCheck
}

func NewRouter(cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe: always 200, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{"status": "healthy"}
		status := http.StatusOK

		for name, check := range cfg.Checks {
			if err := check(r.Context()); err != nil {
				health[name] = "unhealthy"
				health["status"] = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			health[name] = "healthy"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/users", func(r chi.Router) {
		r.With(optional(cfg.RegisterRateLimiter)).Post("/", h.RegisterUser)

		// Admin-only ledger access
		r.Group(func(r chi.Router) {
			r.Use(h.AdminMiddleware)
			r.Get("/", h.ListUsers)
			r.Patch("/{username}", h.UpdateUser)
			r.Delete("/{username}", h.DeleteUser)
		})
	})

	// Metered routes authenticate with X-API-Key inside the admission pipeline.
	r.Get("/currencies/", h.ListCurrencies)
	r.Get("/conversions/", h.Convert)
	r.Get("/historical-rates/{date}", h.HistoricalRates)

	return r
}

func optional(m func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	if m == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return m
}
