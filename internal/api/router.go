package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brisk-orange-fox/querywatch/internal/api/alerts"
	"github.com/brisk-orange-fox/querywatch/internal/api/datasources"
	"github.com/brisk-orange-fox/querywatch/internal/api/middleware"
)

// setupRouter creates and configures the chi router with all routes.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	ipLimiter := middleware.NewRateLimiter(s.config.RateLimitPerIP)

	// Global middleware
	r.Use(middleware.RequestLogger(s.config.Verbose))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recoverer)
	r.Use(middleware.PrometheusMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.TokenAuth(s.config.APIToken))
		r.Use(middleware.RateLimitByIP(ipLimiter))

		r.Route("/alerts", func(r chi.Router) {
			alertHandler := alerts.NewHandler(s.service)

			r.Get("/", alertHandler.List)
			r.Post("/", alertHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", alertHandler.GetByID)
				r.Put("/", alertHandler.Update)
				r.Delete("/", alertHandler.Delete)
				r.Post("/run", alertHandler.Run)
				r.Get("/history", alertHandler.History)
			})
		})

		r.Route("/datasources", func(r chi.Router) {
			sourceHandler := datasources.NewHandler(s.storage, s.sources)

			r.Get("/", sourceHandler.List)
			r.Post("/", sourceHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", sourceHandler.GetByID)
				r.Put("/", sourceHandler.Update)
				r.Delete("/", sourceHandler.Delete)
				r.Get("/probe", sourceHandler.Probe)
			})
		})
	})

	// Health and metrics (public, no auth)
	r.Get("/health", s.healthHandler.Health)
	r.Get("/health/live", s.healthHandler.Live)
	r.Get("/health/ready", s.healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
