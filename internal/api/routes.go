package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures the routes for the chi router
func SetupRoutes(router chi.Router, handlers *Handlers) {
	// API v1 routes
	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/filter", handlers.Filter)

		// Config routes
		r.Route("/configs", func(r chi.Router) {
			r.Get("/", handlers.ListConfigs)
			r.Get("/{id}", handlers.ExportConfig)
		})

		// Health routes
		r.Get("/health", handlers.HealthCheck)
	})

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	// Documentation
	router.Get("/", handlers.GetDocs)
}
