package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/joshp123/gohome-tech/internal/climate"
	"github.com/joshp123/gohome-tech/internal/core"
)

// NewRouter builds the HTTP surface: health, metrics, dashboards, and the climate API.
func NewRouter(plugins []core.Plugin, registry *climate.Registry, metrics *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", HealthHandler)
	r.Handle("/metrics", MetricsHandler(metrics))
	r.Handle("/dashboards/*", DashboardsHandler(core.DashboardsMap(plugins)))

	r.Route("/api", func(r chi.Router) {
		NewClimateAPI(registry).RegisterRoutes(r)
		for _, p := range plugins {
			if registrant, ok := p.(core.HTTPRegistrant); ok {
				registrant.RegisterHTTP(r)
			}
		}
	})

	return r
}
