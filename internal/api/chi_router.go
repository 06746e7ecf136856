// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/historian/internal/middleware"
)

// Router wires handlers and middleware into a chi mux.
type Router struct {
	history       *HistoryHandlers
	health        *HealthHandlers
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. db may be nil.
func NewRouter(d Dispatcher, db Pinger, cfg MiddlewareConfig) *Router {
	return &Router{
		history:       NewHistoryHandlers(d),
		health:        NewHealthHandlers(db),
		chiMiddleware: NewChiMiddleware(cfg),
	}
}

// Handler builds the HTTP handler.
func (router *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())
	r.Use(chimiddleware.Compress(5, "application/json"))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, CodeNotFound, "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, CodeInvalidRequest, "method not allowed", nil)
	})

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/live", router.health.Live)
		r.Get("/ready", router.health.Ready)
	})

	r.Route("/api/v1/history", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)

		r.Post("/imports", router.history.StartImport)
		r.Get("/imports/{jobID}", router.history.JobStatus)
		r.Delete("/servers/{serverID}/sessions", router.history.ClearSessions)
		r.Get("/servers/{serverID}/statistics", router.history.Statistics)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
