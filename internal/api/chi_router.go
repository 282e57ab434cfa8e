// Bantay - Fisherfolk Safety and Vessel Tracking
// Copyright 2026 DummyC
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/DummyC/Bantay-v2

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DummyC/Bantay-v2/internal/config"
)

// Router assembles the HTTP routes and middleware.
type Router struct {
	cfg     *config.Config
	chiMW   *ChiMiddleware
	ingest  *IngestHandler
	feed    *FeedHandler
	devices *DevicesHandler
	health  *HealthHandler
}

// NewRouter creates the router from its handlers.
func NewRouter(cfg *config.Config, ingest *IngestHandler, feed *FeedHandler, devices *DevicesHandler, health *HealthHandler) *Router {
	return &Router{
		cfg: cfg,
		chiMW: NewChiMiddleware(
			cfg.Security.CORSOrigins,
			cfg.Security.RateLimitReqs,
			cfg.Security.RateLimitWindow,
			cfg.Security.RateLimitDisabled,
		),
		ingest:  ingest,
		feed:    feed,
		devices: devices,
		health:  health,
	}
}

// Setup builds the chi handler tree.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, order matters: request ID first so recovery
	// and access logs carry it.
	r.Use(RequestIDWithLogging)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(rt.chiMW.CORS())

	// Traccar webhook endpoints, authenticated by the forward secret
	// rather than user tokens.
	r.Route("/api/traccar", func(r chi.Router) {
		r.Use(rt.chiMW.RateLimit())
		r.Use(PrometheusMetrics)
		r.Post("/positions", rt.ingest.Positions)
		r.Post("/events", rt.ingest.Events)
	})

	// Live feed websocket. Rate limiting would break long-lived
	// connections, so only the handshake cost applies here.
	r.Get("/api/ws", rt.feed.Serve)

	// Health endpoints with a permissive limit for orchestrator probes.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(rt.chiMW.RateLimitPermissive())
		r.Get("/", rt.health.Health)
		r.Get("/live", rt.health.HealthLive)
		r.Get("/ready", rt.health.HealthReady)
	})

	// Authenticated browser-facing API.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.chiMW.RateLimit())
		r.Use(APISecurityHeaders)
		r.Use(PrometheusMetrics)
		r.Get("/devices", rt.devices.List)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
