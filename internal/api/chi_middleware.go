// Bantay - Fisherfolk Safety and Vessel Tracking
// Copyright 2026 DummyC
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/DummyC/Bantay-v2

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/DummyC/Bantay-v2/internal/logging"
	"github.com/DummyC/Bantay-v2/internal/metrics"
)

// ChiMiddlewareConfig configures the chi middleware stack.
type ChiMiddlewareConfig struct {
	CORSOrigins      []string
	RateLimitReqs    int
	RateLimitWindow  time.Duration
	RateLimitDisable bool
}

// ChiMiddleware builds the shared middleware for the router.
type ChiMiddleware struct {
	config ChiMiddlewareConfig
}

// NewChiMiddleware creates shared middleware from security config values.
func NewChiMiddleware(corsOrigins []string, rateLimitReqs int, rateLimitWindow time.Duration, rateLimitDisabled bool) *ChiMiddleware {
	return &ChiMiddleware{
		config: ChiMiddlewareConfig{
			CORSOrigins:      corsOrigins,
			RateLimitReqs:    rateLimitReqs,
			RateLimitWindow:  rateLimitWindow,
			RateLimitDisable: rateLimitDisabled,
		},
	}
}

// CORS returns cross-origin middleware for browser clients.
func (cm *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	origins := cm.config.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}

// RateLimit returns per-IP rate limiting with the configured quota.
func (cm *ChiMiddleware) RateLimit() func(http.Handler) http.Handler {
	if cm.config.RateLimitDisable {
		return passthroughMiddleware
	}
	return httprate.LimitByIP(cm.config.RateLimitReqs, cm.config.RateLimitWindow)
}

// RateLimitPermissive returns relaxed per-IP limiting for health probes,
// which orchestrators may hit frequently.
func (cm *ChiMiddleware) RateLimitPermissive() func(http.Handler) http.Handler {
	if cm.config.RateLimitDisable {
		return passthroughMiddleware
	}
	return httprate.LimitByIP(cm.config.RateLimitReqs*10, cm.config.RateLimitWindow)
}

func passthroughMiddleware(next http.Handler) http.Handler {
	return next
}

// RequestIDWithLogging assigns a request ID, exposes it in the
// X-Request-ID response header, and threads it through the logging
// context so every log line for the request carries it.
func RequestIDWithLogging(next http.Handler) http.Handler {
	return chimiddleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithRequestID(r.Context(), chimiddleware.GetReqID(r.Context()))

		w.Header().Set("X-Request-ID", logging.RequestID(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	}))
}

// APISecurityHeaders sets defensive headers on API responses.
func APISecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

// PrometheusMetrics records request duration and count per route
// pattern and status code.
func PrometheusMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(wrapper, r)

		routePattern := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			routePattern = rctx.RoutePattern()
		}
		metrics.ObserveHTTPRequest(r.Method, routePattern, wrapper.Status(), start)
	})
}
