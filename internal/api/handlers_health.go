// Bantay - Fisherfolk Safety and Vessel Tracking
// Copyright 2026 DummyC
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/DummyC/Bantay-v2

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Pinger reports database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SessionCounter reports the number of active feed sessions.
type SessionCounter interface {
	SessionCount() int
}

// BreakerStater reports the database circuit breaker state.
type BreakerStater interface {
	State() gobreaker.State
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	db        Pinger
	sessions  SessionCounter
	breaker   BreakerStater
	startTime time.Time
}

// NewHealthHandler creates the health probe handler.
func NewHealthHandler(db Pinger, sessions SessionCounter, breaker BreakerStater) *HealthHandler {
	return &HealthHandler{
		db:        db,
		sessions:  sessions,
		breaker:   breaker,
		startTime: time.Now(),
	}
}

// Health handles GET /api/v1/health with the full status report.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	dbConnected := h.db != nil && h.db.Ping(r.Context()) == nil

	status := "healthy"
	if !dbConnected || (h.breaker != nil && h.breaker.State() == gobreaker.StateOpen) {
		status = "degraded"
	}

	report := map[string]interface{}{
		"status":             status,
		"database_connected": dbConnected,
		"uptime_seconds":     time.Since(h.startTime).Seconds(),
	}
	if h.sessions != nil {
		report["feed_sessions"] = h.sessions.SessionCount()
	}
	if h.breaker != nil {
		report["breaker_state"] = h.breaker.State().String()
	}
	rw.Success(report)
}

// HealthLive handles GET /api/v1/health/live. It returns 200 whenever
// the process is alive, regardless of dependencies.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	rw.Success(map[string]interface{}{
		"alive":          true,
		"uptime_seconds": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles GET /api/v1/health/ready. It returns 200 only
// when the database is reachable, 503 otherwise.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if h.db == nil || h.db.Ping(r.Context()) != nil {
		rw.ServiceUnavailable("Database not reachable")
		return
	}
	rw.Success(map[string]interface{}{"ready": true})
}
