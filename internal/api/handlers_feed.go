// Bantay - Fisherfolk Safety and Vessel Tracking
// Copyright 2026 DummyC
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/DummyC/Bantay-v2

package api

import (
	"net/http"
	"net/url"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/DummyC/Bantay-v2/internal/auth"
	"github.com/DummyC/Bantay-v2/internal/logging"
	ws "github.com/DummyC/Bantay-v2/internal/websocket"
)

const (
	feedHandshakeTimeout = 10 * time.Second
	feedCloseGrace       = time.Second
)

// FeedHandler upgrades authenticated clients onto the live feed.
type FeedHandler struct {
	jwt       *auth.JWTManager
	hub       *ws.Hub
	snapshots *ws.SnapshotBuilder
	upgrader  gorillaws.Upgrader
}

// NewFeedHandler creates the websocket feed handler. allowedOrigins
// follows the CORS origin list; an empty list or "*" accepts any
// browser origin.
func NewFeedHandler(jwt *auth.JWTManager, hub *ws.Hub, snapshots *ws.SnapshotBuilder, allowedOrigins []string) *FeedHandler {
	return &FeedHandler{
		jwt:       jwt,
		hub:       hub,
		snapshots: snapshots,
		upgrader: gorillaws.Upgrader{
			HandshakeTimeout: feedHandshakeTimeout,
			ReadBufferSize:   1024,
			WriteBufferSize:  4096,
			CheckOrigin:      originChecker(allowedOrigins),
		},
	}
}

// Serve handles GET /api/ws. Authentication uses the token query
// parameter because browser WebSocket clients cannot set headers. A
// missing or invalid token still completes the upgrade so the client
// receives a policy-violation close frame instead of an opaque
// handshake failure.
func (h *FeedHandler) Serve(w http.ResponseWriter, r *http.Request) {
	log := logging.Ctx(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		log.Debug().Err(err).Msg("feed upgrade failed")
		return
	}

	userID, role, err := h.jwt.ValidateToken(r.URL.Query().Get("token"))
	if err != nil {
		log.Warn().Err(err).Msg("feed connection rejected: invalid token")
		closeWith(conn, gorillaws.ClosePolicyViolation, "invalid token")
		return
	}

	session := ws.Session{UserID: userID, Role: role}
	client := ws.NewClient(h.hub, conn, session)

	frame, err := h.snapshots.BuildFrame(r.Context(), session)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("feed snapshot failed")
		closeWith(conn, gorillaws.CloseInternalServerErr, "snapshot unavailable")
		return
	}

	// The snapshot is queued before the hub learns about the client so
	// no broadcast can be delivered ahead of it.
	client.Queue(frame)
	h.hub.Register <- client
	client.Start()
}

// closeWith sends a close frame and tears the connection down.
func closeWith(conn *gorillaws.Conn, code int, reason string) {
	deadline := time.Now().Add(feedCloseGrace)
	_ = conn.WriteControl(gorillaws.CloseMessage, gorillaws.FormatCloseMessage(code, reason), deadline)
	_ = conn.Close()
}

// originChecker builds the upgrade origin policy from the configured
// CORS origins. Non-browser clients send no Origin header and are
// always accepted.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	exact := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		exact[o] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := exact[origin]; ok {
			return true
		}
		// Same-origin requests are fine even when not listed.
		if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
			return true
		}
		return false
	}
}
