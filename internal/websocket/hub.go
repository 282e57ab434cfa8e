// Bantay - Fisherfolk Safety and Vessel Tracking
// Copyright 2026 DummyC
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/DummyC/Bantay-v2

package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/DummyC/Bantay-v2/internal/config"
	"github.com/DummyC/Bantay-v2/internal/logging"
	"github.com/DummyC/Bantay-v2/internal/metrics"
	"github.com/DummyC/Bantay-v2/internal/models"
)

// ShutdownReason identifies why the hub stopped.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// ownershipTimeout bounds the directory lookups made while filtering a
// single broadcast batch.
const ownershipTimeout = 5 * time.Second

// OwnershipDirectory resolves which devices a restricted viewer owns.
type OwnershipDirectory interface {
	DevicesOwnedBy(ctx context.Context, ownerID int64) (map[int64]struct{}, error)
}

// batch is one persisted webhook batch queued for fan-out.
type batch struct {
	positions []models.Position
	events    []models.Event
}

// Hub maintains the set of active feed sessions and fans persisted
// batches out to them, filtered per session.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan batch
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex

	directory OwnershipDirectory

	sendBuffer int
	writeWait  time.Duration
	pongWait   time.Duration
}

// NewHub creates a Hub. The directory scopes restricted sessions to
// their owned devices on every batch.
func NewHub(directory OwnershipDirectory, cfg config.FeedConfig) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan batch, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		directory:  directory,
		sendBuffer: cfg.ClientSendBuffer,
		writeWait:  cfg.WriteTimeout,
		pongWait:   cfg.PongTimeout,
	}
}

// pingPeriod derives the ping interval from the pong deadline.
func (h *Hub) pingPeriod() time.Duration {
	return (h.pongWait * 9) / 10
}

// RunWithContext runs the hub until the context is canceled. Designed
// for suture supervision: on cancellation all sessions are closed and
// ctx.Err() is returned.
//
// Selection is priority based so behavior stays predictable when
// several channels are ready at once: shutdown first, then session
// lifecycle, then broadcasts. Go's select picks randomly among ready
// cases, which would otherwise let a broadcast race a disconnect.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		// Priority 1: shutdown (non-blocking check).
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: session lifecycle (non-blocking check).
		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		// Priority 3: broadcasts, or block until anything arrives.
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()

		case client := <-h.Register:
			h.addClient(client)

		case client := <-h.Unregister:
			h.removeClient(client)

		case b := <-h.broadcast:
			h.broadcastToClients(b)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.FeedSessionsActive.Set(float64(total))
	logging.Info().
		Int64("user_id", client.session.UserID).
		Str("role", client.session.Role.String()).
		Int("total_sessions", total).
		Msg("feed session connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.FeedSessionsActive.Set(float64(total))
	logging.Info().
		Int64("user_id", client.session.UserID).
		Int("total_sessions", total).
		Msg("feed session disconnected")
}

// BroadcastBatch queues a persisted batch for fan-out. Delivery is
// at-most-once: if the hub's queue is full the batch is dropped with a
// warning rather than stalling the ingest path.
func (h *Hub) BroadcastBatch(positions []models.Position, events []models.Event) {
	if len(positions) == 0 && len(events) == 0 {
		return
	}

	select {
	case h.broadcast <- batch{positions: positions, events: events}:
	default:
		logging.Warn().
			Int("positions", len(positions)).
			Int("events", len(events)).
			Msg("broadcast queue full, dropping batch")
	}
}

// broadcastToClients filters and enqueues one batch for every session.
// Ownership is resolved once per restricted user per batch, reflecting
// committed state at fan-out time. Sessions whose buffers are full are
// dropped; one slow viewer never blocks the rest.
//
// The registry lock is held only to snapshot and prune the session set,
// never across the directory lookups: a slow database must not stall
// SessionCount or registration. Queueing outside the lock is safe
// because send channels are closed only on the hub goroutine, which is
// also the only caller of this method.
func (h *Hub) broadcastToClients(b batch) {
	start := time.Now()
	defer func() {
		metrics.FeedBroadcastDuration.Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(context.Background(), ownershipTimeout)
	defer cancel()

	clients := h.snapshotSessions()

	var (
		fullFrame []byte // lazily marshaled, shared by privileged sessions
		ownedSets = make(map[int64]map[int64]struct{})
		frames    = make(map[int64][]byte) // per restricted user
		toRemove  []*Client
	)

	for _, client := range clients {
		var frame []byte

		if client.session.Role.SeesAllDevices() {
			if fullFrame == nil {
				data, err := json.Marshal(models.NewFeedMessage(b.positions, b.events))
				if err != nil {
					logging.Error().Err(err).Msg("failed to marshal feed batch")
					return
				}
				fullFrame = data
			}
			frame = fullFrame
		} else {
			userID := client.session.UserID
			cached, ok := frames[userID]
			if !ok {
				owned, err := h.ownedSet(ctx, userID, ownedSets)
				if err != nil {
					logging.Error().Err(err).Int64("user_id", userID).
						Msg("ownership lookup failed, skipping session for this batch")
					frames[userID] = nil
					continue
				}
				msg := filterBatch(b, owned)
				if msg.Empty() {
					frames[userID] = nil
					continue
				}
				data, err := json.Marshal(msg)
				if err != nil {
					logging.Error().Err(err).Msg("failed to marshal filtered feed batch")
					frames[userID] = nil
					continue
				}
				frames[userID] = data
				cached = data
			}
			if cached == nil {
				continue
			}
			frame = cached
		}

		if client.Queue(frame) {
			metrics.FeedMessagesSent.WithLabelValues("batch").Inc()
		} else {
			toRemove = append(toRemove, client)
		}
	}

	if len(toRemove) == 0 {
		return
	}

	h.mu.Lock()
	for _, client := range toRemove {
		if _, ok := h.clients[client]; !ok {
			continue
		}
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.FeedSessionsActive.Set(float64(total))
	for _, client := range toRemove {
		metrics.FeedSessionsDropped.Inc()
		logging.Warn().
			Int64("user_id", client.session.UserID).
			Uint64("client_id", client.id).
			Msg("feed session dropped: send buffer full")
	}
}

// snapshotSessions copies the session set under the read lock, sorted
// by client id so delivery order is reproducible.
func (h *Hub) snapshotSessions() []*Client {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// ownedSet memoizes one DevicesOwnedBy call per user per batch.
func (h *Hub) ownedSet(ctx context.Context, userID int64, cache map[int64]map[int64]struct{}) (map[int64]struct{}, error) {
	if owned, ok := cache[userID]; ok {
		return owned, nil
	}
	owned, err := h.directory.DevicesOwnedBy(ctx, userID)
	if err != nil {
		return nil, err
	}
	cache[userID] = owned
	return owned, nil
}

// SessionCount returns the number of connected sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// logGracefulShutdown closes every session and logs the shutdown.
// ctx.Err() is not logged as an error: cancellation is the expected
// shutdown path and error-level noise would mislead operators.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	count := h.SessionCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "feed-hub").
		Str("reason", string(shutdownReason(ctx))).
		Int("sessions_closed", count).
		Msg("feed hub stopped")
}

func shutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// closeAllClients closes every session in id order.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.FeedSessionsActive.Set(0)
}
