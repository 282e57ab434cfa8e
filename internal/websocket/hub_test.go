// Bantay - Fisherfolk Safety and Vessel Tracking
// Copyright 2026 DummyC
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/DummyC/Bantay-v2

package websocket

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/DummyC/Bantay-v2/internal/config"
	"github.com/DummyC/Bantay-v2/internal/logging"
	"github.com/DummyC/Bantay-v2/internal/models"
)

func init() {
	logging.Init(logging.Config{Level: "disabled", Output: io.Discard})
}

// fakeOwnership is an in-memory OwnershipDirectory.
type fakeOwnership struct {
	owned    map[int64]map[int64]struct{}
	failWith error
	delay    time.Duration
	calls    int
}

func (f *fakeOwnership) DevicesOwnedBy(_ context.Context, ownerID int64) (map[int64]struct{}, error) {
	f.calls++
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.failWith != nil {
		return nil, f.failWith
	}
	owned := f.owned[ownerID]
	if owned == nil {
		owned = map[int64]struct{}{}
	}
	return owned, nil
}

func testFeedConfig() config.FeedConfig {
	return config.FeedConfig{
		SnapshotEventLimit: 100,
		ClientSendBuffer:   8,
		WriteTimeout:       time.Second,
		PongTimeout:        time.Minute,
	}
}

// startHub runs the hub until the test finishes.
func startHub(t *testing.T, h *Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := h.RunWithContext(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("RunWithContext returned %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// recvFrame reads one frame from a client's send channel.
func recvFrame(t *testing.T, c *Client) models.FeedMessage {
	t.Helper()
	select {
	case frame := <-c.send:
		var msg models.FeedMessage
		if err := json.Unmarshal(frame, &msg); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return models.FeedMessage{}
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	h := NewHub(&fakeOwnership{}, testFeedConfig())
	startHub(t, h)

	client := NewClient(h, nil, Session{UserID: 1, Role: models.RoleAdministrator})
	h.Register <- client
	waitFor(t, "registration", func() bool { return h.SessionCount() == 1 })

	h.Unregister <- client
	waitFor(t, "unregistration", func() bool { return h.SessionCount() == 0 })

	// Channel is closed after unregister.
	if _, ok := <-client.send; ok {
		t.Error("expected closed send channel")
	}
}

func TestBroadcastBatch_PrivilegedSeesEverything(t *testing.T) {
	h := NewHub(&fakeOwnership{}, testFeedConfig())
	startHub(t, h)

	admin := NewClient(h, nil, Session{UserID: 1, Role: models.RoleAdministrator})
	guard := NewClient(h, nil, Session{UserID: 2, Role: models.RoleCoastGuard})
	h.Register <- admin
	h.Register <- guard
	waitFor(t, "two sessions", func() bool { return h.SessionCount() == 2 })

	h.BroadcastBatch(
		[]models.Position{{ID: 10, DeviceID: 5, Latitude: 1, Longitude: 2}},
		[]models.Event{{ID: 20, DeviceID: 6, EventType: "sos"}},
	)

	for _, c := range []*Client{admin, guard} {
		msg := recvFrame(t, c)
		if len(msg.Positions) != 1 || msg.Positions[0].DeviceID != 5 {
			t.Errorf("positions = %+v", msg.Positions)
		}
		if len(msg.Events) != 1 || msg.Events[0].EventType != "sos" {
			t.Errorf("events = %+v", msg.Events)
		}
	}
}

func TestBroadcastBatch_RestrictedFiltered(t *testing.T) {
	dir := &fakeOwnership{owned: map[int64]map[int64]struct{}{
		7: {5: {}},
	}}
	h := NewHub(dir, testFeedConfig())
	startHub(t, h)

	fisher := NewClient(h, nil, Session{UserID: 7, Role: models.RoleFisherfolk})
	h.Register <- fisher
	waitFor(t, "session", func() bool { return h.SessionCount() == 1 })

	h.BroadcastBatch(
		[]models.Position{
			{ID: 10, DeviceID: 5, Latitude: 1, Longitude: 2},
			{ID: 11, DeviceID: 6, Latitude: 3, Longitude: 4},
		},
		[]models.Event{{ID: 20, DeviceID: 6, EventType: "sos"}},
	)

	msg := recvFrame(t, fisher)
	if len(msg.Positions) != 1 || msg.Positions[0].DeviceID != 5 {
		t.Errorf("positions = %+v, want only owned device 5", msg.Positions)
	}
	// Unowned events filtered out but the key is still a present,
	// empty array.
	if msg.Events == nil || len(msg.Events) != 0 {
		t.Errorf("events = %+v, want empty slice", msg.Events)
	}
}

func TestBroadcastBatch_NothingVisibleNoFrame(t *testing.T) {
	dir := &fakeOwnership{owned: map[int64]map[int64]struct{}{}}
	h := NewHub(dir, testFeedConfig())
	startHub(t, h)

	fisher := NewClient(h, nil, Session{UserID: 7, Role: models.RoleFisherfolk})
	h.Register <- fisher
	waitFor(t, "session", func() bool { return h.SessionCount() == 1 })

	h.BroadcastBatch([]models.Position{{ID: 10, DeviceID: 99, Latitude: 1, Longitude: 2}}, nil)

	select {
	case frame := <-fisher.send:
		t.Errorf("unexpected frame for invisible batch: %s", frame)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBroadcastBatch_OwnershipMemoizedPerBatch(t *testing.T) {
	dir := &fakeOwnership{owned: map[int64]map[int64]struct{}{7: {5: {}}}}
	h := NewHub(dir, testFeedConfig())
	startHub(t, h)

	// Two sessions for the same restricted user.
	a := NewClient(h, nil, Session{UserID: 7, Role: models.RoleFisherfolk})
	b := NewClient(h, nil, Session{UserID: 7, Role: models.RoleFisherfolk})
	h.Register <- a
	h.Register <- b
	waitFor(t, "two sessions", func() bool { return h.SessionCount() == 2 })

	h.BroadcastBatch([]models.Position{{ID: 1, DeviceID: 5, Latitude: 1, Longitude: 2}}, nil)

	recvFrame(t, a)
	recvFrame(t, b)
	if dir.calls != 1 {
		t.Errorf("ownership lookups = %d, want 1 per user per batch", dir.calls)
	}
}

func TestBroadcastBatch_OwnershipFailureSkipsSession(t *testing.T) {
	dir := &fakeOwnership{failWith: errors.New("db down")}
	h := NewHub(dir, testFeedConfig())
	startHub(t, h)

	fisher := NewClient(h, nil, Session{UserID: 7, Role: models.RoleFisherfolk})
	admin := NewClient(h, nil, Session{UserID: 1, Role: models.RoleAdministrator})
	h.Register <- fisher
	h.Register <- admin
	waitFor(t, "two sessions", func() bool { return h.SessionCount() == 2 })

	h.BroadcastBatch([]models.Position{{ID: 1, DeviceID: 5, Latitude: 1, Longitude: 2}}, nil)

	// Admin still gets the frame; the restricted session is skipped but
	// stays connected.
	recvFrame(t, admin)
	select {
	case <-fisher.send:
		t.Error("restricted session should not receive a frame when lookup fails")
	case <-time.After(100 * time.Millisecond):
	}
	if h.SessionCount() != 2 {
		t.Errorf("sessions = %d, want 2", h.SessionCount())
	}
}

func TestBroadcastBatch_SlowSessionDropped(t *testing.T) {
	cfg := testFeedConfig()
	cfg.ClientSendBuffer = 1
	h := NewHub(&fakeOwnership{}, cfg)
	startHub(t, h)

	admin := NewClient(h, nil, Session{UserID: 1, Role: models.RoleAdministrator})
	h.Register <- admin
	waitFor(t, "session", func() bool { return h.SessionCount() == 1 })

	// Nobody drains admin.send; the second batch overflows the buffer.
	h.BroadcastBatch([]models.Position{{ID: 1, DeviceID: 5, Latitude: 1, Longitude: 2}}, nil)
	h.BroadcastBatch([]models.Position{{ID: 2, DeviceID: 5, Latitude: 1, Longitude: 2}}, nil)

	waitFor(t, "slow session drop", func() bool { return h.SessionCount() == 0 })
}

func TestBroadcastBatch_EmptyBatchIgnored(t *testing.T) {
	h := NewHub(&fakeOwnership{}, testFeedConfig())
	startHub(t, h)

	admin := NewClient(h, nil, Session{UserID: 1, Role: models.RoleAdministrator})
	h.Register <- admin
	waitFor(t, "session", func() bool { return h.SessionCount() == 1 })

	h.BroadcastBatch(nil, nil)

	select {
	case frame := <-admin.send:
		t.Errorf("unexpected frame for empty batch: %s", frame)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestFilterBatch(t *testing.T) {
	owned := map[int64]struct{}{1: {}, 3: {}}
	msg := filterBatch(batch{
		positions: []models.Position{{DeviceID: 1}, {DeviceID: 2}, {DeviceID: 3}},
		events:    []models.Event{{DeviceID: 2, EventType: "sos"}},
	}, owned)

	if len(msg.Positions) != 2 {
		t.Errorf("positions = %d, want 2", len(msg.Positions))
	}
	if len(msg.Events) != 0 || msg.Events == nil {
		t.Errorf("events = %v, want non-nil empty", msg.Events)
	}
}

func TestBroadcast_SessionCountNotBlockedByOwnershipLookup(t *testing.T) {
	dir := &fakeOwnership{
		owned: map[int64]map[int64]struct{}{10: {1: {}}},
		delay: 300 * time.Millisecond,
	}
	h := NewHub(dir, testFeedConfig())
	startHub(t, h)

	viewer := NewClient(h, nil, Session{UserID: 10, Role: models.RoleFisherfolk})
	h.Register <- viewer
	waitFor(t, "registration", func() bool { return h.SessionCount() == 1 })

	h.BroadcastBatch([]models.Position{{ID: 1, DeviceID: 1, Latitude: 1, Longitude: 2}}, nil)

	// Let the hub enter the slow directory lookup.
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	if n := h.SessionCount(); n != 1 {
		t.Errorf("SessionCount = %d, want 1", n)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("SessionCount blocked for %v during ownership lookup", elapsed)
	}

	// The batch still arrives once the lookup completes.
	msg := recvFrame(t, viewer)
	if len(msg.Positions) != 1 || msg.Positions[0].DeviceID != 1 {
		t.Errorf("positions = %+v", msg.Positions)
	}
}
