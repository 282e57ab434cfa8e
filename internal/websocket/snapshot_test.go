// Bantay - Fisherfolk Safety and Vessel Tracking
// Copyright 2026 DummyC
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/DummyC/Bantay-v2

package websocket

import (
	"context"
	"errors"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/DummyC/Bantay-v2/internal/models"
)

// fakeReader is an in-memory SnapshotReader.
type fakeReader struct {
	positions []models.Position
	events    []models.Event
	owned     map[int64]map[int64]struct{}
	limitSeen int
	failWith  error
}

func (f *fakeReader) LatestPositions(context.Context) ([]models.Position, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.positions, nil
}

func (f *fakeReader) RecentEvents(_ context.Context, limit int) ([]models.Event, error) {
	f.limitSeen = limit
	if f.failWith != nil {
		return nil, f.failWith
	}
	if limit < len(f.events) {
		return f.events[len(f.events)-limit:], nil
	}
	return f.events, nil
}

func (f *fakeReader) DevicesOwnedBy(_ context.Context, ownerID int64) (map[int64]struct{}, error) {
	owned := f.owned[ownerID]
	if owned == nil {
		owned = map[int64]struct{}{}
	}
	return owned, nil
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		positions: []models.Position{
			{ID: 1, DeviceID: 5, Latitude: 1, Longitude: 2},
			{ID: 2, DeviceID: 6, Latitude: 3, Longitude: 4},
		},
		events: []models.Event{
			{ID: 10, DeviceID: 5, EventType: "deviceOnline"},
			{ID: 11, DeviceID: 6, EventType: "sos"},
		},
		owned: map[int64]map[int64]struct{}{7: {5: {}}},
	}
}

func TestSnapshotBuilder_Privileged(t *testing.T) {
	builder := NewSnapshotBuilder(newFakeReader(), 100)

	msg, err := builder.Build(context.Background(), Session{UserID: 1, Role: models.RoleCoastGuard})
	if err != nil {
		t.Fatal(err)
	}
	if len(msg.Positions) != 2 || len(msg.Events) != 2 {
		t.Errorf("snapshot = %d positions, %d events; want all", len(msg.Positions), len(msg.Events))
	}
}

func TestSnapshotBuilder_Restricted(t *testing.T) {
	builder := NewSnapshotBuilder(newFakeReader(), 100)

	msg, err := builder.Build(context.Background(), Session{UserID: 7, Role: models.RoleFisherfolk})
	if err != nil {
		t.Fatal(err)
	}
	if len(msg.Positions) != 1 || msg.Positions[0].DeviceID != 5 {
		t.Errorf("positions = %+v, want only device 5", msg.Positions)
	}
	if len(msg.Events) != 1 || msg.Events[0].DeviceID != 5 {
		t.Errorf("events = %+v, want only device 5", msg.Events)
	}
}

func TestSnapshotBuilder_RestrictedNothingOwned(t *testing.T) {
	builder := NewSnapshotBuilder(newFakeReader(), 100)

	msg, err := builder.Build(context.Background(), Session{UserID: 99, Role: models.RoleFisherfolk})
	if err != nil {
		t.Fatal(err)
	}
	if msg.Positions == nil || len(msg.Positions) != 0 {
		t.Errorf("positions = %v, want non-nil empty", msg.Positions)
	}
	if msg.Events == nil || len(msg.Events) != 0 {
		t.Errorf("events = %v, want non-nil empty", msg.Events)
	}
}

func TestSnapshotBuilder_EventLimitPassedThrough(t *testing.T) {
	reader := newFakeReader()
	builder := NewSnapshotBuilder(reader, 1)

	msg, err := builder.Build(context.Background(), Session{UserID: 1, Role: models.RoleAdministrator})
	if err != nil {
		t.Fatal(err)
	}
	if reader.limitSeen != 1 {
		t.Errorf("limit = %d, want 1", reader.limitSeen)
	}
	if len(msg.Events) != 1 || msg.Events[0].EventType != "sos" {
		t.Errorf("events = %+v, want newest only", msg.Events)
	}
}

func TestSnapshotBuilder_ReaderFailure(t *testing.T) {
	reader := newFakeReader()
	reader.failWith = errors.New("db down")
	builder := NewSnapshotBuilder(reader, 100)

	if _, err := builder.Build(context.Background(), Session{UserID: 1, Role: models.RoleAdministrator}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSnapshotBuilder_FrameWireShape(t *testing.T) {
	builder := NewSnapshotBuilder(&fakeReader{}, 100)

	frame, err := builder.BuildFrame(context.Background(), Session{UserID: 1, Role: models.RoleAdministrator})
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(frame, &decoded); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"positions", "events"} {
		v, ok := decoded[key]
		if !ok {
			t.Fatalf("frame missing %q: %s", key, frame)
		}
		if _, isList := v.([]any); !isList {
			t.Errorf("%q = %v, want array (never null)", key, v)
		}
	}
}
