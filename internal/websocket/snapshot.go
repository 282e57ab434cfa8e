// Bantay - Fisherfolk Safety and Vessel Tracking
// Copyright 2026 DummyC
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/DummyC/Bantay-v2

package websocket

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/DummyC/Bantay-v2/internal/metrics"
	"github.com/DummyC/Bantay-v2/internal/models"
)

// SnapshotReader is the read side the snapshot builder needs from the
// store.
type SnapshotReader interface {
	LatestPositions(ctx context.Context) ([]models.Position, error)
	RecentEvents(ctx context.Context, limit int) ([]models.Event, error)
	DevicesOwnedBy(ctx context.Context, ownerID int64) (map[int64]struct{}, error)
}

// SnapshotBuilder assembles the initial frame for a new feed session:
// the latest position per visible device plus the recent event window
// in chronological order.
type SnapshotBuilder struct {
	reader     SnapshotReader
	eventLimit int
}

// NewSnapshotBuilder creates a builder capping the event window at
// eventLimit.
func NewSnapshotBuilder(reader SnapshotReader, eventLimit int) *SnapshotBuilder {
	return &SnapshotBuilder{reader: reader, eventLimit: eventLimit}
}

// Build assembles the snapshot for a session, already filtered by role
// and ownership.
func (b *SnapshotBuilder) Build(ctx context.Context, session Session) (models.FeedMessage, error) {
	positions, err := b.reader.LatestPositions(ctx)
	if err != nil {
		return models.FeedMessage{}, fmt.Errorf("snapshot positions: %w", err)
	}
	events, err := b.reader.RecentEvents(ctx, b.eventLimit)
	if err != nil {
		return models.FeedMessage{}, fmt.Errorf("snapshot events: %w", err)
	}

	if session.Role.SeesAllDevices() {
		return models.NewFeedMessage(positions, events), nil
	}

	owned, err := b.reader.DevicesOwnedBy(ctx, session.UserID)
	if err != nil {
		return models.FeedMessage{}, fmt.Errorf("snapshot ownership: %w", err)
	}
	return models.NewFeedMessage(
		filterPositions(positions, owned),
		filterEvents(events, owned),
	), nil
}

// BuildFrame assembles and marshals the snapshot, ready to queue on a
// client's send channel.
func (b *SnapshotBuilder) BuildFrame(ctx context.Context, session Session) ([]byte, error) {
	msg, err := b.Build(ctx, session)
	if err != nil {
		return nil, err
	}
	frame, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	metrics.FeedMessagesSent.WithLabelValues("snapshot").Inc()
	return frame, nil
}
