// Bantay - Fisherfolk Safety and Vessel Tracking
// Copyright 2026 DummyC
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/DummyC/Bantay-v2

package websocket

import "github.com/DummyC/Bantay-v2/internal/models"

// filterBatch narrows a batch down to the devices in the owned set.
// The returned message always carries non-nil slices so the wire shape
// stays {"positions":[...],"events":[...]} even when one side is empty.
func filterBatch(b batch, owned map[int64]struct{}) models.FeedMessage {
	positions := make([]models.Position, 0, len(b.positions))
	for _, pos := range b.positions {
		if _, ok := owned[pos.DeviceID]; ok {
			positions = append(positions, pos)
		}
	}

	events := make([]models.Event, 0, len(b.events))
	for _, ev := range b.events {
		if _, ok := owned[ev.DeviceID]; ok {
			events = append(events, ev)
		}
	}

	return models.NewFeedMessage(positions, events)
}

// filterPositions narrows positions to the owned set, used by the
// snapshot builder.
func filterPositions(positions []models.Position, owned map[int64]struct{}) []models.Position {
	out := make([]models.Position, 0, len(positions))
	for _, pos := range positions {
		if _, ok := owned[pos.DeviceID]; ok {
			out = append(out, pos)
		}
	}
	return out
}

// filterEvents narrows events to the owned set.
func filterEvents(events []models.Event, owned map[int64]struct{}) []models.Event {
	out := make([]models.Event, 0, len(events))
	for _, ev := range events {
		if _, ok := owned[ev.DeviceID]; ok {
			out = append(out, ev)
		}
	}
	return out
}
