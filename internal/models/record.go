// Bantay - Fisherfolk Safety and Vessel Tracking
// Copyright 2026 DummyC
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/DummyC/Bantay-v2

package models

import "time"

// Position is a single reported GPS fix for a device. One record per
// fix, never mutated after creation.
type Position struct {
	// ID is the record primary key. Monotonically increasing, so it
	// doubles as the per-device recency tie-break when two fixes carry
	// the same timestamp.
	ID int64 `json:"id"`

	// DeviceID is the internal device id (models.Device.ID), not the
	// external Traccar reporting id.
	DeviceID int64 `json:"device_id"`

	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Speed     *float64 `json:"speed"`
	Course    *float64 `json:"course"`

	// Timestamp is the device-reported fix time. Nil when the payload
	// carried no parsable timestamp; such records are still persisted.
	// Rendered as ISO-8601 or null on the wire.
	Timestamp *time.Time `json:"timestamp"`

	// BatteryPercent is the reported battery level, nil when absent.
	BatteryPercent *int `json:"battery_percent"`

	// Attributes is the opaque attribute bag forwarded verbatim from
	// the reporting payload.
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Event is a device-generated event report (geofence enter/exit, SOS,
// ignition, and similar). Immutable once created.
type Event struct {
	ID       int64 `json:"id"`
	DeviceID int64 `json:"device_id"`

	// EventType is the report's event-type string, forwarded verbatim.
	EventType string `json:"event_type"`

	// Timestamp is the device-reported event time, or the server time
	// at persist when the payload carried none.
	Timestamp *time.Time `json:"timestamp"`

	Attributes map[string]any `json:"attributes,omitempty"`
}

// FeedMessage is the wire shape pushed to live viewers, used for both
// the initial snapshot and every subsequent broadcast delta. Both
// slices are always present on the wire; the kind unaffected by a batch
// is an empty array, never null.
type FeedMessage struct {
	Positions []Position `json:"positions"`
	Events    []Event    `json:"events"`
}

// NewFeedMessage returns a FeedMessage with non-nil slices so both
// kinds marshal as arrays even when empty.
func NewFeedMessage(positions []Position, events []Event) FeedMessage {
	if positions == nil {
		positions = []Position{}
	}
	if events == nil {
		events = []Event{}
	}
	return FeedMessage{Positions: positions, Events: events}
}

// Empty reports whether the message carries no records of either kind.
func (m FeedMessage) Empty() bool {
	return len(m.Positions) == 0 && len(m.Events) == 0
}
