// Bantay - Fisherfolk Safety and Vessel Tracking
// Copyright 2026 DummyC
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/DummyC/Bantay-v2

package models

import "time"

// Device is a tracked physical unit. It carries two identifiers: the
// internal primary key used by records, and the external id assigned by
// the Traccar reporting layer that device payloads reference.
//
// A device is immutable once registered except for ownership
// reassignment, which is handled by the admin surface outside this
// service.
type Device struct {
	// ID is the internal primary key referenced by records.
	ID int64 `json:"id"`

	// TraccarDeviceID is the external reporting identifier carried in
	// ingestion payloads.
	TraccarDeviceID int64 `json:"traccar_device_id"`

	// UniqueID is the hardware unique identifier (IMEI or similar).
	UniqueID string `json:"unique_id"`

	// Name is an optional human-readable label.
	Name string `json:"name,omitempty"`

	// OwnerID is the owning user, nil for unassigned devices.
	// Restricted viewers only see devices whose OwnerID matches their
	// user id.
	OwnerID *int64 `json:"owner_id,omitempty"`

	// LastUpdate is the time of the most recent report from this device.
	LastUpdate time.Time `json:"last_update"`
}
