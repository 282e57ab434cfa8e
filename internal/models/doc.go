// Bantay - Fisherfolk Safety and Vessel Tracking
// Copyright 2026 DummyC
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/DummyC/Bantay-v2

// Package models defines the core data structures shared across Bantay:
// tracked devices, position and event records, viewer roles, and the
// wire-level feed message pushed to live WebSocket viewers.
//
// Records are immutable once created. Position and event timestamps are
// rendered as ISO-8601 strings on the wire, or null when the reporting
// device supplied a timestamp that could not be parsed.
package models
