// Bantay - Fisherfolk Safety and Vessel Tracking
// Copyright 2026 DummyC
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/DummyC/Bantay-v2

// Package websocket implements the live feed: a hub that tracks
// connected viewer sessions and fans persisted position/event batches
// out to them, filtered per session by role and device ownership.
//
// A new session receives a snapshot (latest position per visible device
// plus the recent event window) as its first frame; the snapshot is
// queued on the session's send channel before the session is registered
// with the hub, so no broadcast can be delivered ahead of it.
package websocket
