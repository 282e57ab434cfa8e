// Bantay - Fisherfolk Safety and Vessel Tracking
// Copyright 2026 DummyC
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/DummyC/Bantay-v2

// Package ingest normalizes Traccar-forwarded webhook payloads into
// canonical position and event records.
//
// Traccar deployments differ in how they spell device references,
// timestamps, and battery levels; the normalizer resolves each against
// a fixed priority order so the rest of the pipeline only ever sees one
// shape. Items that cannot be tied to a known device are skipped and
// counted, never fatal to the batch.
package ingest
