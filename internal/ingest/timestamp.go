// Bantay - Fisherfolk Safety and Vessel Tracking
// Copyright 2026 DummyC
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/DummyC/Bantay-v2

package ingest

import (
	"strconv"
	"strings"
	"time"
)

// timestampKeys lists the report fields that may carry the fix time, in
// priority order. Traccar itself sends fixTime; forwarder scripts and
// older deployments use the others.
var timestampKeys = []string{
	"fixTime",
	"fix_time",
	"deviceTime",
	"device_time",
	"timestamp",
	"serverTime",
}

// millisecondThreshold separates epoch seconds from epoch milliseconds.
// Values at or above 10^12 read as seconds would land far beyond year
// 9999, so they must be milliseconds.
const millisecondThreshold = 1_000_000_000_000

// timestampLayouts are tried in order for string-encoded timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// resolveTimestamp extracts and parses the report timestamp. Returns
// nil when no field is present or the value cannot be parsed; the
// record is still accepted with a nil timestamp.
func resolveTimestamp(item map[string]any) *time.Time {
	for _, key := range timestampKeys {
		raw, ok := item[key]
		if !ok || raw == nil {
			continue
		}
		if ts := parseTimestampValue(raw); ts != nil {
			return ts
		}
	}
	return nil
}

// parseTimestampValue parses a single timestamp value: numeric epoch
// seconds, numeric epoch milliseconds, or an ISO-8601 string.
func parseTimestampValue(raw any) *time.Time {
	switch v := raw.(type) {
	case float64:
		return epochToTime(v)
	case int64:
		return epochToTime(float64(v))
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				t = t.UTC()
				return &t
			}
		}
		// Epoch encoded as a string.
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return epochToTime(n)
		}
		return nil
	default:
		return nil
	}
}

// epochToTime converts an epoch number to time, treating values at or
// above millisecondThreshold as milliseconds.
func epochToTime(n float64) *time.Time {
	if n <= 0 {
		return nil
	}
	var t time.Time
	if n >= millisecondThreshold {
		t = time.UnixMilli(int64(n)).UTC()
	} else {
		sec := int64(n)
		nsec := int64((n - float64(sec)) * 1e9)
		t = time.Unix(sec, nsec).UTC()
	}
	return &t
}
