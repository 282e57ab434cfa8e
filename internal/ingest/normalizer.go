// Bantay - Fisherfolk Safety and Vessel Tracking
// Copyright 2026 DummyC
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/DummyC/Bantay-v2

package ingest

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/DummyC/Bantay-v2/internal/models"
)

// DeviceDirectory resolves report device references to registered
// devices. The found flag distinguishes an unknown device (skip the
// item) from a lookup failure (abort the batch).
type DeviceDirectory interface {
	FindDeviceByTraccarID(ctx context.Context, traccarID int64) (*models.Device, bool, error)
	FindDeviceByUniqueID(ctx context.Context, uniqueID string) (*models.Device, bool, error)
}

// Stats summarizes one normalization pass.
type Stats struct {
	Accepted      int
	NoDevice      int
	UnknownDevice int
	BadShape      int
}

// Skipped returns the total number of skipped items.
func (s Stats) Skipped() int {
	return s.NoDevice + s.UnknownDevice + s.BadShape
}

// Normalizer converts raw report objects into canonical records. A
// Normalizer is stateless; device lookups are memoized per call, not
// across calls.
type Normalizer struct {
	directory DeviceDirectory
}

// NewNormalizer creates a Normalizer backed by the given directory.
func NewNormalizer(directory DeviceDirectory) *Normalizer {
	return &Normalizer{directory: directory}
}

// NormalizePositions converts raw position reports. Items without a
// resolvable device or coordinates are skipped and counted; a directory
// failure aborts the whole batch.
func (n *Normalizer) NormalizePositions(ctx context.Context, batch Batch) ([]models.Position, Stats, error) {
	stats := Stats{BadShape: batch.Malformed}
	cache := newDeviceCache(n.directory)
	positions := make([]models.Position, 0, len(batch.Items))

	for _, item := range batch.Items {
		device, skip, err := cache.resolve(ctx, item, &stats)
		if err != nil {
			return nil, stats, err
		}
		if skip {
			continue
		}

		lat, latOK := coerceFloat(item["latitude"])
		lon, lonOK := coerceFloat(item["longitude"])
		if !latOK || !lonOK || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			stats.BadShape++
			continue
		}

		pos := models.Position{
			DeviceID:       device.ID,
			Latitude:       lat,
			Longitude:      lon,
			Speed:          optionalFloat(item["speed"]),
			Course:         optionalFloat(item["course"]),
			Timestamp:      resolveTimestamp(item),
			BatteryPercent: resolveBattery(item),
			Attributes:     attributeBag(item),
		}
		positions = append(positions, pos)
		stats.Accepted++
	}

	return positions, stats, nil
}

// NormalizeEvents converts raw event reports. Events with no recognized
// type field are stored with type "unknown"; events with no parsable
// timestamp get the current server time so the recent-events window
// stays ordered.
func (n *Normalizer) NormalizeEvents(ctx context.Context, batch Batch) ([]models.Event, Stats, error) {
	stats := Stats{BadShape: batch.Malformed}
	cache := newDeviceCache(n.directory)
	events := make([]models.Event, 0, len(batch.Items))

	for _, item := range batch.Items {
		device, skip, err := cache.resolve(ctx, item, &stats)
		if err != nil {
			return nil, stats, err
		}
		if skip {
			continue
		}

		ts := resolveTimestamp(item)
		if ts == nil {
			now := time.Now().UTC()
			ts = &now
		}

		events = append(events, models.Event{
			DeviceID:   device.ID,
			EventType:  resolveEventType(item),
			Timestamp:  ts,
			Attributes: attributeBag(item),
		})
		stats.Accepted++
	}

	return events, stats, nil
}

// deviceCache memoizes directory lookups within a single batch so a
// hundred reports from one vessel cost one query.
type deviceCache struct {
	directory DeviceDirectory
	byID      map[int64]*models.Device
	byUnique  map[string]*models.Device
}

func newDeviceCache(directory DeviceDirectory) *deviceCache {
	return &deviceCache{
		directory: directory,
		byID:      make(map[int64]*models.Device),
		byUnique:  make(map[string]*models.Device),
	}
}

// resolve extracts the device reference from an item and looks it up.
// skip is true when the item should be dropped (counted in stats).
func (c *deviceCache) resolve(ctx context.Context, item map[string]any, stats *Stats) (*models.Device, bool, error) {
	traccarID, uniqueID := extractDeviceRef(item)
	if traccarID == 0 && uniqueID == "" {
		stats.NoDevice++
		return nil, true, nil
	}

	if traccarID != 0 {
		if device, ok := c.byID[traccarID]; ok {
			if device == nil {
				stats.UnknownDevice++
				return nil, true, nil
			}
			return device, false, nil
		}
		device, found, err := c.directory.FindDeviceByTraccarID(ctx, traccarID)
		if err != nil {
			return nil, false, fmt.Errorf("device lookup by traccar id %d: %w", traccarID, err)
		}
		if !found {
			device = nil
		}
		c.byID[traccarID] = device
		if device == nil {
			stats.UnknownDevice++
			return nil, true, nil
		}
		return device, false, nil
	}

	if device, ok := c.byUnique[uniqueID]; ok {
		if device == nil {
			stats.UnknownDevice++
			return nil, true, nil
		}
		return device, false, nil
	}
	device, found, err := c.directory.FindDeviceByUniqueID(ctx, uniqueID)
	if err != nil {
		return nil, false, fmt.Errorf("device lookup by unique id %q: %w", uniqueID, err)
	}
	if !found {
		device = nil
	}
	c.byUnique[uniqueID] = device
	if device == nil {
		stats.UnknownDevice++
		return nil, true, nil
	}
	return device, false, nil
}

// extractDeviceRef pulls the device reference out of a report. Numeric
// reporting ids win over unique-id strings; the nested device object is
// the last resort.
func extractDeviceRef(item map[string]any) (traccarID int64, uniqueID string) {
	for _, key := range []string{"deviceId", "device_id"} {
		if id, ok := coerceInt64(item[key]); ok && id > 0 {
			return id, ""
		}
	}
	for _, key := range []string{"uniqueId", "unique_id"} {
		if s, ok := item[key].(string); ok && s != "" {
			return 0, s
		}
	}
	if nested, ok := item["device"].(map[string]any); ok {
		if id, ok := coerceInt64(nested["id"]); ok && id > 0 {
			return id, ""
		}
		if s, ok := nested["uniqueId"].(string); ok && s != "" {
			return 0, s
		}
	}
	return 0, ""
}

// batteryKeys lists where the battery level may live, checked at the
// top level first and then inside attributes.
var batteryKeys = []string{"batteryLevel", "battery", "battery_percent"}

// resolveBattery extracts the battery percentage if present.
func resolveBattery(item map[string]any) *int {
	for _, key := range batteryKeys {
		if v, ok := coerceFloat(item[key]); ok {
			pct := int(math.Round(v))
			return &pct
		}
	}
	if attrs, ok := item["attributes"].(map[string]any); ok {
		for _, key := range batteryKeys {
			if v, ok := coerceFloat(attrs[key]); ok {
				pct := int(math.Round(v))
				return &pct
			}
		}
	}
	return nil
}

// resolveEventType extracts the event type, falling back to "unknown".
func resolveEventType(item map[string]any) string {
	for _, key := range []string{"type", "eventType", "event_type"} {
		if s, ok := item[key].(string); ok && s != "" {
			return s
		}
	}
	return "unknown"
}

// attributeBag returns the report's opaque attributes object, if any.
func attributeBag(item map[string]any) map[string]any {
	if attrs, ok := item["attributes"].(map[string]any); ok && len(attrs) > 0 {
		return attrs
	}
	return nil
}

// coerceFloat converts JSON numerics (and numeric strings) to float64.
func coerceFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// coerceInt64 converts JSON numerics (and numeric strings) to int64.
func coerceInt64(v any) (int64, bool) {
	f, ok := coerceFloat(v)
	if !ok {
		return 0, false
	}
	if f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

// optionalFloat returns a pointer to the value when the field is a
// parsable number, nil otherwise.
func optionalFloat(v any) *float64 {
	if f, ok := coerceFloat(v); ok {
		return &f
	}
	return nil
}
