// Bantay - Fisherfolk Safety and Vessel Tracking
// Copyright 2026 DummyC
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/DummyC/Bantay-v2

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/DummyC/Bantay-v2/internal/logging"
	"github.com/DummyC/Bantay-v2/internal/metrics"
	"github.com/DummyC/Bantay-v2/internal/models"
)

const positionColumns = `id, device_id, latitude, longitude, speed, course, battery_percent, fix_time, attributes`

const eventColumns = `id, device_id, event_type, fix_time, attributes`

// InsertPositionsBatch persists a batch of positions atomically and
// returns them with their assigned record ids. A failure anywhere rolls
// the whole batch back; nothing is saved.
func (s *Store) InsertPositionsBatch(ctx context.Context, positions []models.Position) (saved []models.Position, err error) {
	if len(positions) == 0 {
		return nil, nil
	}

	start := time.Now()
	defer func() { metrics.ObserveDBQuery("insert_batch", "positions", start, err) }()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin position batch: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Error().Err(rbErr).AnErr("original_error", err).
					Msg("position batch rollback failed")
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO positions (device_id, latitude, longitude, speed, course, battery_percent, fix_time, attributes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)
	if err != nil {
		return nil, fmt.Errorf("prepare position insert: %w", err)
	}
	defer closeQuietly(stmt)

	saved = make([]models.Position, 0, len(positions))
	touched := make(map[int64]time.Time, len(positions))
	for _, pos := range positions {
		attrs, marshalErr := marshalAttributes(pos.Attributes)
		if marshalErr != nil {
			err = marshalErr
			return nil, err
		}

		row := stmt.QueryRowContext(ctx,
			pos.DeviceID, pos.Latitude, pos.Longitude,
			nullableFloat64(pos.Speed), nullableFloat64(pos.Course),
			nullableInt(pos.BatteryPercent), nullableTime(pos.Timestamp), attrs)
		if scanErr := row.Scan(&pos.ID); scanErr != nil {
			err = fmt.Errorf("insert position for device %d: %w", pos.DeviceID, scanErr)
			return nil, err
		}
		saved = append(saved, pos)

		ts := time.Now().UTC()
		if pos.Timestamp != nil {
			ts = *pos.Timestamp
		}
		if prev, ok := touched[pos.DeviceID]; !ok || ts.After(prev) {
			touched[pos.DeviceID] = ts
		}
	}

	if err = touchDevices(ctx, tx, touched); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit position batch: %w", err)
	}
	return saved, nil
}

// InsertEventsBatch persists a batch of events atomically and returns
// them with their assigned record ids.
func (s *Store) InsertEventsBatch(ctx context.Context, events []models.Event) (saved []models.Event, err error) {
	if len(events) == 0 {
		return nil, nil
	}

	start := time.Now()
	defer func() { metrics.ObserveDBQuery("insert_batch", "events", start, err) }()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin event batch: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Error().Err(rbErr).AnErr("original_error", err).
					Msg("event batch rollback failed")
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (device_id, event_type, fix_time, attributes)
		VALUES (?, ?, ?, ?)
		RETURNING id`)
	if err != nil {
		return nil, fmt.Errorf("prepare event insert: %w", err)
	}
	defer closeQuietly(stmt)

	saved = make([]models.Event, 0, len(events))
	for _, ev := range events {
		attrs, marshalErr := marshalAttributes(ev.Attributes)
		if marshalErr != nil {
			err = marshalErr
			return nil, err
		}

		ts := time.Now().UTC()
		if ev.Timestamp != nil {
			ts = *ev.Timestamp
		} else {
			ev.Timestamp = &ts
		}

		row := stmt.QueryRowContext(ctx, ev.DeviceID, ev.EventType, ts, attrs)
		if scanErr := row.Scan(&ev.ID); scanErr != nil {
			err = fmt.Errorf("insert event for device %d: %w", ev.DeviceID, scanErr)
			return nil, err
		}
		saved = append(saved, ev)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit event batch: %w", err)
	}
	return saved, nil
}

// LatestPositions returns the most recent position per device, ordered
// by device id. Recency follows record id: the last accepted report
// wins regardless of clock skew between trackers.
func (s *Store) LatestPositions(ctx context.Context) ([]models.Position, error) {
	start := time.Now()
	rows, err := s.conn.QueryContext(ctx, `
		SELECT `+qualified(positionColumns, "p")+`
		FROM positions p
		JOIN (
			SELECT device_id, max(id) AS max_id
			FROM positions
			GROUP BY device_id
		) latest ON p.id = latest.max_id
		ORDER BY p.device_id`)
	metrics.ObserveDBQuery("select_latest", "positions", start, err)
	if err != nil {
		return nil, fmt.Errorf("latest positions: %w", err)
	}
	defer closeQuietly(rows)

	var positions []models.Position
	for rows.Next() {
		pos, scanErr := scanPosition(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate latest positions: %w", err)
	}
	return positions, nil
}

// RecentEvents returns the last limit events in chronological order
// (oldest first), matching what a fresh feed session expects.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]models.Event, error) {
	start := time.Now()
	rows, err := s.conn.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM (
			SELECT `+eventColumns+`
			FROM events
			ORDER BY id DESC
			LIMIT ?
		) recent
		ORDER BY id ASC`, limit)
	metrics.ObserveDBQuery("select_recent", "events", start, err)
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	defer closeQuietly(rows)

	var events []models.Event
	for rows.Next() {
		ev, scanErr := scanEvent(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent events: %w", err)
	}
	return events, nil
}

// scanPosition scans one position row.
func scanPosition(rows *sql.Rows) (models.Position, error) {
	var (
		pos     models.Position
		speed   sql.NullFloat64
		course  sql.NullFloat64
		battery sql.NullInt64
		fixTime sql.NullTime
		attrs   sql.NullString
	)
	err := rows.Scan(&pos.ID, &pos.DeviceID, &pos.Latitude, &pos.Longitude,
		&speed, &course, &battery, &fixTime, &attrs)
	if err != nil {
		return models.Position{}, fmt.Errorf("scan position: %w", err)
	}
	if speed.Valid {
		pos.Speed = &speed.Float64
	}
	if course.Valid {
		pos.Course = &course.Float64
	}
	if battery.Valid {
		pct := int(battery.Int64)
		pos.BatteryPercent = &pct
	}
	if fixTime.Valid {
		t := fixTime.Time.UTC()
		pos.Timestamp = &t
	}
	if attrs.Valid && attrs.String != "" {
		if err := json.Unmarshal([]byte(attrs.String), &pos.Attributes); err != nil {
			return models.Position{}, fmt.Errorf("unmarshal position attributes: %w", err)
		}
	}
	return pos, nil
}

// scanEvent scans one event row.
func scanEvent(rows *sql.Rows) (models.Event, error) {
	var (
		ev      models.Event
		fixTime sql.NullTime
		attrs   sql.NullString
	)
	err := rows.Scan(&ev.ID, &ev.DeviceID, &ev.EventType, &fixTime, &attrs)
	if err != nil {
		return models.Event{}, fmt.Errorf("scan event: %w", err)
	}
	if fixTime.Valid {
		t := fixTime.Time.UTC()
		ev.Timestamp = &t
	}
	if attrs.Valid && attrs.String != "" {
		if err := json.Unmarshal([]byte(attrs.String), &ev.Attributes); err != nil {
			return models.Event{}, fmt.Errorf("unmarshal event attributes: %w", err)
		}
	}
	return ev, nil
}

// marshalAttributes serializes an attribute bag for storage, nil bag
// stores NULL.
func marshalAttributes(attrs map[string]any) (sql.NullString, error) {
	if len(attrs) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal attributes: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// qualified prefixes every column in a comma-separated list with a
// table alias.
func qualified(columns, alias string) string {
	parts := strings.Split(columns, ",")
	for i, col := range parts {
		parts[i] = alias + "." + strings.TrimSpace(col)
	}
	return strings.Join(parts, ", ")
}

func nullableFloat64(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullableInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullableTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}
