// Bantay - Fisherfolk Safety and Vessel Tracking
// Copyright 2026 DummyC
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/DummyC/Bantay-v2

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/DummyC/Bantay-v2/internal/metrics"
	"github.com/DummyC/Bantay-v2/internal/models"
)

const deviceColumns = `id, traccar_device_id, unique_id, name, owner_id, last_update`

// FindDeviceByTraccarID looks a device up by its Traccar reporting id.
// The found flag is false when no device matches.
func (s *Store) FindDeviceByTraccarID(ctx context.Context, traccarID int64) (*models.Device, bool, error) {
	start := time.Now()
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE traccar_device_id = ?`, traccarID)
	device, err := scanDevice(row)
	metrics.ObserveDBQuery("select", "devices", start, ignoreNoRows(err))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find device by traccar id: %w", err)
	}
	return device, true, nil
}

// FindDeviceByUniqueID looks a device up by its tracker unique id.
func (s *Store) FindDeviceByUniqueID(ctx context.Context, uniqueID string) (*models.Device, bool, error) {
	start := time.Now()
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE unique_id = ?`, uniqueID)
	device, err := scanDevice(row)
	metrics.ObserveDBQuery("select", "devices", start, ignoreNoRows(err))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find device by unique id: %w", err)
	}
	return device, true, nil
}

// ListDevices returns all registered devices ordered by id.
func (s *Store) ListDevices(ctx context.Context) ([]models.Device, error) {
	start := time.Now()
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+deviceColumns+` FROM devices ORDER BY id`)
	metrics.ObserveDBQuery("select", "devices", start, err)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer closeQuietly(rows)

	return collectDevices(rows)
}

// DevicesOwnedBy returns the ids of devices owned by the given user.
// Used to scope restricted feed sessions.
func (s *Store) DevicesOwnedBy(ctx context.Context, ownerID int64) (map[int64]struct{}, error) {
	start := time.Now()
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id FROM devices WHERE owner_id = ?`, ownerID)
	metrics.ObserveDBQuery("select", "devices", start, err)
	if err != nil {
		return nil, fmt.Errorf("devices owned by %d: %w", ownerID, err)
	}
	defer closeQuietly(rows)

	owned := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan owned device id: %w", err)
		}
		owned[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate owned devices: %w", err)
	}
	return owned, nil
}

// UpsertDevice inserts a device or updates its name and owner when the
// Traccar id is already registered. Returns the stored device.
func (s *Store) UpsertDevice(ctx context.Context, device models.Device) (*models.Device, error) {
	start := time.Now()
	row := s.conn.QueryRowContext(ctx, `
		INSERT INTO devices (traccar_device_id, unique_id, name, owner_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (traccar_device_id) DO UPDATE SET
			unique_id = excluded.unique_id,
			name = excluded.name,
			owner_id = excluded.owner_id
		RETURNING `+deviceColumns,
		device.TraccarDeviceID, device.UniqueID, device.Name, nullableInt64(device.OwnerID))
	stored, err := scanDevice(row)
	metrics.ObserveDBQuery("upsert", "devices", start, err)
	if err != nil {
		return nil, fmt.Errorf("upsert device: %w", err)
	}
	return stored, nil
}

// touchDevices advances last_update for the given devices within a
// transaction. Called from the batch insert paths.
func touchDevices(ctx context.Context, tx *sql.Tx, deviceIDs map[int64]time.Time) error {
	if len(deviceIDs) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		UPDATE devices SET last_update = ?
		WHERE id = ? AND (last_update IS NULL OR last_update < ?)`)
	if err != nil {
		return fmt.Errorf("prepare device touch: %w", err)
	}
	defer closeQuietly(stmt)

	for id, ts := range deviceIDs {
		if _, err := stmt.ExecContext(ctx, ts, id, ts); err != nil {
			return fmt.Errorf("touch device %d: %w", id, err)
		}
	}
	return nil
}

// scanDevice scans one device row.
func scanDevice(row *sql.Row) (*models.Device, error) {
	var (
		device     models.Device
		ownerID    sql.NullInt64
		lastUpdate sql.NullTime
	)
	err := row.Scan(&device.ID, &device.TraccarDeviceID, &device.UniqueID,
		&device.Name, &ownerID, &lastUpdate)
	if err != nil {
		return nil, err
	}
	if ownerID.Valid {
		device.OwnerID = &ownerID.Int64
	}
	if lastUpdate.Valid {
		device.LastUpdate = lastUpdate.Time.UTC()
	}
	return &device, nil
}

// collectDevices scans all device rows.
func collectDevices(rows *sql.Rows) ([]models.Device, error) {
	var devices []models.Device
	for rows.Next() {
		var (
			device     models.Device
			ownerID    sql.NullInt64
			lastUpdate sql.NullTime
		)
		err := rows.Scan(&device.ID, &device.TraccarDeviceID, &device.UniqueID,
			&device.Name, &ownerID, &lastUpdate)
		if err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		if ownerID.Valid {
			device.OwnerID = &ownerID.Int64
		}
		if lastUpdate.Valid {
			device.LastUpdate = lastUpdate.Time.UTC()
		}
		devices = append(devices, device)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate devices: %w", err)
	}
	return devices, nil
}

// ignoreNoRows filters sql.ErrNoRows out of metrics error counting; a
// miss is a normal outcome for directory lookups.
func ignoreNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return err
}

// nullableInt64 converts an optional int64 to its driver value.
func nullableInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
