// Bantay - Fisherfolk Safety and Vessel Tracking
// Copyright 2026 DummyC
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/DummyC/Bantay-v2

// Package store persists devices, positions, and events in DuckDB and
// serves the read side of the live feed (latest position per device,
// recent events, device directory lookups).
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/DummyC/Bantay-v2/internal/config"
	"github.com/DummyC/Bantay-v2/internal/logging"
)

// Store wraps the DuckDB connection and provides data access methods.
type Store struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// New opens the DuckDB database and initializes the schema.
func New(cfg *config.DatabaseConfig) (*Store, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Ensure the parent directory exists so a fresh deployment does not
	// fail with "No such file or directory".
	dbDir := filepath.Dir(cfg.Path)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "1GB"
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
		cfg.Path, numThreads, maxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{conn: conn, cfg: cfg}

	if err := s.configureConnectionPool(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to configure connection pool: %w", err)
	}

	if err := s.initSchema(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Msg("DuckDB store ready")
	return s, nil
}

// configureConnectionPool tunes the database/sql pool. DuckDB is
// embedded, so connections are cheap but each holds database state.
func (s *Store) configureConnectionPool() error {
	s.conn.SetMaxOpenConns(runtime.NumCPU())
	s.conn.SetMaxIdleConns(2)
	s.conn.SetConnMaxLifetime(1 * time.Hour)
	s.conn.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// schemaStatements define the tables and sequences. Record ids come
// from sequences so latest-per-device can lean on max(id) ordering.
var schemaStatements = []string{
	`CREATE SEQUENCE IF NOT EXISTS seq_device_id START 1`,
	`CREATE SEQUENCE IF NOT EXISTS seq_position_id START 1`,
	`CREATE SEQUENCE IF NOT EXISTS seq_event_id START 1`,
	`CREATE TABLE IF NOT EXISTS devices (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_device_id'),
		traccar_device_id BIGINT NOT NULL UNIQUE,
		unique_id VARCHAR NOT NULL UNIQUE,
		name VARCHAR NOT NULL DEFAULT '',
		owner_id BIGINT,
		last_update TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS positions (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_position_id'),
		device_id BIGINT NOT NULL,
		latitude DOUBLE NOT NULL CHECK (latitude BETWEEN -90 AND 90),
		longitude DOUBLE NOT NULL CHECK (longitude BETWEEN -180 AND 180),
		speed DOUBLE,
		course DOUBLE,
		battery_percent INTEGER,
		fix_time TIMESTAMP,
		attributes VARCHAR,
		created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_event_id'),
		device_id BIGINT NOT NULL,
		event_type VARCHAR NOT NULL DEFAULT 'unknown',
		fix_time TIMESTAMP NOT NULL DEFAULT current_timestamp,
		attributes VARCHAR,
		created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,
	`CREATE INDEX IF NOT EXISTS idx_positions_device ON positions(device_id)`,
	`CREATE INDEX IF NOT EXISTS idx_events_device ON events(device_id)`,
}

// initSchema creates tables and sequences if they do not exist.
func (s *Store) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, stmt := range schemaStatements {
		if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// closeQuietly closes a resource, logging (not returning) any error.
func closeQuietly(c interface{ Close() error }) {
	if err := c.Close(); err != nil {
		logging.Warn().Err(err).Msg("close failed")
	}
}
