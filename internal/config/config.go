// Bantay - Fisherfolk Safety and Vessel Tracking
// Copyright 2026 DummyC
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/DummyC/Bantay-v2

package config

import "time"

// Config is the root configuration for the Bantay server.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Traccar  TraccarConfig  `koanf:"traccar"`
	Security SecurityConfig `koanf:"security"`
	Feed     FeedConfig     `koanf:"feed"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment" validate:"oneof=development production"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path" validate:"required"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads" validate:"min=0"`
}

// TraccarConfig holds settings for the Traccar webhook ingest surface.
type TraccarConfig struct {
	// ForwardSecret is the shared secret Traccar presents as a bearer
	// token on webhook requests. Required in production.
	ForwardSecret string `koanf:"forward_secret"`

	// MaxBatchBytes caps the size of a single webhook request body.
	MaxBatchBytes int64 `koanf:"max_batch_bytes" validate:"min=1024"`
}

// SecurityConfig holds authentication and transport security settings.
type SecurityConfig struct {
	// JWTSecret signs and verifies feed session tokens. Required in
	// production.
	JWTSecret string `koanf:"jwt_secret"`

	// SessionTimeout bounds feed token validity.
	SessionTimeout time.Duration `koanf:"session_timeout"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	CORSOrigins []string `koanf:"cors_origins"`
}

// FeedConfig holds settings for the live feed fan-out.
type FeedConfig struct {
	// SnapshotEventLimit caps how many recent events a new session
	// receives in its initial snapshot.
	SnapshotEventLimit int `koanf:"snapshot_event_limit" validate:"min=1,max=1000"`

	// ClientSendBuffer is the per-session outbound message buffer. A
	// session whose buffer stays full is dropped.
	ClientSendBuffer int `koanf:"client_send_buffer" validate:"min=1"`

	// WriteTimeout bounds a single websocket write.
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// PongTimeout is how long to wait for a pong before considering the
	// session dead. Pings are sent at 90% of this interval.
	PongTimeout time.Duration `koanf:"pong_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return joinHostPort(s.Host, s.Port)
}

// IsProduction reports whether the server runs in production mode.
func (s ServerConfig) IsProduction() bool {
	return s.Environment == "production"
}
