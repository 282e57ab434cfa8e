// Bantay - Fisherfolk Safety and Vessel Tracking
// Copyright 2026 DummyC
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/DummyC/Bantay-v2

// Package main is the entry point for the Bantay server.
//
// Bantay tracks fishing vessels in near real time. A Traccar server
// forwards position and event reports to the webhook endpoints; Bantay
// normalizes them, persists them to DuckDB, and fans them out to
// authenticated browser sessions over a websocket feed. Fisherfolk see
// their own vessels; coast guard and administrators see the whole fleet.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: environment variables and optional YAML file (Koanf v2)
//  2. Database: DuckDB with the devices/positions/events schema
//  3. Feed hub: websocket fan-out with per-session ownership filtering
//  4. Authentication: JWT feed tokens plus the Traccar forward secret
//  5. HTTP server: webhook, feed, device, and health endpoints
//
// The feed hub and HTTP server run under a suture supervision tree, so
// a crash in one restarts with backoff without taking down the other.
//
// # Configuration
//
// Key environment variables:
//   - HTTP_PORT: listen port (default 8000)
//   - DB_PATH: DuckDB database file path
//   - TRACCAR_FORWARD_SECRET: bearer secret for the webhook endpoints
//   - JWT_SECRET: 32+ character secret for feed token signing
//   - CONFIG_PATH: optional YAML config file
//
// JWT_SECRET and TRACCAR_FORWARD_SECRET are required when
// ENVIRONMENT=production.
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the server stops
// accepting connections, in-flight requests get 10 seconds to finish,
// feed sessions receive close frames, and the database is closed last.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/DummyC/Bantay-v2/internal/api"
	"github.com/DummyC/Bantay-v2/internal/auth"
	"github.com/DummyC/Bantay-v2/internal/config"
	"github.com/DummyC/Bantay-v2/internal/ingest"
	"github.com/DummyC/Bantay-v2/internal/logging"
	"github.com/DummyC/Bantay-v2/internal/store"
	"github.com/DummyC/Bantay-v2/internal/supervisor"
	"github.com/DummyC/Bantay-v2/internal/supervisor/services"
	ws "github.com/DummyC/Bantay-v2/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Config errors surface through the default logger since the
		// configured one is not available yet.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("db_path", cfg.Database.Path).
		Bool("forward_secret_set", cfg.Traccar.ForwardSecret != "").
		Msg("Configuration loaded")

	db, err := store.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized successfully")

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}
	forwardSecret := auth.NewSharedSecret(cfg.Traccar.ForwardSecret)
	if !forwardSecret.Enabled() {
		logging.Warn().Msg("Traccar forward secret not set, webhook endpoints accept unauthenticated reports")
	}

	// Batch writes go through the circuit breaker so a failing database
	// sheds webhook load instead of stacking up timed-out transactions.
	writer := store.NewBreakerWriter(db)

	hub := ws.NewHub(db, cfg.Feed)
	snapshots := ws.NewSnapshotBuilder(db, cfg.Feed.SnapshotEventLimit)

	router := api.NewRouter(cfg,
		api.NewIngestHandler(forwardSecret, ingest.NewNormalizer(db), writer, hub, cfg.Traccar.MaxBatchBytes),
		api.NewFeedHandler(jwtManager, hub, snapshots, cfg.Security.CORSOrigins),
		api.NewDevicesHandler(jwtManager, db),
		api.NewHealthHandler(db, hub, writer),
	)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// sutureslog wants slog, so the supervisor logs through the
	// zerolog-backed adapter.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddFeedService(services.NewHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Drain until the supervisor has fully stopped.
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Application stopped gracefully")
}
