// Bantay - Fisherfolk Safety and Vessel Tracking
// Copyright 2026 DummyC
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/DummyC/Bantay-v2

package store

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/DummyC/Bantay-v2/internal/logging"
	"github.com/DummyC/Bantay-v2/internal/metrics"
	"github.com/DummyC/Bantay-v2/internal/models"
)

// RecordWriter is the write side of the store as the ingest handlers
// see it.
type RecordWriter interface {
	InsertPositionsBatch(ctx context.Context, positions []models.Position) ([]models.Position, error)
	InsertEventsBatch(ctx context.Context, events []models.Event) ([]models.Event, error)
}

// BreakerWriter wraps batch writes in a circuit breaker so a failing
// database trips fast instead of stalling every webhook request.
type BreakerWriter struct {
	inner RecordWriter
	cb    *gobreaker.CircuitBreaker[interface{}]
}

// NewBreakerWriter creates a BreakerWriter around the given writer.
// The breaker opens after 5 consecutive failures and probes again after
// 30 seconds.
func NewBreakerWriter(inner RecordWriter) *BreakerWriter {
	settings := gobreaker.Settings{
		Name:        "store-writes",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.DBBreakerState.Set(breakerStateValue(to))
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("store write breaker state changed")
		},
	}

	return &BreakerWriter{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker[interface{}](settings),
	}
}

// InsertPositionsBatch persists positions through the breaker.
func (w *BreakerWriter) InsertPositionsBatch(ctx context.Context, positions []models.Position) ([]models.Position, error) {
	result, err := w.cb.Execute(func() (interface{}, error) {
		return w.inner.InsertPositionsBatch(ctx, positions)
	})
	if err != nil {
		return nil, err
	}
	saved, _ := result.([]models.Position)
	return saved, nil
}

// InsertEventsBatch persists events through the breaker.
func (w *BreakerWriter) InsertEventsBatch(ctx context.Context, events []models.Event) ([]models.Event, error) {
	result, err := w.cb.Execute(func() (interface{}, error) {
		return w.inner.InsertEventsBatch(ctx, events)
	})
	if err != nil {
		return nil, err
	}
	saved, _ := result.([]models.Event)
	return saved, nil
}

// State returns the current breaker state.
func (w *BreakerWriter) State() gobreaker.State {
	return w.cb.State()
}

// breakerStateValue maps breaker states onto the gauge encoding.
func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
