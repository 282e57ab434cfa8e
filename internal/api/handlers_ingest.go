// Bantay - Fisherfolk Safety and Vessel Tracking
// Copyright 2026 DummyC
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/DummyC/Bantay-v2

package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/sony/gobreaker/v2"

	"github.com/DummyC/Bantay-v2/internal/auth"
	"github.com/DummyC/Bantay-v2/internal/ingest"
	"github.com/DummyC/Bantay-v2/internal/logging"
	"github.com/DummyC/Bantay-v2/internal/metrics"
	"github.com/DummyC/Bantay-v2/internal/models"
	"github.com/DummyC/Bantay-v2/internal/store"
)

// Broadcaster receives persisted records for feed fan-out.
type Broadcaster interface {
	BroadcastBatch(positions []models.Position, events []models.Event)
}

// ingestResponse is the wire response shape expected by the Traccar
// forwarder. It is intentionally not wrapped in APIResponse.
type ingestResponse struct {
	OK    bool `json:"ok"`
	Saved int  `json:"saved"`
}

// IngestHandler serves the Traccar webhook endpoints.
type IngestHandler struct {
	secret     *auth.SharedSecret
	normalizer *ingest.Normalizer
	writer     store.RecordWriter
	hub        Broadcaster
	maxBytes   int64
}

// NewIngestHandler creates the webhook handler. writer is expected to
// be the breaker-wrapped store so sustained database failures shed
// webhook load instead of piling up.
func NewIngestHandler(secret *auth.SharedSecret, normalizer *ingest.Normalizer, writer store.RecordWriter, hub Broadcaster, maxBytes int64) *IngestHandler {
	return &IngestHandler{
		secret:     secret,
		normalizer: normalizer,
		writer:     writer,
		hub:        hub,
		maxBytes:   maxBytes,
	}
}

// Positions handles POST /api/traccar/positions.
func (h *IngestHandler) Positions(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "position", "positions", func(ctx context.Context, batch ingest.Batch) (int, ingest.Stats, error) {
		positions, stats, err := h.normalizer.NormalizePositions(ctx, batch)
		if err != nil {
			return 0, stats, err
		}
		saved, err := h.writer.InsertPositionsBatch(ctx, positions)
		if err != nil {
			return 0, stats, err
		}
		h.hub.BroadcastBatch(saved, nil)
		return len(saved), stats, nil
	})
}

// Events handles POST /api/traccar/events.
func (h *IngestHandler) Events(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "event", "events", func(ctx context.Context, batch ingest.Batch) (int, ingest.Stats, error) {
		events, stats, err := h.normalizer.NormalizeEvents(ctx, batch)
		if err != nil {
			return 0, stats, err
		}
		saved, err := h.writer.InsertEventsBatch(ctx, events)
		if err != nil {
			return 0, stats, err
		}
		h.hub.BroadcastBatch(nil, saved)
		return len(saved), stats, nil
	})
}

type ingestFunc func(ctx context.Context, batch ingest.Batch) (int, ingest.Stats, error)

func (h *IngestHandler) handle(w http.ResponseWriter, r *http.Request, kind, listKey string, process ingestFunc) {
	rw := NewResponseWriter(w, r)
	ctx := r.Context()
	log := logging.Ctx(ctx)

	header := r.Header.Get("Authorization")
	if h.secret.Enabled() && header == "" {
		rw.Unauthorized("Missing authorization header")
		return
	}
	if !h.secret.VerifyBearer(header) {
		log.Warn().Str("kind", kind).Msg("webhook rejected: bad forward secret")
		rw.Forbidden("Invalid forward secret")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			rw.Error(http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "Request body too large")
			return
		}
		rw.BadRequest("Failed to read request body")
		return
	}

	batch, err := ingest.ParseBatch(body, listKey, kind)
	if err != nil {
		rw.BadRequest("Malformed payload")
		return
	}
	metrics.IngestBatchSize.WithLabelValues(kind).Observe(float64(len(batch.Items) + batch.Malformed))

	saved, stats, err := process(ctx, batch)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			log.Warn().Str("kind", kind).Msg("webhook rejected: database breaker open")
			rw.ServiceUnavailable("Storage temporarily unavailable")
			return
		}
		rw.DatabaseError(err)
		return
	}

	recordIngestStats(kind, saved, stats)
	if skipped := stats.Skipped(); skipped > 0 {
		log.Debug().
			Str("kind", kind).
			Int("saved", saved).
			Int("skipped", skipped).
			Msg("webhook batch partially accepted")
	}

	writeRawJSON(w, http.StatusOK, ingestResponse{OK: true, Saved: saved})
}

func recordIngestStats(kind string, saved int, stats ingest.Stats) {
	metrics.IngestRecordsAccepted.WithLabelValues(kind).Add(float64(saved))
	if stats.NoDevice > 0 {
		metrics.IngestRecordsSkipped.WithLabelValues(kind, "no_device").Add(float64(stats.NoDevice))
	}
	if stats.UnknownDevice > 0 {
		metrics.IngestRecordsSkipped.WithLabelValues(kind, "unknown_device").Add(float64(stats.UnknownDevice))
	}
	if stats.BadShape > 0 {
		metrics.IngestRecordsSkipped.WithLabelValues(kind, "bad_shape").Add(float64(stats.BadShape))
	}
}
