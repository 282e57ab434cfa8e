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
	"net/http/httptest"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/DummyC/Bantay-v2/internal/auth"
	"github.com/DummyC/Bantay-v2/internal/ingest"
	"github.com/DummyC/Bantay-v2/internal/logging"
	"github.com/DummyC/Bantay-v2/internal/models"
)

func init() {
	logging.Init(logging.Config{Level: "disabled"})
}

type fakeDirectory struct {
	devices map[int64]*models.Device
}

func (f *fakeDirectory) FindDeviceByTraccarID(_ context.Context, id int64) (*models.Device, bool, error) {
	dev, ok := f.devices[id]
	return dev, ok, nil
}

func (f *fakeDirectory) FindDeviceByUniqueID(_ context.Context, _ string) (*models.Device, bool, error) {
	return nil, false, nil
}

type fakeWriter struct {
	insertErr      error
	savedPositions []models.Position
	savedEvents    []models.Event
}

func (f *fakeWriter) InsertPositionsBatch(_ context.Context, positions []models.Position) ([]models.Position, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	for i := range positions {
		positions[i].ID = int64(i + 1)
	}
	f.savedPositions = positions
	return positions, nil
}

func (f *fakeWriter) InsertEventsBatch(_ context.Context, events []models.Event) ([]models.Event, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	f.savedEvents = events
	return events, nil
}

type fakeHub struct {
	positions []models.Position
	events    []models.Event
	calls     int
}

func (f *fakeHub) BroadcastBatch(positions []models.Position, events []models.Event) {
	f.calls++
	f.positions = append(f.positions, positions...)
	f.events = append(f.events, events...)
}

func newIngestFixture(secret string, writer *fakeWriter) (*IngestHandler, *fakeHub) {
	directory := &fakeDirectory{devices: map[int64]*models.Device{
		7: {ID: 1, TraccarDeviceID: 7, UniqueID: "imei-7", Name: "Banca Uno"},
	}}
	hub := &fakeHub{}
	h := NewIngestHandler(
		auth.NewSharedSecret(secret),
		ingest.NewNormalizer(directory),
		writer,
		hub,
		1<<20,
	)
	return h, hub
}

func postJSON(t *testing.T, handler http.HandlerFunc, body, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/traccar/positions", strings.NewReader(body))
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeIngestResponse(t *testing.T, rec *httptest.ResponseRecorder) ingestResponse {
	t.Helper()
	var resp ingestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return resp
}

func TestIngestPositions_SavesAndBroadcasts(t *testing.T) {
	writer := &fakeWriter{}
	h, hub := newIngestFixture("s3cret", writer)

	body := `{"positions": [
		{"deviceId": 7, "latitude": 13.5, "longitude": 121.2, "speed": 4.2},
		{"deviceId": 7, "latitude": 13.6, "longitude": 121.3}
	]}`
	rec := postJSON(t, h.Positions, body, "Bearer s3cret")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	resp := decodeIngestResponse(t, rec)
	if !resp.OK || resp.Saved != 2 {
		t.Errorf("response = %+v, want ok with saved=2", resp)
	}
	if hub.calls != 1 || len(hub.positions) != 2 {
		t.Errorf("broadcast calls=%d positions=%d, want 1 call with 2 positions", hub.calls, len(hub.positions))
	}
}

func TestIngestPositions_SkipsUnresolvableDevices(t *testing.T) {
	writer := &fakeWriter{}
	h, _ := newIngestFixture("s3cret", writer)

	body := `[{"deviceId": 7, "latitude": 1, "longitude": 2},
		{"deviceId": 999, "latitude": 1, "longitude": 2},
		{"latitude": 1, "longitude": 2}]`
	rec := postJSON(t, h.Positions, body, "Bearer s3cret")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if resp := decodeIngestResponse(t, rec); resp.Saved != 1 {
		t.Errorf("saved = %d, want 1", resp.Saved)
	}
}

func TestIngestPositions_AuthFailures(t *testing.T) {
	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong secret", "Bearer wrong", http.StatusForbidden},
		{"not bearer", "Basic s3cret", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, hub := newIngestFixture("s3cret", &fakeWriter{})
			rec := postJSON(t, h.Positions, `[]`, tt.authHeader)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if hub.calls != 0 {
				t.Errorf("broadcast happened on rejected request")
			}
		})
	}
}

func TestIngestPositions_SecretDisabledAcceptsAll(t *testing.T) {
	h, _ := newIngestFixture("", &fakeWriter{})
	rec := postJSON(t, h.Positions, `[{"deviceId": 7, "latitude": 1, "longitude": 2}]`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestIngestPositions_MalformedPayload(t *testing.T) {
	h, _ := newIngestFixture("s3cret", &fakeWriter{})

	for _, body := range []string{`42`, `"nope"`, `{"positions": "x"}`, `not json`} {
		rec := postJSON(t, h.Positions, body, "Bearer s3cret")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestIngestPositions_BreakerOpenReturns503(t *testing.T) {
	writer := &fakeWriter{insertErr: gobreaker.ErrOpenState}
	h, hub := newIngestFixture("s3cret", writer)

	rec := postJSON(t, h.Positions, `[{"deviceId": 7, "latitude": 1, "longitude": 2}]`, "Bearer s3cret")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if hub.calls != 0 {
		t.Errorf("broadcast happened despite failed write")
	}
}

func TestIngestPositions_WriteFailureReturns500(t *testing.T) {
	writer := &fakeWriter{insertErr: errors.New("disk on fire")}
	h, _ := newIngestFixture("s3cret", writer)

	rec := postJSON(t, h.Positions, `[{"deviceId": 7, "latitude": 1, "longitude": 2}]`, "Bearer s3cret")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestIngestPositions_BodyTooLarge(t *testing.T) {
	directory := &fakeDirectory{devices: map[int64]*models.Device{}}
	h := NewIngestHandler(auth.NewSharedSecret(""), ingest.NewNormalizer(directory), &fakeWriter{}, &fakeHub{}, 16)

	rec := postJSON(t, h.Positions, strings.Repeat("[", 64), "")
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
}

func TestIngestEvents_SavesAndBroadcasts(t *testing.T) {
	writer := &fakeWriter{}
	h, hub := newIngestFixture("s3cret", writer)

	body := `{"events": [{"deviceId": 7, "type": "deviceOnline"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/traccar/events", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	h.Events(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if resp := decodeIngestResponse(t, rec); resp.Saved != 1 {
		t.Errorf("saved = %d, want 1", resp.Saved)
	}
	if len(hub.events) != 1 || hub.events[0].EventType != "deviceOnline" {
		t.Errorf("broadcast events = %+v, want one deviceOnline", hub.events)
	}
}

func TestIngestResponse_WireShape(t *testing.T) {
	h, _ := newIngestFixture("", &fakeWriter{})
	rec := postJSON(t, h.Positions, `[]`, "")

	body, _ := io.ReadAll(rec.Body)
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := raw["ok"]; !ok {
		t.Errorf("response missing \"ok\" key: %s", body)
	}
	if _, ok := raw["success"]; ok {
		t.Errorf("webhook response must not use the API envelope: %s", body)
	}
}
