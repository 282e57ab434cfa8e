// Bantay - Fisherfolk Safety and Vessel Tracking
// Copyright 2026 DummyC
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/DummyC/Bantay-v2

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveDBQuery(t *testing.T) {
	before := testutil.ToFloat64(DBQueryErrors.WithLabelValues("insert", "positions"))

	ObserveDBQuery("insert", "positions", time.Now(), nil)
	if got := testutil.ToFloat64(DBQueryErrors.WithLabelValues("insert", "positions")); got != before {
		t.Errorf("error counter advanced on nil error: %v", got)
	}

	ObserveDBQuery("insert", "positions", time.Now(), errors.New("boom"))
	if got := testutil.ToFloat64(DBQueryErrors.WithLabelValues("insert", "positions")); got != before+1 {
		t.Errorf("error counter = %v, want %v", got, before+1)
	}
}

func TestObserveHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/api/traccar/positions", "200"))

	ObserveHTTPRequest("POST", "/api/traccar/positions", 200, time.Now())

	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/api/traccar/positions", "200"))
	if after != before+1 {
		t.Errorf("request counter = %v, want %v", after, before+1)
	}
}

func TestFeedGauges(t *testing.T) {
	FeedSessionsActive.Set(0)
	FeedSessionsActive.Inc()
	FeedSessionsActive.Inc()
	FeedSessionsActive.Dec()

	if got := testutil.ToFloat64(FeedSessionsActive); got != 1 {
		t.Errorf("active sessions = %v, want 1", got)
	}
}
