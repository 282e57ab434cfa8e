// Bantay - Fisherfolk Safety and Vessel Tracking
// Copyright 2026 DummyC
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/DummyC/Bantay-v2

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"INFO", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"disabled", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestInitWritesToOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Output: &buf})
	defer Init(Config{Level: "info"})

	Info().Str("key", "value").Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"key":"value"`) {
		t.Errorf("expected field in output, got %q", out)
	}
	if !strings.Contains(out, "hello") {
		t.Errorf("expected message in output, got %q", out)
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")
	if got := RequestID(ctx); got != "req-123" {
		t.Errorf("RequestID = %q, want req-123", got)
	}

	// Empty id generates one.
	ctx = WithRequestID(context.Background(), "")
	if RequestID(ctx) == "" {
		t.Error("expected generated request id, got empty")
	}

	if RequestID(context.Background()) != "" {
		t.Error("expected empty request id on bare context")
	}
}

func TestCtxUsesAttachedLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTestLogger(&buf)
	ctx := WithLogger(context.Background(), logger)

	ctxLogger := Ctx(ctx)
	ctxLogger.Info().Msg("attached")

	if !strings.Contains(buf.String(), "attached") {
		t.Errorf("expected attached logger output, got %q", buf.String())
	}
}

func TestCtxAddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Output: &buf})
	defer Init(Config{Level: "info"})

	ctx := WithRequestID(context.Background(), "corr-9")
	ctxLogger := Ctx(ctx)
	ctxLogger.Info().Msg("with id")

	if !strings.Contains(buf.String(), "corr-9") {
		t.Errorf("expected request id in output, got %q", buf.String())
	}
}

func TestSlogHandler(t *testing.T) {
	var buf bytes.Buffer
	handler := NewSlogHandler(NewTestLogger(&buf))
	logger := slog.New(handler)

	logger.Info("supervisor event", "service", "feed-hub", "attempt", int64(2))

	out := buf.String()
	if !strings.Contains(out, "supervisor event") {
		t.Errorf("expected message, got %q", out)
	}
	if !strings.Contains(out, `"service":"feed-hub"`) {
		t.Errorf("expected string attr, got %q", out)
	}
	if !strings.Contains(out, `"attempt":2`) {
		t.Errorf("expected int attr, got %q", out)
	}
}

func TestSlogHandlerGroups(t *testing.T) {
	var buf bytes.Buffer
	handler := NewSlogHandler(NewTestLogger(&buf))
	logger := slog.New(handler).WithGroup("tree").With("node", "api")

	logger.Warn("restarting")

	if !strings.Contains(buf.String(), `"tree.node":"api"`) {
		t.Errorf("expected grouped attr key, got %q", buf.String())
	}
}
