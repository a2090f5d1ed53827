package logging

import (
	"context"
	"testing"

	"prismatic/internal/services"
)

func TestParseLevelFallsBackToInfo(t *testing.T) {
	cases := map[string]string{
		"debug":   "DEBUG",
		"warn":    "WARN",
		"error":   "ERROR",
		"info":    "INFO",
		"":        "INFO",
		"verbose": "INFO",
	}
	for input, want := range cases {
		if got := parseLevel(input).String(); got != want {
			t.Fatalf("parseLevel(%q) = %s, want %s", input, got, want)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestContextFields(t *testing.T) {
	ctx := services.WithProjectID(context.Background(), 7)
	ctx = services.WithPlatform(ctx, "linkedin")
	ctx = services.WithRequestID(ctx, "req-1")

	fields := ContextFields(ctx)
	keys := make(map[string]bool, len(fields))
	for _, f := range fields {
		keys[f.Key] = true
	}
	for _, want := range []string{FieldProjectID, FieldPlatform, FieldCorrelationID} {
		if !keys[want] {
			t.Fatalf("expected field %s in %v", want, keys)
		}
	}
	if keys[FieldPostID] {
		t.Fatal("post_id should be absent when not set")
	}
}

func TestWithContextNilLogger(t *testing.T) {
	logger := WithContext(context.Background(), nil)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
	logger.Info("noop")
}
