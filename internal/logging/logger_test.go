package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"storyreel/internal/services"
)

func TestConsoleHandlerRendersComponentAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	level := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, level))

	NewComponentLogger(logger, "reconciler").Info("job completed",
		String(FieldJobID, "abc-123"),
		Int(FieldSceneIndex, 3),
	)

	out := buf.String()
	for _, fragment := range []string{"INFO", "[reconciler]", "job completed", "job_id=abc-123", "scene_index=3"} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("expected %q in output %q", fragment, out)
		}
	}
}

func TestConsoleHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	level := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, level))

	logger.Warn("generator offline", String("error", "connection refused"))

	if !strings.Contains(buf.String(), `error="connection refused"`) {
		t.Fatalf("expected quoted value, got %q", buf.String())
	}
}

func TestConsoleHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)
	logger := slog.New(newConsoleHandler(&buf, level))

	logger.Info("should be dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below level, got %q", buf.String())
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	level := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, level))

	ctx := services.WithJobID(context.Background(), "job-9")
	ctx = services.WithEpisodeID(ctx, 7)
	WithContext(ctx, logger).Info("polling")

	out := buf.String()
	if !strings.Contains(out, "job_id=job-9") || !strings.Contains(out, "episode_id=7") {
		t.Fatalf("expected context fields in output %q", out)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("expected nop logger to be disabled")
	}
}
