package main

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFanoutRespectsEachLevel(t *testing.T) {
	var verbose, quiet bytes.Buffer
	logger := slog.New(fanout{
		slog.NewTextHandler(&verbose, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewJSONHandler(&quiet, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}).With("job", "news")

	logger.Debug("fetched source", "items", 3)
	logger.Warn("source failed", "url", "https://example.com")

	if got := strings.Count(verbose.String(), "\n"); got != 2 {
		t.Errorf("debug handler got %d lines, want 2:\n%s", got, verbose.String())
	}
	if got := strings.Count(quiet.String(), "\n"); got != 1 {
		t.Errorf("warn handler got %d lines, want 1:\n%s", got, quiet.String())
	}
	if !strings.Contains(quiet.String(), `"job":"news"`) {
		t.Errorf("attrs not propagated: %s", quiet.String())
	}
	if (fanout{}).Enabled(context.Background(), slog.LevelError) {
		t.Error("empty fanout should not be enabled")
	}
}
