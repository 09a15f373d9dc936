package logging

import (
	"log/slog"
	"testing"

	"github.com/AIO-2030/alaya-ai-chat-nexus-sub002/internal/infrastructure/config"
)

func TestNew(t *testing.T) {
	logger := New(config.LoggingConfig{
		Level:  "debug",
		Format: "text",
		Output: "stderr",
	}, "test")

	if logger == nil {
		t.Fatal("New() returned nil")
	}

	// Should not panic
	logger.Debug("debug message", "key", "value")
	logger.Info("info message")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestWith(t *testing.T) {
	logger := Default()
	child := logger.With("component", "test")

	if child == nil {
		t.Fatal("With() returned nil")
	}
	if child == logger {
		t.Error("With() returned the same logger")
	}
}
