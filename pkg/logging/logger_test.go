package logging

import (
	"log/slog"
	"testing"
)

func TestNewRespectsLevel(t *testing.T) {
	tests := []struct {
		level   string
		enabled slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		logger := New(tt.level)
		if logger == nil || logger.Logger == nil {
			t.Fatalf("New(%q) returned nil logger", tt.level)
		}
		if !logger.Enabled(nil, tt.enabled) {
			t.Errorf("New(%q): expected level %v to be enabled", tt.level, tt.enabled)
		}
	}
}

func TestWithConversationOnNilLogger(t *testing.T) {
	var l *Logger
	child := l.WithConversation("conv-1")
	if child == nil || child.Logger == nil {
		t.Fatal("WithConversation on nil logger should fall back to default")
	}
}
