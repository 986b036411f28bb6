package commands

import (
	"log/slog"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		config   string
		override string
		want     slog.Level
	}{
		{"", "", slog.LevelInfo},
		{"info", "", slog.LevelInfo},
		{"debug", "", slog.LevelDebug},
		{"warn", "", slog.LevelWarn},
		{"warning", "", slog.LevelWarn},
		{"error", "", slog.LevelError},
		{"info", "debug", slog.LevelDebug},
		{"error", "WARN", slog.LevelWarn},
	}

	for _, tc := range cases {
		got, err := parseLogLevel(tc.config, tc.override)
		if err != nil {
			t.Fatalf("parseLogLevel(%q, %q) failed: %v", tc.config, tc.override, err)
		}
		if got != tc.want {
			t.Fatalf("parseLogLevel(%q, %q) = %v, want %v", tc.config, tc.override, got, tc.want)
		}
	}
}

func TestParseLogLevelInvalid(t *testing.T) {
	if _, err := parseLogLevel("verbose", ""); err == nil {
		t.Fatal("expected error for invalid level")
	}
	if _, err := parseLogLevel("info", "loud"); err == nil {
		t.Fatal("expected error for invalid override")
	}
}
