package logger

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultLogIsUsable(t *testing.T) {
	if Log == nil {
		t.Fatal("Log must be usable before Init")
	}
	Log.Debug("before init")
}

func TestInit(t *testing.T) {
	levels := []string{"debug", "info", "warn", "error", "unknown"}
	for _, level := range levels {
		Init(level)
		if Log == nil {
			t.Errorf("Init(%s) should set Log", level)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInitWithConfig(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{"json stdout", Config{Level: "info", Format: "json", Output: "stdout"}},
		{"text stderr", Config{Level: "debug", Format: "text", Output: "stderr"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			InitWithConfig(tt.config)
			if Log == nil {
				t.Error("Log should not be nil")
			}
			if slog.Default() != Log {
				t.Error("InitWithConfig should install the default slog logger")
			}
		})
	}
}

func TestInitWithConfig_FileOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "run.log")

	InitWithConfig(Config{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: logPath,
		MaxSize:  1,
	})
	Log.Info("repair finished", "sweeps", 3)

	if _, err := os.Stat(logPath); err != nil {
		t.Errorf("expected log file to be created: %v", err)
	}
}

func TestNew_DoesNotReplaceGlobal(t *testing.T) {
	Init("info")
	before := Log

	l := New(Config{Level: "debug", Format: "text", Output: "stderr"})
	if l == nil {
		t.Fatal("New returned nil")
	}
	if Log != before {
		t.Error("New must not replace the global logger")
	}
}

func TestHelpers(t *testing.T) {
	Init("info")

	if WithRun("run-1") == nil {
		t.Error("WithRun returned nil")
	}
	if WithComponent("repair") == nil {
		t.Error("WithComponent returned nil")
	}

	d := Discard()
	if d.Enabled(context.Background(), slog.LevelError) {
		t.Error("Discard logger should not be enabled")
	}
}
