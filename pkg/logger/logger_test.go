package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitConfiguresGlobalLogger(t *testing.T) {
	t.Cleanup(Replace(zap.NewNop()))

	if err := Init("debug"); err != nil {
		t.Fatalf("Init returned error: %v", err)
	}

	if !Logger().Core().Enabled(zap.DebugLevel) {
		t.Fatal("expected logger to enable debug level")
	}
}

func TestInitFallsBackToInfo(t *testing.T) {
	t.Cleanup(Replace(zap.NewNop()))

	if err := InitWithOptions(Options{Level: "chatty", Development: true}); err != nil {
		t.Fatalf("InitWithOptions returned error: %v", err)
	}

	if Logger().Core().Enabled(zap.DebugLevel) {
		t.Fatal("expected debug to be disabled for unknown level")
	}
	if !Logger().Core().Enabled(zap.InfoLevel) {
		t.Fatal("expected info level to be enabled")
	}
}

func TestWithModuleAttachesModuleField(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)
	t.Cleanup(Replace(zap.New(core)))

	WithModule("sweeps").Info("tick")
	Warn("plain warning")

	entries := recorded.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if module := entries[0].ContextMap()["module"]; module != "sweeps" {
		t.Fatalf("expected module field to be \"sweeps\", got %v", module)
	}
	if entries[1].Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level, got %s", entries[1].Level)
	}
}

func TestReplaceRestoresPrevious(t *testing.T) {
	original := Logger()
	restore := Replace(nil)
	if Logger() == original {
		t.Fatal("expected logger to be replaced")
	}
	restore()
	if Logger() != original {
		t.Fatal("expected restore to reinstate the previous logger")
	}
}
