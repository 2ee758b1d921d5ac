package logger

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_Debug(t *testing.T) {
	log, err := New(true)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	if !log.Core().Enabled(zapcore.DebugLevel) {
		t.Error("expected debug level enabled")
	}

	// Should not panic
	log.Debug("test message")
}

func TestNew_Production(t *testing.T) {
	log, err := New(false)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	if log.Core().Enabled(zapcore.DebugLevel) {
		t.Error("expected debug level disabled")
	}
}

func TestMust(t *testing.T) {
	// Should not panic
	log := Must(true)
	if log == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestForRun(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := ForRun(zap.New(core), "run-1", time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC))

	log.Info("archived")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["run_id"] != "run-1" {
		t.Errorf("expected run_id field, got %v", fields["run_id"])
	}
	if fields["run_date"] != "2025-06-02" {
		t.Errorf("expected run_date 2025-06-02, got %v", fields["run_date"])
	}
}
