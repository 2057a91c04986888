package logger_test

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"inventory-ledger/internal/logger"
)

func TestNew_Level(t *testing.T) {
	l, err := logger.New("warn")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if l.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}
	if !l.Core().Enabled(zapcore.ErrorLevel) {
		t.Error("error should be enabled at warn level")
	}
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	if _, err := logger.New("chatty"); err == nil {
		t.Fatal("expected an error for an unknown level")
	}
}

func TestNamed_NilBase(t *testing.T) {
	l := logger.Named(nil, "audit")
	if l == nil {
		t.Fatal("Named(nil) returned nil")
	}
	l.Info("discarded")
}
