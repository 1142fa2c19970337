package logger

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved() (*CanonicalLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return New(zap.New(core)), logs
}

func TestCanonicalLogger_DerivedFields(t *testing.T) {
	log, logs := newObserved()

	log.WithServiceID("memory-sidecar-go").
		Component("agent").
		WithError(errors.New("boom")).
		Warn("publish failed", String(FieldTopic, "synapse/v1/discovery/memory-sidecar-go"))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Level != zapcore.WarnLevel || e.Message != "publish failed" {
		t.Fatalf("unexpected entry %v %q", e.Level, e.Message)
	}
	ctx := e.ContextMap()
	if ctx[FieldServiceID] != "memory-sidecar-go" || ctx["component"] != "agent" || ctx["error"] != "boom" {
		t.Fatalf("unexpected fields %v", ctx)
	}
	if ctx[FieldTopic] != "synapse/v1/discovery/memory-sidecar-go" {
		t.Fatalf("expected topic field, got %v", ctx[FieldTopic])
	}
}

func TestLogContext_AddToContext(t *testing.T) {
	lc := NewLogContext()
	ctx := WithLogContext(context.Background(), lc)

	AddToContext(ctx, String(FieldActionID, "drop_cache"))
	AddToContext(context.Background(), String("ignored", "x"))

	fields := lc.Fields()
	if len(fields) != 1 || fields[0].Key != FieldActionID {
		t.Fatalf("unexpected fields %v", fields)
	}

	var nilCtx *LogContext
	nilCtx.AddField(String("k", "v"))
	if nilCtx.Fields() != nil {
		t.Fatal("expected nil LogContext to stay empty")
	}
}

func TestCorrelationID(t *testing.T) {
	if got := GetCorrelationID(context.Background()); got != "" {
		t.Fatalf("expected empty id, got %q", got)
	}
	ctx := WithCorrelationID(context.Background(), "c-1")
	if got := GetCorrelationID(ctx); got != "c-1" {
		t.Fatalf("expected c-1, got %q", got)
	}
}

func TestNewLoggerFromEnv(t *testing.T) {
	t.Setenv("LOG_FORMAT", "console")
	t.Setenv("LOG_LEVEL", "debug")

	log, err := NewLoggerFromEnv("test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !log.l.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("expected debug level to be enabled")
	}
}
