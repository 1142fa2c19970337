package logger

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type contextKey string

const (
	logContextKey  contextKey = "log_context"
	correlationKey contextKey = "correlation_id"
)

// Common field names.
const (
	FieldRequestID = "request_id"
	FieldServiceID = "service_id"
	FieldTopic     = "topic"
	FieldState     = "state"
	FieldValue     = "value"
	FieldPhase     = "phase"
	FieldStatus    = "status"
	FieldActionID  = "action_id"
	FieldCommand   = "command_id"
)

// LogContext collects fields across a request so the middleware can log
// them in one line when the request completes.
type LogContext struct {
	mu     sync.Mutex
	fields []zap.Field
}

func NewLogContext() *LogContext {
	return &LogContext{fields: make([]zap.Field, 0, 8)}
}

func (lc *LogContext) AddField(fields ...zap.Field) {
	if lc == nil {
		return
	}
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.fields = append(lc.fields, fields...)
}

func (lc *LogContext) Fields() []zap.Field {
	if lc == nil {
		return nil
	}
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return append([]zap.Field(nil), lc.fields...)
}

func WithLogContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// AddToContext appends fields to the LogContext carried by ctx, if any.
func AddToContext(ctx context.Context, fields ...zap.Field) {
	if ctx == nil {
		return
	}
	if lc, ok := ctx.Value(logContextKey).(*LogContext); ok {
		lc.AddField(fields...)
	}
}

// WithCorrelationID tags ctx with the id of the command being handled.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey, id)
}

func GetCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(correlationKey).(string)
	return v
}
