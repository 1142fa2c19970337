// Package logger wraps zap with the agent's structured logging conventions.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type CanonicalLogger struct {
	l *zap.Logger
}

// NewLoggerFromEnv builds a logger from LOG_FORMAT and LOG_LEVEL.
//
// LOG_FORMAT "console" (or "development") gives human-readable output; anything
// else gives JSON. LOG_LEVEL takes a zap level name; unknown values keep the
// format's default.
func NewLoggerFromEnv(component string) (*CanonicalLogger, error) {
	var cfg zap.Config
	switch os.Getenv("LOG_FORMAT") {
	case "console", "development":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		if parsed, err := zapcore.ParseLevel(lvl); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(parsed)
		}
	}

	// skip this wrapper's frame so callers are reported
	l, err := cfg.Build(
		zap.AddCallerSkip(1),
		zap.Fields(zap.String("component", component)),
	)
	if err != nil {
		return nil, err
	}
	return &CanonicalLogger{l: l}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *CanonicalLogger {
	return &CanonicalLogger{l: zap.NewNop()}
}

// New wraps an existing zap logger.
func New(l *zap.Logger) *CanonicalLogger {
	return &CanonicalLogger{l: l}
}

func (c *CanonicalLogger) Sync() {
	_ = c.l.Sync()
}

func (c *CanonicalLogger) Debug(msg string, fields ...zap.Field) { c.l.Debug(msg, fields...) }
func (c *CanonicalLogger) Info(msg string, fields ...zap.Field)  { c.l.Info(msg, fields...) }
func (c *CanonicalLogger) Warn(msg string, fields ...zap.Field)  { c.l.Warn(msg, fields...) }
func (c *CanonicalLogger) Error(msg string, fields ...zap.Field) { c.l.Error(msg, fields...) }
func (c *CanonicalLogger) Fatal(msg string, fields ...zap.Field) { c.l.Fatal(msg, fields...) }

func (c *CanonicalLogger) WithError(err error) *CanonicalLogger {
	return &CanonicalLogger{l: c.l.With(zap.Error(err))}
}

func (c *CanonicalLogger) WithServiceID(id string) *CanonicalLogger {
	return &CanonicalLogger{l: c.l.With(zap.String(FieldServiceID, id))}
}

// Component tags a sub-logger with the subsystem it belongs to.
func (c *CanonicalLogger) Component(name string) *CanonicalLogger {
	return &CanonicalLogger{l: c.l.With(zap.String("component", name))}
}

func (c *CanonicalLogger) HTTPError(method, path string, status int, err error) {
	c.l.Error("http_error",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", status),
		zap.Error(err),
	)
}
