package middleware

import (
	"time"

	"github.com/Alwanly/axon-agent/pkg/logger"
	"github.com/gofiber/fiber/v2"
)

// LogContextKey is the fiber locals key holding the request's LogContext.
const LogContextKey = "log_context"

// CanonicalLoggerMiddleware logs one line per request, with any fields the
// handler added to the request's LogContext.
func CanonicalLoggerMiddleware(log *logger.CanonicalLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		logCtx := logger.NewLogContext()
		c.Locals(LogContextKey, logCtx)
		c.SetUserContext(logger.WithLogContext(c.UserContext(), logCtx))

		if reqID, ok := c.Locals("requestid").(string); ok && reqID != "" {
			logCtx.AddField(logger.String(logger.FieldRequestID, reqID))
		}

		start := time.Now()
		defer func() {
			duration := time.Since(start)
			status := c.Response().StatusCode()

			fields := append([]logger.Field{
				logger.String("method", c.Method()),
				logger.String("path", c.Path()),
				logger.Int("status", status),
				logger.Int64("duration_ms", duration.Milliseconds()),
			}, logCtx.Fields()...)

			switch {
			case status >= 500:
				log.Error("http_request", fields...)
			case status >= 400:
				log.Info("http_request_client_error", fields...)
			default:
				log.Debug("http_request", fields...)
			}
		}()

		return c.Next()
	}
}
