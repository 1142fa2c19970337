package middleware

import (
	"errors"

	"github.com/Alwanly/axon-agent/pkg/logger"
	"github.com/Alwanly/axon-agent/pkg/wrapper"
	"github.com/gofiber/fiber/v2"
)

// ErrorHandler renders unhandled errors in the wrapper envelope.
func ErrorHandler(log *logger.CanonicalLogger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}

		log.HTTPError(c.Method(), c.Path(), code, err)

		return wrapper.Send(c, wrapper.ResponseFailed(code, err.Error(), nil))
	}
}
