// Package wrapper holds the JSON envelope used by the admin API.
package wrapper

import "github.com/gofiber/fiber/v2"

type JSONResult struct {
	Code    int    `json:"-"`
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func ResponseSuccess(httpCode int, data any) JSONResult {
	return JSONResult{
		Code:    httpCode,
		Success: true,
		Message: "Success",
		Data:    data,
	}
}

func ResponseFailed(httpCode int, message string, data any) JSONResult {
	return JSONResult{
		Code:    httpCode,
		Success: false,
		Message: message,
		Data:    data,
	}
}

// Send writes r with its own status code.
func Send(c *fiber.Ctx, r JSONResult) error {
	return c.Status(r.Code).JSON(r)
}
