package deps

import (
	"github.com/Alwanly/axon-agent/pkg/logger"
	"github.com/Alwanly/axon-agent/pkg/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
)

// App is what admin handlers need to register routes.
type App struct {
	Fiber      *fiber.App
	Logger     *logger.CanonicalLogger
	Middleware *middleware.AuthMiddleware
	Gatherer   prometheus.Gatherer
}
