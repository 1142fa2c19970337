// Package handler serves the agent's local admin API.
package handler

import (
	"errors"
	"time"

	"github.com/Alwanly/axon-agent/internal/axon/agent"
	"github.com/Alwanly/axon-agent/internal/models"
	"github.com/Alwanly/axon-agent/pkg/deps"
	"github.com/Alwanly/axon-agent/pkg/logger"
	"github.com/Alwanly/axon-agent/pkg/middleware"
	"github.com/Alwanly/axon-agent/pkg/wrapper"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	swagger "github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// IssuedByAdmin marks commands submitted through the admin API.
const IssuedByAdmin = "admin-api"

// AgentService is the part of the agent the admin API reads and drives.
type AgentService interface {
	State() agent.State
	Snapshot() agent.Snapshot
	LastPayload() []byte
	Enqueue(cmd models.Command) error
}

type Handler struct {
	Logger *logger.CanonicalLogger
	Agent  AgentService
}

// NewApp builds the fiber app with the admin middleware chain.
func NewApp(log *logger.CanonicalLogger) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          middleware.ErrorHandler(log),
		ReadTimeout:           5 * time.Second,
		WriteTimeout:          5 * time.Second,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.CanonicalLoggerMiddleware(log))
	return app
}

func NewHandler(d deps.App, svc AgentService) *Handler {
	h := &Handler{
		Logger: d.Logger,
		Agent:  svc,
	}

	d.Fiber.Get("/health", h.health)
	d.Fiber.Get("/status", h.status)
	if d.Gatherer != nil {
		d.Fiber.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
	d.Fiber.Post("/actions/:action_id", d.Middleware.BasicAuth(), h.triggerAction)
	d.Fiber.Get("/swagger/*", swagger.HandlerDefault)

	return h
}

// health godoc
// @Summary      Agent health
// @Description  Connection state of the agent. 200 when connected, 202 while (re)connecting, 503 otherwise.
// @Tags         agent
// @Produce      json
// @Success      200 {object} agent.Snapshot "Connected"
// @Success      202 {object} agent.Snapshot "Connecting"
// @Failure      503 {object} agent.Snapshot "Disconnected, shutting down or closed"
// @Router       /health [get]
func (h *Handler) health(c *fiber.Ctx) error {
	snap := h.Agent.Snapshot()

	code := fiber.StatusServiceUnavailable
	switch h.Agent.State() {
	case agent.StateConnected:
		code = fiber.StatusOK
	case agent.StateConnecting:
		code = fiber.StatusAccepted
	}

	return c.Status(code).JSON(snap)
}

// status godoc
// @Summary      Last discovery payload
// @Description  The most recently published discovery payload, byte for byte.
// @Tags         agent
// @Produce      json
// @Success      200 {object} models.DiscoveryPayload "Last published payload"
// @Failure      404 {object} wrapper.JSONResult "Nothing published yet"
// @Router       /status [get]
func (h *Handler) status(c *fiber.Ctx) error {
	raw := h.Agent.LastPayload()
	if raw == nil {
		return wrapper.Send(c, wrapper.ResponseFailed(fiber.StatusNotFound, "nothing published yet", nil))
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(fiber.StatusOK).Send(raw)
}

// triggerAction godoc
// @Summary      Trigger an action
// @Description  Queue a command as if it arrived on the command topic.
// @Tags         actions
// @Produce      json
// @Param        action_id path string true "Action id, e.g. drop_cache"
// @Success      202 {object} wrapper.JSONResult "Queued"
// @Failure      401 {object} wrapper.JSONResult "Missing or invalid credentials"
// @Failure      409 {object} wrapper.JSONResult "Profile accepts no commands"
// @Failure      429 {object} wrapper.JSONResult "Command queue full"
// @Router       /actions/{action_id} [post]
// @Security     BasicAuth
func (h *Handler) triggerAction(c *fiber.Ctx) error {
	cmd := models.Command{
		ActionID:  c.Params("action_id"),
		IssuedBy:  IssuedByAdmin,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	logger.AddToContext(c.UserContext(), logger.String(logger.FieldActionID, cmd.ActionID))

	err := h.Agent.Enqueue(cmd)
	switch {
	case err == nil:
		return wrapper.Send(c, wrapper.ResponseSuccess(fiber.StatusAccepted, fiber.Map{"action_id": cmd.ActionID}))
	case errors.Is(err, agent.ErrCommandsDisabled):
		return wrapper.Send(c, wrapper.ResponseFailed(fiber.StatusConflict, err.Error(), nil))
	case errors.Is(err, agent.ErrQueueFull):
		return wrapper.Send(c, wrapper.ResponseFailed(fiber.StatusTooManyRequests, err.Error(), nil))
	default:
		h.Logger.WithError(err).Error("failed to enqueue action", logger.String(logger.FieldActionID, cmd.ActionID))
		return err
	}
}
