// Package command decodes inbound command messages and runs the named action.
package command

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/Alwanly/axon-agent/internal/models"
	"github.com/Alwanly/axon-agent/pkg/logger"
	"github.com/Alwanly/axon-agent/pkg/metrics"
	"github.com/Alwanly/axon-agent/pkg/pubsub"
	"github.com/Alwanly/axon-agent/pkg/validator"
	"github.com/google/uuid"
)

var (
	// ErrMalformedCommand is returned for messages that are not a UTF-8 JSON object with an action_id.
	ErrMalformedCommand = errors.New("malformed command")
	// ErrUnknownAction is returned when no action is registered for the action_id.
	ErrUnknownAction = errors.New("unknown action")
)

// Action performs the effect of one command.
type Action func(ctx context.Context, cmd models.Command) error

type Dispatcher struct {
	actions map[string]Action
	log     *logger.CanonicalLogger
	metrics *metrics.Metrics
	timeout time.Duration
}

func NewDispatcher(log *logger.CanonicalLogger, m *metrics.Metrics, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{
		actions: make(map[string]Action),
		log:     log,
		metrics: m,
		timeout: timeout,
	}
}

// Register binds an action id. Registering the same id twice panics.
func (d *Dispatcher) Register(actionID string, a Action) {
	if actionID == "" || a == nil {
		panic("command: invalid action registration")
	}
	if _, exists := d.actions[actionID]; exists {
		panic("command: action already registered: " + actionID)
	}
	d.actions[actionID] = a
}

// Actions returns the registered action ids, sorted.
func (d *Dispatcher) Actions() []string {
	ids := make([]string, 0, len(d.actions))
	for id := range d.actions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// wireCommand is the inbound shape. Only action_id is typed; informational
// fields accept any JSON value.
type wireCommand struct {
	ActionID  string          `json:"action_id" validate:"required"`
	IssuedBy  json.RawMessage `json:"issued_by,omitempty"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

// Decode parses a raw command message. Only action_id is required to be a
// string; issued_by and timestamp never cause a decode failure.
func Decode(raw []byte) (models.Command, error) {
	var cmd models.Command
	if !utf8.Valid(raw) {
		return cmd, fmt.Errorf("%w: payload is not valid UTF-8", ErrMalformedCommand)
	}
	var w wireCommand
	if err := json.Unmarshal(raw, &w); err != nil {
		return cmd, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	if err := validator.ValidateStruct(w); err != nil {
		return cmd, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	cmd.ActionID = w.ActionID
	cmd.IssuedBy = lenientString(w.IssuedBy)
	cmd.Timestamp = lenientString(w.Timestamp)
	return cmd, nil
}

// lenientString renders a JSON string unquoted, null as empty and any other
// value as its compact JSON text.
func lenientString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// Dispatch decodes raw and runs the matching action. It never panics; every
// failure comes back as an error wrapping ErrMalformedCommand, ErrUnknownAction
// or the action's own error.
func (d *Dispatcher) Dispatch(ctx context.Context, raw []byte) (err error) {
	cmd, err := Decode(raw)
	if err != nil {
		return err
	}

	action, ok := d.actions[cmd.ActionID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAction, cmd.ActionID)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action %q panicked: %v", cmd.ActionID, r)
		}
	}()

	d.log.Info("executing action",
		logger.String(logger.FieldActionID, cmd.ActionID),
		logger.String("issued_by", cmd.IssuedBy),
		logger.String(logger.FieldCommand, logger.GetCorrelationID(ctx)),
	)

	actionCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := action(actionCtx, cmd); err != nil {
		return fmt.Errorf("action %q: %w", cmd.ActionID, err)
	}
	return nil
}

// Run consumes msgs until ctx is done or msgs is closed. An action already
// running when ctx is cancelled is allowed to finish within the action timeout.
func (d *Dispatcher) Run(ctx context.Context, msgs <-chan pubsub.Message) {
	d.log.Info("command dispatcher started", logger.Any("actions", d.Actions()))
	for {
		select {
		case <-ctx.Done():
			d.log.Info("command dispatcher stopped")
			return
		case msg, ok := <-msgs:
			if !ok {
				d.log.Info("command queue closed")
				return
			}
			d.handle(context.WithoutCancel(ctx), msg)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, msg pubsub.Message) {
	id := uuid.NewString()
	ctx = logger.WithCorrelationID(ctx, id)
	log := d.log.Component("dispatcher")

	log.Info("received command",
		logger.String(logger.FieldTopic, msg.Channel),
		logger.String(logger.FieldCommand, logger.GetCorrelationID(ctx)),
	)

	start := time.Now()
	err := d.Dispatch(ctx, msg.Payload)

	switch {
	case err == nil:
		d.record(metrics.OutcomeExecuted)
		log.Info("command executed",
			logger.String(logger.FieldCommand, id),
			logger.Duration("duration", time.Since(start)),
		)
	case errors.Is(err, ErrMalformedCommand):
		d.record(metrics.OutcomeMalformed)
		log.WithError(err).Error("dropping malformed command",
			logger.String(logger.FieldCommand, id),
		)
	case errors.Is(err, ErrUnknownAction):
		d.record(metrics.OutcomeUnknown)
		log.WithError(err).Warn("dropping command for unknown action",
			logger.String(logger.FieldCommand, id),
		)
	default:
		d.record(metrics.OutcomeFailed)
		log.WithError(err).Error("command failed",
			logger.String(logger.FieldCommand, id),
			logger.Duration("duration", time.Since(start)),
		)
	}
}

func (d *Dispatcher) record(outcome string) {
	if d.metrics != nil {
		d.metrics.Command(outcome)
	}
}
