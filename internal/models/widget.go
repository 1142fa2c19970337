package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrUnknownWidget is returned when decoding a widget whose type is not one of the known kinds.
var ErrUnknownWidget = errors.New("unknown widget type")

// WidgetType tags the widget variant on the wire.
type WidgetType string

const (
	WidgetStat            WidgetType = "stat"
	WidgetGauge           WidgetType = "gauge"
	WidgetStatusIndicator WidgetType = "status_indicator"
	WidgetLogStream       WidgetType = "log_stream"
	WidgetActionGroup     WidgetType = "action_group"
	WidgetLink            WidgetType = "link"
)

// Widget is a typed UI element rendered by the hub. Implemented by
// Stat, Gauge, StatusIndicator, LogStream, ActionGroup and Link.
type Widget interface {
	WidgetID() string
	Type() WidgetType
}

// Severity of a monitor alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Monitor is a condition/severity/message triple attached to a stat widget.
type Monitor struct {
	Condition string   `json:"condition" validate:"required"`
	Severity  Severity `json:"severity" validate:"required,oneof=info warning critical"`
	Message   string   `json:"message"`
}

type Stat struct {
	ID       string    `json:"id" validate:"required"`
	Label    string    `json:"label"`
	Value    float64   `json:"value"`
	Unit     string    `json:"unit"`
	Copyable bool      `json:"copyable"`
	Monitors []Monitor `json:"monitors"`
}

// Boundary is a numeric gauge threshold. It marshals as a JSON object key.
type Boundary float64

func (b Boundary) MarshalText() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(b), 'f', -1, 64)), nil
}

func (b *Boundary) UnmarshalText(text []byte) error {
	f, err := strconv.ParseFloat(string(text), 64)
	if err != nil {
		return fmt.Errorf("invalid threshold boundary %q: %w", text, err)
	}
	*b = Boundary(f)
	return nil
}

type Gauge struct {
	ID         string              `json:"id" validate:"required"`
	Label      string              `json:"label"`
	Value      float64             `json:"value"`
	Min        float64             `json:"min"`
	Max        float64             `json:"max" validate:"gtfield=Min"`
	Unit       string              `json:"unit"`
	Thresholds map[Boundary]string `json:"thresholds"`
}

// StatusMapping is how the hub renders one status key.
type StatusMapping struct {
	Text    string `json:"text"`
	Color   string `json:"color"`
	Icon    string `json:"icon"`
	Animate bool   `json:"animate,omitempty"`
}

type StatusIndicator struct {
	ID      string                   `json:"id" validate:"required"`
	Label   string                   `json:"label"`
	Value   string                   `json:"value" validate:"required"`
	Mapping map[string]StatusMapping `json:"mapping" validate:"required"`
}

// LogStream carries the latest log line. MaxItems is enforced by the consumer.
type LogStream struct {
	ID       string `json:"id" validate:"required"`
	Label    string `json:"label"`
	Value    string `json:"value"`
	MaxItems int    `json:"max_items" validate:"gte=0"`
}

// ActionStyle hints how the hub renders an action button.
type ActionStyle string

const (
	ActionStylePrimary   ActionStyle = "primary"
	ActionStyleSecondary ActionStyle = "secondary"
	ActionStyleDanger    ActionStyle = "danger"
)

type ActionItem struct {
	ActionID string      `json:"action_id" validate:"required"`
	Label    string      `json:"label"`
	Style    ActionStyle `json:"style" validate:"oneof=primary secondary danger"`
	Confirm  bool        `json:"confirm"`
}

type ActionGroup struct {
	ID    string       `json:"id" validate:"required"`
	Label string       `json:"label"`
	Items []ActionItem `json:"items" validate:"dive"`
}

type Link struct {
	ID    string `json:"id" validate:"required"`
	Label string `json:"label"`
	Text  string `json:"text"`
	URI   string `json:"uri" validate:"required,uri"`
}

func (w Stat) WidgetID() string            { return w.ID }
func (w Gauge) WidgetID() string           { return w.ID }
func (w StatusIndicator) WidgetID() string { return w.ID }
func (w LogStream) WidgetID() string       { return w.ID }
func (w ActionGroup) WidgetID() string     { return w.ID }
func (w Link) WidgetID() string            { return w.ID }

func (Stat) Type() WidgetType            { return WidgetStat }
func (Gauge) Type() WidgetType           { return WidgetGauge }
func (StatusIndicator) Type() WidgetType { return WidgetStatusIndicator }
func (LogStream) Type() WidgetType       { return WidgetLogStream }
func (ActionGroup) Type() WidgetType     { return WidgetActionGroup }
func (Link) Type() WidgetType            { return WidgetLink }

// Each variant is written with its "type" tag first.

func (w Stat) MarshalJSON() ([]byte, error) {
	type alias Stat
	return json.Marshal(struct {
		Type WidgetType `json:"type"`
		alias
	}{w.Type(), alias(w)})
}

func (w Gauge) MarshalJSON() ([]byte, error) {
	type alias Gauge
	return json.Marshal(struct {
		Type WidgetType `json:"type"`
		alias
	}{w.Type(), alias(w)})
}

func (w StatusIndicator) MarshalJSON() ([]byte, error) {
	type alias StatusIndicator
	return json.Marshal(struct {
		Type WidgetType `json:"type"`
		alias
	}{w.Type(), alias(w)})
}

func (w LogStream) MarshalJSON() ([]byte, error) {
	type alias LogStream
	return json.Marshal(struct {
		Type WidgetType `json:"type"`
		alias
	}{w.Type(), alias(w)})
}

func (w ActionGroup) MarshalJSON() ([]byte, error) {
	type alias ActionGroup
	return json.Marshal(struct {
		Type WidgetType `json:"type"`
		alias
	}{w.Type(), alias(w)})
}

func (w Link) MarshalJSON() ([]byte, error) {
	type alias Link
	return json.Marshal(struct {
		Type WidgetType `json:"type"`
		alias
	}{w.Type(), alias(w)})
}

// Widgets is the ordered widget list. Order is render order.
type Widgets []Widget

func (ws *Widgets) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	if raws == nil {
		*ws = nil
		return nil
	}

	out := make(Widgets, 0, len(raws))
	for i, raw := range raws {
		w, err := decodeWidget(raw)
		if err != nil {
			return fmt.Errorf("widget %d: %w", i, err)
		}
		out = append(out, w)
	}
	*ws = out
	return nil
}

func decodeWidget(raw json.RawMessage) (Widget, error) {
	var head struct {
		Type WidgetType `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}

	switch head.Type {
	case WidgetStat:
		var w Stat
		err := json.Unmarshal(raw, &w)
		return w, err
	case WidgetGauge:
		var w Gauge
		err := json.Unmarshal(raw, &w)
		return w, err
	case WidgetStatusIndicator:
		var w StatusIndicator
		err := json.Unmarshal(raw, &w)
		return w, err
	case WidgetLogStream:
		var w LogStream
		err := json.Unmarshal(raw, &w)
		return w, err
	case WidgetActionGroup:
		var w ActionGroup
		err := json.Unmarshal(raw, &w)
		return w, err
	case WidgetLink:
		var w Link
		err := json.Unmarshal(raw, &w)
		return w, err
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownWidget, head.Type)
	}
}

// Find returns the first widget with the given type.
func (ws Widgets) Find(t WidgetType) (Widget, bool) {
	for _, w := range ws {
		if w.Type() == t {
			return w, true
		}
	}
	return nil, false
}
