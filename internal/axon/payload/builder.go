// Package payload assembles the discovery document an agent publishes.
package payload

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/Alwanly/axon-agent/internal/models"
)

// ErrValueOutOfRange is returned for values outside [0,100].
var ErrValueOutOfRange = errors.New("value out of range")

// Profile selects how much of the payload is produced.
type Profile string

const (
	// ProfileFull publishes all six widgets and accepts commands.
	ProfileFull Profile = "full"
	// ProfileMinimal publishes the stat widget only and accepts no commands.
	ProfileMinimal Profile = "minimal"
)

// Status indicator keys.
const (
	StatusKeyNormal   = "normal"
	StatusKeyHigh     = "high"
	StatusKeyCritical = "critical"
)

// Widget ids, stable across builds.
const (
	StatWidgetID   = "mem_stat"
	GaugeWidgetID  = "mem_gauge"
	HealthWidgetID = "health_status"
	LogsWidgetID   = "mem_logs"
	OpsWidgetID    = "ops_actions"
	DocsWidgetID   = "docs_link"
)

// Action ids advertised in the operations group.
const (
	ActionDropCache      = "drop_cache"
	ActionRestartProcess = "restart_process"
)

// Identity is the part of the payload fixed for the agent's lifetime.
type Identity struct {
	ID        string
	Name      string
	Group     string
	AuthToken string
	TTL       int
}

// Builder produces discovery payloads. It holds no mutable state; the clock is
// only read for the log stream line.
type Builder struct {
	identity Identity
	profile  Profile
	now      func() time.Time
}

func NewBuilder(identity Identity, profile Profile, now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	if profile == "" {
		profile = ProfileFull
	}
	return &Builder{identity: identity, profile: profile, now: now}
}

func (b *Builder) Profile() Profile {
	return b.profile
}

// AcceptsCommands reports whether agents built with this profile subscribe to commands.
func (b *Builder) AcceptsCommands() bool {
	return b.profile == ProfileFull
}

// StatusKey maps a value to a status indicator key. Checked high to low, first match wins.
func StatusKey(value float64) string {
	switch {
	case value > 90:
		return StatusKeyCritical
	case value > 70:
		return StatusKeyHigh
	default:
		return StatusKeyNormal
	}
}

// Build assembles the payload for value and status.
func (b *Builder) Build(value float64, status models.Status) (*models.DiscoveryPayload, error) {
	if math.IsNaN(value) || value < 0 || value > 100 {
		return nil, fmt.Errorf("%w: %v", ErrValueOutOfRange, value)
	}
	if status != models.StatusOnline && status != models.StatusOffline {
		return nil, fmt.Errorf("unknown status %q", status)
	}

	p := &models.DiscoveryPayload{
		APIVersion:   models.APIVersion,
		AuthToken:    b.identity.AuthToken,
		ID:           b.identity.ID,
		Name:         b.identity.Name,
		Group:        b.identity.Group,
		Status:       status,
		TTL:          b.identity.TTL,
		MarkdownDocs: runbook,
		Widgets:      models.Widgets{statWidget(value)},
	}

	if b.profile == ProfileFull {
		p.Widgets = append(p.Widgets,
			gaugeWidget(value),
			healthWidget(value),
			logWidget(value, b.now()),
			opsWidget(),
			docsWidget(),
		)
	}

	return p, nil
}

// FormatValue renders a value without trailing zeros: 45 -> "45", 45.5 -> "45.5".
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func statWidget(value float64) models.Stat {
	return models.Stat{
		ID:       StatWidgetID,
		Label:    "Memory Usage",
		Value:    value,
		Unit:     "%",
		Copyable: true,
		Monitors: []models.Monitor{
			{
				Condition: "value > 90",
				Severity:  models.SeverityCritical,
				Message:   "Memory Critical: >90% usage detected!",
			},
		},
	}
}

func gaugeWidget(value float64) models.Gauge {
	return models.Gauge{
		ID:    GaugeWidgetID,
		Label: "Load Visual",
		Value: value,
		Min:   0,
		Max:   100,
		Unit:  "%",
		Thresholds: map[models.Boundary]string{
			70: "warning",
			90: "danger",
		},
	}
}

func healthWidget(value float64) models.StatusIndicator {
	return models.StatusIndicator{
		ID:    HealthWidgetID,
		Label: "Health State",
		Value: StatusKey(value),
		Mapping: map[string]models.StatusMapping{
			StatusKeyNormal:   {Text: "Healthy", Color: "success", Icon: "check"},
			StatusKeyHigh:     {Text: "High Load", Color: "warning", Icon: "activity"},
			StatusKeyCritical: {Text: "Critical", Color: "danger", Icon: "alert", Animate: true},
		},
	}
}

func logWidget(value float64, at time.Time) models.LogStream {
	return models.LogStream{
		ID:       LogsWidgetID,
		Label:    "Activity Log",
		Value:    fmt.Sprintf("[%s] Sampled memory usage at %s%%", at.Format("15:04:05"), FormatValue(value)),
		MaxItems: 5,
	}
}

func opsWidget() models.ActionGroup {
	return models.ActionGroup{
		ID:    OpsWidgetID,
		Label: "Operations",
		Items: []models.ActionItem{
			{ActionID: ActionDropCache, Label: "Drop Cache", Style: models.ActionStylePrimary, Confirm: false},
			{ActionID: ActionRestartProcess, Label: "Restart", Style: models.ActionStyleDanger, Confirm: true},
		},
	}
}

func docsWidget() models.Link {
	return models.Link{
		ID:    DocsWidgetID,
		Label: "Documentation",
		Text:  "Wiki",
		URI:   "https://en.wikipedia.org/wiki/Random-access_memory",
	}
}
