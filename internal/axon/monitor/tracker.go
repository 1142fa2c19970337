package monitor

import (
	"fmt"
	"sync"

	"github.com/Alwanly/axon-agent/internal/models"
	"github.com/Alwanly/axon-agent/pkg/logger"
)

const stateOK = "ok"

// Transition is a monitor changing between ok and its severity.
type Transition struct {
	Key      string
	WidgetID string
	Severity models.Severity
	Message  string
	Firing   bool
}

// Tracker remembers the last state of every monitor and reports only changes.
type Tracker struct {
	mu     sync.Mutex
	states map[string]string
	log    *logger.CanonicalLogger
}

func NewTracker(log *logger.CanonicalLogger) *Tracker {
	return &Tracker{
		states: make(map[string]string),
		log:    log,
	}
}

// Check evaluates every stat monitor in p and returns the transitions since
// the previous call. Evaluation errors are logged and the monitor is skipped.
func (t *Tracker) Check(p *models.DiscoveryPayload) []Transition {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Transition
	for _, w := range p.Widgets {
		stat, ok := w.(models.Stat)
		if !ok {
			continue
		}
		for i, m := range stat.Monitors {
			firing, err := Evaluate(m.Condition, stat.Value)
			if err != nil {
				t.log.WithError(err).Warn("monitor evaluation failed",
					logger.String("widget_id", stat.ID),
					logger.String("condition", m.Condition),
				)
				continue
			}

			key := fmt.Sprintf("%s:%s:m%d", p.ID, stat.ID, i)
			current := stateOK
			if firing {
				current = string(m.Severity)
			}

			last, seen := t.states[key]
			if !seen {
				last = stateOK
			}
			t.states[key] = current
			if last == current {
				continue
			}

			tr := Transition{Key: key, WidgetID: stat.ID, Severity: m.Severity, Message: m.Message, Firing: firing}
			out = append(out, tr)
			if firing {
				t.log.Warn("monitor firing",
					logger.String("monitor", key),
					logger.String("severity", string(m.Severity)),
					logger.String("message", m.Message),
					logger.Float64(logger.FieldValue, stat.Value),
				)
			} else {
				t.log.Info("monitor resolved",
					logger.String("monitor", key),
					logger.Float64(logger.FieldValue, stat.Value),
				)
			}
		}
	}
	return out
}
