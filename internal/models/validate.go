package models

import (
	"fmt"

	"github.com/Alwanly/axon-agent/pkg/validator"
)

// Validate checks a payload is complete enough to publish: the struct tags on
// the payload and every widget, plus the cross-field rules tags cannot express.
func (p *DiscoveryPayload) Validate() error {
	if err := validator.ValidateStruct(p); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	seen := make(map[string]struct{}, len(p.Widgets))
	for i, w := range p.Widgets {
		if w == nil {
			return fmt.Errorf("widget %d is nil", i)
		}
		if err := validator.ValidateStruct(w); err != nil {
			return fmt.Errorf("invalid %s widget %q: %w", w.Type(), w.WidgetID(), err)
		}
		if _, dup := seen[w.WidgetID()]; dup {
			return fmt.Errorf("duplicate widget id %q", w.WidgetID())
		}
		seen[w.WidgetID()] = struct{}{}

		switch v := w.(type) {
		case StatusIndicator:
			if _, ok := v.Mapping[v.Value]; !ok {
				return fmt.Errorf("status indicator %q: value %q has no mapping", v.ID, v.Value)
			}
		case ActionGroup:
			actions := make(map[string]struct{}, len(v.Items))
			for _, item := range v.Items {
				if _, dup := actions[item.ActionID]; dup {
					return fmt.Errorf("action group %q: duplicate action id %q", v.ID, item.ActionID)
				}
				actions[item.ActionID] = struct{}{}
			}
		}
	}
	return nil
}

// ActionIDs lists every action advertised by the payload's action groups.
func (p *DiscoveryPayload) ActionIDs() []string {
	var ids []string
	for _, w := range p.Widgets {
		if g, ok := w.(ActionGroup); ok {
			for _, item := range g.Items {
				ids = append(ids, item.ActionID)
			}
		}
	}
	return ids
}
