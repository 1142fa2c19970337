package monitor

import (
	"testing"

	"github.com/Alwanly/axon-agent/internal/axon/payload"
	"github.com/Alwanly/axon-agent/internal/models"
	"github.com/Alwanly/axon-agent/pkg/logger"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		condition string
		value     any
		want      bool
	}{
		{"value > 90", 95.0, true},
		{"value > 90", 90.0, false},
		{"value > 90", 45.0, false},
		{"value >= 70 && value <= 90", 80.0, true},
		{"value < 10", 3, true},
	}

	for _, tt := range tests {
		got, err := Evaluate(tt.condition, tt.value)
		if err != nil {
			t.Fatalf("Evaluate(%q, %v): %v", tt.condition, tt.value, err)
		}
		if got != tt.want {
			t.Errorf("Evaluate(%q, %v) = %v, want %v", tt.condition, tt.value, got, tt.want)
		}
	}
}

func TestEvaluate_Errors(t *testing.T) {
	if _, err := Evaluate("value >", 1.0); err == nil {
		t.Error("expected syntax error")
	}
	if _, err := Evaluate("value + 1", 1.0); err == nil {
		t.Error("expected error for non-boolean condition")
	}
}

func TestTracker_EdgeTriggered(t *testing.T) {
	b := payload.NewBuilder(payload.Identity{ID: "svc", AuthToken: "x", TTL: 10}, payload.ProfileMinimal, nil)
	tr := NewTracker(logger.NewNop())

	check := func(v float64) []Transition {
		p, err := b.Build(v, models.StatusOnline)
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		return tr.Check(p)
	}

	if got := check(45); len(got) != 0 {
		t.Fatalf("expected no transition while ok, got %v", got)
	}

	got := check(95)
	if len(got) != 1 || !got[0].Firing || got[0].Severity != models.SeverityCritical {
		t.Fatalf("expected one firing critical transition, got %+v", got)
	}
	if got[0].Key != "svc:mem_stat:m0" {
		t.Fatalf("unexpected monitor key %s", got[0].Key)
	}

	if got := check(96); len(got) != 0 {
		t.Fatalf("expected no repeat while still firing, got %v", got)
	}

	got = check(50)
	if len(got) != 1 || got[0].Firing {
		t.Fatalf("expected one resolved transition, got %+v", got)
	}
}
