package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/Alwanly/axon-agent/internal/models"
)

var testIdentity = Identity{
	ID:        "memory-sidecar-go",
	Name:      "Memory Monitor",
	Group:     "System",
	AuthToken: "synapse-secret",
	TTL:       10,
}

func frozenClock() time.Time {
	return time.Date(2024, 3, 1, 14, 5, 9, 0, time.UTC)
}

func newTestBuilder(profile Profile) *Builder {
	return NewBuilder(testIdentity, profile, frozenClock)
}

func healthValue(t *testing.T, p *models.DiscoveryPayload) string {
	t.Helper()
	w, ok := p.Widgets.Find(models.WidgetStatusIndicator)
	if !ok {
		t.Fatal("status indicator widget missing")
	}
	return w.(models.StatusIndicator).Value
}

func TestStatusKey_Boundaries(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{0, StatusKeyNormal},
		{45, StatusKeyNormal},
		{70, StatusKeyNormal},
		{70.0001, StatusKeyHigh},
		{85, StatusKeyHigh},
		{90, StatusKeyHigh},
		{90.0001, StatusKeyCritical},
		{95, StatusKeyCritical},
		{100, StatusKeyCritical},
	}

	b := newTestBuilder(ProfileFull)
	for _, tt := range tests {
		t.Run(FormatValue(tt.value), func(t *testing.T) {
			if got := StatusKey(tt.value); got != tt.want {
				t.Errorf("StatusKey(%v) = %s, want %s", tt.value, got, tt.want)
			}
			p, err := b.Build(tt.value, models.StatusOnline)
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			if got := healthValue(t, p); got != tt.want {
				t.Errorf("health widget value = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestBuild_FullProfileWidgetOrder(t *testing.T) {
	p, err := newTestBuilder(ProfileFull).Build(45, models.StatusOnline)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	want := []models.WidgetType{
		models.WidgetStat,
		models.WidgetGauge,
		models.WidgetStatusIndicator,
		models.WidgetLogStream,
		models.WidgetActionGroup,
		models.WidgetLink,
	}
	if len(p.Widgets) != len(want) {
		t.Fatalf("expected %d widgets, got %d", len(want), len(p.Widgets))
	}
	for i, w := range p.Widgets {
		if w.Type() != want[i] {
			t.Errorf("widget %d: expected %s, got %s", i, want[i], w.Type())
		}
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("expected built payload to validate, got %v", err)
	}
	if p.APIVersion != "v1" || p.ID != testIdentity.ID || p.TTL != 10 || p.Status != models.StatusOnline {
		t.Fatalf("unexpected identity fields: %+v", p)
	}
	if got := p.ActionIDs(); !reflect.DeepEqual(got, []string{ActionDropCache, ActionRestartProcess}) {
		t.Fatalf("unexpected action ids %v", got)
	}
}

func TestBuild_MinimalProfile(t *testing.T) {
	b := newTestBuilder(ProfileMinimal)
	if b.AcceptsCommands() {
		t.Fatal("minimal profile must not accept commands")
	}
	p, err := b.Build(45, models.StatusOnline)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(p.Widgets) != 1 || p.Widgets[0].Type() != models.WidgetStat {
		t.Fatalf("expected single stat widget, got %v", p.Widgets)
	}
}

func TestBuild_LogLineCarriesTimestampAndValue(t *testing.T) {
	p, err := newTestBuilder(ProfileFull).Build(45.5, models.StatusOnline)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	w, _ := p.Widgets.Find(models.WidgetLogStream)
	line := w.(models.LogStream).Value
	if line != "[14:05:09] Sampled memory usage at 45.5%" {
		t.Fatalf("unexpected log line %q", line)
	}
}

func TestBuild_LogLineRegeneratedEachCall(t *testing.T) {
	now := frozenClock()
	b := NewBuilder(testIdentity, ProfileFull, func() time.Time { return now })

	first, _ := b.Build(45, models.StatusOnline)
	now = now.Add(5 * time.Second)
	second, _ := b.Build(45, models.StatusOnline)

	l1, _ := first.Widgets.Find(models.WidgetLogStream)
	l2, _ := second.Widgets.Find(models.WidgetLogStream)
	if l1.(models.LogStream).Value == l2.(models.LogStream).Value {
		t.Fatal("expected log line to change with the clock")
	}
}

func TestBuild_DeterministicWithFrozenClock(t *testing.T) {
	b := newTestBuilder(ProfileFull)
	p1, _ := b.Build(72.25, models.StatusOnline)
	p2, _ := b.Build(72.25, models.StatusOnline)

	j1, err := json.Marshal(p1)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	j2, _ := json.Marshal(p2)
	if !bytes.Equal(j1, j2) {
		t.Fatalf("expected byte-identical payloads:\n%s\n%s", j1, j2)
	}
}

func TestBuild_RoundTrip(t *testing.T) {
	p, err := newTestBuilder(ProfileFull).Build(66.123456789, models.StatusOffline)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back models.DiscoveryPayload
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(*p, back) {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", *p, back)
	}
}

func TestBuild_WireFormat(t *testing.T) {
	p, _ := newTestBuilder(ProfileFull).Build(95, models.StatusOnline)
	raw, _ := json.Marshal(p)

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"api_version", "auth_token", "id", "name", "group", "status", "ttl", "markdown_docs", "widgets"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("missing top-level key %q", key)
		}
	}

	widgets := doc["widgets"].([]any)
	gauge := widgets[1].(map[string]any)
	if gauge["type"] != "gauge" {
		t.Fatalf("expected gauge second, got %v", gauge["type"])
	}
	thresholds := gauge["thresholds"].(map[string]any)
	if thresholds["70"] != "warning" || thresholds["90"] != "danger" {
		t.Fatalf("unexpected thresholds %v", thresholds)
	}

	health := widgets[2].(map[string]any)
	mapping := health["mapping"].(map[string]any)
	if mapping["critical"].(map[string]any)["animate"] != true {
		t.Fatal("expected critical mapping to animate")
	}
	if _, ok := mapping["normal"].(map[string]any)["animate"]; ok {
		t.Fatal("expected animate to be omitted when false")
	}

	if !strings.Contains(string(raw), `"max_items":5`) {
		t.Fatal("expected log stream max_items")
	}
}

func TestBuild_RejectsBadInput(t *testing.T) {
	b := newTestBuilder(ProfileFull)
	if _, err := b.Build(101, models.StatusOnline); !errors.Is(err, ErrValueOutOfRange) {
		t.Fatalf("expected ErrValueOutOfRange, got %v", err)
	}
	if _, err := b.Build(-0.5, models.StatusOnline); !errors.Is(err, ErrValueOutOfRange) {
		t.Fatalf("expected ErrValueOutOfRange, got %v", err)
	}
	if _, err := b.Build(50, models.Status("degraded")); err == nil {
		t.Fatal("expected error for unknown status")
	}
}
