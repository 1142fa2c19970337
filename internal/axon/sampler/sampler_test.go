package sampler

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

func TestSample_SimulatedBypassesSource(t *testing.T) {
	called := false
	src := func(ctx context.Context) (float64, error) {
		called = true
		return 12, nil
	}

	v := 77.5
	got, err := Sample(context.Background(), src, &v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 77.5 {
		t.Fatalf("expected simulated value 77.5, got %v", got)
	}
	if called {
		t.Fatal("expected real source not to be queried")
	}
}

func TestSample_QueriesSource(t *testing.T) {
	src := func(ctx context.Context) (float64, error) { return 33.3, nil }

	got, err := Sample(context.Background(), src, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 33.3 {
		t.Fatalf("expected 33.3, got %v", got)
	}
}

func TestSample_SourceErrorIsSampleError(t *testing.T) {
	ioErr := errors.New("read /proc/meminfo: permission denied")
	src := func(ctx context.Context) (float64, error) { return 0, ioErr }

	_, err := Sample(context.Background(), src, nil)
	if !errors.Is(err, ErrSample) {
		t.Fatalf("expected ErrSample, got %v", err)
	}
}

func TestSample_RejectsOutOfRange(t *testing.T) {
	for _, v := range []float64{-1, 100.01, math.NaN()} {
		v := v
		if _, err := Sample(context.Background(), nil, &v); !errors.Is(err, ErrSample) {
			t.Errorf("value %v: expected ErrSample, got %v", v, err)
		}
	}
}

func TestSample_NilSource(t *testing.T) {
	if _, err := Sample(context.Background(), nil, nil); !errors.Is(err, ErrSample) {
		t.Fatalf("expected ErrSample, got %v", err)
	}
}

func TestDefaultSchedule_At(t *testing.T) {
	tests := []struct {
		elapsed time.Duration
		value   float64
		phase   string
	}{
		{0, 45, "Normal (Initial)"},
		{5 * time.Second, 45, "Normal (Initial)"},
		{9999 * time.Millisecond, 45, "Normal (Initial)"},
		{10 * time.Second, 95, "CRITICAL TEST"},
		{12 * time.Second, 95, "CRITICAL TEST"},
		{15 * time.Second, 50, "Normal (Resumed)"},
		{20 * time.Second, 50, "Normal (Resumed)"},
		{time.Hour, 50, "Normal (Resumed)"},
		{-time.Second, 45, "Normal (Initial)"},
	}

	for _, tt := range tests {
		t.Run(tt.elapsed.String(), func(t *testing.T) {
			p := DefaultSchedule.At(tt.elapsed)
			if p.Value != tt.value || p.Label != tt.phase {
				t.Errorf("At(%v) = (%v, %q), want (%v, %q)", tt.elapsed, p.Value, p.Label, tt.value, tt.phase)
			}
		})
	}
}

func TestPhaseSampler_RecomputesEachCall(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(5 * time.Second)
	s := NewPhaseSampler(nil, start, func() time.Time { return now })

	r, err := s.Sample(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Value != 45 || r.Phase != "Normal (Initial)" {
		t.Fatalf("at 5s expected 45/Normal (Initial), got %v/%s", r.Value, r.Phase)
	}

	now = start.Add(12 * time.Second)
	r, _ = s.Sample(context.Background())
	if r.Value != 95 || r.Phase != "CRITICAL TEST" {
		t.Fatalf("at 12s expected 95/CRITICAL TEST, got %v/%s", r.Value, r.Phase)
	}

	now = start.Add(20 * time.Second)
	r, _ = s.Sample(context.Background())
	if r.Value != 50 || r.Phase != "Normal (Resumed)" {
		t.Fatalf("at 20s expected 50/Normal (Resumed), got %v/%s", r.Value, r.Phase)
	}

	// moving the clock back works too: nothing is cached
	now = start.Add(1 * time.Second)
	r, _ = s.Sample(context.Background())
	if r.Value != 45 {
		t.Fatalf("expected 45 after clock reset, got %v", r.Value)
	}
}

func TestLiveSampler(t *testing.T) {
	s := NewLiveSampler(func(ctx context.Context) (float64, error) { return 61, nil })
	r, err := s.Sample(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Value != 61 || r.Phase != "Live" {
		t.Fatalf("unexpected reading %+v", r)
	}
}
