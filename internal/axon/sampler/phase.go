package sampler

import (
	"context"
	"time"
)

// Phase is one window of a simulated schedule. A phase applies while the
// elapsed time is below Until; a zero Until means open ended.
type Phase struct {
	Until time.Duration
	Value float64
	Label string
}

// Schedule is an ordered list of phases, checked first to last.
type Schedule []Phase

// DefaultSchedule is 10s normal, 5s critical, then normal again.
var DefaultSchedule = Schedule{
	{Until: 10 * time.Second, Value: 45, Label: "Normal (Initial)"},
	{Until: 15 * time.Second, Value: 95, Label: "CRITICAL TEST"},
	{Value: 50, Label: "Normal (Resumed)"},
}

// At returns the phase active after elapsed. Negative elapsed is treated as zero.
func (s Schedule) At(elapsed time.Duration) Phase {
	if elapsed < 0 {
		elapsed = 0
	}
	for _, p := range s {
		if p.Until == 0 || elapsed < p.Until {
			return p
		}
	}
	if len(s) == 0 {
		return Phase{}
	}
	return s[len(s)-1]
}

// PhaseSampler derives its value from the time elapsed since start. Nothing is
// cached between calls.
type PhaseSampler struct {
	schedule Schedule
	start    time.Time
	now      func() time.Time
}

func NewPhaseSampler(schedule Schedule, start time.Time, now func() time.Time) *PhaseSampler {
	if now == nil {
		now = time.Now
	}
	if len(schedule) == 0 {
		schedule = DefaultSchedule
	}
	return &PhaseSampler{schedule: schedule, start: start, now: now}
}

func (s *PhaseSampler) Sample(ctx context.Context) (Reading, error) {
	p := s.schedule.At(s.now().Sub(s.start))
	v, err := Sample(ctx, nil, &p.Value)
	if err != nil {
		return Reading{}, err
	}
	return Reading{Value: v, Phase: p.Label}, nil
}
