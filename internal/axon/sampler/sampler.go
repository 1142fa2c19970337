// Package sampler produces the metric value an agent reports on each tick.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/shirou/gopsutil/v4/mem"
)

// ErrSample marks a failed sample. The caller skips the tick.
var ErrSample = errors.New("sample failed")

// Reading is one sampled value plus the label of the phase that produced it.
type Reading struct {
	Value float64
	Phase string
}

// Sampler produces the current reading.
type Sampler interface {
	Sample(ctx context.Context) (Reading, error)
}

// Source reads a percentage from the real metric source.
type Source func(ctx context.Context) (float64, error)

// MemorySource reports used virtual memory as a percentage.
func MemorySource(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}

// Sample returns simulated verbatim when it is set, otherwise queries src.
// The result is always a percentage in [0,100].
func Sample(ctx context.Context, src Source, simulated *float64) (float64, error) {
	if simulated != nil {
		return checkRange(*simulated)
	}
	if src == nil {
		return 0, fmt.Errorf("%w: no metric source", ErrSample)
	}
	v, err := src(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSample, err)
	}
	return checkRange(v)
}

func checkRange(v float64) (float64, error) {
	if math.IsNaN(v) || v < 0 || v > 100 {
		return 0, fmt.Errorf("%w: value %v outside [0,100]", ErrSample, v)
	}
	return v, nil
}

// LiveSampler reads the real source on every call.
type LiveSampler struct {
	src Source
}

func NewLiveSampler(src Source) *LiveSampler {
	return &LiveSampler{src: src}
}

func (s *LiveSampler) Sample(ctx context.Context) (Reading, error) {
	v, err := Sample(ctx, s.src, nil)
	if err != nil {
		return Reading{}, err
	}
	return Reading{Value: v, Phase: "Live"}, nil
}
