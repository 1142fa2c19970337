// Package retry runs an operation with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

const (
	defaultInitialBackoff = time.Second
	defaultMultiplier     = 2.0
)

// Config holds the configuration for exponential backoff retry logic.
type Config struct {
	// MaxRetries is the number of retries after the first attempt.
	// Zero means a single attempt; -1 retries until ctx is done.
	MaxRetries int

	// InitialBackoff is the wait before the first retry. Defaults to 1s.
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between retries. Zero means no cap.
	MaxBackoff time.Duration

	// Multiplier grows the backoff after each retry. Values below 1 use 2.
	Multiplier float64

	// Jitter adds ±25% randomness to each wait.
	Jitter bool
}

// Operation is a function that will be retried until it returns nil or a
// permanent error.
type Operation func(ctx context.Context) error

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. WithExponentialBackoff returns
// it immediately, unwrapped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// WithExponentialBackoff executes op until it succeeds, returns a permanent
// error, exhausts its retries or ctx is done.
func WithExponentialBackoff(ctx context.Context, cfg Config, op Operation) error {
	cfg = cfg.withDefaults()

	var attempt int
	for {
		attempt++

		err := op(ctx)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return fmt.Errorf("operation failed permanently after %d attempts: %w", attempt, perm.err)
		}

		if cfg.MaxRetries >= 0 && attempt > cfg.MaxRetries {
			return fmt.Errorf("operation failed after %d attempts: %w", attempt, err)
		}

		timer := time.NewTimer(calculateBackoff(attempt, cfg))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("operation canceled after %d attempts: %w", attempt, ctx.Err())
		case <-timer.C:
		}
	}
}

func (c Config) withDefaults() Config {
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = defaultInitialBackoff
	}
	if c.Multiplier < 1 {
		c.Multiplier = defaultMultiplier
	}
	return c
}

// calculateBackoff returns InitialBackoff * Multiplier^(retryNumber-1),
// capped at MaxBackoff and jittered when enabled.
func calculateBackoff(retryNumber int, cfg Config) time.Duration {
	if retryNumber <= 0 {
		return 0
	}

	backoff := float64(cfg.InitialBackoff) * math.Pow(cfg.Multiplier, float64(retryNumber-1))
	if cfg.MaxBackoff > 0 && backoff > float64(cfg.MaxBackoff) {
		backoff = float64(cfg.MaxBackoff)
	}
	duration := time.Duration(backoff)

	if cfg.Jitter {
		jitterRange := float64(duration) * 0.25
		duration += time.Duration((rand.Float64() * 2 * jitterRange) - jitterRange)

		if cfg.MaxBackoff > 0 && duration > cfg.MaxBackoff {
			duration = cfg.MaxBackoff
		}
		if duration < 0 {
			duration = 0
		}
	}

	return duration
}
