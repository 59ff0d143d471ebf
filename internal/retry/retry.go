// Package retry provides exponential backoff delays.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Config holds backoff configuration.
type Config struct {
	InitialWait time.Duration // Wait before the first retry
	MaxWait     time.Duration // Upper bound for any wait
	Multiplier  float64       // Backoff multiplier
	Jitter      float64       // Jitter factor (0-1)
}

// DefaultConfig returns the push-channel reconnect defaults.
func DefaultConfig() Config {
	return Config{
		InitialWait: time.Second,
		MaxWait:     30 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.1,
	}
}

// Delay returns the wait before retry number attempt (1-based).
func (c Config) Delay(attempt int) time.Duration {
	return c.delay(attempt, rand.Float64)
}

func (c Config) delay(attempt int, random func() float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	multiplier := c.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	wait := float64(c.InitialWait) * math.Pow(multiplier, float64(attempt-1))
	if c.MaxWait > 0 && wait > float64(c.MaxWait) {
		wait = float64(c.MaxWait)
	}

	if c.Jitter > 0 {
		wait += wait * c.Jitter * (random()*2 - 1)
	}
	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}

// Wait blocks for d or until ctx is done.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
