package services

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"trend-scan/observability"
)

type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	Multiplier     float64
	JitterFraction float64
}

// DefaultRetryConfig backs off 1s, 2.5s, 6.25s with up to 20% jitter
// added to each delay.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:    3,
	InitialBackoff: 1 * time.Second,
	Multiplier:     2.5,
	JitterFraction: 0.2,
}

// WithRetry runs fn up to MaxAttempts times, sleeping a jittered
// geometric backoff between attempts. Errors that IsRetryable rejects
// return immediately without burning the remaining attempts.
func WithRetry(ctx context.Context, config RetryConfig, fn func() error) error {
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
			case <-time.After(jitter(backoff, config.JitterFraction)):
			}
			backoff = time.Duration(float64(backoff) * config.Multiplier)
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if !IsRetryable(err) {
			return err
		}
		if attempt < config.MaxAttempts {
			observability.Debug("retrying after failure",
				"attempt", attempt,
				"max_attempts", config.MaxAttempts,
				"error", err)
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", config.MaxAttempts, lastErr)
}

// jitter adds a uniform random fraction of d, never subtracting
func jitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return d
	}
	return d + time.Duration(rand.Float64()*fraction*float64(d))
}
