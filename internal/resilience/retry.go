// Package resilience wraps upstream calls with retry, circuit breaking, and
// pooled HTTP transport.
package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/dotrep-labs/reputation-engine/internal/errors"
)

// RetryConfig controls backoff behavior for upstream calls.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        bool
	Retryable     func(error) bool
}

// DefaultRetryConfig is the policy used for the XCM gateway and DKG node.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
		Retryable:     errors.IsRetryableError,
	}
}

// Retry executes fn with exponential backoff until it succeeds, exhausts the
// attempt budget, hits a non-retryable error, or the context is cancelled.
func Retry(ctx context.Context, config RetryConfig, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if config.Retryable != nil && !config.Retryable(err) {
			break
		}
		if attempt == config.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoffDelay(config, attempt)):
		}
	}

	return lastErr
}

func backoffDelay(config RetryConfig, attempt int) time.Duration {
	delay := time.Duration(float64(config.InitialDelay) * math.Pow(config.BackoffFactor, float64(attempt)))
	if delay > config.MaxDelay {
		delay = config.MaxDelay
	}
	if config.Jitter && delay > 10 {
		// Up to 10% jitter to avoid thundering herd on recovery.
		delay += time.Duration(rand.Int63n(int64(delay / 10)))
	}
	return delay
}
