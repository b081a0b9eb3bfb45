package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mavrika/mavrika/internal/log"
)

// RetryConfig configures the retry behavior shared by the embedding and
// completion clients. One policy for both, so the backoff semantics cannot
// drift apart.
type RetryConfig struct {
	MaxAttempts     int           // Total attempts, including the first
	InitialInterval time.Duration // Initial backoff interval
	MaxInterval     time.Duration // Maximum backoff interval
}

// DefaultRetryConfig returns sensible defaults for provider API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		InitialInterval: 1 * time.Second,
		MaxInterval:     10 * time.Second,
	}
}

// withDefaults fills zero values with defaults.
func (c RetryConfig) withDefaults() RetryConfig {
	d := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = d.InitialInterval
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = d.MaxInterval
	}
	return c
}

// unauthorizedError reports whether an error is a credential failure.
// These fail immediately: retrying cannot fix a missing or rejected key.
func unauthorizedError(err error) bool {
	if err == nil {
		return false
	}
	return containsAny(err.Error(),
		"401", "403", "unauthorized", "unauthenticated",
		"permission denied", "api key", "invalid authentication")
}

// retryableError reports whether an error is transient and worth retrying.
func retryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()

	// Rate limits.
	if containsAny(errStr, "rate limit", "quota exceeded", "429") {
		return true
	}

	// Transient server errors.
	if containsAny(errStr, "500", "502", "503", "504", "unavailable", "overloaded") {
		return true
	}

	// Network errors.
	if containsAny(errStr, "connection reset", "connection refused", "timeout", "temporary", "EOF") {
		return true
	}

	return false
}

// containsAny checks if s contains any of the substrings (case-insensitive).
func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// do runs fn with exponential backoff, classifying each error:
//   - credential failures return immediately wrapped in ErrUnauthorized
//   - non-retryable errors return immediately
//   - retryable errors back off and retry until the budget is exhausted,
//     then return wrapped in ErrUnavailable
func (c RetryConfig) do(ctx context.Context, logger log.Logger, op string, fn func(context.Context) error) error {
	cfg := c.withDefaults()

	var lastErr error
	delay := cfg.InitialInterval
	start := time.Now()

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Debug("provider call recovered",
					"op", op,
					"attempts", attempt,
					"elapsed", time.Since(start))
			}
			return nil
		}

		if unauthorizedError(err) {
			return fmt.Errorf("%w: %s: %w", ErrUnauthorized, op, err)
		}

		if !retryableError(err) {
			return fmt.Errorf("%s: %w", op, err)
		}

		lastErr = err
		if attempt == cfg.MaxAttempts {
			break
		}

		logger.Debug("retrying provider call",
			"op", op,
			"attempt", attempt,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: context canceled during retry: %w", op, ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, cfg.MaxInterval)
		}
	}

	return fmt.Errorf("%w: %s after %d attempts (elapsed: %v): %w",
		ErrUnavailable, op, cfg.MaxAttempts, time.Since(start), lastErr)
}
