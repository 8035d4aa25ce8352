package storefront

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RetryConfig configures the retry behavior for idempotent reads.
type RetryConfig struct {
	MaxRetries      int           // Maximum number of retry attempts
	InitialInterval time.Duration // Initial backoff interval
	MaxInterval     time.Duration // Maximum backoff interval
}

// DefaultRetryConfig returns sensible defaults for transactional API reads.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      2,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// retryablePatterns groups transport error substrings by category.
// Matched case-insensitively against err.Error().
//
// NOTE: String matching is used because net/http and DNS errors do not
// expose stable sentinel errors for every transient failure mode.
var retryablePatterns = [][]string{
	{"connection reset", "connection refused", "broken pipe"}, // connection errors
	{"temporary", "unavailable"},                              // transient server hiccups
	{"eof"}, // server closed mid-response
}

// retryableError reports whether err is transient and worth another read
// attempt. Context expiry never retries: the caller's deadline is the
// per-call budget and it is already spent.
func retryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == 429 || apiErr.Status >= 500
	}

	errStr := err.Error()
	for _, group := range retryablePatterns {
		if containsAny(errStr, group...) {
			return true
		}
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

// withRetry executes fn with exponential backoff. Each attempt passes the
// rate limiter first, so retries cannot stampede a struggling backend.
// Only idempotent reads come through here; mutations get one attempt.
func (g *Gateway) withRetry(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	delay := g.retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= g.retry.MaxRetries; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}

		err := fn()
		if err == nil {
			if attempt > 0 {
				g.logger.Debug("read succeeded after retry",
					"operation", operation,
					"attempts", attempt+1,
					"elapsed", time.Since(start),
				)
			}
			return nil
		}

		lastErr = err

		if !retryableError(err) {
			return err
		}
		if attempt == g.retry.MaxRetries {
			break
		}

		g.logger.Debug("retrying after transient error",
			"operation", operation,
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, g.retry.MaxInterval)
		}
	}

	return fmt.Errorf("%s after %d retries (elapsed: %v): %w",
		operation, g.retry.MaxRetries, time.Since(start), lastErr)
}
