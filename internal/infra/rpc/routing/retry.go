// Package routing decides whether a failed node query is worth repeating
// and repeats it with exponential backoff.
package routing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/vietddude/zkagent/internal/infra/rpc/provider"
)

// RetryConfig defines retry behavior.
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// DefaultRetryConfig suits interactive tool calls: a few quick attempts.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     3,
	InitialDelay:    200 * time.Millisecond,
	MaxDelay:        2 * time.Second,
	BackoffMultiple: 2.0,
}

// ErrorAction determines how to handle an error.
type ErrorAction int

const (
	ActionRetry ErrorAction = iota
	ActionBackOff
	ActionFatal
)

func (a ErrorAction) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionBackOff:
		return "back_off"
	default:
		return "fatal"
	}
}

// ClassifyError determines the action for a given error.
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionRetry // Should not happen
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ActionFatal
	}

	var httpErr *provider.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusTooManyRequests:
			return ActionBackOff
		case httpErr.StatusCode >= 400 && httpErr.StatusCode < 500:
			// The request itself is wrong, or the answer is "not found".
			return ActionFatal
		}
		return ActionRetry
	}

	sLower := strings.ToLower(err.Error())
	if strings.Contains(sLower, "429") || strings.Contains(sLower, "rate limit") ||
		strings.Contains(sLower, "403") || strings.Contains(sLower, "throttle") ||
		strings.Contains(sLower, "unavailable, retry after") {
		return ActionBackOff
	}
	if strings.Contains(sLower, "parse response") {
		return ActionFatal
	}

	// Default to Retry (Network, 5xx, etc)
	return ActionRetry
}

// Do runs fn until it succeeds, the error is not retryable, or attempts run out.
// Throttling is reported immediately; the provider monitor handles its cool-down.
func Do(ctx context.Context, config RetryConfig, fn func(ctx context.Context) error) error {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if action := ClassifyError(err); action != ActionRetry {
			return err
		}
		if attempt == config.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(calculateBackoff(attempt, config)):
		}
	}

	if config.MaxAttempts == 1 {
		return lastErr
	}
	return fmt.Errorf("failed after %d attempts: %w", config.MaxAttempts, lastErr)
}

func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	delay := float64(config.InitialDelay) * math.Pow(config.BackoffMultiple, float64(attempt))
	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}
	return time.Duration(delay)
}
