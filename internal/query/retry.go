package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ctfd_ip_scan/internal/logging"
)

// errRateLimited is returned when the lookup service answers 429.
var errRateLimited = errors.New("too many requests")

// isRetryableError reports whether a failed lookup is worth another attempt.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errRateLimited) {
		return true
	}

	errMsg := strings.ToLower(err.Error())
	retryableErrors := []string{
		"rate limit",
		"too many requests",
		"quota exceeded",
	}
	for _, retryableErr := range retryableErrors {
		if strings.Contains(errMsg, retryableErr) {
			return true
		}
	}
	return false
}

// retryWithBackoff runs queryFunc up to retries+1 times. Only retryable errors are
// retried; the wait grows linearly (delay, 2*delay, ...) and stops early when ctx ends.
func retryWithBackoff(ctx context.Context, target string, retries int, delay time.Duration, queryFunc func() (string, error)) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= retries+1; attempt++ {
		result, err := queryFunc()
		if err == nil {
			if attempt > 1 {
				logging.Debug().Str("ip", target).Int("retries", attempt-1).Msg("lookup succeeded after retry")
			}
			return result, nil
		}
		lastErr = err

		if !isRetryableError(err) || attempt > retries {
			break
		}

		wait := time.Duration(attempt) * delay
		logging.Warn().Str("ip", target).Int("attempt", attempt).Dur("wait", wait).Err(err).Msg("lookup throttled, retrying")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	if retries > 0 && isRetryableError(lastErr) {
		return "", fmt.Errorf("still failing after %d retries: %w", retries, lastErr)
	}
	return "", lastErr
}
