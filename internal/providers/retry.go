package providers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"
)

// HTTPError carries the status code and optional Retry-After duration
// of a failed outbound call, grounded on the teacher's HTTPError type
// referenced throughout internal/providers (the teacher's own copy was
// outside the retrieved pack subset, so this is authored fresh in its
// idiom rather than copied).
type HTTPError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	return "provider http error: status " + strconv.Itoa(e.StatusCode) + ": " + e.Body
}

// Retryable reports whether this status code is worth retrying: 429
// and any 5xx.
func (e *HTTPError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// ParseRetryAfter parses a Retry-After header value (seconds, the only
// form the providers in this pack emit).
func ParseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// RetryConfig bounds the backoff loop every provider's doRequest runs.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig matches the teacher's conservative outbound-call
// policy: a handful of attempts, short exponential backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: 250 * time.Millisecond, MaxDelay: 4 * time.Second}
}

// RetryDo runs fn up to cfg.MaxAttempts times, honoring ctx
// cancellation and an HTTPError's RetryAfter/Retryable signal between
// attempts. It gives up immediately on any error that is not an
// *HTTPError or is an HTTPError that isn't Retryable.
func RetryDo(ctx context.Context, cfg RetryConfig, fn func() (ChatResponse, error)) (ChatResponse, error) {
	var lastErr error
	delay := cfg.BaseDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		resp, err := fn()
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var httpErr *HTTPError
		if !errors.As(err, &httpErr) || !httpErr.Retryable() || attempt == cfg.MaxAttempts {
			return ChatResponse{}, err
		}

		wait := delay
		if httpErr.RetryAfter > 0 {
			wait = httpErr.RetryAfter
		}
		if wait > cfg.MaxDelay {
			wait = cfg.MaxDelay
		}

		select {
		case <-ctx.Done():
			return ChatResponse{}, ctx.Err()
		case <-time.After(wait):
		}
		delay *= 2
	}
	return ChatResponse{}, lastErr
}
