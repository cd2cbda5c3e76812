// Package provider holds transport plumbing shared by the external
// time-series API clients: bounded retry with exponential backoff and a
// per-provider circuit breaker.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// Backoff controls retry behaviour between failed attempts.
type Backoff struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultBackoff bounds retries so one slow provider cannot stall a batch:
// at most 2 retries, 500ms doubling to 2s.
func DefaultBackoff() Backoff {
	return Backoff{
		MaxRetries:      2,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// NewBreaker creates a circuit breaker with the settings used by all
// provider clients.
func NewBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
	})
}

// ErrRejected marks an HTTP-level rejection (non-2xx status), as opposed to
// a malformed but accepted response body.
var ErrRejected = errors.New("request rejected")

var errCircuitOpen = errors.New("circuit breaker open")

// rejectedError carries the status code and whether a retry can help.
type rejectedError struct {
	status    int
	retryable bool
}

func (e *rejectedError) Error() string { return fmt.Sprintf("request rejected: status %d", e.status) }
func (e *rejectedError) Unwrap() error { return ErrRejected }

// Do executes the request built by buildRequest with retries, exponential
// backoff, and the given circuit breaker. Rate limits (429) and server
// errors (5xx) are retried; other non-2xx statuses fail immediately with an
// error wrapping ErrRejected. The caller owns the returned body.
func Do(ctx context.Context, client *http.Client, cb *gobreaker.CircuitBreaker, backoff Backoff, buildRequest func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := buildRequest()
		if err != nil {
			return nil, err
		}
		req = req.WithContext(ctx)

		result, err := cb.Execute(func() (any, error) {
			resp, execErr := client.Do(req)
			if execErr != nil {
				return nil, execErr
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				resp.Body.Close()
				retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
				return nil, &rejectedError{status: resp.StatusCode, retryable: retryable}
			}
			return resp, nil
		})

		if err == nil {
			resp, ok := result.(*http.Response)
			if !ok {
				return nil, errors.New("unexpected result type from circuit breaker")
			}
			return resp, nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}

		var rejected *rejectedError
		if errors.As(err, &rejected) && !rejected.retryable {
			return nil, err
		}

		lastErr = err
		if attempt >= backoff.MaxRetries {
			return nil, lastErr
		}

		delay := backoff.InitialInterval << attempt
		if backoff.MaxInterval > 0 && delay > backoff.MaxInterval {
			delay = backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
