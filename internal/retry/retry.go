// Package retry retries rate-limited API calls with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"
)

const (
	// DefaultMaxRetries is the number of extra attempts after the first call.
	DefaultMaxRetries = 3
	// DefaultBaseDelay is the wait before the first retry.
	DefaultBaseDelay = time.Second
)

// StatusError is an HTTP failure with an explicit status code.
type StatusError struct {
	Status  int
	Message string
	Err     error
}

// NewStatusError builds a StatusError from a status code and response text.
func NewStatusError(status int, message string) *StatusError {
	return &StatusError{Status: status, Message: message}
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.Status)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// IsRateLimited reports whether err carries HTTP 429.
func IsRateLimited(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status == http.StatusTooManyRequests
	}
	return false
}

// Policy controls how many times and how long Do waits between attempts.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	// Notify, when set, is called before each backoff sleep.
	Notify func(attempt int, delay time.Duration, err error)
}

// Default returns the standard policy: 3 retries starting at one second.
func Default() Policy {
	return Policy{MaxRetries: DefaultMaxRetries, BaseDelay: DefaultBaseDelay}
}

func (p Policy) normalized() Policy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	return p
}

// Backoff returns the wait before retry number attempt (zero based).
func (p Policy) Backoff(attempt int) time.Duration {
	p = p.normalized()
	if attempt < 0 {
		attempt = 0
	}
	return time.Duration(float64(p.BaseDelay) * math.Pow(2, float64(attempt)))
}

// ShouldRetry decides whether err on the given attempt earns another try.
func (p Policy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.normalized().MaxRetries {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return IsRateLimited(err)
}

// Do runs fn, retrying only rate-limited failures. The last error is
// returned unchanged once retries are exhausted.
func Do[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	p = p.normalized()
	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if !p.ShouldRetry(err, attempt) {
			return result, err
		}
		delay := p.Backoff(attempt)
		if p.Notify != nil {
			p.Notify(attempt+1, delay, err)
		}
		if sleepErr := Sleep(ctx, delay); sleepErr != nil {
			return result, err
		}
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
