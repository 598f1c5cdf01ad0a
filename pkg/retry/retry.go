// Package retry re-runs an operation whose failure was marked transient,
// waiting an exponentially growing, jittered delay between attempts.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

type transient struct{ err error }

func (t *transient) Error() string { return t.err.Error() }
func (t *transient) Unwrap() error { return t.err }

// Retryable marks err as transient. Errors not marked are returned at once.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &transient{err: err}
}

// IsRetryable reports whether err was marked with Retryable.
func IsRetryable(err error) bool {
	var t *transient
	return errors.As(err, &t)
}

func strip(err error) error {
	var t *transient
	if errors.As(err, &t) {
		return t.err
	}
	return err
}

// Policy describes how often and how patiently to retry.
type Policy struct {
	// Attempts is the total number of tries, the first included.
	Attempts int

	// BaseDelay is the wait after the first failure; it doubles per attempt
	// up to MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// Jitter spreads each delay by ±Jitter of its value, 0 to 1.
	Jitter float64

	// OnRetry runs before each wait.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// ProviderPolicy is tuned for a rate-limited public API: few attempts and
// waits long enough for a 429 to clear.
func ProviderPolicy(attempts int) Policy {
	return Policy{
		Attempts:  attempts,
		BaseDelay: 500 * time.Millisecond,
		MaxDelay:  4 * time.Second,
		Jitter:    0.2,
	}
}

// Do runs op until it succeeds, fails permanently, the attempts run out or
// ctx ends. The returned error is op's last error without the transient mark.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := max(p.Attempts, 1)

	var last error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if last != nil {
				return strip(last)
			}
			return err
		}

		last = op(ctx)
		if last == nil {
			return nil
		}
		if !IsRetryable(last) || attempt >= attempts {
			return strip(last)
		}

		wait := p.backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, strip(last), wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return strip(last)
		case <-timer.C:
		}
	}
}

// backoff returns the wait after the given failed attempt.
func (p Policy) backoff(attempt int) time.Duration {
	d := p.BaseDelay << (attempt - 1)
	if d <= 0 || (p.MaxDelay > 0 && d > p.MaxDelay) {
		d = p.MaxDelay
	}
	if p.Jitter > 0 {
		d += time.Duration(float64(d) * p.Jitter * (rand.Float64()*2 - 1))
	}
	return max(d, 0)
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err == nil {
			out = v
		}
		return err
	})
	return out, err
}
