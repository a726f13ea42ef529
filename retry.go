package netguard

import (
	"context"
	"time"
)

// Operation is one retryable unit of work: typically "sanitize + trust-check
// + dispatch one request". The whole operation is re-run on every attempt, so
// a redirect block discovered mid-retry is re-evaluated, never bypassed.
type Operation func(ctx context.Context) ([]byte, error)

// RetryOptions bounds a WithRetry call.
type RetryOptions struct {
	// Count is the number of retries after the initial attempt.
	Count int
	// Delay is the wait before the first retry.
	Delay time.Duration
	// UseBackoff doubles the delay on every further retry.
	UseBackoff bool
	// MaxDelay caps the backoff growth; zero means 30s.
	MaxDelay time.Duration
	// OnRetry is invoked before each retry with the 1-based attempt number
	// and the error that triggered it.
	OnRetry func(attempt int, err error)
}

const defaultMaxDelay = 30 * time.Second

// WithRetry runs op, re-attempting on retryable failures (transient and
// timeout kinds) up to opts.Count extra times. Non-retryable failures and
// context cancellation stop the loop immediately. The loop is a bounded
// iteration, not recursion, so stack depth is constant regardless of Count.
//
// Stale-cache fallback is a separate mechanism and must not be layered on
// top of this: the cache silently returns old data, WithRetry re-attempts a
// fresh call.
func WithRetry(ctx context.Context, op Operation, opts RetryOptions) ([]byte, error) {
	attemptsUsed := 0
	for {
		data, err := op(ctx)
		if err == nil {
			return data, nil
		}
		if !retryable(err) || attemptsUsed >= opts.Count || ctx.Err() != nil {
			return nil, err
		}
		attemptsUsed++
		if opts.OnRetry != nil {
			opts.OnRetry(attemptsUsed, err)
		}
		if d := backoffDelay(opts, attemptsUsed); d > 0 {
			t := time.NewTimer(d)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return nil, err
			}
		}
	}
}

// backoffDelay computes the wait before retry number attemptsUsed (1-based):
// a constant Delay, or Delay * 2^(attemptsUsed-1) with backoff enabled.
func backoffDelay(opts RetryOptions, attemptsUsed int) time.Duration {
	d := opts.Delay
	if !opts.UseBackoff || d <= 0 {
		return d
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}
	for i := 1; i < attemptsUsed; i++ {
		d *= 2
		if d >= maxDelay {
			return maxDelay
		}
	}
	return d
}
