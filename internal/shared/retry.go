package shared

import (
	"context"
	"time"
)

// RetryPolicy describes a bounded retry loop.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
	// Backoff doubles the delay after every failed attempt when set.
	Backoff bool
}

// Retry calls fn until it succeeds, returns a non-retryable error, the attempt
// budget is exhausted, or ctx is done. The last error is returned.
func Retry(ctx context.Context, p RetryPolicy, retryable func(error) bool, fn func(ctx context.Context, attempt int) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := p.Delay

	var err error
	for i := 1; i <= attempts; i++ {
		err = fn(ctx, i)
		if err == nil {
			return nil
		}
		if i == attempts || (retryable != nil && !retryable(err)) {
			return err
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return err
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return err
		}
		if p.Backoff {
			delay *= 2
		}
	}
	return err
}
