package resilience

import (
	"context"
	"time"
)

// RetryPolicy retries a failing call with a fixed pause between attempts.
// It suits short idempotent operations like store writes; completion
// calls get the exponential backoff in pkg/llm instead.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

func NewRetryPolicy(maxRetries int, backoff time.Duration) RetryPolicy {
	if maxRetries <= 0 {
		maxRetries = 2
	}
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	return RetryPolicy{MaxRetries: maxRetries, Backoff: backoff}
}

// Do runs fn up to MaxRetries+1 times, returning nil on the first success
// and the last error once attempts run out. A canceled ctx wins over both.
func (r RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := r.MaxRetries + 1
	var err error
	for remaining := attempts; remaining > 0; remaining-- {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err = fn(); err == nil {
			return nil
		}
		if remaining > 1 {
			if werr := r.wait(ctx); werr != nil {
				return werr
			}
		}
	}
	return err
}

func (r RetryPolicy) wait(ctx context.Context) error {
	timer := time.NewTimer(r.Backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
