package provider

import (
	"context"
	"time"
)

// RetryPolicy retries transient provider failures with linear backoff.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// Do runs fn until it succeeds, fails permanently, or retries run out.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn(ctx)
		if err == nil || !IsRetryable(err) || attempt >= p.MaxRetries {
			return err
		}

		wait := p.Backoff * time.Duration(attempt+1)
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
