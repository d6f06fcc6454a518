// Package retry runs an operation again after transient failures with an
// exponential backoff between attempts.
package retry

import (
	"context"
	"time"
)

type Policy struct {
	Attempts     int
	InitialDelay time.Duration
	Multiplier   float64
	// Retryable decides whether err is worth another attempt. Nil retries
	// every error.
	Retryable func(error) bool
	// OnRetry is called before sleeping ahead of attempt next of max.
	OnRetry func(next, max int, err error)
}

// DefaultPolicy waits 1s, then 2s, across three attempts.
func DefaultPolicy() Policy {
	return Policy{Attempts: 3, InitialDelay: time.Second, Multiplier: 2}
}

// Delay returns the wait before attempt n+1, for n starting at 1.
func (p Policy) Delay(n int) time.Duration {
	delay := float64(p.InitialDelay)
	mult := p.Multiplier
	if mult <= 0 {
		mult = 1
	}
	for i := 1; i < n; i++ {
		delay *= mult
	}
	return time.Duration(delay)
}

// Do calls fn until it succeeds, returns a non-retryable error, runs out of
// attempts, or ctx is done. The last error is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for n := 1; n <= attempts; n++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if n == attempts || (p.Retryable != nil && !p.Retryable(err)) {
			return err
		}
		if p.OnRetry != nil {
			p.OnRetry(n+1, attempts, err)
		}
		if sleepErr := sleep(ctx, p.Delay(n)); sleepErr != nil {
			return err
		}
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
