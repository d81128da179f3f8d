// Package retry implements the exponential-backoff policy used by the
// chunk extraction workers. The policy is a plain value and the sleep
// is injectable, so retry behavior is testable with a fake clock.
package retry

import (
	"context"
	"time"
)

// Policy describes a bounded exponential backoff: up to MaxAttempts
// tries, sleeping BaseDelay after the first failure and multiplying
// the delay by Multiplier after each subsequent one.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// DefaultPolicy matches the pipeline defaults: 3 attempts, 1s base
// delay, doubling.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Multiplier:  2,
	}
}

// SleepFunc suspends the calling goroutine for d, honoring ctx
// cancellation. Tests substitute a recording fake.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the production SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs fn until it succeeds or the policy's attempts are exhausted,
// sleeping between failures. It returns the last error when all
// attempts fail, and the context error when cancelled mid-backoff.
func Do(ctx context.Context, policy Policy, sleep SleepFunc, fn func(ctx context.Context) error) error {
	if sleep == nil {
		sleep = Sleep
	}
	delay := policy.BaseDelay

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}

		if attempt == policy.MaxAttempts {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
		delay = time.Duration(float64(delay) * policy.Multiplier)
	}
	return lastErr
}
