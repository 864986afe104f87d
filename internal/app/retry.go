package app

import (
	"context"
	"errors"
	"time"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/metrics"
)

// RetryPolicy bounds a storage call: each try gets Timeout, transient failures are retried up to
// Attempts total tries with exponential Backoff.
type RetryPolicy struct {
	Timeout  time.Duration
	Attempts int
	Backoff  time.Duration
}

// DefaultRetryPolicy is used when the caller leaves the policy empty.
var DefaultRetryPolicy = RetryPolicy{Timeout: 2 * time.Second, Attempts: 3, Backoff: 25 * time.Millisecond}

func (p RetryPolicy) do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		}
		err = fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			err = domain.Transient(err)
		}
		if !domain.IsTransient(err) {
			return err
		}
		if i < attempts-1 {
			metrics.StoreRetries.Inc()
			if serr := sleepCtx(ctx, p.Backoff<<i); serr != nil {
				return serr
			}
		}
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
