// Package retry wraps transient operations in a bounded, constant-delay
// retry. It is only for idempotent work (status queries, element lookups);
// ledger writes carry their own bounded retry with a logging fallback.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// Do invokes op up to maxAttempts times, waiting delay between attempts,
// and returns the last error if every attempt fails.
func Do(ctx context.Context, maxAttempts int, delay time.Duration, op func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	attempt := 0
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(maxAttempts-1)),
		ctx,
	)
	return backoff.RetryNotify(func() error {
		attempt++
		return op()
	}, policy, func(err error, next time.Duration) {
		logrus.Warnf("operation failed, retrying in %s (%d/%d): %v", next, attempt, maxAttempts, err)
	})
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, maxAttempts int, delay time.Duration, op func() (T, error)) (T, error) {
	var out T
	err := Do(ctx, maxAttempts, delay, func() error {
		v, err := op()
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
