// Package retry implements the uniform retry-with-backoff envelope every
// upstream call (network subgraph, epoch subgraph, contract read, graph
// node) is wrapped in: up to 5 attempts, exponential backoff capped at 10s.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	maxAttempts = 5
	maxInterval = 10 * time.Second
)

// newBackOff builds the shared retry envelope. Do builds a fresh one per
// call since backoff.ExponentialBackOff is stateful.
func newBackOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.MaxInterval = maxInterval
	eb.MaxElapsedTime = 0 // bounded by attempt count instead, not wall clock
	return backoff.WithMaxRetries(eb, maxAttempts-1)
}

// Do runs fn, retrying on error up to 5 attempts total with exponential
// backoff capped at 10s between attempts. The last error is returned if all
// attempts are exhausted. fn is expected to check ctx itself on longer
// operations; Do also aborts immediately if ctx is cancelled between
// attempts.
func Do(ctx context.Context, fn func() error) error {
	return backoff.Retry(func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		return fn()
	}, backoff.WithContext(newBackOff(), ctx))
}

// DoValue is Do for call sites that return a value alongside the error.
func DoValue[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, func() error {
		v, err := fn()
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}
