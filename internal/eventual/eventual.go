// Package eventual implements the Eventual[T] primitive: a value-bearing
// stream produced by a periodic task. Readers either take the current value
// (blocking once until the first value arrives) or join several eventuals
// into a composite that fires once every input has produced a fresh value
// since the last firing.
package eventual

import (
	"context"
	"sync"
	"time"

	"indexer-agent/internal/logger"
	"indexer-agent/internal/retry"
)

// Eventual holds the latest value produced by a periodic refresh task.
type Eventual[T any] struct {
	mu      sync.Mutex
	val     T
	ready   bool
	waiters chan struct{}
}

// New creates an empty Eventual. Most callers want Timer instead, which also
// wires up the periodic refresh.
func New[T any]() *Eventual[T] {
	return &Eventual[T]{waiters: make(chan struct{})}
}

// Set publishes a new value and wakes every pending reader and Changed()
// watcher.
func (e *Eventual[T]) Set(v T) {
	e.mu.Lock()
	e.val = v
	e.ready = true
	old := e.waiters
	e.waiters = make(chan struct{})
	e.mu.Unlock()
	close(old)
}

// Latest returns the current value without blocking; ok is false if no value
// has ever been produced.
func (e *Eventual[T]) Latest() (v T, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.val, e.ready
}

// Ready reports whether the eventual has produced at least one value.
func (e *Eventual[T]) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready
}

// Changed returns a channel that closes the next time Set is called. Used to
// build Pipe/Join composites; not generally useful to application code.
func (e *Eventual[T]) Changed() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.waiters
}

// Value blocks until the eventual has a value, or ctx is cancelled.
func (e *Eventual[T]) Value(ctx context.Context) (T, error) {
	for {
		e.mu.Lock()
		if e.ready {
			v := e.val
			e.mu.Unlock()
			return v, nil
		}
		ch := e.waiters
		e.mu.Unlock()

		select {
		case <-ch:
			continue
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// Timer drives an Eventual from a periodic fetch, wrapped in the standard
// retry envelope (5 attempts, 10s backoff cap). A failure that exhausts
// retries retains the previous value and logs a warning rather than
// propagating, per the Network View refresh policy.
func Timer[T any](ctx context.Context, interval time.Duration, log logger.Logger, fetch func(ctx context.Context) (T, error)) *Eventual[T] {
	e := New[T]()

	refresh := func() {
		v, err := retry.DoValue(ctx, func() (T, error) { return fetch(ctx) })
		if err != nil {
			log.Warningf("eventual refresh exhausted retries, retaining previous value: %s", err.Error())
			return
		}
		e.Set(v)
	}

	go func() {
		refresh()

		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				refresh()
			}
		}
	}()

	return e
}
