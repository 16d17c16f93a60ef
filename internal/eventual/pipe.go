package eventual

import (
	"context"
	"sync"
)

// Source is the subset of Eventual[T] needed to join it into a Pipe,
// independent of its value type.
type Source interface {
	Changed() <-chan struct{}
}

// Pipe watches a set of eventuals and invokes handler each time every one of
// them has produced a fresh value since the last invocation. At most one
// invocation of handler runs at a time; firings that arrive while handler is
// running are collapsed into a single pending invocation rather than queued.
func Pipe(ctx context.Context, sources []Source, handler func()) {
	fresh := make([]bool, len(sources))
	var mu sync.Mutex
	trigger := make(chan struct{}, 1)

	allFresh := func() bool {
		for _, f := range fresh {
			if !f {
				return false
			}
		}
		return true
	}

	for i, s := range sources {
		// Take the first watch channel before returning, so a Set made right
		// after Pipe returns is not missed.
		ch := s.Changed()
		go func(i int, s Source, ch <-chan struct{}) {
			for {
				select {
				case <-ch:
					ch = s.Changed()
					mu.Lock()
					fresh[i] = true
					ready := allFresh()
					mu.Unlock()
					if ready {
						select {
						case trigger <- struct{}{}:
						default:
						}
					}
				case <-ctx.Done():
					return
				}
			}
		}(i, s, ch)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-trigger:
				mu.Lock()
				for i := range fresh {
					fresh[i] = false
				}
				mu.Unlock()
				handler()
			}
		}
	}()
}
