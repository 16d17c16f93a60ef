package eventual

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"indexer-agent/internal/logger"
)

func TestLatestIsUnreadyBeforeFirstSet(t *testing.T) {
	g := NewWithT(t)

	e := New[int]()
	_, ok := e.Latest()
	g.Expect(ok).To(BeFalse())
	g.Expect(e.Ready()).To(BeFalse())
}

func TestSetMakesValueAvailable(t *testing.T) {
	g := NewWithT(t)

	e := New[string]()
	e.Set("first")

	v, ok := e.Latest()
	g.Expect(ok).To(BeTrue())
	g.Expect(v).To(Equal("first"))
	g.Expect(e.Ready()).To(BeTrue())

	e.Set("second")
	v, _ = e.Latest()
	g.Expect(v).To(Equal("second"))
}

func TestValueBlocksUntilSet(t *testing.T) {
	g := NewWithT(t)

	e := New[int]()
	done := make(chan int, 1)
	go func() {
		v, err := e.Value(context.Background())
		g.Expect(err).NotTo(HaveOccurred())
		done <- v
	}()

	time.Sleep(20 * time.Millisecond)
	e.Set(42)

	select {
	case v := <-done:
		g.Expect(v).To(Equal(42))
	case <-time.After(time.Second):
		t.Fatal("Value did not unblock after Set")
	}
}

func TestValueReturnsImmediatelyWhenAlreadyReady(t *testing.T) {
	g := NewWithT(t)

	e := New[int]()
	e.Set(7)

	v, err := e.Value(context.Background())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(v).To(Equal(7))
}

func TestValueRespectsContextCancellation(t *testing.T) {
	g := NewWithT(t)

	e := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := e.Value(ctx)
	g.Expect(err).To(MatchError(context.DeadlineExceeded))
}

func TestChangedClosesOnSet(t *testing.T) {
	g := NewWithT(t)

	e := New[int]()
	ch := e.Changed()

	select {
	case <-ch:
		t.Fatal("Changed channel closed before any Set")
	default:
	}

	e.Set(1)
	select {
	case <-ch:
	default:
		t.Fatal("Changed channel did not close after Set")
	}
}

func TestTimerPeriodicallyRefreshesValue(t *testing.T) {
	g := NewWithT(t)

	var calls int32
	fetch := func(ctx context.Context) (int, error) {
		return int(atomic.AddInt32(&calls, 1)), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := Timer(ctx, 10*time.Millisecond, logger.New("debug"), fetch)

	g.Eventually(func() bool { return e.Ready() }, time.Second, 5*time.Millisecond).Should(BeTrue())
	g.Eventually(func() int32 { return atomic.LoadInt32(&calls) }, time.Second, 5*time.Millisecond).Should(BeNumerically(">=", 2))

	v, ok := e.Latest()
	g.Expect(ok).To(BeTrue())
	g.Expect(v).To(BeNumerically(">=", 1))
}

func TestTimerNeverBecomesReadyWhenFetchAlwaysFails(t *testing.T) {
	g := NewWithT(t)

	fetch := func(ctx context.Context) (int, error) {
		return 0, errors.New("upstream unavailable")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := Timer(ctx, 5*time.Millisecond, logger.New("debug"), fetch)

	time.Sleep(50 * time.Millisecond)
	_, ok := e.Latest()
	g.Expect(ok).To(BeFalse())
}

func TestTimerStopsRefreshingAfterContextCancelled(t *testing.T) {
	g := NewWithT(t)

	var calls int32
	fetch := func(ctx context.Context) (int, error) {
		return int(atomic.AddInt32(&calls, 1)), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := Timer(ctx, 10*time.Millisecond, logger.New("debug"), fetch)

	g.Eventually(func() bool { return e.Ready() }, time.Second, 5*time.Millisecond).Should(BeTrue())
	cancel()

	countAtCancel := atomic.LoadInt32(&calls)
	time.Sleep(50 * time.Millisecond)
	g.Expect(atomic.LoadInt32(&calls)).To(BeNumerically("<=", countAtCancel+1))
}
