package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoopRestartsOnError(t *testing.T) {
	var calls int32
	task := func(ctx context.Context) error {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			return errors.New("boom")
		}
		return nil
	}

	loop := NewLoop("test", task, RestartPolicy{Initial: time.Millisecond, Max: 5 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	loop.Start(ctx)
	// Let the loop run its restarts before stopping it; the third call
	// returns nil, which ends the loop on its own.
	for atomic.LoadInt32(&calls) < 3 && ctx.Err() == nil {
		time.Sleep(time.Millisecond)
	}
	loop.Stop()

	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestLoopStopsOnCancel(t *testing.T) {
	task := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	ctx, cancel := context.WithCancel(context.Background())
	loop := NewLoop("test", task, DefaultRestartPolicy)
	loop.Start(ctx)
	cancel()
	loop.Stop()
}

func TestWorkerPoolBoundsConcurrency(t *testing.T) {
	pool := NewWorkerPool(2)
	var running int32
	var maxSeen int32

	ctx := context.Background()
	done := make(chan struct{})
	for i := 0; i < 6; i++ {
		go func() {
			_ = pool.Submit(ctx, func() {
				n := atomic.AddInt32(&running, 1)
				for {
					old := atomic.LoadInt32(&maxSeen)
					if n <= old || atomic.CompareAndSwapInt32(&maxSeen, old, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&running, -1)
			})
			done <- struct{}{}
		}()
	}
	for i := 0; i < 6; i++ {
		<-done
	}

	if got := atomic.LoadInt32(&maxSeen); got > 2 {
		t.Errorf("max concurrency = %d, want <= 2", got)
	}
}

func TestJitterWithinBounds(t *testing.T) {
	base := 100 * time.Millisecond
	spread := 20 * time.Millisecond
	for i := 0; i < 50; i++ {
		d := Jitter(base, spread)
		if d < base-spread || d > base+spread {
			t.Fatalf("jitter out of bounds: %v", d)
		}
	}
}
