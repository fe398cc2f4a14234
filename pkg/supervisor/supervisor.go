// Package supervisor runs long-lived loops under cooperative cancellation
// and restarts crashed ones with exponential backoff. Grounded on the
// queue.WorkerPool/Worker shutdown and poll-jitter pattern (stopCh +
// sync.Once + sync.WaitGroup, jittered poll interval), generalized from
// "claim a DB row, execute it" to "run an arbitrary task until it returns".
package supervisor

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// Task is a long-running unit of work that should run until ctx is
// cancelled or it returns a terminal error.
type Task func(ctx context.Context) error

// RestartPolicy configures the backoff applied between Task restarts after
// an unhandled failure.
type RestartPolicy struct {
	Initial time.Duration // e.g. 1s
	Max     time.Duration // e.g. 10s
}

// DefaultRestartPolicy matches the producer manager's 1s->10s cap (§4.1).
var DefaultRestartPolicy = RestartPolicy{Initial: time.Second, Max: 10 * time.Second}

// Loop is a single supervised Task: it restarts the task with exponential
// backoff whenever it returns a non-nil, non-context error, and exits
// cleanly once ctx is cancelled.
type Loop struct {
	name     string
	task     Task
	policy   RestartPolicy
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

// NewLoop builds a supervised loop around task, identified by name in logs.
func NewLoop(name string, task Task, policy RestartPolicy) *Loop {
	if policy.Initial <= 0 {
		policy = DefaultRestartPolicy
	}
	return &Loop{
		name:   name,
		task:   task,
		policy: policy,
		stopCh: make(chan struct{}),
	}
}

// Start runs the loop in a goroutine.
func (l *Loop) Start(ctx context.Context) {
	ctx, l.cancel = context.WithCancel(ctx)
	l.wg.Add(1)
	go l.run(ctx)
}

// Stop signals the loop to stop and waits for the current task invocation
// to observe cancellation and return.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
		if l.cancel != nil {
			l.cancel()
		}
	})
	l.wg.Wait()
}

func (l *Loop) run(ctx context.Context) {
	defer l.wg.Done()

	log := slog.With("task", l.name)
	backoff := l.policy.Initial

	for {
		select {
		case <-l.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		err := l.task(ctx)
		if err == nil || ctx.Err() != nil {
			return
		}

		log.Error("task failed, restarting", "error", err, "backoff", backoff)
		select {
		case <-l.stopCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > l.policy.Max {
			backoff = l.policy.Max
		}
	}
}

// Jitter returns base +/- spread, clamped to be non-negative. Used by poll
// loops (consumer group block intervals, producer poll intervals) to avoid
// thundering-herd synchronization across roles.
func Jitter(base, spread time.Duration) time.Duration {
	if spread <= 0 {
		return base
	}
	offset := time.Duration(rand.Int64N(int64(2 * spread)))
	d := base - spread + offset
	if d < 0 {
		return 0
	}
	return d
}
