package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultTaskTimeout bounds a single background task.
const DefaultTaskTimeout = 2 * time.Minute

// BackgroundTasks runs fire-and-forget work (long-term memory writes,
// session archiving) off the reply path. Failures are logged and never
// reach the turn that scheduled them.
type BackgroundTasks struct {
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewBackgroundTasks returns a spawner whose tasks each get their own
// timeout, detached from the caller's context.
func NewBackgroundTasks(timeout time.Duration, logger *slog.Logger) *BackgroundTasks {
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BackgroundTasks{timeout: timeout, logger: logger}
}

// Spawn implements schema.TaskSpawner.
func (b *BackgroundTasks) Spawn(name string, task func(ctx context.Context) error) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()

		start := time.Now()
		if err := b.run(ctx, task); err != nil {
			b.logger.Error("background task failed", "task", name, "err", err)
			return
		}
		b.logger.Debug("background task done", "task", name, "elapsed", time.Since(start))
	}()
}

func (b *BackgroundTasks) run(ctx context.Context, task func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return task(ctx)
}

// Wait blocks until every spawned task has returned.
func (b *BackgroundTasks) Wait() {
	b.wg.Wait()
}
