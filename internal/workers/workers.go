// Package workers provides the orchestrator's background cleanup loop: the
// periodic tasks that expire cached clients, purge old saved messages, reap
// dead worker containers, and retire orphaned session rows.
//
// Every task is cancellable through the context passed to Run and logs (not
// crashes) on per-iteration errors.
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/solanagram/solanagram/internal/logger"
)

// Task is one periodic cleanup job.
type Task struct {
	// Name identifies the task in logs.
	Name string

	// Interval is the tick period.
	Interval time.Duration

	// Run performs one iteration. Errors are logged and the loop goes on.
	Run func(ctx context.Context) error
}

// Cleaner drives a set of periodic tasks until its context is cancelled.
type Cleaner struct {
	tasks  []Task
	logger *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCleaner constructs a Cleaner over the given tasks.
func NewCleaner(log *logger.Logger, tasks ...Task) *Cleaner {
	return &Cleaner{tasks: tasks, logger: log}
}

// Start launches one goroutine per task. Stop (or cancelling ctx) ends all
// loops; Start is not restartable after Stop.
func (c *Cleaner) Start(ctx context.Context) {
	c.mu.Lock()
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	for _, task := range c.tasks {
		c.wg.Add(1)
		go c.loop(runCtx, task)
	}

	c.logger.Info().Int("tasks", len(c.tasks)).Msg("cleanup loop started")
}

func (c *Cleaner) loop(ctx context.Context, task Task) {
	defer c.wg.Done()

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := task.Run(ctx); err != nil {
				c.logger.Error().Err(err).Str("task", task.Name).Msg("cleanup task failed")
			}
		}
	}
}

// Stop cancels all task loops and blocks until they exit. Safe to call when
// the cleaner never started.
func (c *Cleaner) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
}
