package queue

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"agora/internal/middleware"
	"agora/internal/observability"

	"github.com/prometheus/client_golang/prometheus"
)

// Store is the part of RedisQueue the consumer needs.
type Store interface {
	Scheduler
	Name() string
	Claim(ctx context.Context, limit int) ([]Task, error)
	DeadLetter(ctx context.Context, task Task, cause error) error
	Pending(ctx context.Context) (int64, error)
}

// Options tunes a Consumer.
type Options struct {
	Workers      int
	PollInterval time.Duration
	MaxAttempts  int
	// BaseBackoff is the delay before the first retry; it doubles per
	// attempt up to MaxBackoff.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func (o *Options) applyDefaults() {
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 500 * time.Millisecond
	}
	if o.MaxAttempts < 1 {
		o.MaxAttempts = 1
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = 2 * time.Second
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 5 * time.Minute
	}
}

// Consumer polls a Store for due tasks and runs them on a fixed pool of
// workers. Tasks are handled in claim order but with no ordering guarantee
// across workers.
type Consumer struct {
	store   Store
	handler Handler
	opts    Options

	feeder chan Task
	wg     sync.WaitGroup

	stop     chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
	done     chan struct{}

	workersActive prometheus.Gauge

	log *slog.Logger
}

// NewConsumer builds a consumer; call Run to start it.
func NewConsumer(store Store, handler Handler, opts Options) *Consumer {
	opts.applyDefaults()
	return &Consumer{
		store:         store,
		handler:       handler,
		opts:          opts,
		feeder:        make(chan Task),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
		workersActive: observability.QueueWorkersActive.WithLabelValues(store.Name()),
		log:           middleware.Logger.With("system", "queue", "queue", store.Name()),
	}
}

// Run starts the workers and polls until ctx is cancelled or Shutdown is
// called, then drains in-flight tasks and returns.
func (c *Consumer) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return fmt.Errorf("queue %s: consumer already running", c.store.Name())
	}
	defer close(c.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	for i := 0; i < c.opts.Workers; i++ {
		c.wg.Add(1)
		go c.worker()
	}
	c.workersActive.Set(float64(c.opts.Workers))
	c.log.Info("queue consumer started", "workers", c.opts.Workers, "poll_interval", c.opts.PollInterval)

	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		c.poll(ctx)

		select {
		case <-ctx.Done():
			close(c.feeder)
			c.wg.Wait()
			c.workersActive.Set(0)
			c.log.Info("queue consumer stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Shutdown stops polling and waits for workers to finish their current task.
func (c *Consumer) Shutdown(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.stop) })
	if !c.started.Load() {
		return nil
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Consumer) poll(ctx context.Context) {
	if n, err := c.store.Pending(ctx); err == nil {
		observability.QueueDepth.WithLabelValues(c.store.Name()).Set(float64(n))
	}

	tasks, err := c.store.Claim(ctx, c.opts.Workers)
	if err != nil {
		if ctx.Err() == nil {
			c.log.Warn("claim failed", "error", err)
		}
		return
	}

	for i, t := range tasks {
		select {
		case c.feeder <- t:
		case <-ctx.Done():
			// Put back what was claimed but never started.
			for _, rest := range tasks[i:] {
				if err := c.store.Schedule(context.Background(), rest, 0); err != nil {
					c.log.Error("failed to requeue task on shutdown", "task_id", rest.ID, "error", err)
				}
			}
			return
		}
	}
}

func (c *Consumer) worker() {
	defer c.wg.Done()
	for t := range c.feeder {
		c.process(t)
	}
}

func (c *Consumer) transition(t Task, state TaskState, attrs ...any) {
	observability.QueueTasks.WithLabelValues(c.store.Name(), string(state)).Inc()
	args := append([]any{"task_id", t.ID, "type", t.Type, "attempt", t.Attempt, "state", state}, attrs...)
	if state == StateFailed {
		c.log.Warn("task state changed", args...)
		return
	}
	c.log.Info("task state changed", args...)
}

// process runs one task to completion. Handlers always get a fresh context:
// a claimed task is not cancelled by consumer shutdown.
func (c *Consumer) process(t Task) {
	ctx := middleware.WithTaskID(context.Background(), t.ID)
	c.transition(t, StateRunning)

	start := time.Now()
	err := c.runHandler(ctx, t)
	result := "ok"
	if err != nil {
		result = "error"
	}
	observability.QueueTaskDuration.WithLabelValues(c.store.Name(), result).Observe(time.Since(start).Seconds())

	if err == nil {
		c.transition(t, StateCompleted)
		return
	}

	t.Attempt++
	t.LastError = err.Error()

	if IsPermanent(err) || t.Attempt >= c.opts.MaxAttempts {
		c.transition(t, StateFailed, "error", err, "permanent", IsPermanent(err))
		if dlErr := c.store.DeadLetter(ctx, t, err); dlErr != nil {
			c.log.Error("dead-letter failed", "task_id", t.ID, "error", dlErr)
		}
		return
	}

	delay := c.backoff(t.Attempt)
	if schedErr := c.store.Schedule(ctx, t, delay); schedErr != nil {
		c.log.Error("retry scheduling failed", "task_id", t.ID, "error", schedErr)
		return
	}
	c.transition(t, StateScheduled, "error", err, "retry_in", delay)
}

func (c *Consumer) runHandler(ctx context.Context, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("task handler panicked", "task_id", t.ID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return c.handler(ctx, t)
}

func (c *Consumer) backoff(attempt int) time.Duration {
	d := c.opts.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.opts.MaxBackoff {
			return c.opts.MaxBackoff
		}
	}
	return d
}
