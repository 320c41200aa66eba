package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/Proton-105/stockbot/pkg/config"
	"github.com/Proton-105/stockbot/pkg/logger"
	"github.com/Proton-105/stockbot/pkg/metrics"
)

type job struct {
	taskType      string
	payload       []byte
	correlationID string
}

// LocalExecutor is an in-process worker pool with a bounded queue.
type LocalExecutor struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	queue    chan job
	stopped  bool
	started  bool

	workers int
	timeout time.Duration
	wg      conc.WaitGroup
	log     *slog.Logger
}

var _ Executor = (*LocalExecutor)(nil)

// NewLocalExecutor creates a pool of cfg.Concurrency workers over a queue of cfg.QueueSize.
func NewLocalExecutor(cfg config.JobsConfig, log *slog.Logger) *LocalExecutor {
	if log == nil {
		log = slog.Default()
	}

	workers := cfg.Concurrency
	if workers <= 0 {
		workers = 1
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 1
	}

	return &LocalExecutor{
		handlers: make(map[string]Handler),
		queue:    make(chan job, size),
		workers:  workers,
		timeout:  cfg.TaskTimeout,
		log:      log,
	}
}

// Handle registers h for taskType.
func (e *LocalExecutor) Handle(taskType string, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[taskType] = h
}

// Submit queues a task without blocking.
func (e *LocalExecutor) Submit(ctx context.Context, taskType string, payload []byte) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.stopped {
		return ErrStopped
	}
	if _, ok := e.handlers[taskType]; !ok {
		return fmt.Errorf("%w: %s", ErrNoHandler, taskType)
	}

	select {
	case e.queue <- job{taskType: taskType, payload: payload, correlationID: logger.CorrelationIDFromContext(ctx)}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the workers.
func (e *LocalExecutor) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return nil
	}
	e.started = true

	for i := 0; i < e.workers; i++ {
		e.wg.Go(e.work)
	}

	e.log.Info("job workers started", slog.Int("workers", e.workers), slog.Int("queue_size", cap(e.queue)))
	return nil
}

// Shutdown stops accepting tasks and waits until queued tasks have finished.
func (e *LocalExecutor) Shutdown() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	close(e.queue)
	started := e.started
	e.mu.Unlock()

	if started {
		e.wg.Wait()
	}
	e.log.Info("job workers stopped")
}

func (e *LocalExecutor) work() {
	for j := range e.queue {
		e.run(j)
	}
}

func (e *LocalExecutor) run(j job) {
	e.mu.RLock()
	h := e.handlers[j.taskType]
	e.mu.RUnlock()

	ctx := logger.WithCorrelationID(context.Background(), j.correlationID)
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	var (
		err     error
		catcher panics.Catcher
	)
	catcher.Try(func() { err = h(ctx, j.payload) })
	if recovered := catcher.Recovered(); recovered != nil {
		err = recovered.AsError()
		e.log.Error("job panicked", slog.String("task_type", j.taskType), slog.String("stack", string(recovered.Stack)))
	}

	status := "ok"
	if err != nil {
		status = "failed"
		e.log.Error("job failed",
			slog.String("task_type", j.taskType),
			slog.String("correlation_id", j.correlationID),
			slog.Any("error", err),
		)
	}
	metrics.RecordJob(j.taskType, status, time.Since(start))
}
