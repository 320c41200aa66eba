package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/Proton-105/stockbot/pkg/config"
	"github.com/Proton-105/stockbot/pkg/metrics"
)

// QueueExecutor runs tasks through an asynq queue stored in Redis.
type QueueExecutor struct {
	client  *asynq.Client
	server  *asynq.Server
	mux     *asynq.ServeMux
	timeout time.Duration
	log     *slog.Logger
}

var _ Executor = (*QueueExecutor)(nil)

// NewQueueExecutor builds an asynq client and server sharing redisClient.
func NewQueueExecutor(redisClient redis.UniversalClient, cfg config.JobsConfig, log *slog.Logger) *QueueExecutor {
	if log == nil {
		log = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	server := asynq.NewServerFromRedisClient(redisClient, asynq.Config{
		Queues:      map[string]int{QueueDefault: 1},
		Concurrency: concurrency,
		Logger:      asynqLogger{log: log},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.ErrorContext(ctx, "queued job failed", slog.String("task_type", task.Type()), slog.Any("error", err))
		}),
	})

	return &QueueExecutor{
		client:  asynq.NewClientFromRedisClient(redisClient),
		server:  server,
		mux:     asynq.NewServeMux(),
		timeout: cfg.TaskTimeout,
		log:     log,
	}
}

// Handle registers h for taskType. Failed tasks are not retried.
func (q *QueueExecutor) Handle(taskType string, h Handler) {
	q.mux.HandleFunc(taskType, func(ctx context.Context, task *asynq.Task) error {
		start := time.Now()
		err := h(ctx, task.Payload())

		status := "ok"
		if err != nil {
			status = "failed"
		}
		metrics.RecordJob(taskType, status, time.Since(start))
		return err
	})
}

// Submit enqueues a task on the default queue.
func (q *QueueExecutor) Submit(ctx context.Context, taskType string, payload []byte) error {
	opts := []asynq.Option{asynq.Queue(QueueDefault), asynq.MaxRetry(0)}
	if q.timeout > 0 {
		opts = append(opts, asynq.Timeout(q.timeout))
	}

	info, err := q.client.EnqueueContext(ctx, asynq.NewTask(taskType, payload), opts...)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}

	q.log.DebugContext(ctx, "job enqueued", slog.String("task_type", taskType), slog.String("task_id", info.ID))
	return nil
}

// Start begins processing in the background.
func (q *QueueExecutor) Start() error {
	if err := q.server.Start(q.mux); err != nil {
		return fmt.Errorf("start job server: %w", err)
	}
	q.log.Info("queued job workers started")
	return nil
}

// Shutdown waits for active tasks and closes the client.
func (q *QueueExecutor) Shutdown() {
	q.server.Shutdown()
	if err := q.client.Close(); err != nil {
		q.log.Warn("failed to close job client", slog.Any("error", err))
	}
	q.log.Info("queued job workers stopped")
}

type asynqLogger struct {
	log *slog.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug(fmt.Sprint(args...), slog.String("component", "asynq")) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info(fmt.Sprint(args...), slog.String("component", "asynq")) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn(fmt.Sprint(args...), slog.String("component", "asynq")) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error(fmt.Sprint(args...), slog.String("component", "asynq")) }

func (l asynqLogger) Fatal(args ...interface{}) {
	l.log.Error(fmt.Sprint(args...), slog.String("component", "asynq"))
	os.Exit(1)
}
