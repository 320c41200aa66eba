// Package jobs runs long work (chart rendering, listing export) away from the update loop.
package jobs

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/Proton-105/stockbot/pkg/config"
)

var (
	// ErrQueueFull is returned by Submit when no more work can be accepted.
	ErrQueueFull = stdErrors.New("job queue is full")
	// ErrNoHandler is returned by Submit for a task type without a registered handler.
	ErrNoHandler = stdErrors.New("no handler registered for task type")
	// ErrStopped is returned by Submit after Shutdown.
	ErrStopped = stdErrors.New("job executor stopped")
)

// Handler processes one task payload.
type Handler func(ctx context.Context, payload []byte) error

// Executor accepts tasks and runs them on background workers.
type Executor interface {
	Handle(taskType string, h Handler)
	Submit(ctx context.Context, taskType string, payload []byte) error
	Start() error
	Shutdown()
}

// New builds the executor selected by cfg.Backend. The asynq backend needs a Redis client.
func New(cfg config.JobsConfig, redisClient redis.UniversalClient, log *slog.Logger) (Executor, error) {
	switch cfg.Backend {
	case "asynq":
		if redisClient == nil {
			return nil, fmt.Errorf("jobs backend asynq requires redis")
		}
		return NewQueueExecutor(redisClient, cfg, log), nil
	case "", "local":
		return NewLocalExecutor(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown jobs backend %q", cfg.Backend)
	}
}
