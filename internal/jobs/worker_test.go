package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/stockbot/pkg/config"
	"github.com/Proton-105/stockbot/pkg/logger"
)

func localConfig(workers, queue int, timeout time.Duration) config.JobsConfig {
	return config.JobsConfig{Backend: "local", Concurrency: workers, QueueSize: queue, TaskTimeout: timeout}
}

func TestLocalExecutor_RunsSubmittedTask(t *testing.T) {
	exec := NewLocalExecutor(localConfig(2, 4, time.Second), nil)

	got := make(chan ChartRenderPayload, 1)
	exec.Handle(TaskTypeChartRender, func(ctx context.Context, data []byte) error {
		payload, err := Decode[ChartRenderPayload](data)
		if err != nil {
			return err
		}
		got <- payload
		return nil
	})
	require.NoError(t, exec.Start())
	defer exec.Shutdown()

	want := ChartRenderPayload{
		Request: Request{UserID: 1, ChatID: 2, MessageID: 3, Lang: "en"},
		Horizon: "swing",
		Symbol:  "TCS.NS",
	}
	data, err := Encode(want)
	require.NoError(t, err)
	require.NoError(t, exec.Submit(context.Background(), TaskTypeChartRender, data))

	select {
	case payload := <-got:
		assert.Equal(t, want, payload)
	case <-time.After(2 * time.Second):
		t.Fatalf("task was not executed")
	}
}

func TestLocalExecutor_PropagatesCorrelationID(t *testing.T) {
	exec := NewLocalExecutor(localConfig(1, 1, 0), nil)

	got := make(chan string, 1)
	exec.Handle(TaskTypeMTFExport, func(ctx context.Context, _ []byte) error {
		got <- logger.CorrelationIDFromContext(ctx)
		return nil
	})
	require.NoError(t, exec.Start())
	defer exec.Shutdown()

	ctx := logger.WithCorrelationID(context.Background(), "corr-42")
	require.NoError(t, exec.Submit(ctx, TaskTypeMTFExport, nil))

	select {
	case id := <-got:
		assert.Equal(t, "corr-42", id)
	case <-time.After(2 * time.Second):
		t.Fatalf("task was not executed")
	}
}

func TestLocalExecutor_QueueFull(t *testing.T) {
	exec := NewLocalExecutor(localConfig(1, 1, 0), nil)
	exec.Handle(TaskTypeMTFExport, func(context.Context, []byte) error { return nil })

	// workers are not started, so the single slot fills up
	require.NoError(t, exec.Submit(context.Background(), TaskTypeMTFExport, nil))
	err := exec.Submit(context.Background(), TaskTypeMTFExport, nil)
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestLocalExecutor_UnknownTaskType(t *testing.T) {
	exec := NewLocalExecutor(localConfig(1, 1, 0), nil)

	err := exec.Submit(context.Background(), "unknown:task", nil)
	assert.ErrorIs(t, err, ErrNoHandler)
}

func TestLocalExecutor_RecoversFromPanic(t *testing.T) {
	exec := NewLocalExecutor(localConfig(1, 4, 0), nil)

	var calls atomic.Int32
	done := make(chan struct{}, 2)
	exec.Handle(TaskTypeMTFExport, func(context.Context, []byte) error {
		defer func() { done <- struct{}{} }()
		if calls.Add(1) == 1 {
			panic("boom")
		}
		return nil
	})
	require.NoError(t, exec.Start())
	defer exec.Shutdown()

	require.NoError(t, exec.Submit(context.Background(), TaskTypeMTFExport, nil))
	require.NoError(t, exec.Submit(context.Background(), TaskTypeMTFExport, nil))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("worker did not survive panic")
		}
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestLocalExecutor_AppliesTaskTimeout(t *testing.T) {
	exec := NewLocalExecutor(localConfig(1, 1, 20*time.Millisecond), nil)

	got := make(chan error, 1)
	exec.Handle(TaskTypeChartRender, func(ctx context.Context, _ []byte) error {
		<-ctx.Done()
		got <- ctx.Err()
		return ctx.Err()
	})
	require.NoError(t, exec.Start())
	defer exec.Shutdown()

	require.NoError(t, exec.Submit(context.Background(), TaskTypeChartRender, nil))

	select {
	case err := <-got:
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	case <-time.After(2 * time.Second):
		t.Fatalf("task deadline was not applied")
	}
}

func TestLocalExecutor_ShutdownDrainsQueue(t *testing.T) {
	exec := NewLocalExecutor(localConfig(1, 8, 0), nil)

	var calls atomic.Int32
	exec.Handle(TaskTypeMTFExport, func(context.Context, []byte) error {
		time.Sleep(5 * time.Millisecond)
		calls.Add(1)
		return nil
	})
	require.NoError(t, exec.Start())

	for i := 0; i < 5; i++ {
		require.NoError(t, exec.Submit(context.Background(), TaskTypeMTFExport, nil))
	}
	exec.Shutdown()

	assert.Equal(t, int32(5), calls.Load())
	assert.ErrorIs(t, exec.Submit(context.Background(), TaskTypeMTFExport, nil), ErrStopped)
}

func TestNew_SelectsBackend(t *testing.T) {
	exec, err := New(localConfig(1, 1, 0), nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &LocalExecutor{}, exec)

	_, err = New(config.JobsConfig{Backend: "asynq"}, nil, nil)
	assert.Error(t, err)

	_, err = New(config.JobsConfig{Backend: "kafka"}, nil, nil)
	assert.Error(t, err)
}
