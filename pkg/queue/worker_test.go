package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestWorkerRetriesFailedJobWithBackoff(t *testing.T) {
	q := NewInProcess(4)
	registry := NewRegistry()

	var attempts int64
	registry.Register("ConvertWexBim", HandlerFunc(func(ctx context.Context, env JobEnvelope) error {
		n := atomic.AddInt64(&attempts, 1)
		if n == 1 {
			return errors.New("transient failure")
		}
		return nil
	}))

	worker := NewWorker(q, registry, WorkerConfig{MaxAttempts: 3, BackoffBase: 10 * time.Millisecond, BackoffMax: time.Second}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go worker.Run(ctx)
	defer cancel()

	require.NoError(t, q.Enqueue(ctx, JobEnvelope{JobID: "j1", JobType: "ConvertWexBim"}))

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&attempts) >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestWorkerGivesUpAfterMaxAttempts(t *testing.T) {
	q := NewInProcess(4)
	registry := NewRegistry()

	var attempts int64
	registry.Register("ConvertWexBim", HandlerFunc(func(ctx context.Context, env JobEnvelope) error {
		atomic.AddInt64(&attempts, 1)
		return errors.New("permanent failure")
	}))

	worker := NewWorker(q, registry, WorkerConfig{MaxAttempts: 1, BackoffBase: 5 * time.Millisecond, BackoffMax: 50 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.Run(ctx)

	require.NoError(t, q.Enqueue(ctx, JobEnvelope{JobID: "j1", JobType: "ConvertWexBim", Attempt: 0}))

	// attempt 0 fails and is retried once (0 < MaxAttempts); attempt 1 fails
	// and is dropped (1 >= MaxAttempts), so the handler runs exactly twice.
	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&attempts) == 2
	}, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.EqualValues(t, 2, atomic.LoadInt64(&attempts))
}
