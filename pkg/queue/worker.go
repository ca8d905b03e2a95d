package queue

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// WorkerConfig bounds retry behavior.
type WorkerConfig struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// Worker runs the dequeue/handle/retry loop: on handler failure, re-enqueue
// with attempt+1 and exponential backoff up to BackoffMax, until
// MaxAttempts is exhausted.
type Worker struct {
	queue    Queue
	registry *Registry
	cfg      WorkerConfig
	log      zerolog.Logger
}

// NewWorker constructs a Worker draining queue using registry to dispatch
// by job type.
func NewWorker(q Queue, registry *Registry, cfg WorkerConfig, log zerolog.Logger) *Worker {
	return &Worker{queue: q, registry: registry, cfg: cfg, log: log}
}

// Run drains the queue until ctx is cancelled. Workers cooperatively stop
// between dequeues, never mid-handler.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		env, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.Warn().Err(err).Msg("queue: dequeue failed")
			continue
		}
		w.handle(ctx, env)
	}
}

func (w *Worker) handle(ctx context.Context, env JobEnvelope) {
	handler, ok := w.registry.Lookup(env.JobType)
	if !ok {
		w.log.Error().Str("jobType", env.JobType).Msg("queue: no handler registered")
		return
	}

	if err := handler.Handle(ctx, env); err != nil {
		w.log.Warn().Err(err).Str("jobId", env.JobID).Str("jobType", env.JobType).Int("attempt", env.Attempt).Msg("queue: job failed")
		if env.Attempt >= w.cfg.MaxAttempts {
			w.log.Error().Str("jobId", env.JobID).Msg("queue: job exhausted retries, marking terminal failure")
			return
		}

		backoff := w.cfg.BackoffBase << uint(env.Attempt)
		if w.cfg.BackoffMax > 0 && backoff > w.cfg.BackoffMax {
			backoff = w.cfg.BackoffMax
		}
		time.AfterFunc(backoff, func() {
			retry := env
			retry.Attempt++
			if enqErr := w.queue.Enqueue(context.Background(), retry); enqErr != nil {
				w.log.Error().Err(enqErr).Str("jobId", env.JobID).Msg("queue: re-enqueue failed")
			}
		})
	}
}
