package queue

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/octopus-bim/octopus/pkg/persistence"
)

// Dispatcher polls job_outbox and forwards undispatched rows to a live
// Queue, the piece that turns the transactional-outbox write in
// pkg/modelsvc into an actually-delivered job. This indirection (write to
// the outbox table, dispatch asynchronously) is what lets the version
// insert and the enqueue share one SQL transaction while the queue backend
// itself has no notion of transactions.
type Dispatcher struct {
	store    *persistence.Store
	queue    Queue
	interval time.Duration
	log      zerolog.Logger
}

// NewDispatcher constructs a Dispatcher polling every interval.
func NewDispatcher(store *persistence.Store, q Queue, interval time.Duration, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{store: store, queue: q, interval: interval, log: log}
}

// Run polls until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.tick(ctx); err != nil {
				d.log.Warn().Err(err).Msg("queue: outbox dispatch tick failed")
			}
		}
	}
}

func (d *Dispatcher) tick(ctx context.Context) error {
	jobs, err := d.store.ListPendingOutboxJobs(ctx, 50)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		env := JobEnvelope{
			JobID:      job.ID,
			JobType:    job.JobType,
			Payload:    []byte(job.Payload),
			EnqueuedAt: job.EnqueuedAt,
			Attempt:    0,
		}
		if err := d.queue.Enqueue(ctx, env); err != nil {
			d.log.Warn().Err(err).Str("jobId", job.ID).Msg("queue: enqueue from outbox failed, will retry next tick")
			continue
		}
		if err := d.store.MarkOutboxJobDispatched(ctx, job.ID); err != nil {
			d.log.Error().Err(err).Str("jobId", job.ID).Msg("queue: failed to mark outbox job dispatched")
		}
	}
	return nil
}
