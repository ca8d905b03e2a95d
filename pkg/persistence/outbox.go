package persistence

import (
	"context"
	"time"
)

// OutboxJob is a row in job_outbox: a durable record of a job that must be
// dispatched to the queue at least once. Writing this row in the same
// transaction as the business-data insert it accompanies (a ModelVersion
// row, for instance) is what makes job enqueueing durable across a crash
// between commit and dispatch.
type OutboxJob struct {
	ID         string
	JobType    string
	Payload    string // JSON-encoded job envelope
	EnqueuedAt time.Time
	Dispatched bool
}

// InsertOutboxJob records a pending job. Call this inside the same
// Store.WithTx transaction as the row it is derived from.
func (s *Store) InsertOutboxJob(ctx context.Context, j *OutboxJob) error {
	_, err := s.querier(ctx).ExecContext(ctx,
		`INSERT INTO job_outbox (id, job_type, payload, enqueued_at, dispatched) VALUES (?, ?, ?, ?, 0)`,
		j.ID, j.JobType, j.Payload, j.EnqueuedAt)
	return err
}

// ListPendingOutboxJobs returns undispatched jobs in enqueue order, polled
// by the dispatcher that bridges the outbox table to the live queue.
func (s *Store) ListPendingOutboxJobs(ctx context.Context, limit int) ([]*OutboxJob, error) {
	rows, err := s.querier(ctx).QueryContext(ctx,
		`SELECT id, job_type, payload, enqueued_at, dispatched FROM job_outbox WHERE dispatched = 0 ORDER BY enqueued_at LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*OutboxJob
	for rows.Next() {
		j := &OutboxJob{}
		if err := rows.Scan(&j.ID, &j.JobType, &j.Payload, &j.EnqueuedAt, &j.Dispatched); err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// MarkOutboxJobDispatched flips dispatched once the queue backend has
// durably accepted the job, so the dispatcher's next poll skips it.
func (s *Store) MarkOutboxJobDispatched(ctx context.Context, id string) error {
	_, err := s.querier(ctx).ExecContext(ctx, `UPDATE job_outbox SET dispatched = 1 WHERE id = ?`, id)
	return err
}
