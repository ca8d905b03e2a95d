// Package queue implements Octopus's background job queue: an envelope
// type, a small Queue interface with two selectable backends (an
// in-process channel, and NATS JetStream), a worker loop with exponential
// backoff retry, and a pub/sub progress notifier: a thin interface
// wrapping a transport, a metadata-tagged envelope, Consume/Publish-shaped
// verbs.
package queue

import (
	"context"
	"encoding/json"
	"time"
)

// JobEnvelope is one unit of work handed to a worker.
type JobEnvelope struct {
	JobID      string          `json:"jobId"`
	JobType    string          `json:"jobType"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
	Attempt    int             `json:"attempt"`
}

// Queue is an ordered, single-consumer-per-message job queue. Delivery is
// at-least-once: handlers registered against it must be idempotent.
type Queue interface {
	// Enqueue durably accepts env for later delivery to a Dequeue caller.
	Enqueue(ctx context.Context, env JobEnvelope) error

	// Dequeue blocks until a job is available or ctx is cancelled.
	Dequeue(ctx context.Context) (JobEnvelope, error)

	// Backlog reports the approximate number of undelivered jobs, surfaced
	// as a metric by api.Server's backlog gauge.
	Backlog() int
}
