package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSConfig configures the NATS JetStream backend.
type NATSConfig struct {
	URL     string // server to connect to; ignored when Embed is set
	Embed   bool
	Subject string
}

// NATS is a JetStream-backed Queue, the durable-broker alternative to
// InProcess: embeds a single-node NATS server when configured to, then
// connects a direct nats-io/nats.go JetStream client to it.
type NATS struct {
	embedded *server.Server
	conn     *nats.Conn
	js       jetstream.JetStream
	stream   jetstream.Stream
	consumer jetstream.Consumer
	subject  string
}

// NewNATS connects to (or embeds) a NATS server and ensures the job stream
// and a durable pull consumer exist.
func NewNATS(ctx context.Context, cfg NATSConfig) (*NATS, error) {
	q := &NATS{subject: cfg.Subject}
	if q.subject == "" {
		q.subject = "octopus.jobs"
	}

	url := cfg.URL
	if cfg.Embed {
		srv, err := server.NewServer(&server.Options{JetStream: true, Port: -1})
		if err != nil {
			return nil, fmt.Errorf("queue: embed nats server: %w", err)
		}
		go srv.Start()
		if !srv.ReadyForConnections(5 * time.Second) {
			return nil, fmt.Errorf("queue: embedded nats server did not become ready")
		}
		q.embedded = srv
		url = srv.ClientURL()
	}

	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("queue: connect nats: %w", err)
	}
	q.conn = conn

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("queue: jetstream: %w", err)
	}
	q.js = js

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     "OCTOPUS_JOBS",
		Subjects: []string{q.subject},
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("queue: create stream: %w", err)
	}
	q.stream = stream

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:   "octopus-workers",
		AckPolicy: jetstream.AckExplicitPolicy,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("queue: create consumer: %w", err)
	}
	q.consumer = consumer

	return q, nil
}

// Close releases the NATS connection and, if one was embedded, shuts the
// server down.
func (q *NATS) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
	if q.embedded != nil {
		q.embedded.Shutdown()
	}
}

// Enqueue implements Queue.
func (q *NATS) Enqueue(ctx context.Context, env JobEnvelope) error {
	data, err := envelopeToJSON(env)
	if err != nil {
		return err
	}
	_, err = q.js.Publish(ctx, q.subject, data)
	return err
}

// Dequeue implements Queue.
func (q *NATS) Dequeue(ctx context.Context) (JobEnvelope, error) {
	msgs, err := q.consumer.Fetch(1, jetstream.FetchMaxWait(5*time.Second))
	if err != nil {
		return JobEnvelope{}, err
	}

	select {
	case msg, ok := <-msgs.Messages():
		if !ok {
			return JobEnvelope{}, context.DeadlineExceeded
		}
		env, err := envelopeFromJSON(msg.Data())
		if err != nil {
			_ = msg.Nak()
			return JobEnvelope{}, err
		}
		if err := msg.Ack(); err != nil {
			return JobEnvelope{}, err
		}
		return env, nil
	case <-ctx.Done():
		return JobEnvelope{}, ctx.Err()
	}
}

// Backlog implements Queue.
func (q *NATS) Backlog() int {
	info, err := q.consumer.Info(context.Background())
	if err != nil {
		return 0
	}
	return int(info.NumPending)
}
