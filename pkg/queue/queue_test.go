package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInProcessEnqueueDequeueRoundTrip(t *testing.T) {
	q := NewInProcess(4)
	ctx := context.Background()

	env := JobEnvelope{JobID: "j1", JobType: "ConvertWexBim", Payload: []byte(`{"modelVersionId":"v1"}`)}
	require.NoError(t, q.Enqueue(ctx, env))
	require.Equal(t, 1, q.Backlog())

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, env.JobID, got.JobID)
	require.Equal(t, 0, q.Backlog())
}

func TestInProcessDequeueRespectsCancellation(t *testing.T) {
	q := NewInProcess(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	require.Error(t, err)
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	called := false
	r.Register("ConvertWexBim", HandlerFunc(func(ctx context.Context, env JobEnvelope) error {
		called = true
		return nil
	}))

	h, ok := r.Lookup("ConvertWexBim")
	require.True(t, ok)
	require.NoError(t, h.Handle(context.Background(), JobEnvelope{}))
	require.True(t, called)

	_, ok = r.Lookup("ExtractProperties")
	require.False(t, ok)
}

func TestProgressNotifierFanOut(t *testing.T) {
	n := NewProgressNotifier()
	sub := n.Subscribe("v1")

	n.Notify(Progress{ModelVersionID: "v1", Stage: "ConvertWexBim", PercentComplete: 50})
	n.Notify(Progress{ModelVersionID: "other", Stage: "ConvertWexBim", PercentComplete: 50})

	select {
	case p := <-sub:
		require.Equal(t, "v1", p.ModelVersionID)
	case <-time.After(time.Second):
		t.Fatal("expected a progress update")
	}

	select {
	case p := <-sub:
		t.Fatalf("unexpected second update: %+v", p)
	default:
	}
}
