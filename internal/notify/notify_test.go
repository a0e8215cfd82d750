package notify

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Backland-Labs/docflow/internal/workflow"
)

func setup(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client, err := NewClient(context.Background(), server.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return server, client
}

func TestPublishSubscribe(t *testing.T) {
	_, client := setup(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := NewSubscriber(client, "").Subscribe(ctx)
	require.NoError(t, err)

	pub := NewPublisher(client, "")
	pub.RunTransitioned(workflow.Snapshot{RunID: "run-1", File: "doc.pdf", State: workflow.StateSubmitting})
	pub.RunTransitioned(workflow.Snapshot{
		RunID:    "run-1",
		State:    workflow.StateFailed,
		RemoteID: "abc123",
		Error:    &workflow.Error{Kind: workflow.KindApplication, Message: "Invalid file type"},
	})

	var got []workflow.Snapshot
	for len(got) < 2 {
		select {
		case snap := <-events:
			got = append(got, snap)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for events, got %d", len(got))
		}
	}

	assert.Equal(t, workflow.StateSubmitting, got[0].State)
	assert.Equal(t, "doc.pdf", got[0].File)
	assert.Equal(t, workflow.StateFailed, got[1].State)
	require.NotNil(t, got[1].Error)
	assert.Equal(t, workflow.KindApplication, got[1].Error.Kind)
	assert.Equal(t, "abc123", got[1].RemoteID)

	cancel()
	select {
	case _, ok := <-events:
		assert.False(t, ok, "stream should close after cancel")
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not close")
	}
}

func TestSubscribeSkipsGarbage(t *testing.T) {
	server, client := setup(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := NewSubscriber(client, "custom").Subscribe(ctx)
	require.NoError(t, err)

	server.Publish("custom", "not json")
	require.NoError(t, NewPublisher(client, "custom").Publish(ctx, workflow.Snapshot{RunID: "run-2", State: workflow.StateSucceeded}))

	select {
	case snap := <-events:
		assert.Equal(t, "run-2", snap.RunID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublisherToleratesBrokerOutage(t *testing.T) {
	server, client := setup(t)
	server.Close()

	assert.NotPanics(t, func() {
		NewPublisher(client, "").RunTransitioned(workflow.Snapshot{RunID: "run-3", State: workflow.StateSubmitting})
	})
}

func TestNewClientUnreachable(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	addr := server.Addr()
	server.Close()

	_, err = NewClient(context.Background(), addr)
	assert.Error(t, err)
}
