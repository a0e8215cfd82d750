// Package notify broadcasts run transitions over Redis pub/sub so that other
// processes (for example `docflow watch`) can follow runs as they progress.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Backland-Labs/docflow/internal/logger"
	"github.com/Backland-Labs/docflow/internal/workflow"
)

// DefaultChannel carries run snapshots
const DefaultChannel = "docflow:runs:events"

// PublishTimeout bounds a single publish so a slow broker cannot stall the run
const PublishTimeout = 2 * time.Second

// NewClient connects to Redis and verifies the connection
func NewClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		PoolSize: 10,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// Publisher publishes every run transition as a JSON snapshot
type Publisher struct {
	client  *redis.Client
	channel string
}

// NewPublisher creates a Publisher. An empty channel selects DefaultChannel.
func NewPublisher(client *redis.Client, channel string) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{client: client, channel: channel}
}

// Publish sends one snapshot
func (p *Publisher) Publish(ctx context.Context, snap workflow.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return p.client.Publish(ctx, p.channel, payload).Err()
}

// RunTransitioned implements workflow.Observer. Publish failures are logged
// and never affect the run.
func (p *Publisher) RunTransitioned(snap workflow.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
	defer cancel()

	if err := p.Publish(ctx, snap); err != nil {
		logger.WithRun(snap.RunID, snap.RemoteID).
			WithError(err).
			WithField("channel", p.channel).
			Warn("Failed to publish run transition")
	}
}

// Subscriber streams snapshots published on a channel
type Subscriber struct {
	client  *redis.Client
	channel string
}

// NewSubscriber creates a Subscriber. An empty channel selects DefaultChannel.
func NewSubscriber(client *redis.Client, channel string) *Subscriber {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Subscriber{client: client, channel: channel}
}

// Subscribe opens a continuous stream of snapshots. The subscription is
// confirmed before Subscribe returns. The channel closes when ctx is done.
// Payloads that do not decode are skipped.
func (s *Subscriber) Subscribe(ctx context.Context) (<-chan workflow.Snapshot, error) {
	pubsub := s.client.Subscribe(ctx, s.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", s.channel, err)
	}

	out := make(chan workflow.Snapshot)
	go func() {
		defer close(out)
		defer func() { _ = pubsub.Close() }()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var snap workflow.Snapshot
				if err := json.Unmarshal([]byte(msg.Payload), &snap); err != nil {
					logger.WithError(err).Debug("Skipping undecodable run event")
					continue
				}
				select {
				case out <- snap:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
