package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/rentflow/rentflow/internal/shared"
)

const subscriberBuffer = 64

// RedisFeed implements Publisher and Subscriber over Redis pub/sub.
type RedisFeed struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisFeed constructs the feed.
func NewRedisFeed(client *redis.Client, logger *slog.Logger) *RedisFeed {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisFeed{client: client, logger: logger.With(slog.String("component", "changefeed"))}
}

// Publish sends each event on its branch channel.
func (f *RedisFeed) Publish(ctx context.Context, events ...Event) error {
	if f == nil || f.client == nil {
		return nil
	}
	pipe := f.client.Pipeline()
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("changefeed: encode: %w", err)
		}
		pipe.Publish(ctx, shared.FeedChannel(ev.BranchID), payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("changefeed: publish: %w", err)
	}
	return nil
}

// Subscribe listens on the branch channel. Malformed payloads are dropped.
// The returned channel closes when ctx is done.
func (f *RedisFeed) Subscribe(ctx context.Context, branchID int64) (<-chan Event, error) {
	if f == nil || f.client == nil {
		return nil, errors.New("changefeed: redis client not configured")
	}
	pubsub := f.client.Subscribe(ctx, shared.FeedChannel(branchID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("changefeed: subscribe: %w", err)
	}
	out := make(chan Event, subscriberBuffer)
	go func() {
		defer close(out)
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					f.logger.Warn("drop malformed event", slog.String("channel", msg.Channel), slog.Any("error", err))
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
