package changefeed

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/rentflow/rentflow/internal/shared"
)

func newFeed(t *testing.T) (*RedisFeed, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisFeed(client, nil), srv
}

func TestRedisFeedDeliversBranchEvents(t *testing.T) {
	feed, _ := newFeed(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := feed.Subscribe(ctx, 7)
	require.NoError(t, err)

	orderID := uuid.New()
	require.NoError(t, feed.Publish(ctx,
		Event{Entity: EntityOrder, ID: orderID, OrderID: orderID, BranchID: 8, Kind: KindUpdate},
		Event{Entity: EntityOrder, ID: orderID, OrderID: orderID, BranchID: 7, Kind: KindUpdate, At: time.Now().UTC()},
	))

	select {
	case ev := <-events:
		require.Equal(t, orderID, ev.ID)
		require.Equal(t, int64(7), ev.BranchID)
		require.Equal(t, KindUpdate, ev.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestRedisFeedDropsMalformedPayloads(t *testing.T) {
	feed, srv := newFeed(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := feed.Subscribe(ctx, 1)
	require.NoError(t, err)

	srv.Publish(shared.FeedChannel(1), "{not json")
	id := uuid.New()
	require.NoError(t, feed.Publish(ctx, Event{Entity: EntityItem, ID: id, BranchID: 1, Kind: KindDelete}))

	select {
	case ev := <-events:
		require.Equal(t, id, ev.ID)
		require.Equal(t, EntityItem, ev.Entity)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestRedisFeedClosesOnCancel(t *testing.T) {
	feed, _ := newFeed(t)
	ctx, cancel := context.WithCancel(context.Background())
	events, err := feed.Subscribe(ctx, 1)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-events:
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed")
	}
}

func TestNilFeedPublishIsNoop(t *testing.T) {
	var feed *RedisFeed
	require.NoError(t, feed.Publish(context.Background(), Event{}))
}
