package projection

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/rentflow/rentflow/internal/changefeed"
	"github.com/rentflow/rentflow/internal/rental"
	"github.com/rentflow/rentflow/internal/shared"
)

const syncConcurrency = 4

// Fetcher loads authoritative order snapshots.
type Fetcher interface {
	GetOrder(ctx context.Context, id uuid.UUID) (rental.OrderView, error)
}

// Syncer keeps cached orders fresh from the change feed. Events are hints:
// each one triggers a refetch of the owning order, never a direct apply.
type Syncer struct {
	feed    changefeed.Subscriber
	fetcher Fetcher
	store   Store
	logger  *slog.Logger
	group   singleflight.Group
}

// NewSyncer builds a Syncer.
func NewSyncer(feed changefeed.Subscriber, fetcher Fetcher, store Store, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		feed:    feed,
		fetcher: fetcher,
		store:   store,
		logger:  logger.With(slog.String("component", "projection_sync")),
	}
}

// Run consumes the branch feed until ctx ends or the feed closes.
func (s *Syncer) Run(ctx context.Context, branchID int64) error {
	events, err := s.feed.Subscribe(ctx, branchID)
	if err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(syncConcurrency)
	for ev := range events {
		g.Go(func() error {
			s.Handle(gctx, ev)
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

// Handle applies one change event to the store.
func (s *Syncer) Handle(ctx context.Context, ev changefeed.Event) {
	if ev.Entity == changefeed.EntityOrder && ev.Kind == changefeed.KindDelete {
		s.store.Invalidate(ev.OrderID)
		return
	}
	if _, ok := s.store.Get(ev.OrderID); !ok {
		return
	}
	if err := s.Refresh(ctx, ev.OrderID); err != nil {
		s.logger.Warn("refresh order", slog.String("order_id", ev.OrderID.String()), slog.Any("error", err))
	}
}

// Refresh refetches one order; concurrent calls for the same order share a
// single fetch.
func (s *Syncer) Refresh(ctx context.Context, id uuid.UUID) error {
	_, err, _ := s.group.Do(id.String(), func() (any, error) {
		view, err := s.fetcher.GetOrder(ctx, id)
		if errors.Is(err, shared.ErrNotFound) {
			s.store.Invalidate(id)
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		s.store.Reconcile(view.Order, 0)
		return nil, nil
	})
	return err
}
