package projection

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rentflow/rentflow/internal/rental"
)

// Engine is the authoritative side the client talks to.
type Engine interface {
	GetOrder(ctx context.Context, id uuid.UUID) (rental.OrderView, error)
	SettleReturn(ctx context.Context, req rental.SettleRequest) (rental.SettleResult, error)
	TransitionStatus(ctx context.Context, req rental.TransitionRequest) (rental.OrderView, error)
}

// Client performs writes through the projection: apply tentative, call the
// engine, then reconcile with the authoritative snapshot or roll back.
type Client struct {
	engine Engine
	store  Store
	policy rental.Policy
	logger *slog.Logger
	clock  func() time.Time
}

// NewClient builds a Client.
func NewClient(engine Engine, store Store, policy rental.Policy, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		engine: engine,
		store:  store,
		policy: policy,
		logger: logger.With(slog.String("component", "projection")),
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// WithClock overrides the time source for testing.
func (c *Client) WithClock(clock func() time.Time) *Client {
	if clock != nil {
		c.clock = clock
	}
	return c
}

// Order returns the projected view, fetching it on a miss.
func (c *Client) Order(ctx context.Context, id uuid.UUID) (rental.Order, error) {
	if o, ok := c.store.Get(id); ok {
		return o, nil
	}
	view, err := c.engine.GetOrder(ctx, id)
	if err != nil {
		return rental.Order{}, err
	}
	c.store.Reconcile(view.Order, 0)
	if o, ok := c.store.Get(id); ok {
		return o, nil
	}
	return view.Order, nil
}

// SettleReturn settles through the projection. A batch the local plan
// rejects is reported without contacting the engine.
func (c *Client) SettleReturn(ctx context.Context, req rental.SettleRequest) (rental.SettleResult, error) {
	if _, err := c.Order(ctx, req.OrderID); err != nil {
		return rental.SettleResult{}, err
	}
	patch := SettlementPatch{Request: req, Now: c.clock(), Policy: c.policy}
	mutation, err := c.store.ApplyOptimistic(req.OrderID, patch)
	if err != nil && !errors.Is(err, ErrNotCached) {
		return rental.SettleResult{}, err
	}

	res, err := c.engine.SettleReturn(ctx, req)
	if err != nil {
		c.store.Rollback(req.OrderID, mutation)
		return rental.SettleResult{}, err
	}
	c.confirm(ctx, req.OrderID, mutation)
	return res, nil
}

// TransitionStatus applies a status change through the projection.
func (c *Client) TransitionStatus(ctx context.Context, req rental.TransitionRequest) (rental.OrderView, error) {
	if _, err := c.Order(ctx, req.OrderID); err != nil {
		return rental.OrderView{}, err
	}
	mutation, err := c.store.ApplyOptimistic(req.OrderID, StatusPatch{Status: req.Status})
	if err != nil && !errors.Is(err, ErrNotCached) {
		return rental.OrderView{}, err
	}
	view, err := c.engine.TransitionStatus(ctx, req)
	if err != nil {
		c.store.Rollback(req.OrderID, mutation)
		return rental.OrderView{}, err
	}
	c.store.Reconcile(view.Order, mutation)
	return view, nil
}

// confirm replaces the tentative result with the server's snapshot. When
// the refetch fails the overlay is dropped and the entry invalidated so the
// next read goes to the server.
func (c *Client) confirm(ctx context.Context, id uuid.UUID, mutation MutationID) {
	view, err := c.engine.GetOrder(ctx, id)
	if err != nil {
		c.logger.Warn("refetch after write", slog.String("order_id", id.String()), slog.Any("error", err))
		c.store.Rollback(id, mutation)
		c.store.Invalidate(id)
		return
	}
	c.store.Reconcile(view.Order, mutation)
}
