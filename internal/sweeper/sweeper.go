// Package sweeper cancels scheduled orders whose start has passed and marks
// active orders past their window as pending return.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rentflow/rentflow/internal/shared"
)

const defaultBatch = 200

// Orders is the slice of the lifecycle service the sweeper drives. Both
// transitions are conditional: false means another writer got there first.
type Orders interface {
	ExpiredCandidates(ctx context.Context, branchID int64, now time.Time, limit int) ([]uuid.UUID, error)
	ExpireOrder(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	OverdueCandidates(ctx context.Context, branchID int64, now time.Time, limit int) ([]uuid.UUID, error)
	MarkOverdue(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
}

// Result summarises one sweep.
type Result struct {
	Expired int
	Overdue int
	Skipped int
	Failed  int
}

// Sweeper runs expiry passes for one branch, or every branch for id 0.
type Sweeper struct {
	orders Orders
	logger *slog.Logger
	batch  int
}

// New builds a Sweeper.
func New(orders Orders, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		orders: orders,
		logger: logger.With(slog.String("component", "sweeper")),
		batch:  defaultBatch,
	}
}

// Sweep cancels overdue bookings and marks ended rentals. Per-order failures
// are logged and counted; only a failure to list candidates is returned.
func (s *Sweeper) Sweep(ctx context.Context, branchID int64, now time.Time) (Result, error) {
	var res Result
	expired, err := s.orders.ExpiredCandidates(ctx, branchID, now, s.batch)
	if err != nil {
		return res, fmt.Errorf("list expired orders: %w", err)
	}
	for _, id := range expired {
		s.apply(ctx, id, now, "expire", s.orders.ExpireOrder, &res.Expired, &res)
	}

	overdue, err := s.orders.OverdueCandidates(ctx, branchID, now, s.batch)
	if err != nil {
		return res, fmt.Errorf("list overdue orders: %w", err)
	}
	for _, id := range overdue {
		s.apply(ctx, id, now, "mark overdue", s.orders.MarkOverdue, &res.Overdue, &res)
	}

	if res.Expired+res.Overdue+res.Failed > 0 {
		s.logger.Info("sweep finished",
			slog.Int64("branch_id", branchID),
			slog.Int("expired", res.Expired),
			slog.Int("overdue", res.Overdue),
			slog.Int("skipped", res.Skipped),
			slog.Int("failed", res.Failed),
		)
	}
	return res, nil
}

func (s *Sweeper) apply(ctx context.Context, id uuid.UUID, now time.Time, op string,
	fn func(context.Context, uuid.UUID, time.Time) (bool, error), counter *int, res *Result) {
	changed, err := fn(ctx, id, now)
	switch {
	case err == nil && changed:
		*counter++
	case err == nil, errors.Is(err, shared.ErrConflict), errors.Is(err, shared.ErrNotFound):
		// a concurrent writer moved the order on; nothing left to do
		res.Skipped++
	default:
		res.Failed++
		s.logger.Warn(op, slog.String("order_id", id.String()), slog.Any("error", err))
	}
}
