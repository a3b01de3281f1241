package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const triggerTimeout = 2 * time.Second

// Enqueuer submits sweep tasks to the worker queue.
type Enqueuer interface {
	EnqueueSweepExpired(ctx context.Context, branchID int64, unique time.Duration) error
}

// Trigger turns client read activity into at most one queued sweep per
// branch per gate window.
type Trigger struct {
	gate   *Gate
	queue  Enqueuer
	logger *slog.Logger
}

// NewTrigger builds a Trigger.
func NewTrigger(gate *Gate, queue Enqueuer, logger *slog.Logger) *Trigger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trigger{gate: gate, queue: queue, logger: logger.With(slog.String("component", "sweep_trigger"))}
}

// Touch fires in the background and never reports failure to the reader.
func (t *Trigger) Touch(ctx context.Context, branchID int64) {
	if t == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), triggerTimeout)
		defer cancel()
		if _, err := t.Fire(ctx, branchID); err != nil {
			t.logger.Warn("trigger sweep", slog.Int64("branch_id", branchID), slog.Any("error", err))
		}
	}()
}

// Fire enqueues a sweep when the gate opens. It reports whether a task was
// submitted.
func (t *Trigger) Fire(ctx context.Context, branchID int64) (bool, error) {
	open, err := t.gate.Open(ctx, branchID)
	if err != nil || !open {
		return false, err
	}
	err = t.queue.EnqueueSweepExpired(ctx, branchID, t.gate.Window())
	if errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
