package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/rentflow/rentflow/internal/jobs"
)

// KeyPruner deletes idempotency keys older than the retention.
type KeyPruner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyCleanupJob prunes replay keys for order creation.
type IdempotencyCleanupJob struct {
	Pruner    KeyPruner
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	Retention time.Duration
}

// NewIdempotencyCleanupJob wires dependencies for the prune handler.
func NewIdempotencyCleanupJob(pruner KeyPruner, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	return &IdempotencyCleanupJob{
		Pruner:    pruner,
		Logger:    logger.With(slog.String("job", TaskIdempotencyCleanup)),
		Metrics:   metrics,
		Retention: DefaultIdempotencyRetention,
	}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Pruner == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	tracker := j.Metrics.Track(TaskIdempotencyCleanup)
	defer func() {
		err = tracker.End(err)
	}()

	removed, err := j.Pruner.Cleanup(ctx, j.Retention)
	if err != nil {
		j.Logger.Error("prune idempotency keys", slog.Any("error", err))
		return err
	}
	if removed > 0 {
		j.Logger.Info("pruned idempotency keys", slog.Int64("removed", removed))
	}
	return nil
}
