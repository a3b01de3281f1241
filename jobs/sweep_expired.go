package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/rentflow/rentflow/internal/jobs"
	"github.com/rentflow/rentflow/internal/sweeper"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Sweeper runs one expiration pass.
type Sweeper interface {
	Sweep(ctx context.Context, branchID int64, now time.Time) (sweeper.Result, error)
}

// SweepExpiredJob cancels scheduled orders whose start has passed.
type SweepExpiredJob struct {
	Sweeper Sweeper
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewSweepExpiredJob wires dependencies for the sweep handler.
func NewSweepExpiredJob(s Sweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *SweepExpiredJob {
	return &SweepExpiredJob{
		Sweeper: s,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskSweepExpired tasks.
func (j *SweepExpiredJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Sweeper == nil {
		return errors.New("sweep expired: handler not configured")
	}
	var payload SweepExpiredPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskSweepExpired)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.logger().With(slog.Int64("branch_id", payload.BranchID))
	start := j.now()
	res, err := j.Sweeper.Sweep(ctx, payload.BranchID, start)
	if err != nil {
		logger.Error("sweep failed", slog.Any("error", err))
		return err
	}
	j.metrics().RecordSweep(payload.BranchID, jobmetrics.SweepCounts{
		Expired: res.Expired,
		Overdue: res.Overdue,
		Skipped: res.Skipped,
		Failed:  res.Failed,
	})
	logger.Debug("sweep completed",
		slog.Int("expired", res.Expired),
		slog.Int("overdue", res.Overdue),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *SweepExpiredJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSweepExpired))
	}
	return slog.Default().With(slog.String("job", TaskSweepExpired))
}

func (j *SweepExpiredJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *SweepExpiredJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
