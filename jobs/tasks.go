package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSweepExpired is the task type for the order expiration sweep.
	TaskSweepExpired = "orders:sweep_expired"
	// DefaultSweepCron is the backstop schedule when none is configured.
	DefaultSweepCron = "*/5 * * * *"
)

// SweepExpiredPayload selects the branch to sweep. Zero sweeps every branch.
type SweepExpiredPayload struct {
	BranchID int64 `json:"branch_id"`
}

// NewSweepExpiredTask constructs an Asynq task.
func NewSweepExpiredTask(branchID int64) (*asynq.Task, error) {
	data, err := json.Marshal(SweepExpiredPayload{BranchID: branchID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSweepExpired, data), nil
}

// SweepBackstop builds the all-branches cron registration. The expression
// uses the standard five-field syntax.
func SweepBackstop(spec string) (CronRegistration, error) {
	if spec == "" {
		spec = DefaultSweepCron
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return CronRegistration{}, fmt.Errorf("sweep cron %q: %w", spec, err)
	}
	task, err := NewSweepExpiredTask(0)
	if err != nil {
		return CronRegistration{}, err
	}
	return CronRegistration{
		Spec:    spec,
		Task:    task,
		Options: []asynq.Option{asynq.MaxRetry(1), asynq.Queue(QueueDefault)},
	}, nil
}

const (
	// TaskIdempotencyCleanup is the task type that prunes stale idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
	// IdempotencyCleanupCron runs the prune once an hour.
	IdempotencyCleanupCron = "17 * * * *"
	// DefaultIdempotencyRetention keeps keys long enough for client retries.
	DefaultIdempotencyRetention = 48 * time.Hour
)

// IdempotencyCleanupSchedule builds the hourly prune registration.
func IdempotencyCleanupSchedule() (CronRegistration, error) {
	if _, err := cron.ParseStandard(IdempotencyCleanupCron); err != nil {
		return CronRegistration{}, err
	}
	return CronRegistration{
		Spec:    IdempotencyCleanupCron,
		Task:    asynq.NewTask(TaskIdempotencyCleanup, nil),
		Options: []asynq.Option{asynq.MaxRetry(0), asynq.Queue(QueueDefault)},
	}, nil
}
