package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-smb/internal/dashboard"
	jobmetrics "github.com/odyssey-erp/odyssey-smb/internal/jobs"
)

// TaskDashboardWarmup recomputes dashboard stats ahead of the first request.
const TaskDashboardWarmup = "dashboard:warmup"

// KeyCleaner purges old idempotency keys.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyCleanupJob deletes idempotency keys past their retention.
type IdempotencyCleanupJob struct {
	Store     KeyCleaner
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// Handle purges the keys.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	if _, err := decodeScanPayload(t); err != nil {
		return err
	}
	retention := j.Retention
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	tracker := jobMetrics(j.Metrics).Track(TaskIdempotencyCleanup)
	defer func() { err = tracker.End(err) }()

	removed, err := j.Store.Cleanup(ctx, retention)
	if err != nil {
		return err
	}
	jobMetrics(j.Metrics).AddFindings(TaskIdempotencyCleanup, "keys_removed", int(removed))
	jobLogger(j.Logger, TaskIdempotencyCleanup).Info("idempotency keys purged",
		slog.Int64("removed", removed), slog.Duration("retention", retention))
	return nil
}

// StatsLoader computes and caches dashboard stats.
type StatsLoader interface {
	Stats(ctx context.Context) (dashboard.Stats, error)
}

// DashboardWarmupJob fills the dashboard cache for the current version.
type DashboardWarmupJob struct {
	Dashboard StatsLoader
	Timeout   time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// Handle loads the stats once.
func (j *DashboardWarmupJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Dashboard == nil {
		return errors.New("dashboard warmup: handler not configured")
	}
	if _, err := decodeScanPayload(t); err != nil {
		return err
	}
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tracker := jobMetrics(j.Metrics).Track(TaskDashboardWarmup)
	defer func() { err = tracker.End(err) }()

	stats, err := j.Dashboard.Stats(ctx)
	if err != nil {
		jobLogger(j.Logger, TaskDashboardWarmup).Warn("dashboard warmup failed", slog.Any("error", err))
		return err
	}
	jobLogger(j.Logger, TaskDashboardWarmup).Debug("dashboard warmed", slog.Time("generated_at", stats.GeneratedAt))
	return nil
}
