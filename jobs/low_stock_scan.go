package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-smb/internal/jobs"
	"github.com/odyssey-erp/odyssey-smb/internal/inventory"
	"github.com/odyssey-erp/odyssey-smb/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-smb/internal/shared"
)

// LowStockSource lists items below their minimum stock.
type LowStockSource interface {
	LowStock(ctx context.Context) ([]inventory.ItemView, error)
}

// Locker guards singleton jobs across worker replicas.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context), error)
}

// LowStockGauge receives the size of each scan.
type LowStockGauge interface {
	SetLowStockItems(n int)
}

// LowStockScanJob reports items below their minimum stock.
type LowStockScanJob struct {
	Stock   LowStockSource
	Locker  Locker
	Gauge   LowStockGauge
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	LockTTL time.Duration
}

// Handle executes the scan. A scan already running elsewhere is skipped.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Stock == nil {
		return errors.New("low stock scan: handler not configured")
	}
	if _, err := decodeScanPayload(t); err != nil {
		return err
	}
	logger := jobLogger(j.Logger, TaskLowStockScan)

	release, err := lockJob(ctx, j.Locker, TaskLowStockScan, j.LockTTL)
	if errors.Is(err, cache.ErrLocked) {
		logger.Info("low stock scan already running")
		return nil
	}
	if err != nil {
		return err
	}
	defer release(context.WithoutCancel(ctx))

	tracker := jobMetrics(j.Metrics).Track(TaskLowStockScan)
	defer func() { err = tracker.End(err) }()

	start := time.Now()
	items, err := j.Stock.LowStock(ctx)
	if err != nil {
		logger.Error("load low stock items", slog.Any("error", err))
		return fmt.Errorf("low stock scan: %w", err)
	}
	for _, item := range items {
		logger.Warn("item below minimum stock",
			slog.Int64("item_id", item.ID),
			slog.String("code", item.Code),
			slog.String("current", item.Stock.CurrentStock.String()),
			slog.String("minimum", item.Stock.MinStock.String()),
		)
	}
	if j.Gauge != nil {
		j.Gauge.SetLowStockItems(len(items))
	}
	jobMetrics(j.Metrics).AddFindings(TaskLowStockScan, "low_stock_items", len(items))
	logger.Info("completed low stock scan", slog.Int("items", len(items)), slog.Duration("duration", time.Since(start)))
	return nil
}

func lockJob(ctx context.Context, locker Locker, job string, ttl time.Duration) (func(context.Context), error) {
	if locker == nil {
		return func(context.Context) {}, nil
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return locker.TryLock(ctx, shared.JobLockKey(job), ttl)
}
