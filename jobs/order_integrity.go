package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	jobmetrics "github.com/odyssey-erp/odyssey-smb/internal/jobs"
	"github.com/odyssey-erp/odyssey-smb/internal/orders"
	"github.com/odyssey-erp/odyssey-smb/internal/platform/cache"
)

// TotalVerifier finds orders whose stored total disagrees with their lines.
type TotalVerifier interface {
	VerifyTotals(ctx context.Context, limit decimal.Decimal) ([]orders.TotalMismatch, error)
}

// MismatchGauge receives the size of each sweep.
type MismatchGauge interface {
	SetTotalMismatches(n int)
}

// OrderIntegrityJob sweeps order totals nightly.
type OrderIntegrityJob struct {
	Orders  TotalVerifier
	Locker  Locker
	Gauge   MismatchGauge
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	LockTTL time.Duration
}

// Handle runs the sweep. Mismatches are reported, never repaired here: the
// read path already recomputes a corrupt total from the lines.
func (j *OrderIntegrityJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Orders == nil {
		return errors.New("order integrity: handler not configured")
	}
	if _, err := decodeScanPayload(t); err != nil {
		return err
	}
	logger := jobLogger(j.Logger, TaskOrderTotalIntegrity)

	release, err := lockJob(ctx, j.Locker, TaskOrderTotalIntegrity, j.LockTTL)
	if errors.Is(err, cache.ErrLocked) {
		logger.Info("order integrity sweep already running")
		return nil
	}
	if err != nil {
		return err
	}
	defer release(context.WithoutCancel(ctx))

	tracker := jobMetrics(j.Metrics).Track(TaskOrderTotalIntegrity)
	defer func() { err = tracker.End(err) }()

	start := time.Now()
	mismatches, err := j.Orders.VerifyTotals(ctx, decimal.Zero)
	if err != nil {
		logger.Error("verify order totals", slog.Any("error", err))
		return fmt.Errorf("order integrity: %w", err)
	}
	if j.Gauge != nil {
		j.Gauge.SetTotalMismatches(len(mismatches))
	}
	jobMetrics(j.Metrics).AddFindings(TaskOrderTotalIntegrity, "total_mismatches", len(mismatches))
	logger.Info("completed order integrity sweep", slog.Int("mismatches", len(mismatches)), slog.Duration("duration", time.Since(start)))
	return nil
}
