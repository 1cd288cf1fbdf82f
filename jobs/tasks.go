package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/earthrod-erp/earthrod-erp/internal/reporting"
	"github.com/earthrod-erp/earthrod-erp/internal/stageledger"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSnapshotWarmup refreshes the cached stock snapshot.
	TaskSnapshotWarmup = "reporting:snapshot-warmup"
	// TaskLedgerIntegrity recomputes stage counters from ledger history
	// and reports drift.
	TaskLedgerIntegrity = "ledger:integrity"
)

// NewSnapshotWarmupTask constructs a snapshot warmup task.
func NewSnapshotWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskSnapshotWarmup, nil)
}

// NewLedgerIntegrityTask constructs a ledger integrity scan task.
func NewLedgerIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskLedgerIntegrity, nil)
}

// SnapshotWarmer refreshes the reporting cache.
type SnapshotWarmer interface {
	Refresh(ctx context.Context) (reporting.Snapshot, error)
}

// HandleSnapshotWarmup returns a handler that refreshes the stock
// snapshot cache.
func HandleSnapshotWarmup(logger *slog.Logger, warmer SnapshotWarmer) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		snap, err := warmer.Refresh(ctx)
		if err != nil {
			logger.Error("snapshot warmup", slog.Any("error", err))
			return err
		}
		logger.Info("snapshot warmed",
			slog.Int("products", len(snap.StageInventory)),
			slog.Int("materials", len(snap.RawMaterials)))
		return nil
	}
}

// IntegrityChecker recomputes stage counters from ledger history.
type IntegrityChecker interface {
	CheckIntegrity(ctx context.Context) ([]stageledger.Drift, error)
}

// HandleLedgerIntegrity returns a handler that scans for counter drift.
// Drift is reported, never auto-corrected; a human decides the fix.
func HandleLedgerIntegrity(logger *slog.Logger, checker IntegrityChecker) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		drifts, err := checker.CheckIntegrity(ctx)
		if err != nil {
			logger.Error("ledger integrity scan", slog.Any("error", err))
			return err
		}
		if len(drifts) == 0 {
			logger.Info("ledger integrity scan clean")
			return nil
		}
		for _, d := range drifts {
			logger.Warn("stage counter drift",
				slog.String("product", d.ProductCode),
				slog.String("stage", d.Stage),
				slog.Int64("counter", d.Counter),
				slog.Int64("expected", d.Expected))
		}
		return nil
	}
}
