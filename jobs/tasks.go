package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/netadmind/netadmind/internal/audit"
	"github.com/netadmind/netadmind/internal/ipam"
	"github.com/netadmind/netadmind/internal/observability"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditPurge removes audit records past the retention window.
	TaskAuditPurge = "audit:purge"
	// TaskIPAMConflictScan scans allocations for cross-pool conflicts.
	TaskIPAMConflictScan = "ipam:conflict_scan"
)

// NewAuditPurgeTask constructs the retention purge task.
func NewAuditPurgeTask() *asynq.Task {
	return asynq.NewTask(TaskAuditPurge, nil)
}

// NewIPAMConflictScanTask constructs the conflict scan task.
func NewIPAMConflictScanTask() *asynq.Task {
	return asynq.NewTask(TaskIPAMConflictScan, nil)
}

// AuditPurgeHandler returns the handler that enforces audit retention.
func AuditPurgeHandler(svc *audit.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		purged, err := svc.PurgeExpired(ctx)
		if err != nil {
			logger.Error("audit purge", slog.Any("error", err))
			return err
		}
		logger.Info("audit purge completed", slog.Int64("purged", purged))
		return nil
	}
}

// IPAMConflictScanHandler returns the handler that scans for allocation
// conflicts and publishes the count as a gauge.
func IPAMConflictScanHandler(svc *ipam.Service, metrics *observability.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		conflicts, err := svc.DetectConflicts(ctx)
		if err != nil {
			logger.Error("ipam conflict scan", slog.Any("error", err))
			return err
		}
		if metrics != nil {
			metrics.SetIPAMConflicts(len(conflicts))
		}
		if len(conflicts) > 0 {
			logger.Warn("ipam conflicts detected", slog.Int("count", len(conflicts)))
		} else {
			logger.Info("ipam conflict scan clean")
		}
		return nil
	}
}
