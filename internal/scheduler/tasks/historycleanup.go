package tasks

import (
	"context"
	"time"

	"github.com/lbartuzi/sidecar-Jellyfin/internal/history"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/scheduler"
)

const HistoryCleanupTaskID = "history-cleanup"

// RegisterHistoryCleanupTask registers the daily prune of the applications
// ledger. A non-positive retention keeps entries forever and registers nothing.
func RegisterHistoryCleanupTask(sched *scheduler.Scheduler, historyService *history.Service, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	retention := time.Duration(retentionDays) * 24 * time.Hour

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          HistoryCleanupTaskID,
		Name:        "History Cleanup",
		Description: "Deletes applications ledger entries older than the retention period",
		Cron:        "0 2 * * *",
		Func: func(ctx context.Context) error {
			_, err := historyService.Prune(ctx, retention)
			return err
		},
	})
}
