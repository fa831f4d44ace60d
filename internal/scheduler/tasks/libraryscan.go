package tasks

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/lbartuzi/sidecar-Jellyfin/internal/scan"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/scheduler"
)

const LibraryScanTaskID = "library-scan"

// LibraryScanTask handles scheduled library scanning.
type LibraryScanTask struct {
	scanner *scan.Service
	logger  zerolog.Logger
}

// NewLibraryScanTask creates a new library scan task.
func NewLibraryScanTask(scanner *scan.Service, logger zerolog.Logger) *LibraryScanTask {
	return &LibraryScanTask{
		scanner: scanner,
		logger:  logger.With().Str("task", LibraryScanTaskID).Logger(),
	}
}

// Run executes a scan unless one is already running.
func (t *LibraryScanTask) Run(ctx context.Context) error {
	if _, err := t.scanner.Run(ctx); err != nil {
		if errors.Is(err, scan.ErrScanInProgress) {
			t.logger.Info().Msg("Scan already active, skipping")
			return nil
		}
		return err
	}
	return nil
}

// RegisterLibraryScanTask registers the library scan task. An empty cron
// leaves the task available for manual runs only.
func RegisterLibraryScanTask(sched *scheduler.Scheduler, scanner *scan.Service, cron string, runOnStart bool, logger zerolog.Logger) error {
	task := NewLibraryScanTask(scanner, logger)

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          LibraryScanTaskID,
		Name:        "Library Scan",
		Description: "Fetches the Jellyfin library and regenerates suggestions",
		Cron:        cron,
		RunOnStart:  runOnStart,
		Func:        task.Run,
	})
}
