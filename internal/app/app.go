// Package app wires the organizer's services together so the HTTP server
// and the one-shot CLI commands share one construction path.
package app

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lbartuzi/sidecar-Jellyfin/internal/apply"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/config"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/history"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/jellyfin"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/progress"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/scan"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/scheduler"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/scheduler/tasks"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/store"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/suggest"
)

// App holds the long-lived services.
type App struct {
	Config   *config.Config
	Store    *store.Store
	Jellyfin *jellyfin.Client
	Engine   *suggest.Engine
	History  *history.Service
	Progress *progress.Manager
	Scan     *scan.Service
	Apply    *apply.Service
}

// New builds every service on top of an open, migrated database. hub may be
// nil when nothing listens for progress events.
func New(db *sql.DB, cfg *config.Config, hub progress.Broadcaster, logger zerolog.Logger) *App {
	a := &App{Config: cfg}

	a.Store = store.New(db, logger)
	a.Jellyfin = jellyfin.NewClient(cfg.Jellyfin, logger)
	a.Engine = suggest.NewEngine(cfg.Suggest.EngineOptions(logger), logger)
	a.History = history.NewService(db, logger)
	a.Progress = progress.NewManager(hub, logger)

	a.Scan = scan.NewService(a.Jellyfin, a.Store, a.Engine, cfg.Apply.DryRun, logger)
	a.Scan.SetProgress(a.Progress)

	a.Apply = apply.NewService(a.Store, a.Jellyfin, logger)
	// create + attach, each bounded by the client timeout
	a.Apply.SetTimeout(2 * time.Duration(cfg.Jellyfin.Timeout) * time.Second)
	a.Apply.SetHistory(a.History)
	a.Apply.SetProgress(a.Progress)

	return a
}

// NewScheduler creates a scheduler with the organizer's background tasks
// registered. The caller starts and stops it, and decides when the first
// scan runs.
func (a *App) NewScheduler(logger zerolog.Logger) (*scheduler.Scheduler, error) {
	sched, err := scheduler.New(logger)
	if err != nil {
		return nil, err
	}

	if err := tasks.RegisterLibraryScanTask(sched, a.Scan, a.Config.Scan.Schedule, false, logger); err != nil {
		return nil, fmt.Errorf("failed to register library scan task: %w", err)
	}
	if err := tasks.RegisterHistoryCleanupTask(sched, a.History, a.Config.Apply.HistoryRetentionDays); err != nil {
		return nil, fmt.Errorf("failed to register history cleanup task: %w", err)
	}

	return sched, nil
}
