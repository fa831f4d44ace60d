package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/spf13/cobra"

	"github.com/lbartuzi/sidecar-Jellyfin/internal/api"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/app"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/config"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/database"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/jellyfin"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/logger"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/scheduler"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/scheduler/tasks"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/startup"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/websocket"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the review UI, HTTP API and scheduled scans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(runCtx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	lock, err := lockDataDir(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	log := logger.New(logger.Config{
		Level:           cfg.Logging.Level,
		Format:          cfg.Logging.Format,
		Path:            cfg.Logging.Path,
		MaxSizeMB:       cfg.Logging.MaxSizeMB,
		MaxBackups:      cfg.Logging.MaxBackups,
		MaxAgeDays:      cfg.Logging.MaxAgeDays,
		Compress:        cfg.Logging.Compress,
		EnableStreaming: true,
	})
	defer log.Close()

	log.Info().
		Str("version", config.Version).
		Str("dataDir", cfg.DataDir).
		Bool("dryRun", cfg.Apply.DryRun).
		Msg("Starting organizer")

	if err := cfg.RequireJellyfin(); err != nil {
		log.Warn().Err(err).Msg("Scans and applies will fail until the Jellyfin URL is set")
	}

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	log.Info().Str("path", db.Path()).Msg("Database ready")

	hub := websocket.NewHub()
	hubCtx, stopHub := context.WithCancel(context.WithoutCancel(ctx))
	defer stopHub()
	go hub.Run(hubCtx)

	// Enable log streaming via WebSocket now that hub is available
	log.SetBroadcastHub(hub)

	a := app.New(db.Conn(), cfg, hub, log.Logger)
	sched, err := a.NewScheduler(log.Logger)
	if err != nil {
		return err
	}

	server := api.NewServer(a, sched, hub, log.Logger)
	server.SetLogsProvider(log)

	errCh := make(chan error, 1)
	go func() {
		addr := cfg.Server.Address()
		log.Info().Str("address", addr).Msg("HTTP server listening")
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	waitCtx, cancelWait := context.WithCancel(ctx)
	defer cancelWait()
	var wg sync.WaitGroup
	wg.Go(func() { waitForJellyfin(waitCtx, a.Jellyfin, sched, cfg.Scan.RunOnStart, log.Logger) })

	select {
	case <-ctx.Done():
		log.Info().Msg("Received shutdown signal")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("HTTP server failed")
			cancelWait()
			wg.Wait()
			shutdown(server, log)
			return err
		}
	}

	wg.Wait()
	shutdown(server, log)
	log.Info().Msg("Server stopped")
	return nil
}

func shutdown(server *api.Server, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
}

// waitForJellyfin logs once the media server answers and then, if asked,
// starts the first library scan. The server may still be starting, so
// connection errors and 5xx responses are retried.
func waitForJellyfin(ctx context.Context, client *jellyfin.Client, sched *scheduler.Scheduler, scanOnStart bool, log zerolog.Logger) {
	if !client.IsConfigured() {
		return
	}

	retry := startup.DefaultRetryConfig()
	retry.Retryable = jellyfinRetryable

	var info jellyfin.ServerInfo
	err := startup.WithRetry(ctx, "jellyfin connection", retry, func(ctx context.Context) error {
		var err error
		info, err = client.Ping(ctx)
		return err
	}, log)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn().Err(err).Msg("Jellyfin is not reachable; scans will fail until it is")
		}
		return
	}

	log.Info().
		Str("server", info.ServerName).
		Str("version", info.Version).
		Msg("Connected to Jellyfin")

	if scanOnStart {
		if err := sched.RunNow(tasks.LibraryScanTaskID); err != nil {
			log.Warn().Err(err).Msg("Failed to start initial library scan")
		}
	}
}

func jellyfinRetryable(err error) bool {
	var se *jellyfin.StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= http.StatusInternalServerError
	}
	return startup.IsNetworkError(err)
}
