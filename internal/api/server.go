//nolint:revive // Package name 'api' is intentionally generic for the HTTP API layer
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/lbartuzi/sidecar-Jellyfin/internal/api/handlers"
	apimw "github.com/lbartuzi/sidecar-Jellyfin/internal/api/middleware"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/api/ratelimit"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/app"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/history"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/logger"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/scan"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/scheduler"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/websocket"
	"github.com/lbartuzi/sidecar-Jellyfin/web"
)

// MessageScanRequest asks the server to start a library scan.
const MessageScanRequest = "scan:request"

// Server handles HTTP requests for the organizer.
type Server struct {
	echo      *echo.Echo
	app       *app.App
	hub       *websocket.Hub
	scheduler *scheduler.Scheduler
	limiter   *ratelimit.Limiter
	logs      LogsProvider
	indexHTML []byte
	startTime time.Time
	logger    zerolog.Logger

	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	stopCleanup func()
}

// NewServer creates a new API server instance. hub may be nil, in which
// case /ws is not served.
func NewServer(a *app.App, sched *scheduler.Scheduler, hub *websocket.Hub, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		echo:      e,
		app:       a,
		hub:       hub,
		scheduler: sched,
		limiter:   ratelimit.NewLimiter(ratelimit.DefaultRequestsPerMinute, ratelimit.DefaultWindowDuration),
		startTime: time.Now(),
		logger:    logger.With().Str("component", "api").Logger(),
		ctx:       ctx,
		cancel:    cancel,
	}

	if distFS, err := web.DistFS(); err == nil {
		if b, err := fs.ReadFile(distFS, "index.html"); err == nil {
			s.indexHTML = b
		}
	}
	if s.indexHTML == nil {
		s.logger.Warn().Msg("Review UI not embedded")
	}

	if hub != nil {
		hub.Handle(MessageScanRequest, func(json.RawMessage) { s.startBackgroundScan() })
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// SetLogsProvider enables the log endpoints.
func (s *Server) SetLogsProvider(p LogsProvider) {
	s.logs = p
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(apimw.SecurityHeaders())

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("Request error")
			} else {
				s.logger.Debug().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("Request")
			}
			return nil
		},
	}))

	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			return c.Request().Header.Get("Upgrade") == "websocket"
		},
	}))
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/", s.index)
	s.echo.GET("/health", s.healthCheck)

	// Review workflow, kept at the root for the UI and existing scripts
	limited := s.limiter.Middleware()
	s.echo.POST("/scan", s.scan, limited)
	s.echo.GET("/suggestions", s.listSuggestions)
	s.echo.GET("/suggestions/:id", s.getSuggestion)
	s.echo.POST("/apply/:id", s.applySuggestion, limited)

	if s.hub != nil {
		s.echo.GET("/ws", s.hub.HandleWebSocket)
	}

	api := s.echo.Group("/api/v1")
	api.GET("/status", s.getStatus)
	api.GET("/activities", s.listActivities)

	history.NewHandlers(s.app.History).RegisterRoutes(api.Group("/applications"))
	NewLogsHandlers(s).RegisterRoutes(api.Group("/logs"))

	if s.scheduler != nil {
		handlers.NewSchedulerHandler(s.scheduler).RegisterRoutes(api.Group("/tasks"))
	}
}

// GetRecentLogs implements LogsProvider over the configured provider.
func (s *Server) GetRecentLogs() []logger.LogEntry {
	if s.logs == nil {
		return nil
	}
	return s.logs.GetRecentLogs()
}

// GetLogFilePath implements LogsProvider over the configured provider.
func (s *Server) GetLogFilePath() string {
	if s.logs == nil {
		return ""
	}
	return s.logs.GetLogFilePath()
}

// Start begins listening for HTTP requests and starts the scheduler.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("Starting HTTP server")

	s.stopCleanup = s.limiter.StartCleanup(5 * time.Minute)

	if s.scheduler != nil {
		if err := s.scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	return s.echo.Start(address)
}

// Shutdown stops accepting requests, then cancels background work and
// waits for it to return.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server")

	err := s.echo.Shutdown(ctx)

	s.cancel()
	if s.stopCleanup != nil {
		s.stopCleanup()
	}
	if s.scheduler != nil {
		if serr := s.scheduler.Stop(); serr != nil {
			s.logger.Warn().Err(serr).Msg("Failed to stop scheduler")
		}
	}
	s.wg.Wait()

	return err
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// startBackgroundScan runs a scan detached from any request.
func (s *Server) startBackgroundScan() {
	s.wg.Go(func() {
		if _, err := s.app.Scan.Run(s.ctx); err != nil {
			if errors.Is(err, scan.ErrScanInProgress) {
				s.logger.Debug().Msg("Scan request ignored, scan already running")
				return
			}
			s.logger.Error().Err(err).Msg("Background scan failed")
		}
	})
}

// --- Handler implementations ---

// index serves the review UI.
// GET /
func (s *Server) index(c echo.Context) error {
	if s.indexHTML == nil {
		return echo.NewHTTPError(http.StatusNotFound, "review UI not available")
	}
	return c.HTMLBlob(http.StatusOK, s.indexHTML)
}

// GET /health
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{
		"ok":      true,
		"dry_run": s.app.Config.Apply.DryRun,
	})
}
