package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lbartuzi/sidecar-Jellyfin/internal/apply"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/config"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/jellyfin"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/progress"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/scan"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/store"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/suggest"
)

const pingTimeout = 5 * time.Second

// scan runs a library scan and waits for it to finish.
// POST /scan
func (s *Server) scan(c echo.Context) error {
	res, err := s.app.Scan.Run(c.Request().Context())
	if err != nil {
		return scanError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func scanError(err error) error {
	var se *jellyfin.StatusError
	switch {
	case errors.Is(err, scan.ErrScanInProgress):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, jellyfin.ErrNotConfigured):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &se):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// listSuggestions returns stored suggestions, optionally filtered.
// GET /suggestions?kind=collection|tag&pending=true
func (s *Server) listSuggestions(c echo.Context) error {
	opts := store.ListOptions{Kind: suggest.Kind(c.QueryParam("kind"))}
	if opts.Kind != "" && !opts.Kind.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "kind must be collection or tag")
	}
	if p := c.QueryParam("pending"); p != "" {
		pending, err := strconv.ParseBool(p)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid pending flag")
		}
		opts.Pending = pending
	}

	suggestions, err := s.app.Store.ListSuggestions(c.Request().Context(), opts)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, suggestions)
}

// getSuggestion returns a single suggestion.
// GET /suggestions/:id
func (s *Server) getSuggestion(c echo.Context) error {
	sg, err := s.app.Store.GetSuggestion(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "suggestion not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, sg)
}

// applySuggestion previews or executes a suggestion. Without a mode the
// configured dry-run setting decides.
// POST /apply/:id?mode=preview|execute
func (s *Server) applySuggestion(c echo.Context) error {
	mode, err := apply.ParseMode(c.QueryParam("mode"), s.app.Config.Apply.DryRun)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	res, err := s.app.Apply.Apply(c.Request().Context(), c.Param("id"), mode)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, res)
	case errors.Is(err, apply.ErrApplyFailed):
		return c.JSON(http.StatusBadGateway, res)
	case errors.Is(err, apply.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "suggestion not found")
	case errors.Is(err, apply.ErrUnsupportedKind), errors.Is(err, apply.ErrInvalidMode):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

type jellyfinStatus struct {
	Configured bool   `json:"configured"`
	Reachable  bool   `json:"reachable"`
	ServerName string `json:"server_name,omitempty"`
	Version    string `json:"version,omitempty"`
	Error      string `json:"error,omitempty"`
}

type statusResponse struct {
	Version     string         `json:"version"`
	StartTime   time.Time      `json:"start_time"`
	DryRun      bool           `json:"dry_run"`
	Items       int            `json:"items"`
	Suggestions int            `json:"suggestions"`
	Applied     int            `json:"applied"`
	Scanning    bool           `json:"scanning"`
	LastScan    *scan.LastRun  `json:"last_scan,omitempty"`
	Jellyfin    jellyfinStatus `json:"jellyfin"`
}

// getStatus reports library counts, scan state and server reachability.
// GET /api/v1/status
func (s *Server) getStatus(c echo.Context) error {
	ctx := c.Request().Context()

	stats, err := s.app.Store.Stats(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp := statusResponse{
		Version:     config.Version,
		StartTime:   s.startTime,
		DryRun:      s.app.Config.Apply.DryRun,
		Items:       stats.Items,
		Suggestions: stats.Suggestions,
		Applied:     stats.Applied,
		Scanning:    s.app.Scan.Running(),
		Jellyfin:    s.pingJellyfin(ctx),
	}
	if last, ok := s.app.Scan.Last(); ok {
		resp.LastScan = &last
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) pingJellyfin(ctx context.Context) jellyfinStatus {
	st := jellyfinStatus{Configured: s.app.Jellyfin.IsConfigured()}
	if !st.Configured {
		return st
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	info, err := s.app.Jellyfin.Ping(ctx)
	if err != nil {
		st.Error = err.Error()
		return st
	}
	st.Reachable = true
	st.ServerName = info.ServerName
	st.Version = info.Version
	return st
}

// listActivities returns scans and applies currently tracked.
// GET /api/v1/activities
func (s *Server) listActivities(c echo.Context) error {
	activities := s.app.Progress.GetAllActivities()
	if activities == nil {
		activities = []progress.Activity{}
	}
	return c.JSON(http.StatusOK, activities)
}
