// Package scan refreshes the library snapshot and regenerates suggestions.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lbartuzi/sidecar-Jellyfin/internal/media"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/progress"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/suggest"
)

// ActivityID identifies scan progress events.
const ActivityID = "library-scan"

var ErrScanInProgress = errors.New("a library scan is already running")

// Source lists the library.
type Source interface {
	FetchMovies(ctx context.Context) ([]media.Item, error)
}

// Store persists scan output.
type Store interface {
	UpsertItems(ctx context.Context, items []media.Item, now time.Time) (int, error)
	ReplaceSuggestions(ctx context.Context, suggestions []suggest.Suggestion) error
}

// Generator produces suggestions from items.
type Generator interface {
	Generate(items []media.Item) []suggest.Suggestion
}

// Reporter receives scan progress.
type Reporter interface {
	StartActivity(id string, activityType progress.ActivityType, title string)
	UpdateActivity(id, subtitle string, progress int)
	CompleteActivity(id, subtitle string)
	FailActivity(id, errorMsg string)
	CancelActivity(id string)
}

// Result summarizes a scan.
type Result struct {
	Items       int  `json:"items"`
	Suggestions int  `json:"suggestions"`
	DryRun      bool `json:"dry_run"`
}

// Service runs library scans. At most one scan runs at a time.
type Service struct {
	source   Source
	store    Store
	engine   Generator
	progress Reporter
	dryRun   bool
	now      func() time.Time
	logger   zerolog.Logger

	mu      sync.Mutex
	running bool
	last    *LastRun
}

// LastRun describes the most recent finished scan.
type LastRun struct {
	Result     Result    `json:"result"`
	FinishedAt time.Time `json:"finished_at"`
	Duration   string    `json:"duration"`
	Error      string    `json:"error,omitempty"`
}

// NewService creates a scan service. dryRun is echoed in results.
func NewService(source Source, st Store, engine Generator, dryRun bool, logger zerolog.Logger) *Service {
	return &Service{
		source: source,
		store:  st,
		engine: engine,
		dryRun: dryRun,
		now:    time.Now,
		logger: logger.With().Str("component", "scan").Logger(),
	}
}

// SetProgress enables progress reporting.
func (s *Service) SetProgress(r Reporter) {
	s.progress = r
}

// Running reports whether a scan is in progress.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Last returns the most recent finished scan, if any.
func (s *Service) Last() (LastRun, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return LastRun{}, false
	}
	return *s.last, true
}

// Run fetches the library, stores it, and replaces all suggestions with a
// freshly generated set. Suggestions already applied are discarded too.
func (s *Service) Run(ctx context.Context) (Result, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return Result{}, ErrScanInProgress
	}
	s.running = true
	s.mu.Unlock()

	start := s.now()
	res, err := s.run(ctx)

	s.mu.Lock()
	s.running = false
	s.last = &LastRun{Result: res, FinishedAt: s.now(), Duration: time.Since(start).Round(time.Millisecond).String()}
	if err != nil {
		s.last.Error = err.Error()
	}
	s.mu.Unlock()

	return res, err
}

func (s *Service) run(ctx context.Context) (Result, error) {
	res := Result{DryRun: s.dryRun}
	s.report(func(r Reporter) { r.StartActivity(ActivityID, progress.ActivityTypeScan, "Library scan") })

	s.report(func(r Reporter) { r.UpdateActivity(ActivityID, "Fetching library", 10) })
	items, err := s.source.FetchMovies(ctx)
	if err != nil {
		return res, s.failed(ctx, "fetch library", err)
	}
	res.Items = len(items)

	s.report(func(r Reporter) { r.UpdateActivity(ActivityID, fmt.Sprintf("Storing %d items", len(items)), 40) })
	if _, err := s.store.UpsertItems(ctx, items, s.now()); err != nil {
		return res, s.failed(ctx, "store items", err)
	}

	s.report(func(r Reporter) { r.UpdateActivity(ActivityID, "Generating suggestions", 70) })
	suggestions := s.engine.Generate(items)

	if err := s.store.ReplaceSuggestions(ctx, suggestions); err != nil {
		return res, s.failed(ctx, "store suggestions", err)
	}
	res.Suggestions = len(suggestions)

	s.report(func(r Reporter) {
		r.CompleteActivity(ActivityID, fmt.Sprintf("%d items, %d suggestions", res.Items, res.Suggestions))
	})
	s.logger.Info().
		Int("items", res.Items).
		Int("suggestions", res.Suggestions).
		Bool("dryRun", res.DryRun).
		Msg("Scan complete")

	return res, nil
}

func (s *Service) failed(ctx context.Context, step string, err error) error {
	if ctx.Err() != nil {
		s.report(func(r Reporter) { r.CancelActivity(ActivityID) })
		s.logger.Warn().Str("step", step).Msg("Scan cancelled")
		return fmt.Errorf("scan %s: %w", step, ctx.Err())
	}
	err = fmt.Errorf("scan %s: %w", step, err)
	s.report(func(r Reporter) { r.FailActivity(ActivityID, err.Error()) })
	s.logger.Error().Err(err).Msg("Scan failed")
	return err
}

func (s *Service) report(fn func(Reporter)) {
	if s.progress != nil {
		fn(s.progress)
	}
}
