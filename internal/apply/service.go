// Package apply turns an accepted suggestion into a collection on the
// media server, at most once per suggestion.
package apply

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/lbartuzi/sidecar-Jellyfin/internal/history"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/jellyfin"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/progress"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/store"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/suggest"
)

// TagAsCollectionNote accompanies previews of tag suggestions.
const TagAsCollectionNote = "This Jellyfin build does not support tag writes reliably; applying as a Collection instead."

var (
	ErrNotFound        = errors.New("suggestion not found")
	ErrUnsupportedKind = errors.New("unsupported suggestion type")
	ErrApplyFailed     = errors.New("apply failed")
	ErrInvalidMode     = errors.New("invalid apply mode")
)

// Mode selects whether an apply touches the media server.
type Mode string

const (
	ModePreview Mode = "preview"
	ModeExecute Mode = "execute"
)

// ParseMode resolves a requested mode. An empty request falls back to the
// configured default.
func ParseMode(requested string, dryRun bool) (Mode, error) {
	switch Mode(requested) {
	case "":
		if dryRun {
			return ModePreview, nil
		}
		return ModeExecute, nil
	case ModePreview, ModeExecute:
		return Mode(requested), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, requested)
	}
}

// Result is the outcome of an apply request.
type Result struct {
	OK                    bool   `json:"ok"`
	AlreadyApplied        bool   `json:"already_applied,omitempty"`
	AppliedCollectionID   string `json:"applied_collection_id,omitempty"`
	DryRun                bool   `json:"dry_run,omitempty"`
	WouldCreateCollection string `json:"would_create_collection,omitempty"`
	WouldAddItems         int    `json:"would_add_items,omitempty"`
	Note                  string `json:"note,omitempty"`
	CollectionID          string `json:"collection_id,omitempty"`
	AddedItems            int    `json:"added_items,omitempty"`
	Error                 string `json:"error,omitempty"`
	Status                int    `json:"status,omitempty"`
	Body                  string `json:"body,omitempty"`
}

// Store is the suggestion persistence the workflow depends on.
type Store interface {
	GetSuggestion(ctx context.Context, id string) (suggest.Suggestion, error)
	MarkApplied(ctx context.Context, id, collectionID string) (bool, error)
}

// Sink performs the remote side effects.
type Sink interface {
	CreateCollection(ctx context.Context, name string) (string, error)
	AddItemsToCollection(ctx context.Context, collectionID string, itemIDs []string) error
}

// Recorder keeps the permanent ledger of execute attempts.
type Recorder interface {
	Create(ctx context.Context, input history.CreateInput) (*history.Entry, error)
}

// Reporter receives progress for execute attempts.
type Reporter interface {
	StartActivity(id string, activityType progress.ActivityType, title string)
	UpdateActivity(id, subtitle string, progress int)
	CompleteActivity(id, subtitle string)
	FailActivity(id, errorMsg string)
}

// DefaultAttemptTimeout bounds one shared apply attempt.
const DefaultAttemptTimeout = 2 * time.Minute

// Service runs the apply workflow.
type Service struct {
	store    Store
	sink     Sink
	history  Recorder
	progress Reporter
	flight   singleflight.Group
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewService creates an apply service.
func NewService(st Store, sink Sink, logger zerolog.Logger) *Service {
	return &Service{
		store:   st,
		sink:    sink,
		timeout: DefaultAttemptTimeout,
		logger:  logger.With().Str("component", "apply").Logger(),
	}
}

// SetTimeout changes the bound on one apply attempt.
func (s *Service) SetTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// SetHistory enables the applications ledger.
func (s *Service) SetHistory(r Recorder) {
	s.history = r
}

// SetProgress enables progress reporting.
func (s *Service) SetProgress(r Reporter) {
	s.progress = r
}

// CollectionName is the name given to the collection a suggestion creates.
func CollectionName(sg suggest.Suggestion) string {
	return sg.Title
}

// Apply applies suggestion id. Concurrent calls for the same id share a
// single attempt, which is detached from any one caller's cancellation
// and bounded by the service timeout instead. On execute failure the
// returned Result describes the remote error and err wraps ErrApplyFailed.
func (s *Service) Apply(ctx context.Context, id string, mode Mode) (Result, error) {
	v, err, _ := s.flight.Do(string(mode)+"/"+id, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.apply(ctx, id, mode)
	})
	res, _ := v.(Result)
	return res, err
}

func (s *Service) apply(ctx context.Context, id string, mode Mode) (Result, error) {
	sg, err := s.store.GetSuggestion(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return Result{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Result{}, err
	}

	if sg.Applied {
		return Result{OK: true, AlreadyApplied: true, AppliedCollectionID: sg.AppliedCollectionID}, nil
	}

	if !sg.Kind.Valid() {
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedKind, sg.Kind)
	}

	switch mode {
	case ModePreview:
		return preview(sg), nil
	case ModeExecute:
		return s.execute(ctx, sg)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
}

func preview(sg suggest.Suggestion) Result {
	res := Result{
		OK:                    true,
		DryRun:                true,
		WouldCreateCollection: CollectionName(sg),
		WouldAddItems:         len(sg.ItemIDs),
	}
	if sg.Kind == suggest.KindTag {
		res.Note = TagAsCollectionNote
	}
	return res
}

func (s *Service) execute(ctx context.Context, sg suggest.Suggestion) (Result, error) {
	name := CollectionName(sg)
	activityID := "apply-" + sg.ID
	s.startActivity(activityID, name)

	collectionID, err := s.sink.CreateCollection(ctx, name)
	if err != nil {
		return s.fail(ctx, sg, activityID, "", "create collection", err)
	}
	s.updateActivity(activityID, "Adding items", 50)

	if err := s.sink.AddItemsToCollection(ctx, collectionID, sg.ItemIDs); err != nil {
		// The collection now exists remotely but is not tracked.
		return s.fail(ctx, sg, activityID, collectionID, "add items", err)
	}

	applied, err := s.store.MarkApplied(ctx, sg.ID, collectionID)
	if err != nil {
		return s.fail(ctx, sg, activityID, collectionID, "mark applied", err)
	}
	if !applied {
		// Another process won the race; report its outcome instead.
		current, err := s.store.GetSuggestion(ctx, sg.ID)
		if err != nil {
			return Result{}, err
		}
		s.logger.Warn().
			Str("suggestion", sg.ID).
			Str("collectionId", collectionID).
			Msg("Suggestion applied concurrently; created collection is untracked")
		s.completeActivity(activityID, "Already applied")
		return Result{OK: true, AlreadyApplied: true, AppliedCollectionID: current.AppliedCollectionID}, nil
	}

	s.record(ctx, sg, history.CreateInput{CollectionID: collectionID, Status: history.StatusApplied})
	s.completeActivity(activityID, fmt.Sprintf("Added %d items", len(sg.ItemIDs)))

	s.logger.Info().
		Str("suggestion", sg.ID).
		Str("type", string(sg.Kind)).
		Str("title", sg.Title).
		Str("collectionId", collectionID).
		Int("items", len(sg.ItemIDs)).
		Msg("Applied suggestion as collection")

	return Result{OK: true, CollectionID: collectionID, AddedItems: len(sg.ItemIDs)}, nil
}

func (s *Service) fail(ctx context.Context, sg suggest.Suggestion, activityID, collectionID, step string, cause error) (Result, error) {
	err := fmt.Errorf("%w: %s: %w", ErrApplyFailed, step, cause)
	res := Result{OK: false, Error: err.Error(), CollectionID: collectionID}

	var se *jellyfin.StatusError
	if errors.As(cause, &se) {
		res.Status = se.StatusCode
		res.Body = se.Body
	}

	s.logger.Error().
		Err(cause).
		Str("suggestion", sg.ID).
		Str("step", step).
		Msg("Failed to apply suggestion")

	s.record(ctx, sg, history.CreateInput{CollectionID: collectionID, Status: history.StatusFailed, Error: err.Error()})
	if s.progress != nil {
		s.progress.FailActivity(activityID, err.Error())
	}
	return res, err
}

func (s *Service) record(ctx context.Context, sg suggest.Suggestion, in history.CreateInput) {
	if s.history == nil {
		return
	}
	in.SuggestionID = sg.ID
	in.Kind = sg.Kind
	in.Title = sg.Title
	in.CollectionName = CollectionName(sg)
	in.ItemCount = len(sg.ItemIDs)
	if _, err := s.history.Create(context.WithoutCancel(ctx), in); err != nil {
		s.logger.Warn().Err(err).Str("suggestion", sg.ID).Msg("Failed to record apply history")
	}
}

func (s *Service) startActivity(id, title string) {
	if s.progress != nil {
		s.progress.StartActivity(id, progress.ActivityTypeApply, "Apply: "+title)
	}
}

func (s *Service) updateActivity(id, subtitle string, pct int) {
	if s.progress != nil {
		s.progress.UpdateActivity(id, subtitle, pct)
	}
}

func (s *Service) completeActivity(id, subtitle string) {
	if s.progress != nil {
		s.progress.CompleteActivity(id, subtitle)
	}
}
