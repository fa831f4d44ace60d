package suggest

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lbartuzi/sidecar-Jellyfin/internal/media"
)

// Options configures a suggestion run.
type Options struct {
	MinGroupSize    int
	EnableFranchise bool
	EnableStudio    bool
	EnableFormat    bool
	EnableLength    bool
	EnableAudience  bool
	EnableMood      bool
	FranchiseRules  []FranchiseRule
	StudioAllowlist []string
	TopStudios      int
}

// DefaultOptions enables every axis with a minimum group size of two.
func DefaultOptions() Options {
	return Options{
		MinGroupSize:    2,
		EnableFranchise: true,
		EnableStudio:    true,
		EnableFormat:    true,
		EnableLength:    true,
		EnableAudience:  true,
		EnableMood:      true,
		TopStudios:      20,
	}
}

// Axis is one independent classification dimension.
type Axis interface {
	// Name identifies the axis in logs.
	Name() string
	// Enabled reports whether opts switch the axis on.
	Enabled(opts Options) bool
	// Candidates returns the groups that pass the axis's own thresholds.
	Candidates(items []media.Item, opts Options) []Candidate
}

// Axes returns the built-in axes in their output order.
func Axes() []Axis {
	return []Axis{
		franchiseAxis{},
		studioAxis{},
		newFormatAxis(),
		newLengthAxis(),
		newAudienceAxis(),
		moodAxis{},
	}
}

// Engine generates suggestions from a library listing.
type Engine struct {
	opts   Options
	axes   []Axis
	now    func() time.Time
	newID  func() string
	logger zerolog.Logger
}

// NewEngine creates an engine with the built-in axes.
func NewEngine(opts Options, logger zerolog.Logger) *Engine {
	if opts.MinGroupSize < 1 {
		opts.MinGroupSize = 1
	}
	return &Engine{
		opts:   opts,
		axes:   Axes(),
		now:    time.Now,
		newID:  uuid.NewString,
		logger: logger.With().Str("component", "suggest").Logger(),
	}
}

// Options returns the options the engine was built with.
func (e *Engine) Options() Options {
	return e.opts
}

// Generate classifies items along every enabled axis and returns the
// resulting suggestions, highest confidence first. Axes do not share
// state and run concurrently; output order does not depend on scheduling.
func (e *Engine) Generate(items []media.Item) []Suggestion {
	results := make([][]Candidate, len(e.axes))

	var wg sync.WaitGroup
	for i, axis := range e.axes {
		if !axis.Enabled(e.opts) {
			continue
		}
		wg.Go(func() {
			results[i] = axis.Candidates(items, e.opts)
		})
	}
	wg.Wait()

	createdAt := e.now().Unix()

	var out []Suggestion
	for i, candidates := range results {
		if len(candidates) > 0 {
			e.logger.Debug().
				Str("axis", e.axes[i].Name()).
				Int("suggestions", len(candidates)).
				Msg("Axis classified")
		}
		for _, c := range candidates {
			out = append(out, Suggestion{
				ID:         e.newID(),
				Kind:       c.Kind,
				Title:      c.Title,
				Confidence: clampConfidence(c.Confidence),
				ItemIDs:    c.ItemIDs,
				Reason:     c.Reason,
				Payload:    c.Payload,
				CreatedAt:  createdAt,
			})
		}
	}

	Rank(out)

	e.logger.Info().
		Int("items", len(items)).
		Int("suggestions", len(out)).
		Msg("Generated suggestions")

	return out
}

// Rank orders suggestions by confidence, then by member count, both
// descending. Equal suggestions keep their relative order.
func Rank(s []Suggestion) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].Confidence != s[j].Confidence {
			return s[i].Confidence > s[j].Confidence
		}
		return len(s[i].ItemIDs) > len(s[j].ItemIDs)
	})
}

// Generate runs a one-off engine with a silent logger.
func Generate(items []media.Item, opts Options) []Suggestion {
	return NewEngine(opts, zerolog.Nop()).Generate(items)
}
