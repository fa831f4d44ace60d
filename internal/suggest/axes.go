package suggest

import (
	"github.com/lbartuzi/sidecar-Jellyfin/internal/media"
)

// Tag values produced by the single-valued axes.
const (
	TagFormatDocumentary = "format:documentary"
	TagFormatAnimation   = "format:animation"
	TagFormatLiveAction  = "format:live_action"

	TagLengthShort    = "length:short"
	TagLengthStandard = "length:standard"
	TagLengthLong     = "length:long"
	TagLengthEpic     = "length:epic"
	TagLengthUnknown  = "length:unknown"

	TagAudienceKids    = "audience:kids"
	TagAudienceFamily  = "audience:family"
	TagAudienceTeens   = "audience:teens"
	TagAudienceAdults  = "audience:adults"
	TagAudienceGeneral = "audience:general"
)

// tagSpec describes how a tag is presented once promoted to a suggestion.
type tagSpec struct {
	title      string
	confidence float64
}

var formatTags = map[string]tagSpec{
	TagFormatDocumentary: {"Format: Documentary", 0.88},
	TagFormatAnimation:   {"Format: Animation", 0.88},
	TagFormatLiveAction:  {"Format: Live Action", 0.88},
}

// length:unknown has no entry and is never promoted.
var lengthTags = map[string]tagSpec{
	TagLengthShort:    {"Length: Short (≤75m)", 0.80},
	TagLengthStandard: {"Length: Standard (76–110m)", 0.80},
	TagLengthLong:     {"Length: Long (111–140m)", 0.80},
	TagLengthEpic:     {"Length: Epic (>140m)", 0.80},
}

var audienceTags = map[string]tagSpec{
	TagAudienceKids:    {"Audience: Kids", 0.85},
	TagAudienceFamily:  {"Audience: Family", 0.82},
	TagAudienceTeens:   {"Audience: Teens", 0.80},
	TagAudienceAdults:  {"Audience: Adults", 0.88},
	TagAudienceGeneral: {"Audience: General", 0.70},
}

var adultRatings = map[string]struct{}{"R": {}, "NC-17": {}, "TV-MA": {}}

var kidsRatings = map[string]struct{}{"G": {}, "TV-Y": {}, "TV-Y7": {}, "TV-G": {}}

// FormatTag classifies an item as documentary, animation or live action.
func FormatTag(it *media.Item) string {
	switch {
	case it.HasGenre("documentary"):
		return TagFormatDocumentary
	case it.HasGenre("animation"):
		return TagFormatAnimation
	default:
		return TagFormatLiveAction
	}
}

// LengthTag buckets an item by runtime. Bucket bounds are inclusive.
func LengthTag(it *media.Item) string {
	m := it.RuntimeMinutes()
	switch {
	case m <= 0:
		return TagLengthUnknown
	case m <= 75:
		return TagLengthShort
	case m <= 110:
		return TagLengthStandard
	case m <= 140:
		return TagLengthLong
	default:
		return TagLengthEpic
	}
}

// AudienceTag derives the audience from the official rating, falling back
// to genres when the rating is missing or unrecognized.
func AudienceTag(it *media.Item) string {
	r := it.Rating()
	if _, ok := adultRatings[r]; ok {
		return TagAudienceAdults
	}
	if _, ok := kidsRatings[r]; ok {
		return TagAudienceKids
	}
	switch r {
	case "PG":
		if it.HasGenre("horror", "thriller") {
			return TagAudienceTeens
		}
		return TagAudienceFamily
	case "PG-13":
		return TagAudienceTeens
	}
	if it.HasGenre("animation", "family") {
		return TagAudienceFamily
	}
	return TagAudienceGeneral
}

// singleTagAxis promotes a one-tag-per-item classifier to suggestions.
type singleTagAxis struct {
	name     string
	reason   string
	tags     map[string]tagSpec
	classify func(*media.Item) string
	enabled  func(Options) bool
}

func (a singleTagAxis) Name() string { return a.name }

func (a singleTagAxis) Enabled(opts Options) bool { return a.enabled(opts) }

func (a singleTagAxis) Candidates(items []media.Item, opts Options) []Candidate {
	gs := newGroups()
	for i := range items {
		it := &items[i]
		if it.ID == "" {
			continue
		}
		tag := a.classify(it)
		gs.get(tag, tag).add(it.ID)
	}

	var out []Candidate
	gs.each(func(g *group) {
		def, ok := a.tags[g.key]
		if !ok || len(g.ids) < opts.MinGroupSize {
			return
		}
		out = append(out, Candidate{
			Kind:       KindTag,
			Title:      def.title,
			Confidence: def.confidence,
			ItemIDs:    g.ids,
			Reason:     a.reason,
			Payload:    Payload{Tag: g.key},
		})
	})
	return out
}

func newFormatAxis() Axis {
	return singleTagAxis{
		name:     "format",
		reason:   "genre-based format",
		tags:     formatTags,
		classify: FormatTag,
		enabled:  func(o Options) bool { return o.EnableFormat },
	}
}

func newLengthAxis() Axis {
	return singleTagAxis{
		name:     "length",
		reason:   "runtime-based",
		tags:     lengthTags,
		classify: LengthTag,
		enabled:  func(o Options) bool { return o.EnableLength },
	}
}

func newAudienceAxis() Axis {
	return singleTagAxis{
		name:     "audience",
		reason:   "official rating (+ genre inference if missing)",
		tags:     audienceTags,
		classify: AudienceTag,
		enabled:  func(o Options) bool { return o.EnableAudience },
	}
}
