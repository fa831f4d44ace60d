// Package suggest turns a media library listing into ranked collection
// and tag suggestions.
package suggest

import "math"

// Kind is what applying a suggestion produces.
type Kind string

const (
	KindCollection Kind = "collection"
	KindTag        Kind = "tag"
)

// Valid reports whether k is a kind the apply workflow understands.
func (k Kind) Valid() bool {
	return k == KindCollection || k == KindTag
}

// Payload carries the axis-specific target of a suggestion.
type Payload struct {
	CollectionName string `json:"collection_name,omitempty"`
	Tag            string `json:"tag,omitempty"`
}

// Suggestion is a proposed grouping or label awaiting review.
type Suggestion struct {
	ID                  string   `json:"suggestion_id"`
	Kind                Kind     `json:"suggestion_type"`
	Title               string   `json:"title"`
	Confidence          float64  `json:"confidence"`
	ItemIDs             []string `json:"item_ids"`
	Reason              string   `json:"reason"`
	Payload             Payload  `json:"payload"`
	CreatedAt           int64    `json:"created_at"`
	Applied             bool     `json:"applied"`
	AppliedCollectionID string   `json:"applied_collection_id,omitempty"`
}

// Candidate is a suggestion before it is given an identity.
type Candidate struct {
	Kind       Kind
	Title      string
	Confidence float64
	ItemIDs    []string
	Reason     string
	Payload    Payload
}

func clampConfidence(c float64) float64 {
	if math.IsNaN(c) || c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	// Averages drift in the last bits; keep them comparable across runs
	return math.Round(c*1e6) / 1e6
}

// group collects unique item identifiers under one key, in first-seen order.
type group struct {
	key     string
	label   string
	ids     []string
	seen    map[string]struct{}
	markers int
	confSum float64
	reasons map[string]int
	order   []string // reasons in first-seen order
}

func (g *group) add(id string) bool {
	if _, dup := g.seen[id]; dup {
		return false
	}
	g.seen[id] = struct{}{}
	g.ids = append(g.ids, id)
	return true
}

func (g *group) addReason(reason string) {
	if _, ok := g.reasons[reason]; !ok {
		g.order = append(g.order, reason)
	}
	g.reasons[reason]++
}

// commonReason returns the most frequent reason, earliest on ties.
func (g *group) commonReason() string {
	best, bestN := "", 0
	for _, r := range g.order {
		if n := g.reasons[r]; n > bestN {
			best, bestN = r, n
		}
	}
	return best
}

// groups is an insertion-ordered set of groups.
type groups struct {
	byKey map[string]*group
	keys  []string
}

func newGroups() *groups {
	return &groups{byKey: make(map[string]*group)}
}

func (gs *groups) get(key, label string) *group {
	g, ok := gs.byKey[key]
	if !ok {
		g = &group{
			key:     key,
			label:   label,
			seen:    make(map[string]struct{}),
			reasons: make(map[string]int),
		}
		gs.byKey[key] = g
		gs.keys = append(gs.keys, key)
	}
	return g
}

func (gs *groups) each(fn func(g *group)) {
	for _, k := range gs.keys {
		fn(gs.byKey[k])
	}
}
