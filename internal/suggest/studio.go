package suggest

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/lbartuzi/sidecar-Jellyfin/internal/media"
)

const (
	studioConfidence = 0.95
	studioReason     = "studio match"
)

type studioPattern struct {
	pattern   string
	canonical string
}

// canonicalStudios is checked in order and the first substring match wins,
// so longer patterns must precede the shorter ones they contain.
var canonicalStudios = []studioPattern{
	{"pixar", "Pixar"},
	{"walt disney animation studios", "Disney Animation"},
	{"walt disney pictures", "Disney"},
	{"walt disney", "Disney"},
	{"disney", "Disney"},
	{"marvel studios", "Marvel Studios"},
	{"lucasfilm", "Lucasfilm"},
	{"dreamworks", "DreamWorks"},
	{"illumination", "Illumination"},
	{"studio ghibli", "Studio Ghibli"},
	{"ghibli", "Studio Ghibli"},
	{"a24", "A24"},
}

// Distributors too broad to say anything about a film's identity.
var genericStudios = map[string]struct{}{
	"amazon":              {},
	"amazon studios":      {},
	"netflix":             {},
	"paramount":           {},
	"warner bros":         {},
	"warner bros.":        {},
	"universal":           {},
	"20th century fox":    {},
	"fox":                 {},
	"sony":                {},
	"columbia":            {},
	"metro-goldwyn-mayer": {},
	"mgm":                 {},
	"lionsgate":           {},
}

// CanonicalStudio maps a raw studio name onto its canonical spelling.
// Unknown studios are returned trimmed but otherwise unchanged.
func CanonicalStudio(raw string) string {
	n := strings.ToLower(strings.TrimSpace(raw))
	for _, p := range canonicalStudios {
		if strings.Contains(n, p.pattern) {
			return p.canonical
		}
	}
	return strings.TrimSpace(raw)
}

// IsGenericStudio reports whether name is on the distributor blocklist.
func IsGenericStudio(name string) bool {
	_, ok := genericStudios[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// ParseStudioAllowlist reads a JSON array of studio names. Entries are
// lower-cased and trimmed; blanks are dropped.
func ParseStudioAllowlist(data []byte) ([]string, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}

	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse studio allowlist: %w", err)
	}

	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if v == nil {
			continue
		}
		if s := strings.ToLower(strings.TrimSpace(fmt.Sprint(v))); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// itemStudios returns an item's canonical studios without duplicates.
func itemStudios(it *media.Item) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, raw := range it.Studios {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		c := CanonicalStudio(raw)
		key := strings.ToLower(c)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

// SelectStudios returns the lower-cased studio names eligible for tagging.
// A non-empty allowlist is used as is; otherwise the topN most frequent
// non-generic studios are chosen, ties keeping first-seen order. Every
// listed occurrence counts, including repeats within one item.
func SelectStudios(items []media.Item, allowlist []string, topN int) map[string]struct{} {
	eligible := make(map[string]struct{})

	if len(allowlist) > 0 {
		for _, s := range allowlist {
			if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
				eligible[s] = struct{}{}
			}
		}
		return eligible
	}

	counts := make(map[string]int)
	var order []string
	for i := range items {
		for _, raw := range items[i].Studios {
			if strings.TrimSpace(raw) == "" {
				continue
			}
			key := strings.ToLower(CanonicalStudio(raw))
			if _, ok := counts[key]; !ok {
				order = append(order, key)
			}
			counts[key]++
		}
	}

	sort.SliceStable(order, func(a, b int) bool {
		return counts[order[a]] > counts[order[b]]
	})

	for _, key := range order {
		if len(eligible) >= topN {
			break
		}
		if IsGenericStudio(key) {
			continue
		}
		eligible[key] = struct{}{}
	}
	return eligible
}

// StudioTag is the tag payload for a canonical studio name.
func StudioTag(name string) string {
	return "studio:" + strings.ReplaceAll(strings.ToLower(name), " ", "_")
}

type studioAxis struct{}

func (studioAxis) Name() string { return "studio" }

func (studioAxis) Enabled(opts Options) bool { return opts.EnableStudio }

func (studioAxis) Candidates(items []media.Item, opts Options) []Candidate {
	eligible := SelectStudios(items, opts.StudioAllowlist, opts.TopStudios)
	if len(eligible) == 0 {
		return nil
	}

	gs := newGroups()
	for i := range items {
		it := &items[i]
		if it.ID == "" {
			continue
		}
		for _, s := range itemStudios(it) {
			key := strings.ToLower(s)
			if _, ok := eligible[key]; !ok {
				continue
			}
			gs.get(key, s).add(it.ID)
		}
	}

	var out []Candidate
	gs.each(func(g *group) {
		if len(g.ids) < opts.MinGroupSize {
			return
		}
		out = append(out, Candidate{
			Kind:       KindTag,
			Title:      "Studio: " + g.label,
			Confidence: studioConfidence,
			ItemIDs:    g.ids,
			Reason:     studioReason,
			Payload:    Payload{Tag: StudioTag(g.label)},
		})
	})
	return out
}
