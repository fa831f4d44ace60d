package suggest

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/lbartuzi/sidecar-Jellyfin/internal/media"
)

const (
	keywordConfidence = 0.95
	keywordReason     = "matched franchise keywords"
	sequelConfidence  = 0.85
	sequelReason      = "title sequel pattern (2/II/Part 2, subtitles)"
)

// FranchiseRule puts every title containing one of Keywords into the
// collection called Name.
type FranchiseRule struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
}

// ParseFranchiseRules reads a {"Collection": ["keyword", ...]} mapping.
// JSON input is accepted since it is valid YAML. Rule order follows the
// document so results do not depend on map iteration.
func ParseFranchiseRules(data []byte) ([]FranchiseRule, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse franchise rules: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errors.New("parse franchise rules: expected a mapping of collection name to keywords")
	}

	rules := make([]FranchiseRule, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		name := strings.TrimSpace(root.Content[i].Value)
		if name == "" {
			continue
		}

		var raw []string
		switch v := root.Content[i+1]; v.Kind {
		case yaml.SequenceNode:
			if err := v.Decode(&raw); err != nil {
				return nil, fmt.Errorf("parse franchise rules: keywords for %q: %w", name, err)
			}
		case yaml.ScalarNode:
			raw = []string{v.Value}
		default:
			return nil, fmt.Errorf("parse franchise rules: keywords for %q must be a list", name)
		}

		rules = append(rules, FranchiseRule{Name: name, Keywords: normalizeKeywords(raw)})
	}

	return rules, nil
}

// MergeFranchiseRules overlays extra onto base. A rule in extra replaces
// the base rule of the same name in place; new names are appended.
func MergeFranchiseRules(base, extra []FranchiseRule) []FranchiseRule {
	out := make([]FranchiseRule, len(base))
	copy(out, base)

	index := make(map[string]int, len(out))
	for i, r := range out {
		index[r.Name] = i
	}
	for _, r := range extra {
		if i, ok := index[r.Name]; ok {
			out[i] = r
			continue
		}
		index[r.Name] = len(out)
		out = append(out, r)
	}
	return out
}

// Keywords are normalized like titles so punctuation cannot defeat a match.
// Empty keywords would match everything and are dropped.
func normalizeKeywords(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, kw := range raw {
		if kw = NormalizeTitle(kw); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

type franchiseAxis struct{}

func (franchiseAxis) Name() string { return "franchise" }

func (franchiseAxis) Enabled(opts Options) bool { return opts.EnableFranchise }

func (franchiseAxis) Candidates(items []media.Item, opts Options) []Candidate {
	out := keywordCandidates(items, opts.FranchiseRules, opts.MinGroupSize)
	return append(out, sequelCandidates(items, opts.MinGroupSize)...)
}

func keywordCandidates(items []media.Item, rules []FranchiseRule, minSize int) []Candidate {
	if len(rules) == 0 {
		return nil
	}

	norms := make([]string, len(items))
	for i := range items {
		norms[i] = NormalizeTitle(items[i].Name)
	}

	var out []Candidate
	for _, rule := range rules {
		g := newGroups().get(rule.Name, rule.Name)
		for i := range items {
			if items[i].ID == "" {
				continue
			}
			if containsAny(norms[i], rule.Keywords) {
				g.add(items[i].ID)
			}
		}
		if len(g.ids) >= minSize {
			out = append(out, Candidate{
				Kind:       KindCollection,
				Title:      rule.Name,
				Confidence: keywordConfidence,
				ItemIDs:    g.ids,
				Reason:     keywordReason,
				Payload:    Payload{CollectionName: rule.Name},
			})
		}
	}
	return out
}

func sequelCandidates(items []media.Item, minSize int) []Candidate {
	gs := newGroups()
	for i := range items {
		it := &items[i]
		if it.ID == "" {
			continue
		}
		base := BaseKey(it.Name)
		if base == "" {
			continue
		}
		g := gs.get(base, base)
		if g.add(it.ID) && HasSequelMarker(it.Name) {
			g.markers++
		}
	}

	caser := cases.Title(language.Und)

	var out []Candidate
	gs.each(func(g *group) {
		if len(g.ids) < minSize {
			return
		}
		// Needs two explicit sequel markers or three titles sharing the base.
		if g.markers < 2 && len(g.ids) < 3 {
			return
		}
		title := caser.String(g.key)
		out = append(out, Candidate{
			Kind:       KindCollection,
			Title:      title,
			Confidence: sequelConfidence,
			ItemIDs:    g.ids,
			Reason:     sequelReason,
			Payload:    Payload{CollectionName: title},
		})
	})
	return out
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
