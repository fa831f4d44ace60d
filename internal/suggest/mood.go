package suggest

import (
	"github.com/lbartuzi/sidecar-Jellyfin/internal/media"
)

const (
	moodMinAverage    = 0.62
	moodMaxConfidence = 0.78
)

// MoodSignal is one mood or occasion detected on a single item.
type MoodSignal struct {
	Tag        string
	Confidence float64
	Reason     string
}

type moodRule struct {
	tag        string
	title      string
	confidence float64
	reason     string
	genres     []string
	keywords   []string
}

var moodRules = []moodRule{
	{
		tag: "occasion:christmas", title: "Occasion: Christmas", confidence: 0.80,
		reason:   "overview/tagline keywords",
		keywords: []string{"christmas", "santa", "holiday", "xmas", "north pole", "reindeer"},
	},
	{
		tag: "occasion:halloween", title: "Occasion: Halloween", confidence: 0.75,
		reason:   "overview/tagline keywords",
		keywords: []string{"halloween", "pumpkin", "witch", "haunted", "ghost", "spooky"},
	},
	{
		tag: "mood:scary", title: "Mood: Scary", confidence: 0.70,
		reason:   "genre/keywords",
		genres:   []string{"horror"},
		keywords: []string{"terror", "haunted", "killer", "slasher", "demon"},
	},
	{
		tag: "mood:funny", title: "Mood: Funny", confidence: 0.70,
		reason:   "genre/keywords",
		genres:   []string{"comedy"},
		keywords: []string{"hilarious", "funny", "comedian", "laugh"},
	},
	{
		tag: "mood:action", title: "Mood: Action", confidence: 0.65,
		reason:   "genre/keywords",
		genres:   []string{"action"},
		keywords: []string{"explosive", "assassin", "fight", "battle", "mission"},
	},
	{
		tag: "mood:cozy", title: "Mood: Cozy", confidence: 0.65,
		reason:   "keywords",
		keywords: []string{"heartwarming", "friendship", "gentle", "cozy", "wholesome", "feel-good", "feel good"},
	},
	{
		tag: "mood:emotional", title: "Mood: Emotional", confidence: 0.65,
		reason:   "keywords",
		keywords: []string{"tearjerker", "grief", "loss", "tragic", "emotional"},
	},
	{
		tag: "mood:dark", title: "Mood: Dark", confidence: 0.60,
		reason:   "genre/keywords",
		genres:   []string{"thriller", "crime"},
		keywords: []string{"dark", "corrupt", "serial", "noir"},
	},
}

// Moods that never apply to adult-rated titles.
var adultSuppressedMoods = map[string]struct{}{"mood:cozy": {}}

// MoodTags returns every mood and occasion signal for an item. Several
// may fire at once.
func MoodTags(it *media.Item) []MoodSignal {
	blob := it.TextBlob()
	_, adult := adultRatings[it.Rating()]

	var out []MoodSignal
	for _, r := range moodRules {
		if adult {
			if _, suppressed := adultSuppressedMoods[r.tag]; suppressed {
				continue
			}
		}
		if (len(r.genres) > 0 && it.HasGenre(r.genres...)) || containsAny(blob, r.keywords) {
			out = append(out, MoodSignal{Tag: r.tag, Confidence: r.confidence, Reason: r.reason})
		}
	}
	return out
}

type moodAxis struct{}

func (moodAxis) Name() string { return "mood" }

func (moodAxis) Enabled(opts Options) bool { return opts.EnableMood }

func (moodAxis) Candidates(items []media.Item, opts Options) []Candidate {
	gs := newGroups()
	for i := range items {
		it := &items[i]
		if it.ID == "" {
			continue
		}
		for _, sig := range MoodTags(it) {
			g := gs.get(sig.Tag, sig.Tag)
			if g.add(it.ID) {
				g.confSum += sig.Confidence
				g.addReason(sig.Reason)
			}
		}
	}

	titles := make(map[string]string, len(moodRules))
	for _, r := range moodRules {
		titles[r.tag] = r.title
	}

	var out []Candidate
	gs.each(func(g *group) {
		if len(g.ids) < opts.MinGroupSize {
			return
		}
		avg := g.confSum / float64(len(g.ids))
		if avg < moodMinAverage {
			return
		}
		title, ok := titles[g.key]
		if !ok {
			title = "Tag: " + g.key
		}
		out = append(out, Candidate{
			Kind:       KindTag,
			Title:      title,
			Confidence: min(moodMaxConfidence, avg),
			ItemIDs:    g.ids,
			Reason:     g.commonReason(),
			Payload:    Payload{Tag: g.key},
		})
	})
	return out
}
