// Package media models the movie records read from the media server.
package media

import (
	"encoding/json"
	"strings"
)

// TicksPerSecond is the media server's runtime resolution.
const TicksPerSecond = 10_000_000

// Item is a movie as returned by the media server's item listing.
// Decoding is tolerant: list fields accept a bare string and studio
// entries may be plain names or {"Name": ...} records.
type Item struct {
	ID              string            `json:"Id"`
	Name            string            `json:"Name"`
	ProductionYear  int               `json:"ProductionYear,omitempty"`
	Path            string            `json:"Path,omitempty"`
	ProviderIDs     map[string]string `json:"ProviderIds,omitempty"`
	Genres          NameList          `json:"Genres,omitempty"`
	Tags            NameList          `json:"Tags,omitempty"`
	Studios         NameList          `json:"Studios,omitempty"`
	RunTimeTicks    int64             `json:"RunTimeTicks,omitempty"`
	CommunityRating float64           `json:"CommunityRating,omitempty"`
	OfficialRating  string            `json:"OfficialRating,omitempty"`
	Overview        string            `json:"Overview,omitempty"`
	Taglines        NameList          `json:"Taglines,omitempty"`
}

// RuntimeMinutes returns the runtime in whole minutes, or 0 when unknown.
func (i *Item) RuntimeMinutes() int {
	if i.RunTimeTicks <= 0 {
		return 0
	}
	return int(i.RunTimeTicks / TicksPerSecond / 60)
}

// Rating returns the official content rating upper-cased and trimmed.
func (i *Item) Rating() string {
	return strings.ToUpper(strings.TrimSpace(i.OfficialRating))
}

// HasGenre reports whether any of the given lower-case genres is present.
func (i *Item) HasGenre(genres ...string) bool {
	for _, g := range i.Genres {
		g = strings.ToLower(strings.TrimSpace(g))
		for _, want := range genres {
			if g == want {
				return true
			}
		}
	}
	return false
}

// TextBlob returns the lower-cased overview and taglines joined by spaces.
func (i *Item) TextBlob() string {
	var b strings.Builder
	b.WriteString(PlainText(i.Overview))
	b.WriteString(" ")
	b.WriteString(strings.Join(i.Taglines, " "))
	return strings.ToLower(b.String())
}

// NameList decodes a JSON value that should be a list of names but is
// sometimes a single string, a list of {"Name": ...} objects, or null.
// Shapes it cannot make sense of decode to an empty list.
type NameList []string

// UnmarshalJSON implements json.Unmarshaler.
func (n *NameList) UnmarshalJSON(data []byte) error {
	*n = nil

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if strings.TrimSpace(single) != "" {
			*n = NameList{single}
		}
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	out := make(NameList, 0, len(raw))
	for _, elem := range raw {
		if name := decodeName(elem); name != "" {
			out = append(out, name)
		}
	}
	*n = out
	return nil
}

func decodeName(elem json.RawMessage) string {
	var s string
	if err := json.Unmarshal(elem, &s); err == nil {
		return s
	}

	var named struct {
		Name *json.RawMessage `json:"Name"`
	}
	if err := json.Unmarshal(elem, &named); err == nil && named.Name != nil {
		return decodeName(*named.Name)
	}

	text := strings.TrimSpace(string(elem))
	if text == "null" || strings.HasPrefix(text, "{") || strings.HasPrefix(text, "[") {
		return ""
	}
	return text
}
