package media

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItem_UnmarshalTolerant(t *testing.T) {
	raw := `{
		"Id": "m1",
		"Name": "Toy Story",
		"Genres": ["Animation", "Family"],
		"Studios": [{"Name": "Pixar"}, "Walt Disney Pictures", {"Id": 7}],
		"Taglines": "To infinity and beyond",
		"RunTimeTicks": 48600000000,
		"OfficialRating": " g "
	}`

	var item Item
	require.NoError(t, json.Unmarshal([]byte(raw), &item))

	assert.Equal(t, "m1", item.ID)
	assert.Equal(t, NameList{"Pixar", "Walt Disney Pictures"}, item.Studios)
	assert.Equal(t, NameList{"To infinity and beyond"}, item.Taglines)
	assert.Equal(t, 81, item.RuntimeMinutes())
	assert.Equal(t, "G", item.Rating())
	assert.True(t, item.HasGenre("animation"))
	assert.False(t, item.HasGenre("horror"))
}

func TestNameList_MalformedDegradesToEmpty(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"null", `{"Studios": null}`},
		{"number", `{"Studios": 42}`},
		{"object", `{"Studios": {"Name": "Pixar"}}`},
		{"empty string", `{"Studios": "  "}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var item Item
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &item))
			assert.Empty(t, item.Studios)
		})
	}
}

func TestItem_RuntimeMinutes(t *testing.T) {
	tests := []struct {
		ticks int64
		want  int
	}{
		{0, 0},
		{-5, 0},
		{TicksPerSecond * 59, 0},
		{TicksPerSecond * 60 * 80, 80},
		{TicksPerSecond*60*80 + TicksPerSecond*59, 80},
	}

	for _, tt := range tests {
		item := Item{RunTimeTicks: tt.ticks}
		assert.Equal(t, tt.want, item.RuntimeMinutes(), "ticks=%d", tt.ticks)
	}
}

func TestItem_TextBlob(t *testing.T) {
	item := Item{
		Overview: "A <b>Heartwarming</b> story.<br>About Santa",
		Taglines: NameList{"Feel-Good Fun"},
	}

	blob := item.TextBlob()
	assert.Contains(t, blob, "heartwarming story.")
	assert.Contains(t, blob, "about santa")
	assert.Contains(t, blob, "feel-good fun")
	assert.NotContains(t, blob, "<b>")
}

func TestPlainText_PassesThroughPlainStrings(t *testing.T) {
	assert.Equal(t, "no markup here", PlainText("no markup here"))
}
