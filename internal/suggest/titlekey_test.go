package suggest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"  Rocky   II ", "rocky ii"},
		{"Harry Potter and the Sorcerer's Stone", "harry potter and the sorcerers stone"},
		{"Police Academy 2: Their First Assignment", "police academy 2: their first assignment"},
		{"Spider-Man: No Way Home", "spiderman: no way home"},
		{"Mission - Impossible", "mission impossible"},
		{"Amélie", "amélie"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := NormalizeTitle(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, NormalizeTitle(got), "normalization must be idempotent")
		})
	}
}

func TestBaseKey(t *testing.T) {
	tests := []struct {
		title  string
		want   string
		marker bool
	}{
		{"Rocky", "rocky", false},
		{"Rocky II", "rocky", true},
		{"Rocky III", "rocky", true},
		{"Police Academy 2: Their First Assignment", "police academy", true},
		{"Harry Potter and the Deathly Hallows: Part 2", "harry potter and the deathly hallows", false},
		{"Kill Bill: Vol. 1", "kill bill", false},
		{"The Godfather Part 2", "the godfather", true},
		{"Shrek 2", "shrek", true},
		{"Up", "up", false},
		{"", "", false},
		{"2", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, BaseKey(tt.title))
			assert.Equal(t, tt.marker, HasSequelMarker(tt.title))
		})
	}
}

func TestBaseKey_Idempotent(t *testing.T) {
	for _, title := range []string{"Rocky II", "Toy Story 3", "Alien: Resurrection", "The Matrix"} {
		key := BaseKey(title)
		assert.Equal(t, key, BaseKey(key), title)
	}
}

func TestStripSequelSuffix(t *testing.T) {
	assert.Equal(t, "back to the future", StripSequelSuffix("back to the future part 3"))
	assert.Equal(t, "saw", StripSequelSuffix("saw x"))
	assert.Equal(t, "part", StripSequelSuffix("part"))
	assert.Equal(t, "the departed", StripSequelSuffix("the departed"))
}
