package suggest

import (
	"regexp"
	"strings"
	"unicode"
)

// Keeps letters, digits, underscore, whitespace and colon.
var nonKeyChars = regexp.MustCompile(`[^\p{L}\p{N}\p{M}\p{Z}_\s:]`)

var romanNumerals = map[string]struct{}{
	"i": {}, "ii": {}, "iii": {}, "iv": {}, "v": {},
	"vi": {}, "vii": {}, "viii": {}, "ix": {}, "x": {},
}

// NormalizeTitle lower-cases a title, drops punctuation other than the
// colon and collapses whitespace runs. It is idempotent.
func NormalizeTitle(title string) string {
	s := strings.ToLower(title)
	s = nonKeyChars.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// TitleCore returns the part of a normalized title before the first colon.
func TitleCore(norm string) string {
	core, _, _ := strings.Cut(norm, ":")
	return strings.TrimSpace(core)
}

// StripSequelSuffix removes a trailing "part N", number or roman numeral.
func StripSequelSuffix(core string) string {
	tokens := strings.Fields(core)
	n := sequelSuffixLen(tokens)
	if n == 0 {
		return core
	}
	return strings.Join(tokens[:len(tokens)-n], " ")
}

// BaseKey is the grouping key shared by the installments of a franchise.
func BaseKey(title string) string {
	return StripSequelSuffix(TitleCore(NormalizeTitle(title)))
}

// HasSequelMarker reports whether the title itself ends in a sequel marker,
// ignoring any subtitle after a colon.
func HasSequelMarker(title string) bool {
	return sequelSuffixLen(strings.Fields(TitleCore(NormalizeTitle(title)))) > 0
}

// sequelSuffixLen returns how many trailing tokens form a sequel marker.
func sequelSuffixLen(tokens []string) int {
	n := len(tokens)
	if n == 0 {
		return 0
	}
	if n >= 2 && tokens[n-2] == "part" && isDigits(tokens[n-1]) {
		return 2
	}
	last := tokens[n-1]
	if isDigits(last) {
		return 1
	}
	if _, ok := romanNumerals[last]; ok {
		return 1
	}
	return 0
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
