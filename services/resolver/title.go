package resolver

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var romanNumerals = map[string]string{
	"i":    "I",
	"ii":   "II",
	"iii":  "III",
	"iv":   "IV",
	"v":    "V",
	"vi":   "VI",
	"vii":  "VII",
	"viii": "VIII",
	"ix":   "IX",
	"x":    "X",
	"xi":   "XI",
	"xii":  "XII",
}

var allStars = regexp.MustCompile(`(?i)\bAll Stars\b`)

// SlugToTitle turns "final-fantasy-vii" into "Final Fantasy VII". Each
// hyphen-separated token is capitalized, lowercase numerals i..xii are
// uppercased and "All Stars" is rejoined as "All-Stars".
func SlugToTitle(slug string) string {
	words := strings.Split(slug, "-")
	for i, w := range words {
		if roman, ok := romanNumerals[w]; ok {
			words[i] = roman
			continue
		}
		words[i] = capitalize(w)
	}
	return allStars.ReplaceAllString(strings.Join(words, " "), "All-Stars")
}

func capitalize(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	if size == 0 {
		return w
	}
	return string(unicode.ToUpper(r)) + w[size:]
}
