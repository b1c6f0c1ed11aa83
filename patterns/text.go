// Package patterns holds the ordered rule tables used to turn free text scraped
// from booking widgets into typed values: dates, weekdays, times, costs, ages,
// registration states and activity classifications.
//
// Every table is evaluated in slice order and the first matching rule wins, so
// the order of entries is part of the behaviour.
package patterns

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	tokenSplitRe = regexp.MustCompile(`[^a-z0-9]+`)
)

// Clean collapses runs of whitespace and trims the result
func Clean(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// Fold lower-cases s, strips accents, spells out "&" and collapses whitespace.
// "Pâtisserie & Café" becomes "patisserie and cafe".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ReplaceAll(strings.ToLower(folded), "&", " and ")
	return Clean(folded)
}

// Tokens splits folded text into alphanumeric words
func Tokens(s string) []string {
	var out []string
	for _, tok := range tokenSplitRe.Split(Fold(s), -1) {
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// mask blanks out matched spans so lower-priority rules cannot re-match them.
// Byte offsets are preserved.
func mask(s string, loc []int) string {
	return s[:loc[0]] + strings.Repeat(" ", loc[1]-loc[0]) + s[loc[1]:]
}
