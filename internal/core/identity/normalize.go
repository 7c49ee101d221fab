package identity

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// StripDiacritics removes combining marks after compatibility decomposition,
// so "Ødegaard" keeps its letter but "Fernández" becomes "Fernandez".
func StripDiacritics(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range norm.NFKD.String(s) {
		if !unicode.Is(unicode.Mn, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Normalize lowercases, strips diacritics and collapses whitespace.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = StripDiacritics(s)
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}

// AbbreviatedName is the fuzzy-match key: first token of the first name plus
// last token of the second name, diacritics stripped.
func AbbreviatedName(first, second string) string {
	f := strings.Fields(first)
	s := strings.Fields(second)
	var parts []string
	if len(f) > 0 {
		parts = append(parts, f[0])
	}
	if len(s) > 0 {
		parts = append(parts, s[len(s)-1])
	}
	return StripDiacritics(strings.Join(parts, " "))
}

// SplitFBRefName splits a display name at the first space. Single-word names
// have an empty second part.
func SplitFBRefName(name string) (first, second string) {
	first, second, _ = strings.Cut(name, " ")
	return first, second
}
