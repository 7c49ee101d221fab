package identity

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Scorer rates how alike two names are on a 0..100 scale.
type Scorer func(query, choice string) int

// Candidate is a scored FBRef display name.
type Candidate struct {
	Name  string
	Score int
}

// processName lowercases, strips accents and turns punctuation into spaces.
func processName(s string) string {
	s = Normalize(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// Ratio is 100 * (1 - edit distance / longer length) over processed names.
func Ratio(a, b string) int {
	return ratio(processName(a), processName(b))
}

func ratio(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	d := levenshtein.ComputeDistance(a, b)
	return int(math.Round(100 * (1 - float64(d)/float64(longest))))
}

// TokenSortRatio compares names after sorting their tokens, so word order
// ("Son Heung-min" vs "Heung-min Son") does not count against a match.
func TokenSortRatio(a, b string) int {
	return ratio(sortTokens(processName(a)), sortTokens(processName(b)))
}

func sortTokens(s string) string {
	f := strings.Fields(s)
	sort.Strings(f)
	return strings.Join(f, " ")
}

// WeightedRatio is the default scorer: the plain ratio, or a slightly
// discounted token-sort ratio when reordering helps.
func WeightedRatio(a, b string) int {
	r := Ratio(a, b)
	ts := int(math.Round(0.95 * float64(TokenSortRatio(a, b))))
	return max(r, ts)
}

// Rank scores every choice against query, best first. Equal scores are
// ordered by name so the result never depends on input order.
func Rank(query string, choices []string, score Scorer) []Candidate {
	out := make([]Candidate, 0, len(choices))
	for _, c := range choices {
		out = append(out, Candidate{Name: c, Score: score(query, c)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Best returns the top candidate if it scores at least threshold.
func Best(query string, choices []string, score Scorer, threshold int) (Candidate, bool) {
	ranked := Rank(query, choices, score)
	if len(ranked) == 0 || ranked[0].Score < threshold {
		return Candidate{}, false
	}
	return ranked[0], true
}
