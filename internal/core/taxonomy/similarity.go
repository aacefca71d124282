package taxonomy

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// DefaultCutoff is the similarity ratio a fuzzy match must reach.
const DefaultCutoff = 0.8

// Ratio is difflib's SequenceMatcher ratio over the characters of a and b:
// 2*M/T, where M counts matched characters and T is the combined length.
func Ratio(a, b string) float64 {
	return difflib.NewMatcher(chars(a), chars(b)).Ratio()
}

func chars(s string) []string {
	return strings.Split(s, "")
}

// CloseMatch returns the candidate most similar to word with a ratio of at
// least cutoff. Equal scores resolve to the lexicographically greater
// candidate, matching difflib.get_close_matches(n=1).
func CloseMatch(word string, candidates []string, cutoff float64) (string, float64, bool) {
	matcher := difflib.NewMatcher(nil, nil)
	matcher.SetSeq2(chars(word))

	best, bestScore, found := "", 0.0, false
	for _, candidate := range candidates {
		matcher.SetSeq1(chars(candidate))
		score := matcher.Ratio()
		if score < cutoff {
			continue
		}
		if !found || score > bestScore || (score == bestScore && candidate > best) {
			best, bestScore, found = candidate, score, true
		}
	}
	return best, bestScore, found
}
