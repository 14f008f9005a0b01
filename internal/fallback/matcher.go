package fallback

import (
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
)

// Matcher finds the candidate most similar to query. Scores are on a 0-100
// scale. ok is false when there are no candidates.
type Matcher interface {
	Best(query string, candidates []string) (match string, score float64, ok bool)
}

// RatioMatcher scores by normalized indel similarity,
// 100 * 2*LCS(a,b) / (len(a)+len(b)) over runes. Ties keep the earliest candidate.
type RatioMatcher struct{}

func (RatioMatcher) Best(query string, candidates []string) (string, float64, bool) {
	best, bestScore, found := "", -1.0, false
	for _, cand := range candidates {
		score := Ratio(query, cand)
		if score > bestScore {
			best, bestScore, found = cand, score, true
		}
	}
	if !found {
		return "", 0, false
	}
	return best, bestScore, true
}

// Ratio returns the 0-100 similarity of a and b. Two empty strings score 100.
func Ratio(a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 100
	}
	return 100 * float64(2*edlib.LCS(a, b)) / float64(total)
}
