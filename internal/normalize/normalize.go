// Package normalize canonicalizes job titles into the lexical form used as
// classifier input and as the reference table lookup key.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// DefaultStopwords are generic role words that carry no skill signal.
var DefaultStopwords = []string{
	"manager", "senior", "specialist", "lead", "junior", "head", "chief",
	"assistant", "associate", "principal", "staff", "sr", "jr", "intern",
	"trainee", "officer", "executive", "coordinator", "supervisor",
}

// Normalizer strips punctuation and stopwords from job titles. The zero value
// is not usable; construct with New.
type Normalizer struct {
	stop map[string]struct{}
}

// New builds a Normalizer. With no stopwords, DefaultStopwords are used.
func New(stopwords ...string) *Normalizer {
	if len(stopwords) == 0 {
		stopwords = DefaultStopwords
	}
	stop := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			stop[w] = struct{}{}
		}
	}
	return &Normalizer{stop: stop}
}

var std = New()

// Title normalizes with the default stoplist.
func Title(raw, department string) string {
	return std.Title(raw, department)
}

// Title lowercases raw, replaces every non-alphanumeric rune with a space and
// drops stoplisted tokens. If nothing survives, the lowercased raw title is
// returned instead. department is accepted but not folded into the output.
func (n *Normalizer) Title(raw, department string) string {
	_ = department

	folded := strings.ToLower(norm.NFKC.String(raw))
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, folded)

	tokens := strings.Fields(cleaned)
	kept := tokens[:0]
	for _, tok := range tokens {
		if _, stop := n.stop[tok]; stop {
			continue
		}
		kept = append(kept, tok)
	}
	if len(kept) == 0 {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	return strings.Join(kept, " ")
}
