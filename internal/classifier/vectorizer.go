package classifier

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// Vectorizer is a word-unigram TF-IDF transform with smoothed idf and l2
// normalisation. Feature indices follow the sorted term order.
type Vectorizer struct {
	vocab map[string]int
	terms []string
	idf   []float64
}

// sparse is a vector stored as parallel index/value slices with ascending indices.
type sparse struct {
	idx []int
	val []float64
}

func (s sparse) dot(w []float64) float64 {
	var sum float64
	for k, i := range s.idx {
		sum += w[i] * s.val[k]
	}
	return sum
}

func tokenize(doc string) []string {
	fields := strings.FieldsFunc(strings.ToLower(doc), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			out = append(out, f)
		}
	}
	return out
}

// FitVectorizer learns the vocabulary and document frequencies of docs.
func FitVectorizer(docs []string) *Vectorizer {
	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, tok := range tokenize(doc) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	n := float64(len(docs))
	v := &Vectorizer{
		vocab: make(map[string]int, len(terms)),
		terms: terms,
		idf:   make([]float64, len(terms)),
	}
	for i, term := range terms {
		v.vocab[term] = i
		v.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	return v
}

// Features returns the vocabulary size.
func (v *Vectorizer) Features() int {
	return len(v.terms)
}

func (v *Vectorizer) transform(doc string) sparse {
	counts := make(map[int]float64)
	for _, tok := range tokenize(doc) {
		if i, ok := v.vocab[tok]; ok {
			counts[i]++
		}
	}
	if len(counts) == 0 {
		return sparse{}
	}

	out := sparse{idx: make([]int, 0, len(counts)), val: make([]float64, 0, len(counts))}
	for i := range counts {
		out.idx = append(out.idx, i)
	}
	sort.Ints(out.idx)

	var norm float64
	for _, i := range out.idx {
		w := counts[i] * v.idf[i]
		out.val = append(out.val, w)
		norm += w * w
	}
	norm = math.Sqrt(norm)
	for k := range out.val {
		out.val[k] /= norm
	}
	return out
}
