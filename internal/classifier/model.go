// Package classifier implements the content-based skill classifier: a TF-IDF
// vectorizer, one binary logistic regression per skill label and the label set
// that fixes their column order. The three are only ever handled together as
// a Model.
package classifier

import (
	"container/heap"
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultC         = 10.0
	DefaultMaxIter   = 2000
	DefaultThreshold = 0.5
)

// Options controls training.
type Options struct {
	C           float64
	MaxIter     int
	Threshold   float64
	Parallelism int
}

func (o Options) withDefaults() Options {
	if o.C <= 0 {
		o.C = DefaultC
	}
	if o.MaxIter <= 0 {
		o.MaxIter = DefaultMaxIter
	}
	if o.Threshold <= 0 || o.Threshold >= 1 {
		o.Threshold = DefaultThreshold
	}
	if o.Parallelism <= 0 {
		o.Parallelism = runtime.GOMAXPROCS(0)
	}
	return o
}

// Model is an immutable vectorizer + classifiers + label set triplet.
type Model struct {
	vectorizer  *Vectorizer
	classifiers []*binary
	labels      []string
	threshold   float64
	samples     int
	trainedAt   time.Time
}

// Prediction is one label with its one-vs-rest probability.
type Prediction struct {
	Label       string
	Probability float64
}

// Train fits a Model on a normalized title -> skill labels mapping. Titles
// with no labels still contribute negatives.
func Train(ctx context.Context, mapping map[string][]string, opts Options) (*Model, error) {
	opts = opts.withDefaults()

	titles := make([]string, 0, len(mapping))
	for title := range mapping {
		if strings.TrimSpace(title) != "" {
			titles = append(titles, title)
		}
	}
	if len(titles) == 0 {
		return nil, ErrEmptyTrainingSet
	}
	sort.Strings(titles)

	labelSet := make(map[string]struct{})
	for _, title := range titles {
		for _, label := range mapping[title] {
			if label = strings.TrimSpace(label); label != "" {
				labelSet[label] = struct{}{}
			}
		}
	}
	if len(labelSet) == 0 {
		return nil, ErrEmptyTrainingSet
	}
	labels := make([]string, 0, len(labelSet))
	for label := range labelSet {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	vec := FitVectorizer(titles)
	xs := make([]sparse, len(titles))
	members := make([]map[string]struct{}, len(titles))
	for i, title := range titles {
		xs[i] = vec.transform(title)
		members[i] = make(map[string]struct{}, len(mapping[title]))
		for _, label := range mapping[title] {
			members[i][strings.TrimSpace(label)] = struct{}{}
		}
	}

	classifiers := make([]*binary, len(labels))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Parallelism)
	for li, label := range labels {
		li, label := li, label
		g.Go(func() error {
			ys := make([]bool, len(titles))
			for i := range titles {
				_, ys[i] = members[i][label]
			}
			clf, err := fitBinary(gctx, xs, ys, solverOptions{
				c:        opts.C,
				maxIter:  opts.MaxIter,
				features: vec.Features(),
			})
			if err != nil {
				return fmt.Errorf("fit label %q: %w", label, err)
			}
			classifiers[li] = clf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Model{
		vectorizer:  vec,
		classifiers: classifiers,
		labels:      labels,
		threshold:   opts.Threshold,
		samples:     len(titles),
		trainedAt:   time.Now().UTC(),
	}, nil
}

func (m *Model) Labels() []string {
	out := make([]string, len(m.labels))
	copy(out, m.labels)
	return out
}

func (m *Model) Features() int        { return m.vectorizer.Features() }
func (m *Model) Samples() int         { return m.samples }
func (m *Model) TrainedAt() time.Time { return m.trainedAt }
func (m *Model) Threshold() float64   { return m.threshold }

// Probabilities returns one probability per label, in Labels order.
func (m *Model) Probabilities(title string) []float64 {
	x := m.vectorizer.transform(title)
	out := make([]float64, len(m.classifiers))
	for i, clf := range m.classifiers {
		out[i] = clf.probability(x)
	}
	return out
}

// Predict returns up to topN labels whose probability reaches the decision
// threshold, ordered by probability descending then label ascending. A nil
// model yields ErrModelNotLoaded.
func (m *Model) Predict(title string, topN int) ([]Prediction, error) {
	if m == nil {
		return nil, ErrModelNotLoaded
	}
	if topN <= 0 {
		return []Prediction{}, nil
	}

	probs := m.Probabilities(title)
	h := make(predictionHeap, 0, topN)
	for i, p := range probs {
		if p < m.threshold {
			continue
		}
		cand := Prediction{Label: m.labels[i], Probability: p}
		if h.Len() < topN {
			heap.Push(&h, cand)
			continue
		}
		if ranksBefore(cand, h[0]) {
			h[0] = cand
			heap.Fix(&h, 0)
		}
	}

	out := []Prediction(h)
	sort.Slice(out, func(i, j int) bool { return ranksBefore(out[i], out[j]) })
	return out, nil
}

func ranksBefore(a, b Prediction) bool {
	if a.Probability != b.Probability {
		return a.Probability > b.Probability
	}
	return a.Label < b.Label
}

// predictionHeap is a min-heap on rank: the root is the weakest kept prediction.
type predictionHeap []Prediction

func (h predictionHeap) Len() int           { return len(h) }
func (h predictionHeap) Less(i, j int) bool { return ranksBefore(h[j], h[i]) }
func (h predictionHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *predictionHeap) Push(x any)        { *h = append(*h, x.(Prediction)) }
func (h *predictionHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
