package classifier

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	json "github.com/goccy/go-json"
)

const bundleFormat = 1

type bundleDoc struct {
	Format     int           `json:"format"`
	TrainedAt  time.Time     `json:"trained_at"`
	Samples    int           `json:"samples"`
	Threshold  float64       `json:"threshold"`
	Vectorizer vectorizerDoc `json:"vectorizer"`
	Classifier []binaryDoc   `json:"classifier"`
	Labels     []string      `json:"labels"`
}

type vectorizerDoc struct {
	Terms []string  `json:"terms"`
	IDF   []float64 `json:"idf"`
}

type binaryDoc struct {
	Weights   []float64 `json:"w,omitempty"`
	Intercept float64   `json:"b"`
	Constant  *float64  `json:"const,omitempty"`
}

// Encode serializes m as gzip'd JSON and returns the payload and its hex sha256.
func Encode(m *Model) ([]byte, string, error) {
	if m == nil {
		return nil, "", ErrModelNotLoaded
	}
	doc := bundleDoc{
		Format:    bundleFormat,
		TrainedAt: m.trainedAt,
		Samples:   m.samples,
		Threshold: m.threshold,
		Vectorizer: vectorizerDoc{
			Terms: m.vectorizer.terms,
			IDF:   m.vectorizer.idf,
		},
		Classifier: make([]binaryDoc, len(m.classifiers)),
		Labels:     m.labels,
	}
	for i, clf := range m.classifiers {
		doc.Classifier[i] = binaryDoc{Weights: clf.weights, Intercept: clf.intercept, Constant: clf.constant}
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(doc); err != nil {
		return nil, "", fmt.Errorf("encode bundle: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, "", fmt.Errorf("compress bundle: %w", err)
	}
	payload := buf.Bytes()
	return payload, Checksum(payload), nil
}

// Checksum is the hex sha256 of payload.
func Checksum(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Decode restores a Model from an Encode payload. When wantSHA is non-empty
// the payload must match it. Any mismatch between the three members is
// reported as ErrCorruptBundle.
func Decode(payload []byte, wantSHA string) (*Model, error) {
	if wantSHA != "" && Checksum(payload) != wantSHA {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptBundle)
	}
	zr, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptBundle, err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptBundle, err)
	}

	var doc bundleDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptBundle, err)
	}
	if doc.Format != bundleFormat {
		return nil, fmt.Errorf("%w: unsupported format %d", ErrCorruptBundle, doc.Format)
	}
	features := len(doc.Vectorizer.Terms)
	if len(doc.Vectorizer.IDF) != features {
		return nil, fmt.Errorf("%w: %d terms but %d idf weights", ErrCorruptBundle, features, len(doc.Vectorizer.IDF))
	}
	if len(doc.Labels) == 0 || len(doc.Classifier) != len(doc.Labels) {
		return nil, fmt.Errorf("%w: %d classifiers for %d labels", ErrCorruptBundle, len(doc.Classifier), len(doc.Labels))
	}

	if doc.Threshold <= 0 || doc.Threshold >= 1 {
		doc.Threshold = DefaultThreshold
	}

	vec := &Vectorizer{
		vocab: make(map[string]int, features),
		terms: doc.Vectorizer.Terms,
		idf:   doc.Vectorizer.IDF,
	}
	for i, term := range vec.terms {
		vec.vocab[term] = i
	}

	classifiers := make([]*binary, len(doc.Classifier))
	for i, c := range doc.Classifier {
		if c.Constant == nil && len(c.Weights) != features {
			return nil, fmt.Errorf("%w: label %q has %d weights, want %d", ErrCorruptBundle, doc.Labels[i], len(c.Weights), features)
		}
		classifiers[i] = &binary{weights: c.Weights, intercept: c.Intercept, constant: c.Constant}
	}

	return &Model{
		vectorizer:  vec,
		classifiers: classifiers,
		labels:      doc.Labels,
		threshold:   doc.Threshold,
		samples:     doc.Samples,
		trainedAt:   doc.TrainedAt,
	}, nil
}
