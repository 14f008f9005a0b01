// Package artifact publishes and loads classifier bundles over an object
// store. Bundles are immutable objects under bundles/; the CURRENT manifest
// names the one readers should serve and is replaced in a single write.
package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"

	"skill-recommender/internal/classifier"
	"skill-recommender/internal/shared/storage/object"
)

// Manifest describes one published bundle.
type Manifest struct {
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Key         string    `json:"key"`
	SHA256      string    `json:"sha256"`
	Labels      int       `json:"labels"`
	Features    int       `json:"features"`
	Samples     int       `json:"samples"`
	TrainedAt   time.Time `json:"trained_at"`
	PublishedAt time.Time `json:"published_at"`
}

// Store is the artifact store for a single model name.
type Store struct {
	objects object.ObjectStore
	name    string
	breaker *gobreaker.CircuitBreaker[[]byte]
	now     func() time.Time
}

// NewStore builds a Store. Reads go through a circuit breaker so a failing
// backend is not hammered by every prediction and watcher tick.
func NewStore(objects object.ObjectStore, name string) *Store {
	settings := gobreaker.Settings{
		Name:    "artifact-" + name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, object.ErrNotFound)
		},
	}
	return &Store{
		objects: objects,
		name:    name,
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
		now:     time.Now,
	}
}

func (s *Store) Name() string { return s.name }

func (s *Store) currentKey() string {
	return path.Join("models", s.name, "CURRENT")
}

func (s *Store) bundlePrefix() string {
	return path.Join("models", s.name, "bundles") + "/"
}

func (s *Store) bundleKey(version string) string {
	return s.bundlePrefix() + version + ".json.gz"
}

// Publish stages the encoded bundle under a fresh version and then switches
// CURRENT to it. A failure before the switch leaves the previous bundle
// authoritative; the orphaned staging object is harmless.
func (s *Store) Publish(ctx context.Context, m *classifier.Model) (Manifest, error) {
	payload, sum, err := classifier.Encode(m)
	if err != nil {
		return Manifest{}, err
	}

	now := s.now().UTC()
	version := fmt.Sprintf("%s-%s", now.Format("20060102T150405.000Z"), uuid.NewString()[:8])
	manifest := Manifest{
		Name:        s.name,
		Version:     version,
		Key:         s.bundleKey(version),
		SHA256:      sum,
		Labels:      len(m.Labels()),
		Features:    m.Features(),
		Samples:     m.Samples(),
		TrainedAt:   m.TrainedAt(),
		PublishedAt: now,
	}

	if _, err := s.objects.Put(ctx, manifest.Key, "application/gzip", bytes.NewReader(payload)); err != nil {
		return Manifest{}, fmt.Errorf("stage bundle %s: %w", version, err)
	}

	raw, err := json.Marshal(manifest)
	if err != nil {
		return Manifest{}, fmt.Errorf("encode manifest: %w", err)
	}
	if _, err := s.objects.Put(ctx, s.currentKey(), "application/json", bytes.NewReader(raw)); err != nil {
		return Manifest{}, fmt.Errorf("switch current to %s: %w", version, err)
	}
	return manifest, nil
}

// Current reads the CURRENT manifest.
func (s *Store) Current(ctx context.Context) (Manifest, error) {
	raw, err := s.read(ctx, s.currentKey())
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return Manifest{}, ErrNoArtifact
		}
		return Manifest{}, err
	}
	var manifest Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("%w: manifest: %v", classifier.ErrCorruptBundle, err)
	}
	if manifest.Key == "" || manifest.Version == "" {
		return Manifest{}, fmt.Errorf("%w: manifest missing key", classifier.ErrCorruptBundle)
	}
	return manifest, nil
}

// LoadBytes returns the raw bundle named by CURRENT together with its manifest.
func (s *Store) LoadBytes(ctx context.Context) ([]byte, Manifest, error) {
	manifest, err := s.Current(ctx)
	if err != nil {
		return nil, Manifest{}, err
	}
	payload, err := s.read(ctx, manifest.Key)
	if err != nil {
		return nil, Manifest{}, fmt.Errorf("read bundle %s: %w", manifest.Version, err)
	}
	return payload, manifest, nil
}

// Load resolves CURRENT, fetches the immutable bundle it names and verifies
// the checksum, so the result is always one complete published triplet.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	payload, manifest, err := s.LoadBytes(ctx)
	if err != nil {
		return nil, err
	}
	model, err := classifier.Decode(payload, manifest.SHA256)
	if err != nil {
		return nil, fmt.Errorf("decode bundle %s: %w", manifest.Version, err)
	}
	return &Snapshot{Model: model, Manifest: manifest}, nil
}

func (s *Store) read(ctx context.Context, key string) ([]byte, error) {
	return s.breaker.Execute(func() ([]byte, error) {
		rc, err := s.objects.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	})
}

// Prune deletes all but the newest keep bundles. The bundle CURRENT names is
// never deleted. Versions start with their publish time, so key order is age
// order.
func (s *Store) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 1 {
		keep = 1
	}
	current, err := s.Current(ctx)
	if err != nil {
		return 0, err
	}
	keys, err := s.objects.List(ctx, s.bundlePrefix())
	if err != nil {
		return 0, fmt.Errorf("list bundles: %w", err)
	}
	if len(keys) <= keep {
		return 0, nil
	}

	deleted := 0
	for _, key := range keys[:len(keys)-keep] {
		if key == current.Key {
			continue
		}
		if err := s.objects.Delete(ctx, key); err != nil {
			return deleted, fmt.Errorf("delete bundle %s: %w", key, err)
		}
		deleted++
	}
	return deleted, nil
}
