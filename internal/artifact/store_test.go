package artifact

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skill-recommender/internal/classifier"
	"skill-recommender/internal/shared/storage/object/local"
)

func trainModel(t *testing.T, mapping map[string][]string) *classifier.Model {
	t.Helper()
	m, err := classifier.Train(context.Background(), mapping, classifier.Options{MaxIter: 200})
	require.NoError(t, err)
	return m
}

func TestLoadBeforePublish(t *testing.T) {
	store := NewStore(local.New(t.TempDir()), "test_model")
	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, ErrNoArtifact)
}

func TestPublishThenLoad(t *testing.T) {
	store := NewStore(local.New(t.TempDir()), "test_model")
	ctx := context.Background()
	model := trainModel(t, map[string][]string{
		"nurse": {"patient care"},
		"chef":  {"food safety"},
	})

	manifest, err := store.Publish(ctx, model)
	require.NoError(t, err)
	assert.Equal(t, "test_model", manifest.Name)
	assert.Equal(t, 2, manifest.Labels)
	assert.Equal(t, 2, manifest.Samples)
	assert.Contains(t, manifest.Key, "models/test_model/bundles/")

	current, err := store.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, manifest.Version, current.Version)

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, manifest.Version, snap.Manifest.Version)
	assert.Equal(t, model.Labels(), snap.Model.Labels())
}

func TestLoadDetectsTamperedBundle(t *testing.T) {
	objects := local.New(t.TempDir())
	store := NewStore(objects, "test_model")
	ctx := context.Background()

	manifest, err := store.Publish(ctx, trainModel(t, map[string][]string{"nurse": {"patient care"}, "chef": {"food safety"}}))
	require.NoError(t, err)

	_, err = objects.Put(ctx, manifest.Key, "application/gzip", bytes.NewReader([]byte("garbage")))
	require.NoError(t, err)

	_, err = store.Load(ctx)
	assert.True(t, errors.Is(err, classifier.ErrCorruptBundle), "got %v", err)
}

func TestConcurrentLoadSeesWholeBundle(t *testing.T) {
	store := NewStore(local.New(t.TempDir()), "test_model")
	ctx := context.Background()

	oldModel := trainModel(t, map[string][]string{"nurse": {"patient care"}, "chef": {"food safety"}})
	newModel := trainModel(t, map[string][]string{
		"nurse":       {"patient care", "triage"},
		"chef":        {"food safety"},
		"electrician": {"wiring"},
	})
	_, err := store.Publish(ctx, oldModel)
	require.NoError(t, err)

	expected := map[int][]string{
		len(oldModel.Labels()): oldModel.Labels(),
		len(newModel.Labels()): newModel.Labels(),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			m := newModel
			if i%2 == 1 {
				m = oldModel
			}
			if _, err := store.Publish(ctx, m); err != nil {
				t.Errorf("publish: %v", err)
				return
			}
		}
	}()

	for i := 0; i < 100; i++ {
		snap, err := store.Load(ctx)
		require.NoError(t, err)
		want, ok := expected[snap.Manifest.Labels]
		require.True(t, ok, "unexpected label count %d", snap.Manifest.Labels)
		assert.Equal(t, want, snap.Model.Labels())
		assert.Equal(t, snap.Manifest.Features, snap.Model.Features())
	}
	wg.Wait()
}

func TestHandleSwap(t *testing.T) {
	h := NewHandle()
	assert.Nil(t, h.Load())
	assert.Nil(t, h.Model())
	assert.Empty(t, h.Version())

	first := &Snapshot{Manifest: Manifest{Version: "v1"}}
	second := &Snapshot{Manifest: Manifest{Version: "v2"}}
	assert.Nil(t, h.Swap(first))

	held := h.Load()
	prev := h.Swap(second)
	assert.Same(t, first, prev)
	assert.Equal(t, "v1", held.Manifest.Version)
	assert.Equal(t, "v2", h.Version())

	third := &Snapshot{Manifest: Manifest{Version: "v3"}}
	assert.False(t, h.CompareAndSwap(first, third), "stale expected snapshot")
	assert.Equal(t, "v2", h.Version())
	assert.True(t, h.CompareAndSwap(second, third))
	assert.Equal(t, "v3", h.Version())
}

func TestPruneKeepsNewestAndCurrent(t *testing.T) {
	objects := local.New(t.TempDir())
	store := NewStore(objects, "test_model")
	ctx := context.Background()

	clock := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	model := trainModel(t, map[string][]string{"nurse": {"patient care"}, "chef": {"food safety"}})
	var published []Manifest
	for i := 0; i < 4; i++ {
		m, err := store.Publish(ctx, model)
		require.NoError(t, err)
		published = append(published, m)
	}

	deleted, err := store.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	keys, err := objects.List(ctx, "models/test_model/bundles/")
	require.NoError(t, err)
	assert.Equal(t, []string{published[2].Key, published[3].Key}, keys)

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, published[3].Version, snap.Manifest.Version)

	deleted, err = store.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestPruneBeforePublish(t *testing.T) {
	store := NewStore(local.New(t.TempDir()), "test_model")
	_, err := store.Prune(context.Background(), 3)
	assert.ErrorIs(t, err, ErrNoArtifact)
}
