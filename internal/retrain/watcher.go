package retrain

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"skill-recommender/internal/artifact"
	"skill-recommender/internal/shared/metrics"
)

const DefaultPollInterval = 30 * time.Second

// Watcher polls the artifact store and swaps the serving handle when a new
// version is published by another process.
type Watcher struct {
	store    *artifact.Store
	handle   *artifact.Handle
	interval time.Duration
	logger   zerolog.Logger
}

//nolint:gocritic // zerolog loggers are passed by value
func NewWatcher(store *artifact.Store, handle *artifact.Handle, interval time.Duration, logger zerolog.Logger) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Watcher{
		store:    store,
		handle:   handle,
		interval: interval,
		logger:   logger.With().Str("component", "artifact_watcher").Logger(),
	}
}

// Serve implements suture.Service. It polls once immediately.
func (w *Watcher) Serve(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

// Poll loads CURRENT and swaps if it names a newer version than the one
// serving. It reports whether a swap happened. Load failures keep the current
// model.
func (w *Watcher) Poll(ctx context.Context) bool {
	cur := w.handle.Load()
	manifest, err := w.store.Current(ctx)
	if err != nil {
		if errors.Is(err, artifact.ErrNoArtifact) {
			w.logger.Debug().Msg("no published model yet")
		} else {
			w.logger.Warn().Err(err).Msg("read current manifest")
		}
		return false
	}
	if cur != nil && manifest.Version == cur.Manifest.Version {
		return false
	}

	snap, err := w.store.Load(ctx)
	if err != nil {
		w.logger.Warn().Err(err).Str("version", manifest.Version).Msg("load published model")
		return false
	}
	// a local retrain may have swapped in a newer model while we loaded
	if cur != nil && !snap.Manifest.PublishedAt.After(cur.Manifest.PublishedAt) {
		w.logger.Debug().
			Str("version", snap.Manifest.Version).
			Str("serving", cur.Manifest.Version).
			Msg("published model is not newer")
		return false
	}
	if !w.handle.CompareAndSwap(cur, snap) {
		w.logger.Debug().Str("version", snap.Manifest.Version).Msg("handle changed during load")
		return false
	}
	metrics.SetModelVersion(w.store.Name(), snap.Manifest.Version)

	ev := w.logger.Info().Str("version", snap.Manifest.Version)
	if cur != nil {
		ev = ev.Str("previous", cur.Manifest.Version)
	}
	ev.Msg("model swapped")
	return true
}

func (w *Watcher) String() string {
	return "artifact-watcher"
}
