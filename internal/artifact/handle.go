package artifact

import (
	"sync/atomic"

	"skill-recommender/internal/classifier"
)

// Snapshot pairs a loaded model with the manifest it was published under.
type Snapshot struct {
	Model    *classifier.Model
	Manifest Manifest
}

// Handle is the serving reference to the current snapshot. Readers take one
// Load and use that snapshot for the whole request; Swap replaces it for
// subsequent readers only.
type Handle struct {
	current atomic.Pointer[Snapshot]
}

func NewHandle() *Handle {
	return &Handle{}
}

// Load returns the current snapshot, or nil before the first Swap.
func (h *Handle) Load() *Snapshot {
	if h == nil {
		return nil
	}
	return h.current.Load()
}

// Model returns the current model or nil.
func (h *Handle) Model() *classifier.Model {
	if snap := h.Load(); snap != nil {
		return snap.Model
	}
	return nil
}

// Version returns the serving version, empty when nothing is loaded.
func (h *Handle) Version() string {
	if snap := h.Load(); snap != nil {
		return snap.Manifest.Version
	}
	return ""
}

// Swap installs next and returns the previous snapshot.
func (h *Handle) Swap(next *Snapshot) *Snapshot {
	return h.current.Swap(next)
}

// CompareAndSwap installs next only if old is still current.
func (h *Handle) CompareAndSwap(old, next *Snapshot) bool {
	return h.current.CompareAndSwap(old, next)
}
