package object

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Get when no object exists at the key.
var ErrNotFound = errors.New("object not found")

// ObjectStore reads and writes whole binary objects by key. A Put replaces
// the object in one step: readers see the previous bytes or the new ones,
// never a partial write.
type ObjectStore interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Put(ctx context.Context, key, contentType string, r io.Reader) (int64, error)
	// List returns the keys under prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
	// Delete removes key. Deleting a missing key succeeds.
	Delete(ctx context.Context, key string) error
}
