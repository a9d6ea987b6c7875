package backend

import (
	"context"
	"errors"
	"io"
	"os"
	"time"
)

// ErrObjectNotFound is returned by Store.Open/Delete when relPath has no
// backing object.
var ErrObjectNotFound = errors.New("backend: object not found in store")

// Handle is the result of opening or creating an object in a Store. If
// the store can hand back a real kernel file descriptor (the local-disk
// stores), File is non-nil and FdPass/Splice delivery is available. If
// the store can only stream bytes (the network/S3 store), Reader is
// non-nil instead and delivery downgrades to Copy/Segmented-inline.
type Handle struct {
	File   *os.File
	Reader io.ReadCloser
	Size   int64
}

// Close releases whichever underlying resource is set.
func (h Handle) Close() error {
	if h.File != nil {
		return h.File.Close()
	}
	if h.Reader != nil {
		return h.Reader.Close()
	}
	return nil
}

// SupportsFD reports whether this handle can be passed across a Unix
// socket as an ancillary descriptor.
func (h Handle) SupportsFD() bool { return h.File != nil }

// ScanEntry is one object discovered by Store.Scan.
type ScanEntry struct {
	RelPath string
	Size    int64
	Mtime   time.Time
}

// Store is the per-backend-type storage primitive the manager drives.
// local disk backends (memory/nvme/ssd/hdd) implement it over the
// filesystem; the network backend implements it over S3.
type Store interface {
	// Create makes a new object at relPath, truncating any existing
	// content, and returns a writable handle.
	Create(ctx context.Context, relPath string) (Handle, error)
	// Open returns a readable handle for an existing object.
	Open(ctx context.Context, relPath string) (Handle, error)
	// Delete removes the object. Deleting a missing object returns
	// ErrObjectNotFound so callers can implement DELETE idempotence
	// (retry policy).
	Delete(ctx context.Context, relPath string) error
	// WriteAt writes data at the given relPath, creating it if absent,
	// and returns the object's new total size.
	WriteAt(ctx context.Context, relPath string, data []byte, offset int64) (int64, error)
	// Scan walks the whole store and reports every object found, for
	// populating indexes on startup without a persisted index file.
	Scan(ctx context.Context) ([]ScanEntry, error)
	// SupportsFDPass reports whether Open/Create can return a real file
	// descriptor on this store.
	SupportsFDPass() bool
}
