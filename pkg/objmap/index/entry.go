// Package index implements the global URI→entry map and per-backend
// indexes: a lock-free-read global index, a
// per-backend scoped view of the same entries, and the reference-counted
// FdRef borrowing pattern that lets concurrent readers share one open
// file descriptor safely across a migration.
package index

import (
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/objmapper/objmapper/pkg/objmap/payload"
)

// Flags captures an entry's placement discipline.
type Flags struct {
	Ephemeral  bool
	Persistent bool
}

// Entry is one stored object: spec's IndexEntry. Fields that change
// together (backend placement) are guarded by mu; independent counters
// are plain atomics so the hot read path never blocks on them.
type Entry struct {
	URI string

	mu          sync.RWMutex
	backendID   int
	backendPath string
	flags       Flags
	mtime       time.Time
	descriptor  payload.Descriptor
	hasDescriptor bool
	fd          *os.File

	size         atomic.Uint64
	accessCount  atomic.Uint64
	hotnessBits  atomic.Uint64 // math.Float64bits(hotness)
	lastAccessNS atomic.Int64
	generation   atomic.Uint64
	fdRefCount   atomic.Int32
	deleted      atomic.Bool
}

// NewEntry constructs an entry for a freshly created or scanned object.
func NewEntry(uri string, backendID int, backendPath string, flags Flags, mtime time.Time) *Entry {
	e := &Entry{
		URI:         uri,
		backendID:   backendID,
		backendPath: backendPath,
		flags:       flags,
		mtime:       mtime,
	}
	e.lastAccessNS.Store(mtime.UnixNano())
	return e
}

// BackendID returns the entry's current backend, safe to call concurrently
// with a migration in flight (it observes either the old or new value
// atomically, never a torn one).
func (e *Entry) BackendID() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.backendID
}

// BackendPath returns the entry's current on-backend path.
func (e *Entry) BackendPath() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.backendPath
}

// Flags returns the entry's ephemeral/persistent placement flags.
func (e *Entry) Flags() Flags {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.flags
}

// Mtime returns the entry's last-modified time.
func (e *Entry) Mtime() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mtime
}

// SetMtime updates the entry's last-modified time.
func (e *Entry) SetMtime(t time.Time) {
	e.mu.Lock()
	e.mtime = t
	e.mu.Unlock()
}

// Size returns the entry's current byte size.
func (e *Entry) Size() uint64 { return e.size.Load() }

// SetSize sets the entry's byte size (update_size).
func (e *Entry) SetSize(n uint64) { e.size.Store(n) }

// AccessCount returns the number of recorded accesses.
func (e *Entry) AccessCount() uint64 { return e.accessCount.Load() }

// Generation returns a monotonically increasing counter bumped on every
// backend-placement mutation (migration). It is informational only —
// existing FdRefs remain valid across a generation bump because they
// hold a concrete *os.File, not a re-resolved path.
func (e *Entry) Generation() uint64 { return e.generation.Load() }

// Hotness returns the entry's current decaying hotness score.
func (e *Entry) Hotness() float64 {
	return math.Float64frombits(e.hotnessBits.Load())
}

// LastAccess returns the time of the entry's last recorded access.
func (e *Entry) LastAccess() time.Time {
	return time.Unix(0, e.lastAccessNS.Load())
}

// RecordAccess bumps the access counter and marks "now" for the next
// hotness decay tick to observe as a recency pulse. Called by the
// session layer before sending each response.
func (e *Entry) RecordAccess(now time.Time) {
	e.accessCount.Add(1)
	e.lastAccessNS.Store(now.UnixNano())
}

// DecayHotness applies the hotness-decay formula:
//
//	hotness_new = 0.7*exp(-Δt/halflife)*hotness_old + 0.3*recency_pulse
//
// recency_pulse is 1.0 if the entry was accessed since lastSample, 0
// otherwise. Called once per maintenance tick per entry.
func (e *Entry) DecayHotness(now time.Time, lastSample time.Time, halflife time.Duration) float64 {
	old := e.Hotness()
	delta := now.Sub(lastSample).Seconds()
	decay := 0.7 * math.Exp(-delta/halflife.Seconds())

	pulse := 0.0
	if e.LastAccess().After(lastSample) {
		pulse = 1.0
	}

	next := decay*old + 0.3*pulse
	e.hotnessBits.Store(math.Float64bits(next))
	return next
}

// Descriptor returns the entry's payload descriptor and whether one has
// been set (get_payload_metadata).
func (e *Entry) Descriptor() (payload.Descriptor, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.descriptor, e.hasDescriptor
}

// SetDescriptor validates and replaces the entry's payload descriptor
// (set_payload_metadata). The caller is responsible for marking the
// owning per-backend index dirty afterward.
func (e *Entry) SetDescriptor(d payload.Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	e.descriptor = d
	e.hasDescriptor = true
	e.mu.Unlock()
	return nil
}

// SeedIdentityIfAbsent seeds a single identity variant if the entry has
// no descriptor yet and its size is non-zero, matching update_size's
// seeding rule and its zero-byte boundary behavior.
func (e *Entry) SeedIdentityIfAbsent(size uint64) {
	if size == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.hasDescriptor {
		return
	}
	e.descriptor = payload.IdentityOnly(size)
	e.hasDescriptor = true
}

// File returns the entry's currently open descriptor, if any.
func (e *Entry) File() *os.File {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.fd
}

// SetFile stashes an open descriptor on the entry (create_object,
// migrate_object). Closing a previous file, if any, is the caller's
// responsibility.
func (e *Entry) SetFile(f *os.File) {
	e.mu.Lock()
	e.fd = f
	e.mu.Unlock()
}

// Relocate atomically swaps the entry's backend placement, used by
// migrate_object after a successful copy (step 5). It bumps
// Generation but leaves any already-open fd alone — live FdRefs keep
// reading the old, now-unlinked file through their own handle. newFile
// may be nil when the destination backend has no descriptor to stash
// (a network store, say); File() then simply returns nil until the next
// Open.
func (e *Entry) Relocate(backendID int, backendPath string, newFile *os.File) {
	e.mu.Lock()
	e.backendID = backendID
	e.backendPath = backendPath
	e.fd = newFile
	e.mu.Unlock()
	e.generation.Add(1)
}

// markEphemeral flips the entry's ephemeral flag, used when an operator
// explicitly reclassifies an object before attempting a migration (S3 in
// ).
func (e *Entry) markEphemeral(ephemeral bool) {
	e.mu.Lock()
	e.flags.Ephemeral = ephemeral
	e.flags.Persistent = !ephemeral
	e.mu.Unlock()
}

// MarkDeleted flags the entry as logically deleted. The underlying file
// and the entry itself are only released once FdRefCount reaches zero
// (invariant 3).
func (e *Entry) MarkDeleted() { e.deleted.Store(true) }

// Deleted reports whether delete_object has already been called on this
// entry.
func (e *Entry) Deleted() bool { return e.deleted.Load() }

// FdRefCount returns the current number of outstanding borrows.
func (e *Entry) FdRefCount() int32 { return e.fdRefCount.Load() }

// acquire increments the refcount and returns the entry's current fd,
// generation pair for a new FdRef.
func (e *Entry) acquire() (*os.File, uint64) {
	e.fdRefCount.Add(1)
	e.mu.RLock()
	f := e.fd
	e.mu.RUnlock()
	return f, e.generation.Load()
}

// release decrements the refcount. It reports whether this release
// caused the count to reach zero while the entry was already marked
// deleted, in which case the caller (the manager) must close the fd and
// free the entry.
func (e *Entry) release() (shouldFree bool) {
	remaining := e.fdRefCount.Add(-1)
	return remaining == 0 && e.deleted.Load()
}

// FdRef is the borrowed-handle pattern: lookup(uri) →
// FdRef{entry, fd, generation}. Callers must call Release exactly once.
type FdRef struct {
	Entry      *Entry
	File       *os.File
	Generation uint64

	released atomic.Bool
}

// newFdRef acquires a borrow on e.
func newFdRef(e *Entry) *FdRef {
	f, gen := e.acquire()
	return &FdRef{Entry: e, File: f, Generation: gen}
}

// Release returns the borrow. It is safe to call more than once; only the
// first call has effect. The returned bool reports whether the entry's
// fd should now be closed and the entry freed by the owning manager.
func (r *FdRef) Release() (shouldFree bool) {
	if !r.released.CompareAndSwap(false, true) {
		return false
	}
	return r.Entry.release()
}
