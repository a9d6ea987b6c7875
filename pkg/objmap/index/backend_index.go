package index

import "sync"

// PerBackend is the backend-scoped view of the entry graph: it indexes
// the same *Entry pointers the global index holds, keyed the same way,
// but private to one backend so the manager can load/save it
// independently of every other backend.
type PerBackend struct {
	backendID int

	mu      sync.RWMutex
	entries map[string]*Entry
	dirty   bool
}

// NewPerBackend builds an empty per-backend index for the given backend id.
func NewPerBackend(backendID int) *PerBackend {
	return &PerBackend{
		backendID: backendID,
		entries:   make(map[string]*Entry),
	}
}

// Add inserts an entry and marks the index dirty.
func (p *PerBackend) Add(e *Entry) {
	p.mu.Lock()
	p.entries[e.URI] = e
	p.dirty = true
	p.mu.Unlock()
}

// Remove deletes an entry by URI and marks the index dirty. It is a
// no-op if the URI isn't present (used during migration cleanup, where
// the caller already knows the entry exists on this backend).
func (p *PerBackend) Remove(uri string) {
	p.mu.Lock()
	delete(p.entries, uri)
	p.dirty = true
	p.mu.Unlock()
}

// Get returns the entry for uri, if scoped to this backend.
func (p *PerBackend) Get(uri string) (*Entry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.entries[uri]
	return e, ok
}

// MarkDirty flags the index as needing a flush, without adding or
// removing an entry (used after in-place mutations like set_payload_metadata
// or update_size, which change an already-indexed entry's state).
func (p *PerBackend) MarkDirty() {
	p.mu.Lock()
	p.dirty = true
	p.mu.Unlock()
}

// Dirty reports whether the index has unpersisted mutations.
func (p *PerBackend) Dirty() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dirty
}

// clearDirty resets the dirty flag after a successful Save.
func (p *PerBackend) clearDirty() {
	p.mu.Lock()
	p.dirty = false
	p.mu.Unlock()
}

// Snapshot returns a stable copy of the current entry list, for Save and
// for list_objects filtered to one backend.
func (p *PerBackend) Snapshot() []*Entry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Entry, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, e)
	}
	return out
}

// Len returns the number of entries scoped to this backend.
func (p *PerBackend) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// UsedBytes sums the size of every entry scoped to this backend
// (invariant 4, modulo in-flight migration).
func (p *PerBackend) UsedBytes() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var total uint64
	for _, e := range p.entries {
		total += e.Size()
	}
	return total
}
