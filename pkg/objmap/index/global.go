package index

import (
	"errors"
	"hash/fnv"
	"sync"
)

// ErrNotFound is returned by Get/Lookup/Remove when a URI has no entry.
var ErrNotFound = errors.New("index: no entry for uri")

// ErrExists is returned by Insert when the URI is already present
// (invariant 2: every URI appears at most once in the global index).
var ErrExists = errors.New("index: uri already present")

const defaultShardCount = 256

// shard is one bucket of the global index: a reader-writer lock guarding
// a plain map. Readers across different shards never contend; readers
// within one shard never block each other either, only writers do.
type shard struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// Global is the URI → Entry map shared by the backend manager and every
// per-backend index. It is the single source of truth for
// "does this URI exist"; per-backend indexes hold the same *Entry
// pointers, scoped to one backend.
type Global struct {
	shards []*shard
}

// NewGlobal builds a global index with the default shard count.
func NewGlobal() *Global {
	return NewGlobalShards(defaultShardCount)
}

// NewGlobalShards builds a global index with an explicit shard count,
// mainly for tests that want to exercise shard collisions deterministically.
func NewGlobalShards(n int) *Global {
	if n < 1 {
		n = 1
	}
	g := &Global{shards: make([]*shard, n)}
	for i := range g.shards {
		g.shards[i] = &shard{entries: make(map[string]*Entry)}
	}
	return g
}

func (g *Global) shardFor(uri string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(uri))
	return g.shards[h.Sum32()%uint32(len(g.shards))]
}

// Insert adds a new entry. It fails with ErrExists if the URI is already
// present, enforcing invariant 2.
func (g *Global) Insert(e *Entry) error {
	s := g.shardFor(e.URI)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[e.URI]; ok {
		return ErrExists
	}
	s.entries[e.URI] = e
	return nil
}

// Get returns the entry for uri without taking a borrow on its fd.
func (g *Global) Get(uri string) (*Entry, bool) {
	s := g.shardFor(uri)
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[uri]
	return e, ok
}

// Remove deletes the uri→entry mapping. It does not close the fd or
// free the entry — callers still holding an FdRef keep it valid until
// they release it; the manager frees resources when the refcount drains.
func (g *Global) Remove(uri string) (*Entry, error) {
	s := g.shardFor(uri)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[uri]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.entries, uri)
	return e, nil
}

// Lookup resolves uri and returns a borrowed FdRef on its entry. The
// caller MUST call Release on the returned ref exactly once.
func (g *Global) Lookup(uri string) (*FdRef, error) {
	e, ok := g.Get(uri)
	if !ok {
		return nil, ErrNotFound
	}
	return newFdRef(e), nil
}

// Range calls fn for every entry currently in the index, stopping early
// if fn returns false. Used by list_objects, hotness_map, and the
// maintenance loop's scans. fn must not call back into Insert/Remove on
// the same shard it is iterating; take a snapshot first if that's needed.
func (g *Global) Range(fn func(*Entry) bool) {
	for _, s := range g.shards {
		s.mu.RLock()
		snapshot := make([]*Entry, 0, len(s.entries))
		for _, e := range s.entries {
			snapshot = append(snapshot, e)
		}
		s.mu.RUnlock()

		for _, e := range snapshot {
			if !fn(e) {
				return
			}
		}
	}
}

// Len returns the total number of entries across all shards.
func (g *Global) Len() int {
	total := 0
	for _, s := range g.shards {
		s.mu.RLock()
		total += len(s.entries)
		s.mu.RUnlock()
	}
	return total
}
