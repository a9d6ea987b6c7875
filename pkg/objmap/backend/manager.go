package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/objmapper/objmapper/internal/logger"
	"github.com/objmapper/objmapper/pkg/objmap/index"
	"github.com/objmapper/objmapper/pkg/objmap/payload"
)

var (
	// ErrBackendNotFound is returned when a backend id has no registration.
	ErrBackendNotFound = errors.New("backend: no such backend id")
	// ErrBackendDisabled is returned when an operation targets a disabled backend.
	ErrBackendDisabled = errors.New("backend: backend is disabled")
	// ErrBackendReadOnly is returned when a write operation targets a read-only backend.
	ErrBackendReadOnly = errors.New("backend: backend is read-only")
	// ErrEphemeralViolation is returned when an ephemeral object would land on a
	// non-ephemeral-only backend, or vice versa (invariant 1).
	ErrEphemeralViolation = errors.New("backend: ephemeral placement violates backend discipline")
	// ErrSameBackend is returned when migrate_object targets the entry's current backend.
	ErrSameBackend = errors.New("backend: migration target is the current backend")
	// ErrMigrationNotAllowed is returned when src/dst lack MigrationSrc/MigrationDst flags.
	ErrMigrationNotAllowed = errors.New("backend: backend does not permit migration in this direction")
	// ErrNoDefaultBackend is returned by CreateObject when no default is configured.
	ErrNoDefaultBackend = errors.New("backend: no default backend configured")
	// ErrNoEphemeralBackend is returned by CreateObject when an ephemeral object has nowhere to go.
	ErrNoEphemeralBackend = errors.New("backend: no ephemeral backend configured")
)

// CreateRequest describes a create_object call.
type CreateRequest struct {
	URI       string
	BackendID int // -1 selects automatically
	Ephemeral bool
}

// Manager owns the global index and every registered backend. There are
// no package-level statics: every session and the maintenance
// loop are handed one explicitly-constructed *Manager.
type Manager struct {
	Global *index.Global

	mu       sync.RWMutex
	backends map[int]*Backend

	defaultBackendID   int
	ephemeralBackendID int
	cacheBackendID     int
	haveDefault        bool
	haveEphemeral      bool
	haveCache          bool

	cacheThreshold  float64
	hotnessHalflife time.Duration
	tickInterval    time.Duration
	lastSample      time.Time

	ledger  Ledger
	metrics Metrics

	cacheRunning atomic.Bool
	stopCh       chan struct{}
	stoppedCh    chan struct{}
}

// NewManager constructs an empty manager. Register backends, then call
// SetDefault/SetEphemeral/SetCache as needed, then StartCaching.
func NewManager() *Manager {
	return &Manager{
		Global:          index.NewGlobal(),
		backends:        make(map[int]*Backend),
		cacheThreshold:  0.6,
		hotnessHalflife: time.Hour,
		tickInterval:    5 * time.Second,
		lastSample:      time.Now(),
		ledger:          noopLedger{},
	}
}

// SetLedger installs the migration/maintenance audit ledger. A Manager
// built via NewManager defaults to a no-op ledger so tests don't need
// one.
func (m *Manager) SetLedger(l Ledger) {
	if l == nil {
		l = noopLedger{}
	}
	m.mu.Lock()
	m.ledger = l
	m.mu.Unlock()
}

// RegisterBackend adds b to the manager's registry. It is an error to
// register the same id twice.
func (m *Manager) RegisterBackend(b *Backend) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.backends[b.ID]; exists {
		return fmt.Errorf("backend: id %d already registered", b.ID)
	}
	m.backends[b.ID] = b
	return nil
}

// Backend returns the registered backend for id.
func (m *Manager) Backend(id int) (*Backend, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.backends[id]
	if !ok {
		return nil, ErrBackendNotFound
	}
	return b, nil
}

// Backends returns every registered backend, in id order.
func (m *Manager) Backends() []*Backend {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Backend, 0, len(m.backends))
	for _, b := range m.backends {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetDefault designates the backend used when CreateRequest.BackendID < 0
// and the object is not ephemeral.
func (m *Manager) SetDefault(id int) error {
	if _, err := m.Backend(id); err != nil {
		return err
	}
	m.mu.Lock()
	m.defaultBackendID = id
	m.haveDefault = true
	m.mu.Unlock()
	return nil
}

// SetEphemeral designates the backend used when CreateRequest.BackendID < 0
// and the object is ephemeral.
func (m *Manager) SetEphemeral(id int) error {
	b, err := m.Backend(id)
	if err != nil {
		return err
	}
	if !b.Flags().EphemeralOnly {
		return fmt.Errorf("%w: backend %d is not ephemeral_only", ErrEphemeralViolation, id)
	}
	m.mu.Lock()
	m.ephemeralBackendID = id
	m.haveEphemeral = true
	m.mu.Unlock()
	return nil
}

// SetCache designates the backend the maintenance loop promotes hot
// objects into and demotes cold ones out of.
func (m *Manager) SetCache(id int) error {
	if _, err := m.Backend(id); err != nil {
		return err
	}
	m.mu.Lock()
	m.cacheBackendID = id
	m.haveCache = true
	m.mu.Unlock()
	return nil
}

// SetMigrationPolicy configures the cache threshold and hotness halflife
// the maintenance loop uses.
func (m *Manager) SetMigrationPolicy(p MigrationPolicy) {
	m.mu.Lock()
	if p.CacheThreshold > 0 {
		m.cacheThreshold = p.CacheThreshold
	}
	if p.HotnessHalflife > 0 {
		m.hotnessHalflife = time.Duration(p.HotnessHalflife)
	}
	m.mu.Unlock()
}

// SetTickInterval configures the maintenance loop's polling interval
// (default 5s).
func (m *Manager) SetTickInterval(d time.Duration) {
	m.mu.Lock()
	m.tickInterval = d
	m.mu.Unlock()
}

// CreateObject implements create_object, including automatic backend
// selection when the caller doesn't pin a backend id.
func (m *Manager) CreateObject(ctx context.Context, req CreateRequest) (*index.FdRef, error) {
	started := time.Now()
	targetID := req.BackendID
	if targetID < 0 {
		m.mu.RLock()
		if req.Ephemeral {
			if !m.haveEphemeral {
				m.mu.RUnlock()
				return nil, ErrNoEphemeralBackend
			}
			targetID = m.ephemeralBackendID
		} else {
			if !m.haveDefault {
				m.mu.RUnlock()
				return nil, ErrNoDefaultBackend
			}
			targetID = m.defaultBackendID
		}
		m.mu.RUnlock()
	}

	b, err := m.Backend(targetID)
	if err != nil {
		return nil, err
	}
	flags := b.Flags()
	if !flags.Enabled {
		return nil, ErrBackendDisabled
	}
	if flags.ReadOnly {
		return nil, ErrBackendReadOnly
	}
	if req.Ephemeral && !flags.EphemeralOnly {
		return nil, fmt.Errorf("%w: ephemeral object cannot target non-ephemeral backend %d", ErrEphemeralViolation, targetID)
	}
	if !req.Ephemeral && flags.EphemeralOnly {
		return nil, fmt.Errorf("%w: persistent object cannot target ephemeral_only backend %d", ErrEphemeralViolation, targetID)
	}

	h, err := b.Store.Create(ctx, req.URI)
	if err != nil {
		return nil, fmt.Errorf("backend: create object: %w", err)
	}

	entryFlags := index.Flags{Ephemeral: req.Ephemeral, Persistent: !req.Ephemeral}
	e := index.NewEntry(req.URI, targetID, req.URI, entryFlags, time.Now())
	e.SetFile(h.File)

	if err := m.Global.Insert(e); err != nil {
		h.Close()
		_ = b.Store.Delete(ctx, req.URI)
		return nil, err
	}
	b.Index.Add(e)
	b.Stats.Writes.Add(1)
	if m.metrics != nil {
		m.metrics.ObserveWrite(targetID, 0, time.Since(started))
	}

	ref, err := m.Global.Lookup(req.URI)
	if err != nil {
		return nil, err
	}
	return ref, nil
}

// GetObject implements get_object: resolve uri, record the access, and
// return a borrowed FdRef. Callers decide delivery mode from the ref's
// File/backend; network-backed entries have no File.
func (m *Manager) GetObject(ctx context.Context, uri string) (*index.FdRef, error) {
	started := time.Now()
	ref, err := m.Global.Lookup(uri)
	if err != nil {
		return nil, err
	}
	if ref.Entry.Deleted() {
		ref.Release()
		return nil, index.ErrNotFound
	}
	ref.Entry.RecordAccess(time.Now())

	if b, err := m.Backend(ref.Entry.BackendID()); err == nil {
		b.Stats.Reads.Add(1)
		if m.metrics != nil {
			m.metrics.ObserveRead(b.ID, time.Since(started))
		}
	}
	return ref, nil
}

// OpenBody opens a fresh read handle for an entry via its owning
// backend's Store, for callers (the session layer) that need a Reader
// even when the entry's stashed *os.File is unavailable or busy. Unlike
// GetObject this does not touch the index; pair it with GetObject when
// you also need the FdRef for lifetime/hotness tracking.
func (m *Manager) OpenBody(ctx context.Context, ref *index.FdRef) (Handle, error) {
	b, err := m.Backend(ref.Entry.BackendID())
	if err != nil {
		return Handle{}, err
	}
	return b.Store.Open(ctx, ref.Entry.BackendPath())
}

// DeleteObject implements delete_object, including the idempotence
// property from invariant 8: a second delete on the same URI
// returns index.ErrNotFound without side effects.
func (m *Manager) DeleteObject(ctx context.Context, uri string) error {
	e, err := m.Global.Remove(uri)
	if err != nil {
		return err
	}
	if b, berr := m.Backend(e.BackendID()); berr == nil {
		b.Index.Remove(uri)
		b.addUsed(-int64(e.Size()))
	}
	e.MarkDeleted()

	if err := m.storeForEntry(e).Delete(ctx, e.BackendPath()); err != nil && !errors.Is(err, ErrObjectNotFound) {
		logger.Warn("failed to delete backing object", "uri", uri, "error", err)
	}

	if e.FdRefCount() == 0 {
		m.closeEntry(e)
	}
	return nil
}

func (m *Manager) storeForEntry(e *index.Entry) Store {
	b, err := m.Backend(e.BackendID())
	if err != nil {
		return nil
	}
	return b.Store
}

func (m *Manager) closeEntry(e *index.Entry) {
	if f := e.File(); f != nil {
		f.Close()
		e.SetFile(nil)
	}
}

// UpdateSize implements update_size: adjusts the backend's used-byte
// counter by the delta and seeds an identity payload descriptor if the
// entry had none.
func (m *Manager) UpdateSize(uri string, newSize uint64) error {
	e, ok := m.Global.Get(uri)
	if !ok {
		return index.ErrNotFound
	}
	old := e.Size()
	e.SetSize(newSize)
	e.SeedIdentityIfAbsent(newSize)

	if b, err := m.Backend(e.BackendID()); err == nil {
		b.addUsed(int64(newSize) - int64(old))
		b.Index.MarkDirty()
	}
	return nil
}

// SetPayloadMetadata implements set_payload_metadata.
func (m *Manager) SetPayloadMetadata(uri string, d payload.Descriptor) error {
	e, ok := m.Global.Get(uri)
	if !ok {
		return index.ErrNotFound
	}
	if err := e.SetDescriptor(d); err != nil {
		return err
	}
	if b, err := m.Backend(e.BackendID()); err == nil {
		b.Index.MarkDirty()
	}
	return nil
}

// GetMetadata implements get_payload_metadata.
func (m *Manager) GetMetadata(uri string) (payload.Descriptor, bool, error) {
	e, ok := m.Global.Get(uri)
	if !ok {
		return payload.Descriptor{}, false, index.ErrNotFound
	}
	d, has := e.Descriptor()
	return d, has, nil
}

// ListObjects implements list_objects, optionally scoped to one backend
// (pass -1 for every backend).
func (m *Manager) ListObjects(backendID int) []*index.Entry {
	var out []*index.Entry
	if backendID < 0 {
		m.Global.Range(func(e *index.Entry) bool { out = append(out, e); return true })
		return out
	}
	if b, err := m.Backend(backendID); err == nil {
		out = b.Index.Snapshot()
	}
	return out
}

// HotnessMap implements hotness_map: the current hotness score of every
// entry, keyed by URI.
func (m *Manager) HotnessMap() map[string]float64 {
	out := make(map[string]float64)
	m.Global.Range(func(e *index.Entry) bool {
		out[e.URI] = e.Hotness()
		return true
	})
	return out
}

// Status is a snapshot of manager-wide state for the admin API's
// GET /status.
type Status struct {
	BackendCount int
	ObjectCount  int
	CacheRunning bool
}

// Status implements status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	n := len(m.backends)
	m.mu.RUnlock()
	return Status{
		BackendCount: n,
		ObjectCount:  m.Global.Len(),
		CacheRunning: m.cacheRunning.Load(),
	}
}

// SetWatermarks implements set_watermarks for the given backend.
func (m *Manager) SetWatermarks(backendID int, wm Watermarks) error {
	b, err := m.Backend(backendID)
	if err != nil {
		return err
	}
	return b.SetWatermarks(wm)
}

// ManagerStats aggregates per-backend Stats. The admin API's GET /status
// reports Manager.Status instead.
type ManagerStats struct {
	PerBackend map[int]BackendStats
}

// BackendStats is a point-in-time snapshot of one backend's counters.
type BackendStats struct {
	Reads, Writes, MigrationsIn, MigrationsOut uint64
	UsedBytes                                  uint64
	Utilisation                                float64
}

// Stats implements stats.
func (m *Manager) Stats() ManagerStats {
	out := ManagerStats{PerBackend: make(map[int]BackendStats)}
	for _, b := range m.Backends() {
		out.PerBackend[b.ID] = BackendStats{
			Reads:         b.Stats.Reads.Load(),
			Writes:        b.Stats.Writes.Load(),
			MigrationsIn:  b.Stats.MigrationsIn.Load(),
			MigrationsOut: b.Stats.MigrationsOut.Load(),
			UsedBytes:     b.UsedBytes(),
			Utilisation:   b.Utilisation(),
		}
	}
	return out
}

// MigrateObject implements migrate_object. It
// copies the object body to dstBackendID, repoints the index entry at
// the new location only after the copy and the destination Store.Create
// both succeed, and removes the stale copy from the source backend last
// — so a crash mid-migration leaves the object readable from its
// original location (the in-flight destination write is simply
// abandoned, not referenced by any index entry).
func (m *Manager) MigrateObject(ctx context.Context, uri string, dstBackendID int) error {
	started := time.Now()
	e, ok := m.Global.Get(uri)
	if !ok {
		return index.ErrNotFound
	}
	srcBackendID := e.BackendID()
	if srcBackendID == dstBackendID {
		return ErrSameBackend
	}

	src, err := m.Backend(srcBackendID)
	if err != nil {
		return err
	}
	dst, err := m.Backend(dstBackendID)
	if err != nil {
		return err
	}
	if !src.Flags().MigrationSrc {
		return fmt.Errorf("%w: backend %d is not a migration source", ErrMigrationNotAllowed, srcBackendID)
	}
	if !dst.Flags().MigrationDst {
		return fmt.Errorf("%w: backend %d is not a migration destination", ErrMigrationNotAllowed, dstBackendID)
	}
	ephemeral := e.Flags().Ephemeral
	dstFlags := dst.Flags()
	if ephemeral && !dstFlags.EphemeralOnly {
		return fmt.Errorf("%w: ephemeral object cannot migrate to non-ephemeral backend %d", ErrEphemeralViolation, dstBackendID)
	}
	if !ephemeral && dstFlags.EphemeralOnly {
		return fmt.Errorf("%w: persistent object cannot migrate to ephemeral_only backend %d", ErrEphemeralViolation, dstBackendID)
	}

	srcPath := e.BackendPath()
	srcHandle, err := src.Store.Open(ctx, srcPath)
	if err != nil {
		return fmt.Errorf("backend: migrate: open source: %w", err)
	}
	defer srcHandle.Close()

	var dstFile *os.File
	var n int64
	if dst.Store.SupportsFDPass() {
		dstHandle, err := dst.Store.Create(ctx, uri)
		if err != nil {
			return fmt.Errorf("backend: migrate: create destination: %w", err)
		}
		n, err = copyHandle(dstHandle, srcHandle, int64(e.Size()))
		if err != nil {
			dstHandle.Close()
			_ = dst.Store.Delete(ctx, uri)
			m.recordMigration(MigrationEvent{URI: uri, FromBackend: srcBackendID, ToBackend: dstBackendID, Reason: "migrate", Bytes: n, StartedAt: started, FinishedAt: time.Now(), Err: err.Error()})
			return fmt.Errorf("backend: migrate: copy body: %w", err)
		}
		dstFile = dstHandle.File
	} else {
		var r io.Reader = srcHandle.Reader
		if srcHandle.File != nil {
			r = srcHandle.File
		}
		if up, ok := dst.Store.(streamUploader); ok {
			if err := up.UploadStream(ctx, uri, r, int64(e.Size())); err != nil {
				m.recordMigration(MigrationEvent{URI: uri, FromBackend: srcBackendID, ToBackend: dstBackendID, Reason: "migrate", StartedAt: started, FinishedAt: time.Now(), Err: err.Error()})
				return fmt.Errorf("backend: migrate: upload destination: %w", err)
			}
		} else {
			data, err := io.ReadAll(r)
			if err != nil {
				return fmt.Errorf("backend: migrate: read source body: %w", err)
			}
			if _, err := dst.Store.WriteAt(ctx, uri, data, 0); err != nil {
				return fmt.Errorf("backend: migrate: write destination: %w", err)
			}
		}
		n = int64(e.Size())
	}

	oldFile := e.File()
	e.Relocate(dstBackendID, uri, dstFile)
	if oldFile != nil {
		oldFile.Close()
	}
	src.Index.Remove(uri)
	dst.Index.Add(e)
	src.addUsed(-int64(e.Size()))
	dst.addUsed(int64(e.Size()))
	src.Stats.MigrationsOut.Add(1)
	dst.Stats.MigrationsIn.Add(1)

	if err := src.Store.Delete(ctx, srcPath); err != nil && !errors.Is(err, ErrObjectNotFound) {
		logger.Warn("failed to remove stale source copy after migration", "uri", uri, "backend", srcBackendID, "error", err)
	}

	m.recordMigration(MigrationEvent{URI: uri, FromBackend: srcBackendID, ToBackend: dstBackendID, Reason: "migrate", Bytes: n, StartedAt: started, FinishedAt: time.Now()})
	return nil
}

// CacheObject implements cache_object: migrate an entry into the
// configured cache backend (a convenience wrapper the maintenance loop
// uses; the admin API calls MigrateObject directly).
func (m *Manager) CacheObject(ctx context.Context, uri string) error {
	m.mu.RLock()
	id, have := m.cacheBackendID, m.haveCache
	m.mu.RUnlock()
	if !have {
		return ErrNoDefaultBackend
	}
	return m.MigrateObject(ctx, uri, id)
}

// EvictObject implements evict_object: migrate an entry out of the
// cache backend to dstBackendID (typically the default backend).
func (m *Manager) EvictObject(ctx context.Context, uri string, dstBackendID int) error {
	return m.MigrateObject(ctx, uri, dstBackendID)
}

func (m *Manager) recordMigration(ev MigrationEvent) {
	m.mu.RLock()
	l := m.ledger
	mt := m.metrics
	m.mu.RUnlock()
	if err := l.Append(ev); err != nil {
		logger.Warn("failed to append migration ledger event", "uri", ev.URI, "error", err)
	}
	if mt != nil {
		var migErr error
		if ev.Err != "" {
			migErr = errors.New(ev.Err)
		}
		mt.RecordMigration(ev.FromBackend, ev.ToBackend, ev.Bytes, ev.FinishedAt.Sub(ev.StartedAt), migErr)
	}
}

// streamUploader is implemented by stores that can accept a body as a
// stream rather than a byte slice (backend/network.Store.UploadStream).
// Defined at point of use so backend never imports backend/network,
// which itself imports backend.
type streamUploader interface {
	UploadStream(ctx context.Context, relPath string, src io.Reader, size int64) error
}

// copyHandle streams src into dst using whichever concrete Reader/Writer
// the two handles expose. Local stores hand back *os.File on both ends,
// so this is a plain io.Copy between file descriptors (the splice fast
// path lives in backend/local and is only reachable for local-to-local
// copies issued directly through that package, to avoid an import cycle
// between backend and backend/local).
func copyHandle(dst, src Handle, size int64) (int64, error) {
	var r io.Reader = src.Reader
	if src.File != nil {
		r = src.File
	}
	if dst.File != nil {
		if size > 0 {
			return io.CopyN(dst.File, r, size)
		}
		return io.Copy(dst.File, r)
	}
	return 0, fmt.Errorf("backend: migrate: destination handle has no writable file; use Store.WriteAt or UploadStream instead")
}

// StartCaching launches the maintenance loop goroutine: every tick it
// decays every entry's hotness, then promotes entries above
// cacheThreshold into the cache backend and demotes cold cache-resident
// entries back out. Migration happens only on this poll, never inline
// on a per-access basis.
func (m *Manager) StartCaching(ctx context.Context) {
	if !m.cacheRunning.CompareAndSwap(false, true) {
		return
	}
	m.stopCh = make(chan struct{})
	m.stoppedCh = make(chan struct{})

	go func() {
		defer close(m.stoppedCh)
		m.mu.RLock()
		interval := m.tickInterval
		m.mu.RUnlock()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.runMaintenanceTick(ctx)
			}
		}
	}()
}

// StopCaching implements stop_caching, blocking until the maintenance
// goroutine has exited.
func (m *Manager) StopCaching() {
	if !m.cacheRunning.CompareAndSwap(true, false) {
		return
	}
	close(m.stopCh)
	<-m.stoppedCh
}

func (m *Manager) runMaintenanceTick(ctx context.Context) {
	tickStarted := time.Now()
	m.mu.RLock()
	halflife := m.hotnessHalflife
	threshold := m.cacheThreshold
	cacheID, haveCache := m.cacheBackendID, m.haveCache
	last := m.lastSample
	mt := m.metrics
	m.mu.RUnlock()
	now := time.Now()

	if mt != nil {
		for _, b := range m.Backends() {
			mt.RecordUtilisation(b.ID, b.UsedBytes(), b.Capacity)
		}
		mt.RecordObjectCount(m.Global.Len())
	}

	var promoted, demoted int
	if mt != nil {
		defer func() {
			mt.ObserveMaintenanceTick(time.Since(tickStarted), promoted, demoted)
		}()
	}

	var promote, demote []string
	m.Global.Range(func(e *index.Entry) bool {
		score := e.DecayHotness(now, last, halflife)
		if !haveCache || e.Flags().Ephemeral {
			return true
		}
		onCache := e.BackendID() == cacheID
		if !onCache && score >= threshold {
			promote = append(promote, e.URI)
		} else if onCache && score < threshold {
			demote = append(demote, e.URI)
		}
		return true
	})

	m.mu.Lock()
	m.lastSample = now
	m.mu.Unlock()

	if !haveCache {
		return
	}
	for _, uri := range promote {
		if err := m.CacheObject(ctx, uri); err != nil {
			logger.Warn("cache promotion failed", "uri", uri, "error", err)
			continue
		}
		promoted++
	}
	m.mu.RLock()
	defaultID, haveDefault := m.defaultBackendID, m.haveDefault
	m.mu.RUnlock()
	if !haveDefault {
		return
	}
	for _, uri := range demote {
		if err := m.EvictObject(ctx, uri, defaultID); err != nil {
			logger.Warn("cache demotion failed", "uri", uri, "error", err)
			continue
		}
		demoted++
	}
}
