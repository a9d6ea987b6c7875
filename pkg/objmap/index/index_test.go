package index

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGlobalInsertRejectsDuplicate(t *testing.T) {
	g := NewGlobal()
	e := NewEntry("/a", 0, "/a", Flags{Persistent: true}, time.Now())
	if err := g.Insert(e); err != nil {
		t.Fatalf("first Insert() = %v, want nil", err)
	}
	if err := g.Insert(NewEntry("/a", 0, "/a", Flags{Persistent: true}, time.Now())); err != ErrExists {
		t.Fatalf("second Insert() = %v, want ErrExists", err)
	}
}

func TestGlobalLookupAndRelease(t *testing.T) {
	g := NewGlobal()
	e := NewEntry("/a", 0, "/a", Flags{Persistent: true}, time.Now())
	if err := g.Insert(e); err != nil {
		t.Fatalf("Insert() = %v", err)
	}

	ref, err := g.Lookup("/a")
	if err != nil {
		t.Fatalf("Lookup() = %v", err)
	}
	if ref.Entry != e {
		t.Fatal("Lookup() returned ref for wrong entry")
	}
	if e.FdRefCount() != 1 {
		t.Fatalf("FdRefCount() = %d, want 1", e.FdRefCount())
	}

	if shouldFree := ref.Release(); shouldFree {
		t.Fatal("Release() shouldFree = true on a non-deleted entry")
	}
	if e.FdRefCount() != 0 {
		t.Fatalf("FdRefCount() after release = %d, want 0", e.FdRefCount())
	}
	// Second release is a no-op.
	if shouldFree := ref.Release(); shouldFree {
		t.Fatal("second Release() shouldFree = true")
	}
}

func TestLookupMissingReturnsNotFound(t *testing.T) {
	g := NewGlobal()
	if _, err := g.Lookup("/missing"); err != ErrNotFound {
		t.Fatalf("Lookup() = %v, want ErrNotFound", err)
	}
}

func TestDeleteDrainsOnLastRelease(t *testing.T) {
	g := NewGlobal()
	e := NewEntry("/a", 0, "/a", Flags{Persistent: true}, time.Now())
	_ = g.Insert(e)

	ref1, _ := g.Lookup("/a")
	ref2, _ := g.Lookup("/a")

	if _, err := g.Remove("/a"); err != nil {
		t.Fatalf("Remove() = %v", err)
	}
	e.MarkDeleted()

	if shouldFree := ref1.Release(); shouldFree {
		t.Fatal("releasing first of two refs should not free yet")
	}
	if shouldFree := ref2.Release(); !shouldFree {
		t.Fatal("releasing the last ref on a deleted entry should signal free")
	}
}

func TestDecayHotness(t *testing.T) {
	e := NewEntry("/a", 0, "/a", Flags{Persistent: true}, time.Now())
	base := time.Now()
	e.RecordAccess(base)

	h := e.DecayHotness(base, base.Add(-time.Second), time.Hour)
	if h <= 0 {
		t.Fatalf("DecayHotness() = %f, want > 0 after a recorded access", h)
	}

	later := base.Add(2 * time.Hour)
	h2 := e.DecayHotness(later, base, time.Hour)
	if h2 >= h {
		t.Fatalf("hotness did not decay over time: %f -> %f", h, h2)
	}
}

func TestPerBackendDirtyTracking(t *testing.T) {
	p := NewPerBackend(0)
	if p.Dirty() {
		t.Fatal("new PerBackend should not start dirty")
	}
	e := NewEntry("/a", 0, "/a", Flags{Persistent: true}, time.Now())
	p.Add(e)
	if !p.Dirty() {
		t.Fatal("Add() should mark the index dirty")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p := NewPerBackend(1)

	e1 := NewEntry("/a.txt", 1, "a.txt", Flags{Persistent: true}, time.Unix(1000, 0))
	e1.SetSize(42)
	e1.SeedIdentityIfAbsent(42)
	e1.RecordAccess(time.Unix(2000, 0))

	e2 := NewEntry("/b/c.bin", 1, "b/c.bin", Flags{Ephemeral: true}, time.Unix(3000, 0))
	e2.SetSize(0)

	p.Add(e1)
	p.Add(e2)

	path := filepath.Join(dir, ".index")
	if err := p.Save(path); err != nil {
		t.Fatalf("Save() = %v", err)
	}
	if p.Dirty() {
		t.Fatal("Save() should clear the dirty flag")
	}

	loaded, entries, err := Load(1, path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if loaded.Len() != 2 {
		t.Fatalf("Load() entry count = %d, want 2", loaded.Len())
	}
	if len(entries) != 2 {
		t.Fatalf("Load() entries slice = %d, want 2", len(entries))
	}

	got, ok := loaded.Get("/a.txt")
	if !ok {
		t.Fatal("Get(/a.txt) not found after Load()")
	}
	if got.Size() != 42 {
		t.Fatalf("loaded size = %d, want 42", got.Size())
	}
	if got.BackendPath() != "a.txt" {
		t.Fatalf("loaded backend path = %q, want %q", got.BackendPath(), "a.txt")
	}
	d, has := got.Descriptor()
	if !has {
		t.Fatal("loaded entry should carry its seeded identity descriptor")
	}
	if v, ok := d.Primary(); !ok || v.LogicalLength != 42 {
		t.Fatalf("loaded primary variant = %+v, ok=%v", v, ok)
	}

	got2, ok := loaded.Get("/b/c.bin")
	if !ok {
		t.Fatal("Get(/b/c.bin) not found after Load()")
	}
	if !got2.Flags().Ephemeral {
		t.Fatal("loaded entry lost its ephemeral flag")
	}
	if _, has := got2.Descriptor(); has {
		t.Fatal("zero-byte entry should not have a seeded descriptor")
	}
}

func TestLoadRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".index")
	if err := os.WriteFile(path, []byte("NOPE0000000000000000"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(0, path); err != ErrBadMagic {
		t.Fatalf("Load() = %v, want ErrBadMagic", err)
	}
}
