package local

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/objmapper/objmapper/pkg/objmap/backend"
)

func TestCreateWriteOpenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := New(DefaultConfig(dir))
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	ctx := context.Background()

	if _, err := s.WriteAt(ctx, "a/b/c.txt", []byte("hello"), 0); err != nil {
		t.Fatalf("WriteAt() = %v", err)
	}

	h, err := s.Open(ctx, "a/b/c.txt")
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	defer h.Close()

	if !h.SupportsFD() {
		t.Fatal("local store handle should support FD passing")
	}
	data, err := io.ReadAll(h.File)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("read = %q, want %q", data, "hello")
	}
}

func TestOpenMissingReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	s, _ := New(DefaultConfig(dir))
	if _, err := s.Open(context.Background(), "missing"); err != backend.ErrObjectNotFound {
		t.Fatalf("Open() = %v, want ErrObjectNotFound", err)
	}
}

func TestDeleteMissingReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	s, _ := New(DefaultConfig(dir))
	if err := s.Delete(context.Background(), "missing"); err != backend.ErrObjectNotFound {
		t.Fatalf("Delete() = %v, want ErrObjectNotFound", err)
	}
}

func TestScanFindsObjectsAndSkipsIndexFile(t *testing.T) {
	dir := t.TempDir()
	s, _ := New(DefaultConfig(dir))
	ctx := context.Background()

	if _, err := s.WriteAt(ctx, "data/subdir/file.bin", []byte("abc"), 0); err != nil {
		t.Fatalf("WriteAt() = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".index"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	entries, err := s.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan() = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Scan() found %d entries, want 1: %+v", len(entries), entries)
	}
	if entries[0].RelPath != "data/subdir/file.bin" {
		t.Fatalf("Scan() relpath = %q, want %q", entries[0].RelPath, "data/subdir/file.bin")
	}
}

func TestCreateTruncatesExisting(t *testing.T) {
	dir := t.TempDir()
	s, _ := New(DefaultConfig(dir))
	ctx := context.Background()

	if _, err := s.WriteAt(ctx, "f", []byte("0123456789"), 0); err != nil {
		t.Fatal(err)
	}
	h, err := s.Create(ctx, "f")
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}
	defer h.Close()

	info, err := h.File.Stat()
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 0 {
		t.Fatalf("Create() did not truncate: size = %d", info.Size())
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src")
	dstPath := filepath.Join(dir, "dst")

	want := make([]byte, 256*1024)
	for i := range want {
		want[i] = byte(i % 251)
	}
	if err := os.WriteFile(srcPath, want, 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := os.Open(srcPath)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer dst.Close()

	if err := CopyFile(dst, src, int64(len(want))); err != nil {
		t.Fatalf("CopyFile() = %v", err)
	}

	got, err := os.ReadFile(dstPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) {
		t.Fatalf("copied %d bytes, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte mismatch at %d: got %d, want %d", i, got[i], want[i])
		}
	}
}
