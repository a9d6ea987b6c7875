// Package local implements backend.Store over a plain directory tree,
// for the memory (tmpfs-mounted), nvme, ssd, and hdd backend types:
// directory creation, atomic-rename writes, and prefix-scoped walks,
// handing back real *os.File descriptors instead of byte slices since
// the wire protocol needs an actual kernel fd for FdPass/Splice
// delivery.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/objmapper/objmapper/pkg/objmap/backend"
)

// Store is a directory-tree-backed implementation of backend.Store.
type Store struct {
	basePath string
	dirMode  os.FileMode
	fileMode os.FileMode
}

// Config configures a Store.
type Config struct {
	BasePath  string
	CreateDir bool
	DirMode   os.FileMode
	FileMode  os.FileMode
}

// DefaultConfig returns sane defaults for basePath.
func DefaultConfig(basePath string) Config {
	return Config{BasePath: basePath, CreateDir: true, DirMode: 0o755, FileMode: 0o644}
}

// New builds a Store rooted at cfg.BasePath, creating it if requested.
func New(cfg Config) (*Store, error) {
	if cfg.BasePath == "" {
		return nil, errors.New("local: base path is required")
	}
	if cfg.DirMode == 0 {
		cfg.DirMode = 0o755
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0o644
	}
	if cfg.CreateDir {
		if err := os.MkdirAll(cfg.BasePath, cfg.DirMode); err != nil {
			return nil, fmt.Errorf("local: create base dir: %w", err)
		}
	}
	return &Store{basePath: cfg.BasePath, dirMode: cfg.DirMode, fileMode: cfg.FileMode}, nil
}

func (s *Store) path(relPath string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(relPath))
}

func (s *Store) SupportsFDPass() bool { return true }

// Create opens relPath for writing, creating parent directories and
// truncating any existing content (create_object: "open the
// file with create+truncate").
func (s *Store) Create(ctx context.Context, relPath string) (backend.Handle, error) {
	full := s.path(relPath)
	if err := os.MkdirAll(filepath.Dir(full), s.dirMode); err != nil {
		return backend.Handle{}, fmt.Errorf("local: mkdir: %w", err)
	}
	f, err := os.OpenFile(full, os.O_RDWR|os.O_CREATE|os.O_TRUNC, s.fileMode)
	if err != nil {
		return backend.Handle{}, fmt.Errorf("local: create: %w", err)
	}
	return backend.Handle{File: f}, nil
}

// Open returns a read-only handle to an existing object.
func (s *Store) Open(ctx context.Context, relPath string) (backend.Handle, error) {
	full := s.path(relPath)
	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return backend.Handle{}, backend.ErrObjectNotFound
		}
		return backend.Handle{}, fmt.Errorf("local: open: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return backend.Handle{}, fmt.Errorf("local: stat: %w", err)
	}
	return backend.Handle{File: f, Size: info.Size()}, nil
}

// Delete unlinks an object. A missing object is reported as
// ErrObjectNotFound so delete_object can implement DELETE idempotence.
func (s *Store) Delete(ctx context.Context, relPath string) error {
	if err := os.Remove(s.path(relPath)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return backend.ErrObjectNotFound
		}
		return fmt.Errorf("local: remove: %w", err)
	}
	return nil
}

// WriteAt writes data at offset, creating the object if absent, and
// returns the resulting file size.
func (s *Store) WriteAt(ctx context.Context, relPath string, data []byte, offset int64) (int64, error) {
	full := s.path(relPath)
	if err := os.MkdirAll(filepath.Dir(full), s.dirMode); err != nil {
		return 0, fmt.Errorf("local: mkdir: %w", err)
	}
	f, err := os.OpenFile(full, os.O_RDWR|os.O_CREATE, s.fileMode)
	if err != nil {
		return 0, fmt.Errorf("local: open for write: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteAt(data, offset); err != nil {
		return 0, fmt.Errorf("local: write: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("local: stat after write: %w", err)
	}
	return info.Size(), nil
}

// Scan walks the whole tree, skipping the backend's own hidden index
// file (a leading dot at the mount root), and reports every regular file
// found, keyed by its slash-separated path relative to basePath.
func (s *Store) Scan(ctx context.Context) ([]backend.ScanEntry, error) {
	var entries []backend.ScanEntry
	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if filepath.Dir(rel) == "." && len(rel) > 0 && rel[0] == '.' {
			return nil // backend index file, not an object
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		entries = append(entries, backend.ScanEntry{RelPath: rel, Size: info.Size(), Mtime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("local: scan: %w", err)
	}
	return entries, nil
}

var _ backend.Store = (*Store)(nil)
