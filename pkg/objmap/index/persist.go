package index

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/objmapper/objmapper/pkg/objmap/payload"
)

// fileMagic identifies a per-backend index file. fileVersion is bumped
// whenever the record layout changes; Load rejects any other version
// ("version-tagged header").
const (
	fileMagic   = "OBJX"
	fileVersion = uint16(1)
	headerSize  = 4 + 2 + 4 + 6 // magic, version, entry_count, reserved
)

// recordHeaderSize is the fixed portion of each entry record: uri_len(2)
// | path_len(2) | backend_id(4) | flags(1) | size(8) | mtime_ns(8) |
// access_count(8) | hotness_bits(8) | has_descriptor(1) | descriptor_len(2).
// The URI text, the backend-relative path text, and, if present, the
// packed payload descriptor follow immediately after this fixed header
// — see DESIGN.md's Open Question decision on why a strictly
// fixed-width record isn't used for these variable-length fields.
const recordHeaderSize = 2 + 2 + 4 + 1 + 8 + 8 + 8 + 8 + 1 + 2

const (
	flagEphemeral  byte = 1 << 0
	flagPersistent byte = 1 << 1
)

// ErrBadMagic is returned by Load when the file doesn't start with the
// expected magic bytes.
var ErrBadMagic = fmt.Errorf("index: bad file magic, expected %q", fileMagic)

// ErrVersionMismatch is returned by Load when the file's version doesn't
// match fileVersion.
var ErrVersionMismatch = fmt.Errorf("index: unsupported file version")

// IndexPath returns the conventional location of a backend's persisted
// index file: <mount_path>/.<index_name>.
func IndexPath(mountPath, indexName string) string {
	return filepath.Join(mountPath, "."+indexName)
}

// Save writes the per-backend index to path atomically: it writes to a
// temp file in the same directory, then renames over path, so a crash
// mid-write never corrupts the previous snapshot.
func (p *PerBackend) Save(path string) error {
	entries := p.Snapshot()

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".index-*.tmp")
	if err != nil {
		return fmt.Errorf("index: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	w := bufio.NewWriter(tmp)
	if err := writeHeader(w, len(entries)); err != nil {
		tmp.Close()
		return err
	}
	for _, e := range entries {
		if err := writeRecord(w, e); err != nil {
			tmp.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("index: flush: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("index: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("index: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("index: rename into place: %w", err)
	}

	p.clearDirty()
	return nil
}

func writeHeader(w io.Writer, count int) error {
	var hdr [headerSize]byte
	copy(hdr[0:4], fileMagic)
	binary.BigEndian.PutUint16(hdr[4:6], fileVersion)
	binary.BigEndian.PutUint32(hdr[6:10], uint32(count))
	_, err := w.Write(hdr[:])
	return err
}

func writeRecord(w io.Writer, e *Entry) error {
	uri := []byte(e.URI)
	path := []byte(e.BackendPath())
	flags := e.Flags()

	var descBytes []byte
	d, has := e.Descriptor()
	if has {
		descBytes = d.Pack()
	}

	var hdr [recordHeaderSize]byte
	binary.BigEndian.PutUint16(hdr[0:2], uint16(len(uri)))
	binary.BigEndian.PutUint16(hdr[2:4], uint16(len(path)))
	binary.BigEndian.PutUint32(hdr[4:8], uint32(e.BackendID()))

	var flagByte byte
	if flags.Ephemeral {
		flagByte |= flagEphemeral
	}
	if flags.Persistent {
		flagByte |= flagPersistent
	}
	hdr[8] = flagByte

	binary.BigEndian.PutUint64(hdr[9:17], e.Size())
	binary.BigEndian.PutUint64(hdr[17:25], uint64(e.Mtime().UnixNano()))
	binary.BigEndian.PutUint64(hdr[25:33], e.AccessCount())
	binary.BigEndian.PutUint64(hdr[33:41], math.Float64bits(e.Hotness()))
	if has {
		hdr[41] = 1
	}
	binary.BigEndian.PutUint16(hdr[42:44], uint16(len(descBytes)))

	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := w.Write(uri); err != nil {
		return err
	}
	if _, err := w.Write(path); err != nil {
		return err
	}
	if len(descBytes) > 0 {
		if _, err := w.Write(descBytes); err != nil {
			return err
		}
	}
	return nil
}

// Load reads a persisted per-backend index from path and returns a
// populated PerBackend plus the reconstructed entries in file order (the
// caller inserts them into the global index too; Load itself only knows
// about this one backend's scope).
func Load(backendID int, path string) (*PerBackend, []*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	r := bytes.NewReader(data)

	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, nil, fmt.Errorf("index: read header: %w", err)
	}
	if string(hdr[0:4]) != fileMagic {
		return nil, nil, ErrBadMagic
	}
	version := binary.BigEndian.Uint16(hdr[4:6])
	if version != fileVersion {
		return nil, nil, fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, version, fileVersion)
	}
	count := binary.BigEndian.Uint32(hdr[6:10])

	p := NewPerBackend(backendID)
	entries := make([]*Entry, 0, count)

	for i := uint32(0); i < count; i++ {
		e, err := readRecord(r, backendID)
		if err != nil {
			return nil, nil, fmt.Errorf("index: record %d: %w", i, err)
		}
		p.entries[e.URI] = e
		entries = append(entries, e)
	}

	p.dirty = false
	return p, entries, nil
}

func readRecord(r *bytes.Reader, backendID int) (*Entry, error) {
	var hdr [recordHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("read record header: %w", err)
	}

	uriLen := binary.BigEndian.Uint16(hdr[0:2])
	pathLen := binary.BigEndian.Uint16(hdr[2:4])
	recordBackendID := int(int32(binary.BigEndian.Uint32(hdr[4:8])))
	flagByte := hdr[8]
	size := binary.BigEndian.Uint64(hdr[9:17])
	mtimeNS := int64(binary.BigEndian.Uint64(hdr[17:25]))
	accessCount := binary.BigEndian.Uint64(hdr[25:33])
	hotnessBits := binary.BigEndian.Uint64(hdr[33:41])
	hasDescriptor := hdr[41] != 0
	descLen := binary.BigEndian.Uint16(hdr[42:44])

	uriBuf := make([]byte, uriLen)
	if _, err := io.ReadFull(r, uriBuf); err != nil {
		return nil, fmt.Errorf("read uri: %w", err)
	}
	pathBuf := make([]byte, pathLen)
	if _, err := io.ReadFull(r, pathBuf); err != nil {
		return nil, fmt.Errorf("read path: %w", err)
	}

	flags := Flags{
		Ephemeral:  flagByte&flagEphemeral != 0,
		Persistent: flagByte&flagPersistent != 0,
	}

	if recordBackendID != backendID {
		// The record was written under a different id (e.g. backends
		// were renumbered between runs). Trust the file's own mount
		// scope over the stale numeric id.
		recordBackendID = backendID
	}

	e := NewEntry(string(uriBuf), recordBackendID, string(pathBuf), flags, time.Unix(0, mtimeNS))
	e.size.Store(size)
	e.accessCount.Store(accessCount)
	e.hotnessBits.Store(hotnessBits)
	e.lastAccessNS.Store(mtimeNS)

	if hasDescriptor {
		descBuf := make([]byte, descLen)
		if _, err := io.ReadFull(r, descBuf); err != nil {
			return nil, fmt.Errorf("read descriptor: %w", err)
		}
		d, err := payload.Unpack(descBuf)
		if err != nil {
			return nil, fmt.Errorf("unpack descriptor: %w", err)
		}
		e.descriptor = d
		e.hasDescriptor = true
	} else if descLen > 0 {
		if _, err := r.Seek(int64(descLen), io.SeekCurrent); err != nil {
			return nil, fmt.Errorf("skip descriptor: %w", err)
		}
	}

	return e, nil
}
