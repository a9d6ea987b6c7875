//go:build linux

package local

import (
	"errors"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// spliceCopy moves bytes from src to dst entirely in kernel space via
// splice(2), falling back to a buffered copy if splice isn't usable for
// this pair of descriptors (e.g. one end isn't a pipe-compatible fd).
// This realizes migration step 4's "sendfile-class primitive
// on Linux".
func spliceCopy(dst, src *os.File, size int64) error {
	r, w, err := os.Pipe()
	if err != nil {
		return fallbackCopy(dst, src)
	}
	defer r.Close()
	defer w.Close()

	remaining := size
	for remaining > 0 {
		n, err := unix.Splice(int(src.Fd()), nil, int(w.Fd()), nil, int(min64(remaining, 1<<20)), 0)
		if err != nil {
			if errors.Is(err, unix.EINVAL) || errors.Is(err, unix.ENOSYS) {
				return fallbackCopy(dst, src)
			}
			return err
		}
		if n == 0 {
			break
		}
		if _, err := unix.Splice(int(r.Fd()), nil, int(dst.Fd()), nil, int(n), 0); err != nil {
			return err
		}
		remaining -= n
	}
	return nil
}

func fallbackCopy(dst, src *os.File) error {
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return err
	}
	_, err := io.Copy(dst, src)
	return err
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
