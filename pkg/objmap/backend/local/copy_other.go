//go:build !linux

package local

import (
	"io"
	"os"
)

// spliceCopy falls back to a generic buffered copy on platforms without
// splice(2) (migration step 4: "a generic buffered copy
// elsewhere").
func spliceCopy(dst, src *os.File, size int64) error {
	_, err := io.Copy(dst, src)
	return err
}
