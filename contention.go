//go:build !windows

package fileactivity

import (
	"errors"
	"os"
	"syscall"
)

// DefaultIsOpen is the portable "is this file currently open for
// exclusive/writing access" probe the correlation engine's contention gate
// uses to defer classification of a file mid-write. It attempts to open
// the file read-only and treats ETXTBSY/EBUSY as a positive signal.
//
// Most non-Windows filesystems don't enforce mandatory locking, so this
// check is frequently inconclusive; spec.md never requires perfect
// detection, only that a positive detection defers classification, so an
// inconclusive probe conservatively returns false rather than stalling
// classification forever.
func DefaultIsOpen(path string) bool {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return errors.Is(err, syscall.ETXTBSY) || errors.Is(err, syscall.EBUSY)
	}
	f.Close()
	return false
}
