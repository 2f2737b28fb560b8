//go:build windows

package fileactivity

import (
	"errors"
	"os"

	"golang.org/x/sys/windows"
)

// DefaultIsOpen is the Windows contention probe: ERROR_SHARING_VIOLATION on
// an attempted open is the positive signal the correlation engine's
// contention gate defers on.
func DefaultIsOpen(path string) bool {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return errors.Is(err, windows.ERROR_SHARING_VIOLATION)
	}
	f.Close()
	return false
}
