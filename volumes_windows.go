//go:build windows

package fileactivity

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// EnumerateVolumes lists fixed and removable drive letters via
// GetLogicalDrives/GetDriveType, skipping network, CD-ROM and RAM drives
// that either aren't meaningfully "local" or don't support change
// notifications reliably.
func EnumerateVolumes() ([]Volume, error) {
	mask, err := windows.GetLogicalDrives()
	if err != nil {
		return nil, err
	}

	var volumes []Volume
	for i := 0; i < 26; i++ {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		letter := string(rune('A' + i))
		root := letter + `:\`
		rootUTF16, err := windows.UTF16PtrFromString(root)
		if err != nil {
			continue
		}
		switch windows.GetDriveType(rootUTF16) {
		case windows.DRIVE_FIXED, windows.DRIVE_REMOVABLE:
			volumes = append(volumes, Volume{Root: root, Label: fmt.Sprintf("%s:", letter)})
		}
	}
	if len(volumes) == 0 {
		return nil, ErrNoVolumes
	}
	return volumes, nil
}
