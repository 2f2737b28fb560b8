//go:build darwin

package fileactivity

import "golang.org/x/sys/unix"

// localFilesystems are the types worth watching; network shares are
// excluded per spec.md's Non-goals ("no networked volumes").
var localFilesystems = map[string]bool{
	"apfs": true, "hfs": true,
}

// EnumerateVolumes lists locally mounted filesystems via Getfsstat.
func EnumerateVolumes() ([]Volume, error) {
	n, err := unix.Getfsstat(nil, unix.MNT_NOWAIT)
	if err != nil {
		return []Volume{{Root: "/", Label: "/"}}, nil
	}
	stats := make([]unix.Statfs_t, n)
	if _, err := unix.Getfsstat(stats, unix.MNT_NOWAIT); err != nil {
		return []Volume{{Root: "/", Label: "/"}}, nil
	}

	var volumes []Volume
	for _, st := range stats {
		fsType := cString(st.Fstypename[:])
		if !localFilesystems[fsType] {
			continue
		}
		mountPoint := cString(st.Mntonname[:])
		volumes = append(volumes, Volume{Root: mountPoint, Label: mountPoint})
	}
	if len(volumes) == 0 {
		return []Volume{{Root: "/", Label: "/"}}, nil
	}
	return volumes, nil
}

// cString converts a NUL-terminated fixed-size C char array (int8 on
// darwin) to a Go string.
func cString(b []int8) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		buf[i] = byte(b[i])
	}
	return string(buf)
}
