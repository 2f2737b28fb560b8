//go:build linux

package fileactivity

import (
	"bufio"
	"os"
	"strings"
)

// pseudoFilesystems are mount types that never carry user data worth
// watching and would otherwise flood the engine with kernel-internal churn.
var pseudoFilesystems = map[string]bool{
	"proc": true, "sysfs": true, "devtmpfs": true, "devpts": true,
	"tmpfs": true, "cgroup": true, "cgroup2": true, "pstore": true,
	"debugfs": true, "tracefs": true, "mqueue": true, "securityfs": true,
	"bpf": true, "autofs": true,
}

// networkFilesystems are remote mount types; they are not local volumes.
var networkFilesystems = map[string]bool{
	"nfs": true, "nfs4": true, "cifs": true, "smb3": true, "smbfs": true,
	"fuse.sshfs": true,
}

// EnumerateVolumes parses /proc/self/mountinfo to find real, local mount
// points, skipping pseudo-filesystems and network filesystems.
func EnumerateVolumes() ([]Volume, error) {
	f, err := os.Open("/proc/self/mountinfo")
	if err != nil {
		return []Volume{{Root: "/", Label: "/"}}, nil
	}
	defer f.Close()

	var volumes []Volume
	seen := map[string]bool{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		// Format: ... <mount point> ... - <fs type> <source> <options>
		parts := strings.SplitN(line, " - ", 2)
		if len(parts) != 2 {
			continue
		}
		left := strings.Fields(parts[0])
		right := strings.Fields(parts[1])
		if len(left) < 5 || len(right) < 1 {
			continue
		}
		mountPoint := left[4]
		fsType := right[0]
		if pseudoFilesystems[fsType] || networkFilesystems[fsType] {
			continue
		}
		if seen[mountPoint] {
			continue
		}
		seen[mountPoint] = true
		volumes = append(volumes, Volume{Root: mountPoint, Label: mountPoint})
	}
	if err := sc.Err(); err != nil || len(volumes) == 0 {
		return []Volume{{Root: "/", Label: "/"}}, nil
	}
	return volumes, nil
}
