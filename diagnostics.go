package fileactivity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/natefinch/atomic"
)

// QueueOccupancy is a point-in-time snapshot of how full one queue is,
// used by the diagnostics dump for postmortem debugging of a stuck or
// overflowing volume.
type QueueOccupancy struct {
	Name     string `json:"name"`
	Capacity uint32 `json:"capacity"`
	Empty    bool   `json:"empty"`
}

// VolumeDiagnostics snapshots one volume's queue occupancy.
type VolumeDiagnostics struct {
	Volume string           `json:"volume"`
	Queues []QueueOccupancy `json:"queues"`
}

// Diagnostics is the full snapshot a Manager can dump to disk.
type Diagnostics struct {
	CapturedAt time.Time           `json:"captured_at"`
	Volumes    []VolumeDiagnostics `json:"volumes"`
}

func snapshotGroup(g *WatchingGroup) VolumeDiagnostics {
	occ := func(name string, m interface {
		Empty() bool
		Capacity() uint32
	}) QueueOccupancy {
		return QueueOccupancy{Name: name, Capacity: m.Capacity(), Empty: m.Empty()}
	}
	return VolumeDiagnostics{
		Volume: g.Volume,
		Queues: []QueueOccupancy{
			occ("file.add", g.FileAdd),
			occ("file.remove", g.FileRemove),
			occ("file.modify", g.FileModify),
			occ("folder.add", g.FolderAdd),
			occ("folder.remove", g.FolderRemove),
			occ("attribute", g.Attribute),
			occ("security", g.Security),
			occ("rename", g.Rename.data),
		},
	}
}

// DumpDiagnostics atomically writes a JSON diagnostics snapshot of every
// group to path, so a partial write from a crash mid-dump never corrupts a
// prior snapshot.
func DumpDiagnostics(path string, groups []*WatchingGroup, now time.Time) error {
	snap := Diagnostics{CapturedAt: now}
	for _, g := range groups {
		snap.Volumes = append(snap.Volumes, snapshotGroup(g))
	}
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("fileactivity: marshal diagnostics: %w", err)
	}
	return atomic.WriteFile(path, bytes.NewReader(raw))
}
