// Package fileactivity correlates low-level filesystem change notifications
// into higher-level semantic events (create, modify, copy, move, rename, and
// their application-specific variants) across one or more watched volumes.
package fileactivity

import (
	"os"
	"path/filepath"
	"time"
)

// RawAction is one of the five primitive edit kinds a kernel-level watch
// delivers. It is the unit of currency between the Driver and the typed
// queues of a WatchingGroup.
type RawAction int

const (
	// ActionAdded indicates a file or directory was created.
	ActionAdded RawAction = iota + 1
	// ActionRemoved indicates a file or directory was deleted.
	ActionRemoved
	// ActionModified indicates a file's content or metadata changed.
	ActionModified
	// ActionRenameOld is the "from" half of a rename pair.
	ActionRenameOld
	// ActionRenameNew is the "to" half of a rename pair.
	ActionRenameNew
)

func (a RawAction) String() string {
	switch a {
	case ActionAdded:
		return "added"
	case ActionRemoved:
		return "removed"
	case ActionModified:
		return "modified"
	case ActionRenameOld:
		return "rename_old"
	case ActionRenameNew:
		return "rename_new"
	default:
		return "unknown"
	}
}

// NotifyInfo is an immutable descriptor of one raw or rename-paired edit: a
// path, the raw action that produced it, the capture timestamp, and a
// best-effort snapshot of the entity's directory-ness and size at the
// moment the engine first observed it.
type NotifyInfo struct {
	path      string
	action    RawAction
	createdAt time.Time
	isDir     bool
	size      int64
}

// NewNotifyInfo builds a NotifyInfo for path, stamping it with now and
// resolving IsDir/Size via a best-effort stat. If the entity is already
// gone (common for ActionRemoved), both resolve to their zero value.
func NewNotifyInfo(path string, action RawAction, now time.Time) NotifyInfo {
	isDir, size := statEntity(path)
	return NotifyInfo{path: path, action: action, createdAt: now, isDir: isDir, size: size}
}

func statEntity(path string) (isDir bool, size int64) {
	fi, err := os.Stat(path)
	if err != nil {
		return false, 0
	}
	return fi.IsDir(), fi.Size()
}

// Valid reports whether n carries a real path and a recognized action. The
// zero NotifyInfo is the map's empty-slot sentinel and is never Valid.
func (n NotifyInfo) Valid() bool { return n.path != "" && n.action != 0 }

// Path returns the full path of the entity this notification describes.
func (n NotifyInfo) Path() string { return n.path }

// Action returns the raw action that produced this notification.
func (n NotifyInfo) Action() RawAction { return n.action }

// FileName returns the base name of Path.
func (n NotifyInfo) FileName() string { return filepath.Base(n.path) }

// ParentPath returns the directory containing Path.
func (n NotifyInfo) ParentPath() string { return filepath.Dir(n.path) }

// IsDir reports whether the entity was a directory when first observed.
func (n NotifyInfo) IsDir() bool { return n.isDir }

// Size is the entity's byte size when first observed, or 0 if it was
// already gone by the time the stat ran. Informational only; no
// classification rule depends on it.
func (n NotifyInfo) Size() int64 { return n.size }

// CreatedAt is the moment the engine captured this notification.
func (n NotifyInfo) CreatedAt() time.Time { return n.createdAt }

// Alive returns how long this notification has existed relative to now.
func (n NotifyInfo) Alive(now time.Time) time.Duration { return now.Sub(n.createdAt) }

// Key identifies this entry within a BoundedMap[NotifyInfo]; NotifyInfo is
// keyed by its own path.
func (n NotifyInfo) Key() string { return n.path }
