package fileactivity

// RenamePair is a committed FILE_ACTION_RENAMED_OLD_NAME /
// FILE_ACTION_RENAMED_NEW_NAME pair: the old and new descriptors of a
// single rename. It is only Valid once both halves have arrived and share
// the same parent directory.
type RenamePair struct {
	Old NotifyInfo
	New NotifyInfo
}

// Valid reports whether both halves are present and refer to the same
// parent directory, per original_source's rename_notify_info::operator
// bool().
func (p RenamePair) Valid() bool {
	return p.Old.Valid() && p.New.Valid() && p.Old.ParentPath() == p.New.ParentPath()
}

// Key identifies a RenamePair within a BoundedMap[RenamePair]: the new
// name's path, so a subsequent rename of the same destination updates
// rather than duplicates the entry.
func (p RenamePair) Key() string { return p.New.Path() }

// MatchesAny reports whether path is either half of this pair.
func (p RenamePair) MatchesAny(path string) bool {
	return p.Old.Path() == path || p.New.Path() == path
}

// RenameQueue assembles RenameOld/RenameNew halves into committed
// RenamePairs and exposes the family helpers the correlation engine's
// rename classifier needs to recognize multi-pair patterns (Word
// save-as/save, download auto-save).
//
// Grounded directly on original_source/model_rename.h's model_rename: a
// one-slot staging area for the dangling "old name" half, committing into
// the backing map only once a matching "new name" half arrives.
type RenameQueue struct {
	staging NotifyInfo
	data    *BoundedMap[RenamePair]
}

// NewRenameQueue allocates a RenameQueue backed by a BoundedMap with room
// for capacity distinct rename pairs.
func NewRenameQueue(capacity uint32) *RenameQueue {
	return &RenameQueue{data: NewBoundedMap[RenamePair](capacity)}
}

// Push feeds one NotifyInfo into the staging/commit pipeline. A
// RenameOld is held until a RenameNew arrives; any other action is
// ignored (RenameQueue only ever sees rename halves in practice, since the
// VolumeWatcher routes by action before calling Push).
func (q *RenameQueue) Push(info NotifyInfo) {
	switch info.Action() {
	case ActionRenameOld:
		q.staging = info
	case ActionRenameNew:
		if !q.staging.Valid() {
			// A RenameNew without a preceding RenameOld is a kernel drop;
			// there is nothing to pair it with, so it is discarded.
			return
		}
		pair := RenamePair{Old: q.staging, New: info}
		q.staging = NotifyInfo{}
		if pair.Valid() {
			q.data.Insert(pair.Key(), pair)
		}
	}
}

// Front returns the pair at the queue's pop cursor.
func (q *RenameQueue) Front() (RenamePair, bool) { return q.data.Front() }

// Erase removes the pair keyed by the given new-name path.
func (q *RenameQueue) Erase(key string) { q.data.Erase(key) }

// NextAvailableItem advances the pop cursor past the current entry.
func (q *RenameQueue) NextAvailableItem() { q.data.NextAvailableItem() }

// Contains reports whether path is either half of any committed pair.
func (q *RenameQueue) Contains(path string) bool {
	_, ok := q.data.FindIf(func(p RenamePair) bool { return p.MatchesAny(path) })
	return ok
}

// FindByNewName looks up the pair committed under the given new-name path.
func (q *RenameQueue) FindByNewName(path string) (RenamePair, bool) { return q.data.Find(path) }

// FindByOldName returns the first committed pair, scanning from the pop
// cursor, whose old name is path.
func (q *RenameQueue) FindByOldName(path string) (RenamePair, bool) {
	return q.data.FindIf(func(p RenamePair) bool { return p.Old.Path() == path })
}

// GetFamily returns every committed pair that shares a path with pair,
// including pair itself. Grounded on model_rename's get_family, which
// loops the whole map matching both halves of each entry against the
// probe's own two paths.
func (q *RenameQueue) GetFamily(pair RenamePair) []RenamePair {
	var family []RenamePair
	q.data.LoopAll(func(p RenamePair) {
		if p.MatchesAny(pair.Old.Path()) || p.MatchesAny(pair.New.Path()) {
			family = append(family, p)
		}
	})
	return family
}

// GetNumberFamily counts committed pairs touching path.
func (q *RenameQueue) GetNumberFamily(path string) int {
	n := 0
	q.data.LoopAll(func(p RenamePair) {
		if p.MatchesAny(path) {
			n++
		}
	})
	return n
}

// IsOnlyOneFamilyInfo reports whether pair is the sole committed pair
// touching either of its two paths.
func (q *RenameQueue) IsOnlyOneFamilyInfo(pair RenamePair) bool {
	return len(q.GetFamily(pair)) == 1
}

// WatchingGroup bundles the eight typed queues (seven path-keyed maps plus
// the rename queue) that back a single volume's worth of raw-edit traffic.
type WatchingGroup struct {
	Volume string

	FileAdd      *BoundedMap[NotifyInfo]
	FileRemove   *BoundedMap[NotifyInfo]
	FileModify   *BoundedMap[NotifyInfo]
	FolderAdd    *BoundedMap[NotifyInfo]
	FolderRemove *BoundedMap[NotifyInfo]
	Attribute    *BoundedMap[NotifyInfo]
	Security     *BoundedMap[NotifyInfo]
	Rename       *RenameQueue
}

// DefaultQueueCapacity is the per-queue slot count used when a Manager
// isn't configured with an explicit QueueCapacity.
const DefaultQueueCapacity = 128

// NewWatchingGroup allocates all eight queues for volume with the given
// per-queue capacity.
func NewWatchingGroup(volume string, capacity uint32) *WatchingGroup {
	if capacity == 0 {
		capacity = DefaultQueueCapacity
	}
	return &WatchingGroup{
		Volume:       volume,
		FileAdd:      NewBoundedMap[NotifyInfo](capacity),
		FileRemove:   NewBoundedMap[NotifyInfo](capacity),
		FileModify:   NewBoundedMap[NotifyInfo](capacity),
		FolderAdd:    NewBoundedMap[NotifyInfo](capacity),
		FolderRemove: NewBoundedMap[NotifyInfo](capacity),
		Attribute:    NewBoundedMap[NotifyInfo](capacity),
		Security:     NewBoundedMap[NotifyInfo](capacity),
		Rename:       NewRenameQueue(capacity),
	}
}
