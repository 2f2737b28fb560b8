package fileactivity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// NotifyFlags selects which raw-edit classes a VolumeWatcher subscribes
// to.
type NotifyFlags uint32

const (
	NotifyFileName NotifyFlags = 1 << iota
	NotifyAttribute
	NotifySecurity
	NotifyFolder
)

// Has reports whether f includes bit.
func (f NotifyFlags) Has(bit NotifyFlags) bool { return f&bit == bit }

// VolumeWatcher drives one volume: it subscribes a Driver to the volume
// root and routes every delivered raw edit into the matching typed queue
// of a WatchingGroup, entirely independent of when the correlation engine
// gets around to classifying what accumulates there.
type VolumeWatcher struct {
	Volume    string
	driver    Driver
	group     *WatchingGroup
	exclude   Rule
	recursive bool
	flags     NotifyFlags
	logger    *slog.Logger
	now       func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup

	// dirs tracks paths this watcher has itself observed being created as
	// directories, so a later Removed edit for the same path can be
	// routed to folder.remove instead of file.remove. A directory that
	// pre-existed before the watch started and is later removed without
	// ever having been seen as an Add is a known, accepted gap: its
	// is_directory flag can no longer be resolved once the entity is
	// already gone.
	dirsMu sync.Mutex
	dirs   map[string]bool
}

// NewVolumeWatcher constructs a VolumeWatcher for volume, backed by driver
// and feeding group.
func NewVolumeWatcher(volume string, driver Driver, group *WatchingGroup, exclude Rule, recursive bool, flags NotifyFlags, logger *slog.Logger) *VolumeWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if exclude == nil {
		exclude = func(string) bool { return false }
	}
	return &VolumeWatcher{
		Volume:    volume,
		driver:    driver,
		group:     group,
		exclude:   exclude,
		recursive: recursive,
		flags:     flags,
		logger:    logger,
		now:       time.Now,
		dirs:      make(map[string]bool),
	}
}

// Start subscribes the driver to the volume root and begins routing edits
// in a background goroutine.
func (w *VolumeWatcher) Start(ctx context.Context) error {
	if err := w.driver.Add(w.Volume, w.recursive); err != nil {
		return fmt.Errorf("fileactivity: subscribe %s: %w", w.Volume, err)
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.wg.Add(1)
	go w.loop(runCtx)
	return nil
}

// Stop cancels the routing goroutine, waits for it to exit, and closes the
// underlying driver.
func (w *VolumeWatcher) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	return w.driver.Close()
}

func (w *VolumeWatcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.driver.Events():
			if !ok {
				return
			}
			if w.flags.Has(NotifyFileName) {
				w.handle(ev)
			}
		case p, ok := <-w.driver.Attributes():
			if !ok {
				return
			}
			if w.flags.Has(NotifyAttribute) {
				w.handleSideband(p, w.group.Attribute)
			}
		case p, ok := <-w.driver.Securities():
			if !ok {
				return
			}
			if w.flags.Has(NotifySecurity) {
				w.handleSideband(p, w.group.Security)
			}
		case err, ok := <-w.driver.Errors():
			if !ok {
				return
			}
			w.logger.Warn("driver error", "volume", w.Volume, "error", err)
		}
	}
}

func (w *VolumeWatcher) handle(ev RawEvent) {
	info := NewNotifyInfo(ev.Path, ev.Action, w.now())
	if !info.Valid() {
		return
	}
	if w.exclude(info.ParentPath()) || w.exclude(info.Path()) {
		return
	}

	switch ev.Action {
	case ActionAdded:
		if info.IsDir() {
			w.dirsMu.Lock()
			w.dirs[info.Path()] = true
			w.dirsMu.Unlock()
			if w.flags.Has(NotifyFolder) {
				w.group.FolderAdd.Insert(info.Path(), info)
			}
			return
		}
		w.group.FileAdd.Insert(info.Path(), info)
	case ActionRemoved:
		w.dirsMu.Lock()
		wasDir := w.dirs[info.Path()]
		delete(w.dirs, info.Path())
		w.dirsMu.Unlock()
		if wasDir {
			if w.flags.Has(NotifyFolder) {
				w.group.FolderRemove.Insert(info.Path(), info)
			}
			return
		}
		w.group.FileRemove.Insert(info.Path(), info)
	case ActionModified:
		w.group.FileModify.Insert(info.Path(), info)
	case ActionRenameOld, ActionRenameNew:
		w.group.Rename.Push(info)
	}
}

func (w *VolumeWatcher) handleSideband(path string, queue *BoundedMap[NotifyInfo]) {
	info := NewNotifyInfo(path, ActionModified, w.now())
	if !info.Valid() {
		return
	}
	if w.exclude(info.ParentPath()) || w.exclude(info.Path()) {
		return
	}
	queue.Insert(info.Path(), info)
}
