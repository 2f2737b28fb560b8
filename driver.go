package fileactivity

import (
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// renamePairWindow bounds how long a driver will hold a dangling "rename
// from" half waiting for the destination Create that fsnotify's portable
// API reports separately (it does not expose the cookie its own inotify
// backend uses internally to pair the two sides). The old half is held
// until the driver's next event; if that event is not a Create arriving
// within this window, the old half is handed to the engine unpaired, where
// it sits in the rename queue's staging slot until the next rename-old half
// replaces it, like any other kernel-dropped rename half.
const renamePairWindow = 500 * time.Millisecond

// RawEvent is one filename-change edit delivered by a Driver: a path and
// the raw action the kernel reported for it.
type RawEvent struct {
	Path   string
	Action RawAction
}

// Driver is the blocking kernel interface abstraction spec.md treats as an
// opaque collaborator: given a subscription on a volume root, it delivers
// filename-change edits, and, on a narrower parallel subscription,
// attribute and security edits (bare paths; the raw action for these is
// always effectively ActionModified).
//
// Driver is satisfied by fsnotifyDriver, an adapter over *fsnotify.Watcher,
// so the portable inotify/kqueue/ReadDirectoryChangesW plumbing is reused
// as a dependency rather than reimplemented.
type Driver interface {
	// Add subscribes path (recursively, if recursive is true) to this
	// driver's edit stream.
	Add(path string, recursive bool) error
	// Events delivers file/directory create, remove, modify and rename
	// edits.
	Events() <-chan RawEvent
	// Attributes delivers bare paths for attribute-only edits.
	Attributes() <-chan string
	// Securities delivers bare paths for security-descriptor edits.
	Securities() <-chan string
	// Errors delivers driver-level errors (e.g. a watch removed out from
	// under the driver).
	Errors() <-chan error
	// Close releases the underlying kernel subscription.
	Close() error
}

// fsnotifyDriver adapts a single *fsnotify.Watcher into the Driver
// interface. fsnotify's portable Chmod operation conflates attribute and
// security-descriptor changes (there is no ACL-specific signal in the
// cross-platform API), so it is fanned out to both the Attributes and
// Securities channels; the correlation engine's exclusion/suppression
// rules (spec.md 4.6.5 rules 1-2) are what keep that degradation from
// double-reporting ordinary file edits.
type fsnotifyDriver struct {
	w          *fsnotify.Watcher
	events     chan RawEvent
	attributes chan string
	securities chan string
	errs       chan error
	done       chan struct{}

	pendingOldName string
	pendingAt      time.Time
}

func newFsnotifyDriver() (*fsnotifyDriver, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	d := &fsnotifyDriver{
		w:          w,
		events:     make(chan RawEvent, 256),
		attributes: make(chan string, 64),
		securities: make(chan string, 64),
		errs:       make(chan error, 16),
		done:       make(chan struct{}),
	}
	go d.run()
	return d, nil
}

func (d *fsnotifyDriver) Add(path string, recursive bool) error {
	if !recursive {
		return d.w.Add(path)
	}
	return filepath.WalkDir(path, func(p string, de fs.DirEntry, err error) error {
		if err != nil {
			// A directory vanishing mid-walk is not fatal to the rest of
			// the subtree; skip it and keep going.
			if de == nil {
				return nil
			}
			return nil
		}
		if de.IsDir() {
			return d.w.Add(p)
		}
		return nil
	})
}

func (d *fsnotifyDriver) Events() <-chan RawEvent   { return d.events }
func (d *fsnotifyDriver) Attributes() <-chan string { return d.attributes }
func (d *fsnotifyDriver) Securities() <-chan string { return d.securities }
func (d *fsnotifyDriver) Errors() <-chan error      { return d.errs }

func (d *fsnotifyDriver) Close() error {
	close(d.done)
	return d.w.Close()
}

func (d *fsnotifyDriver) run() {
	for {
		select {
		case <-d.done:
			return
		case ev, ok := <-d.w.Events:
			if !ok {
				return
			}
			d.route(ev)
		case err, ok := <-d.w.Errors:
			if !ok {
				return
			}
			select {
			case d.errs <- err:
			default:
			}
		}
	}
}

func (d *fsnotifyDriver) route(ev fsnotify.Event) {
	now := time.Now()

	// A Create that closely follows a dangling rename-from is treated as
	// that rename's destination half rather than an independent create.
	if d.pendingOldName != "" {
		if ev.Has(fsnotify.Create) && now.Sub(d.pendingAt) <= renamePairWindow {
			d.emit(RawEvent{Path: d.pendingOldName, Action: ActionRenameOld})
			d.emit(RawEvent{Path: ev.Name, Action: ActionRenameNew})
			d.pendingOldName = ""
			return
		}
		// Window lapsed or a different kind of event arrived first: the
		// old half never found its pair and is handed over alone.
		d.emit(RawEvent{Path: d.pendingOldName, Action: ActionRenameOld})
		d.pendingOldName = ""
	}

	switch {
	case ev.Has(fsnotify.Rename):
		d.pendingOldName = ev.Name
		d.pendingAt = now
	case ev.Has(fsnotify.Create):
		d.emit(RawEvent{Path: ev.Name, Action: ActionAdded})
	case ev.Has(fsnotify.Remove):
		d.emit(RawEvent{Path: ev.Name, Action: ActionRemoved})
	case ev.Has(fsnotify.Write):
		d.emit(RawEvent{Path: ev.Name, Action: ActionModified})
	case ev.Has(fsnotify.Chmod):
		select {
		case d.attributes <- ev.Name:
		default:
		}
		select {
		case d.securities <- ev.Name:
		default:
		}
	}
}

func (d *fsnotifyDriver) emit(ev RawEvent) {
	select {
	case d.events <- ev:
	default:
		// Under extreme burst, when the events channel is full, the edit
		// being emitted is dropped rather than blocking the driver's
		// read loop.
	}
}
