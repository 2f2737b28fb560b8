package fileactivity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDriver is a test Driver whose channels the test feeds directly,
// standing in for a real kernel subscription.
type fakeDriver struct {
	events     chan RawEvent
	attributes chan string
	securities chan string
	errs       chan error
	closed     bool
	addedPath  string
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		events:     make(chan RawEvent, 16),
		attributes: make(chan string, 16),
		securities: make(chan string, 16),
		errs:       make(chan error, 16),
	}
}

func (f *fakeDriver) Add(path string, recursive bool) error { f.addedPath = path; return nil }
func (f *fakeDriver) Events() <-chan RawEvent                { return f.events }
func (f *fakeDriver) Attributes() <-chan string              { return f.attributes }
func (f *fakeDriver) Securities() <-chan string              { return f.securities }
func (f *fakeDriver) Errors() <-chan error                   { return f.errs }
func (f *fakeDriver) Close() error                           { f.closed = true; return nil }

func waitForQueue(t *testing.T, m *BoundedMap[NotifyInfo], path string) NotifyInfo {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if info, ok := m.Find(path); ok {
			return info
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s to appear", path)
	return NotifyInfo{}
}

func TestVolumeWatcherRoutesCreateToFileAdd(t *testing.T) {
	driver := newFakeDriver()
	group := NewWatchingGroup("/vol", 8)
	w := NewVolumeWatcher("/vol", driver, group, nil, true, NotifyFileName, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	driver.events <- RawEvent{Path: "/vol/a.txt", Action: ActionAdded}
	waitForQueue(t, group.FileAdd, "/vol/a.txt")
	assert.Equal(t, "/vol", driver.addedPath)
}

func TestVolumeWatcherRoutesRenamePairToRenameQueue(t *testing.T) {
	driver := newFakeDriver()
	group := NewWatchingGroup("/vol", 8)
	w := NewVolumeWatcher("/vol", driver, group, nil, true, NotifyFileName, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	driver.events <- RawEvent{Path: "/vol/old.txt", Action: ActionRenameOld}
	driver.events <- RawEvent{Path: "/vol/new.txt", Action: ActionRenameNew}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if group.Rename.Contains("/vol/new.txt") {
			break
		}
		time.Sleep(time.Millisecond)
	}
	assert.True(t, group.Rename.Contains("/vol/new.txt"))
}

func TestVolumeWatcherExcludesByRule(t *testing.T) {
	driver := newFakeDriver()
	group := NewWatchingGroup("/vol", 8)
	exclude := PrefixRule("/vol/.cache")
	w := NewVolumeWatcher("/vol", driver, group, exclude, true, NotifyFileName, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	driver.events <- RawEvent{Path: "/vol/.cache/thumb.db", Action: ActionAdded}
	driver.events <- RawEvent{Path: "/vol/real.txt", Action: ActionAdded}
	waitForQueue(t, group.FileAdd, "/vol/real.txt")

	_, excluded := group.FileAdd.Find("/vol/.cache/thumb.db")
	assert.False(t, excluded)
}

func TestVolumeWatcherTracksDirectoryRemovalAsFolderRemove(t *testing.T) {
	driver := newFakeDriver()
	group := NewWatchingGroup("/vol", 8)
	w := NewVolumeWatcher("/vol", driver, group, nil, true, NotifyFileName|NotifyFolder, nil)
	w.now = func() time.Time { return fixedNow }

	dir := t.TempDir()
	w.handle(RawEvent{Path: dir, Action: ActionAdded})
	_, inFolderAdd := group.FolderAdd.Find(dir)
	require.True(t, inFolderAdd)

	w.handle(RawEvent{Path: dir, Action: ActionRemoved})
	_, inFolderRemove := group.FolderRemove.Find(dir)
	assert.True(t, inFolderRemove)
	_, inFileRemove := group.FileRemove.Find(dir)
	assert.False(t, inFileRemove)
}

func TestVolumeWatcherSidebandRoutesAttributeAndSecurity(t *testing.T) {
	driver := newFakeDriver()
	group := NewWatchingGroup("/vol", 8)
	w := NewVolumeWatcher("/vol", driver, group, nil, true, NotifyAttribute|NotifySecurity, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	driver.attributes <- "/vol/a.txt"
	driver.securities <- "/vol/b.txt"
	waitForQueue(t, group.Attribute, "/vol/a.txt")
	waitForQueue(t, group.Security, "/vol/b.txt")
}
