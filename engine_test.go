package fileactivity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDelay = 10 * time.Millisecond

func ripeEngine() (*Engine, *[]Event, *time.Time) {
	clock := fixedNow
	e, events := newTestEngine(EngineConfig{DelayProcess: testDelay, StabilityWindow: testDelay}, &clock)
	clock = fixedNow.Add(testDelay + time.Millisecond)
	return e, events, &clock
}

func TestEngineCreate(t *testing.T) {
	e, events, _ := ripeEngine()
	g := NewWatchingGroup("vol1", 8)
	e.Register(g)

	push(g.FileAdd, "/vol/a.txt", ActionAdded, fixedNow)
	e.Tick()

	require.Len(t, *events, 1)
	assert.Equal(t, CreateKind, (*events)[0].Kind)
	assert.Equal(t, "/vol/a.txt", (*events)[0].Path)
	_, ok := g.FileAdd.Find("/vol/a.txt")
	assert.False(t, ok)
}

func TestEngineRemove(t *testing.T) {
	e, events, _ := ripeEngine()
	g := NewWatchingGroup("vol1", 8)
	e.Register(g)

	push(g.FileRemove, "/vol/a.txt", ActionRemoved, fixedNow)
	e.Tick()

	require.Len(t, *events, 1)
	assert.Equal(t, RemoveKind, (*events)[0].Kind)
}

func TestEngineModify(t *testing.T) {
	e, events, _ := ripeEngine()
	g := NewWatchingGroup("vol1", 8)
	e.Register(g)

	push(g.FileModify, "/vol/a.txt", ActionModified, fixedNow)
	e.Tick()

	require.Len(t, *events, 1)
	assert.Equal(t, ModifyKind, (*events)[0].Kind)
}

func TestEngineCopy(t *testing.T) {
	e, events, _ := ripeEngine()
	g := NewWatchingGroup("vol1", 8)
	e.Register(g)

	push(g.FileAdd, "/vol/a.txt", ActionAdded, fixedNow)
	push(g.FileModify, "/vol/a.txt", ActionModified, fixedNow)
	e.Tick()

	require.Len(t, *events, 1)
	assert.Equal(t, CopyKind, (*events)[0].Kind)
}

func TestEngineMoveAcrossVolumes(t *testing.T) {
	e, events, _ := ripeEngine()
	src := NewWatchingGroup("src", 8)
	dst := NewWatchingGroup("dst", 8)
	e.Register(src)
	e.Register(dst)

	push(src.FileRemove, "/src/a.txt", ActionRemoved, fixedNow)
	push(dst.FileAdd, "/dst/a.txt", ActionAdded, fixedNow)
	e.Tick()

	require.Len(t, *events, 1)
	assert.Equal(t, MoveKind, (*events)[0].Kind)
	assert.Equal(t, "/src/a.txt", (*events)[0].Path)
	assert.Equal(t, "/dst/a.txt", (*events)[0].Dest)
}

func TestEngineRename(t *testing.T) {
	e, events, _ := ripeEngine()
	g := NewWatchingGroup("vol1", 8)
	e.Register(g)

	g.Rename.Push(NewNotifyInfo("/vol/old.txt", ActionRenameOld, fixedNow))
	g.Rename.Push(NewNotifyInfo("/vol/new.txt", ActionRenameNew, fixedNow))
	e.Tick()

	require.Len(t, *events, 1)
	assert.Equal(t, RenameKind, (*events)[0].Kind)
	assert.Equal(t, "/vol/old.txt", (*events)[0].Path)
	assert.Equal(t, "/vol/new.txt", (*events)[0].Dest)
}

func TestEngineCreateBySaveAs(t *testing.T) {
	e, events, _ := ripeEngine()
	g := NewWatchingGroup("vol1", 8)
	e.Register(g)

	push(g.FileRemove, "/vol/a.txt", ActionRemoved, fixedNow)
	push(g.FileAdd, "/vol/a.txt", ActionAdded, fixedNow.Add(time.Microsecond))
	push(g.FileModify, "/vol/a.txt", ActionModified, fixedNow.Add(2*time.Microsecond))
	e.Tick()

	require.Len(t, *events, 1)
	assert.Equal(t, CreateBySaveAs, (*events)[0].Kind)
}

// TestEngineModifyWithoutModifyEvent reproduces spec.md scenario S6: an
// image editor that replaces a file via remove-then-add without ever
// emitting a Modified notification in between.
func TestEngineModifyWithoutModifyEvent(t *testing.T) {
	e, events, _ := ripeEngine()
	g := NewWatchingGroup("vol1", 8)
	e.Register(g)

	push(g.FileRemove, "/vol/p/1.png", ActionRemoved, fixedNow)
	push(g.FileAdd, "/vol/p/1.png", ActionAdded, fixedNow.Add(time.Microsecond))
	e.Tick()

	require.Len(t, *events, 1)
	assert.Equal(t, ModifyKind, (*events)[0].Kind)
	assert.Equal(t, "/vol/p/1.png", (*events)[0].Path)
}

func TestEngineModifyByRename(t *testing.T) {
	e, events, _ := ripeEngine()
	g := NewWatchingGroup("vol1", 8)
	e.Register(g)

	push(g.FileAdd, "/vol/tmp1", ActionAdded, fixedNow)
	g.Rename.Push(NewNotifyInfo("/vol/tmp1", ActionRenameOld, fixedNow))
	g.Rename.Push(NewNotifyInfo("/vol/final1", ActionRenameNew, fixedNow))
	e.Tick()

	require.Len(t, *events, 1)
	assert.Equal(t, ModifyByRename, (*events)[0].Kind)
	assert.Equal(t, "/vol/final1", (*events)[0].Path)
	assert.Equal(t, "/vol/tmp1", (*events)[0].Dest)
}

func TestEngineCreateByRename(t *testing.T) {
	e, events, _ := ripeEngine()
	g := NewWatchingGroup("vol1", 8)
	e.Register(g)

	push(g.FileAdd, "/vol/tmp2", ActionAdded, fixedNow)
	push(g.FileAdd, "/vol/final2", ActionAdded, fixedNow)
	g.Rename.Push(NewNotifyInfo("/vol/tmp2", ActionRenameOld, fixedNow))
	g.Rename.Push(NewNotifyInfo("/vol/final2", ActionRenameNew, fixedNow))
	e.Tick()

	require.Len(t, *events, 1)
	assert.Equal(t, CreateByRename, (*events)[0].Kind)
	assert.Equal(t, "/vol/final2", (*events)[0].Path)
}

func TestEngineCreateByDownloadChain(t *testing.T) {
	e, events, _ := ripeEngine()
	g := NewWatchingGroup("vol1", 8)
	e.Register(g)

	g.Rename.Push(NewNotifyInfo("/vol/file.tmp", ActionRenameOld, fixedNow))
	g.Rename.Push(NewNotifyInfo("/vol/file.crdownload", ActionRenameNew, fixedNow))
	g.Rename.Push(NewNotifyInfo("/vol/file.crdownload", ActionRenameOld, fixedNow))
	g.Rename.Push(NewNotifyInfo("/vol/file", ActionRenameNew, fixedNow))
	e.Tick()

	require.Len(t, *events, 1)
	assert.Equal(t, CreateByDownload, (*events)[0].Kind)
	assert.Equal(t, "/vol/file", (*events)[0].Path)
	assert.ElementsMatch(t, []string{"/vol/file.crdownload", "/vol/file.tmp"}, (*events)[0].Extra)
}

// TestEngineCreateByWordSaveAs reproduces spec.md scenario S3 (Word
// save-as) directly: the document is written under its real name first
// (file.add, predating the rename family below), then Word backs it up to
// a "~RF#.TMP" name while restoring the freshly written "~.tmp" scratch
// file under the real name. This is the same three-node chain shape
// TestEngineCreateByDownloadChain exercises; only the predating file.add
// for the pivot name ("/vol/t/8.docx") tells the two apart.
func TestEngineCreateByWordSaveAs(t *testing.T) {
	e, events, _ := ripeEngine()
	g := NewWatchingGroup("vol1", 8)
	e.Register(g)

	push(g.FileAdd, "/vol/t/8.docx", ActionAdded, fixedNow)

	g.Rename.Push(NewNotifyInfo("/vol/t/8.docx", ActionRenameOld, fixedNow.Add(2*time.Microsecond)))
	g.Rename.Push(NewNotifyInfo("/vol/t/8.docx~RF1.TMP", ActionRenameNew, fixedNow.Add(2*time.Microsecond)))
	g.Rename.Push(NewNotifyInfo("/vol/t/~.tmp", ActionRenameOld, fixedNow.Add(5*time.Microsecond)))
	g.Rename.Push(NewNotifyInfo("/vol/t/8.docx", ActionRenameNew, fixedNow.Add(5*time.Microsecond)))
	e.Tick()

	require.Len(t, *events, 1)
	assert.Equal(t, CreateByWord, (*events)[0].Kind)
	assert.Equal(t, "/vol/t/8.docx", (*events)[0].Path)
	assert.ElementsMatch(t, []string{"/vol/t/8.docx~RF1.TMP", "/vol/t/~.tmp"}, (*events)[0].Extra)
}

func TestEngineModifyByWordCrossover(t *testing.T) {
	e, events, _ := ripeEngine()
	g := NewWatchingGroup("vol1", 8)
	e.Register(g)

	g.Rename.Push(NewNotifyInfo("/vol/document.docx", ActionRenameOld, fixedNow))
	g.Rename.Push(NewNotifyInfo("/vol/wrf1234.tmp", ActionRenameNew, fixedNow))
	g.Rename.Push(NewNotifyInfo("/vol/wrf1234.tmp", ActionRenameOld, fixedNow))
	g.Rename.Push(NewNotifyInfo("/vol/document.docx", ActionRenameNew, fixedNow))
	e.Tick()

	require.Len(t, *events, 1)
	assert.Equal(t, ModifyByWord, (*events)[0].Kind)
	assert.Equal(t, "/vol/document.docx", (*events)[0].Path)
}

func TestEngineFolderRemoveAlone(t *testing.T) {
	e, events, _ := ripeEngine()
	g := NewWatchingGroup("vol1", 8)
	e.Register(g)

	push(g.FolderRemove, "/vol/olddir", ActionRemoved, fixedNow)
	e.Tick()

	require.Len(t, *events, 1)
	assert.Equal(t, FolderRemoveKind, (*events)[0].Kind)
}

func TestEngineFolderMoveAcrossVolumes(t *testing.T) {
	e, events, _ := ripeEngine()
	src := NewWatchingGroup("src", 8)
	dst := NewWatchingGroup("dst", 8)
	e.Register(src)
	e.Register(dst)

	push(src.FolderRemove, "/src/dir", ActionRemoved, fixedNow)
	push(dst.FolderAdd, "/dst/dir", ActionAdded, fixedNow)
	e.Tick()

	require.Len(t, *events, 1)
	assert.Equal(t, FolderMoveKind, (*events)[0].Kind)
	assert.Equal(t, "/src/dir", (*events)[0].Path)
	assert.Equal(t, "/dst/dir", (*events)[0].Dest)
}

func TestEngineAttributeAndSecurity(t *testing.T) {
	e, events, _ := ripeEngine()
	g := NewWatchingGroup("vol1", 8)
	e.Register(g)

	push(g.Attribute, "/vol/a.txt", ActionModified, fixedNow)
	push(g.Security, "/vol/b.txt", ActionModified, fixedNow)
	e.Tick()

	require.Len(t, *events, 2)
	kinds := map[Kind]bool{(*events)[0].Kind: true, (*events)[1].Kind: true}
	assert.True(t, kinds[AttributeChange])
	assert.True(t, kinds[SecurityChange])
}

func TestEngineAttributeSuppressedByConcurrentEdit(t *testing.T) {
	e, events, _ := ripeEngine()
	g := NewWatchingGroup("vol1", 8)
	e.Register(g)

	push(g.Attribute, "/vol/a.txt", ActionModified, fixedNow)
	push(g.FileModify, "/vol/a.txt", ActionModified, fixedNow)
	e.Tick()

	for _, ev := range *events {
		assert.NotEqual(t, AttributeChange, ev.Kind)
	}
	_, stillQueued := g.Attribute.Find("/vol/a.txt")
	assert.False(t, stillQueued)
}

func TestEngineExclusionSuppressesCreate(t *testing.T) {
	clock := fixedNow
	e, events := newTestEngine(EngineConfig{
		DelayProcess: testDelay,
		Exclude:      PrefixRule("/vol/.cache"),
	}, &clock)
	clock = fixedNow.Add(testDelay + time.Millisecond)

	g := NewWatchingGroup("vol1", 8)
	e.Register(g)
	push(g.FileAdd, "/vol/.cache/thumb.db", ActionAdded, fixedNow)
	e.Tick()

	assert.Empty(t, *events)
	_, ok := g.FileAdd.Find("/vol/.cache/thumb.db")
	assert.False(t, ok)
}

func TestEngineNotRipeYieldsNoEvent(t *testing.T) {
	clock := fixedNow
	e, events := newTestEngine(EngineConfig{DelayProcess: time.Hour}, &clock)
	g := NewWatchingGroup("vol1", 8)
	e.Register(g)

	push(g.FileAdd, "/vol/a.txt", ActionAdded, fixedNow)
	e.Tick()

	assert.Empty(t, *events)
	_, ok := g.FileAdd.Find("/vol/a.txt")
	assert.True(t, ok)
}

func TestEngineContendedRenameDefersAndExtendsStability(t *testing.T) {
	clock := fixedNow
	e, events := newTestEngine(EngineConfig{
		DelayProcess: testDelay,
		IsOpen:       func(path string) bool { return path == "/vol/new.txt" },
	}, &clock)
	clock = fixedNow.Add(testDelay + time.Millisecond)

	g := NewWatchingGroup("vol1", 8)
	e.Register(g)
	g.Rename.Push(NewNotifyInfo("/vol/old.txt", ActionRenameOld, fixedNow))
	g.Rename.Push(NewNotifyInfo("/vol/new.txt", ActionRenameNew, fixedNow))
	e.Tick()

	assert.Empty(t, *events)
	_, stillThere := g.Rename.FindByNewName("/vol/new.txt")
	assert.True(t, stillThere)
	assert.True(t, e.withinStabilityWindow("/vol/new.txt"))
}
