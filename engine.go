package fileactivity

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"
)

// EngineConfig tunes the correlation engine's timing and gating
// predicates.
type EngineConfig struct {
	// Interval is how often the engine ticks over every registered
	// volume.
	Interval time.Duration
	// DelayProcess is the aging gate: how long a queue entry must sit
	// before it is ripe for classification.
	DelayProcess time.Duration
	// StabilityWindow is how long a contended rename's new name stays held
	// back: any rename pair with that path as its old or new name is not
	// classified until the window passes.
	StabilityWindow time.Duration
	// IsOpen is the contention predicate; nil disables the gate.
	IsOpen func(path string) bool
	// Exclude is the exclusion predicate; nil excludes nothing.
	Exclude Rule
}

const (
	defaultInterval        = 300 * time.Millisecond
	defaultDelayProcess    = 3000 * time.Millisecond
	defaultStabilityWindow = 1000 * time.Millisecond
)

func (c EngineConfig) withDefaults() EngineConfig {
	if c.Interval <= 0 {
		c.Interval = defaultInterval
	}
	if c.DelayProcess <= 0 {
		c.DelayProcess = defaultDelayProcess
	}
	if c.StabilityWindow <= 0 {
		c.StabilityWindow = defaultStabilityWindow
	}
	return c
}

// Engine is the correlation engine (C6): on every tick it runs the fixed
// classifier pipeline over each registered volume's WatchingGroup,
// converting raw queued edits into semantic Events.
type Engine struct {
	cfg    EngineConfig
	sink   Sink
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	groups []*WatchingGroup

	stableMu  sync.Mutex
	stability map[string]time.Time
}

// NewEngine constructs an Engine. A nil sink discards every event; a nil
// logger uses slog.Default.
func NewEngine(cfg EngineConfig, sink Sink, logger *slog.Logger) *Engine {
	if sink == nil {
		sink = func(Event) {}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:       cfg.withDefaults(),
		sink:      sink,
		logger:    logger,
		now:       time.Now,
		stability: make(map[string]time.Time),
	}
}

// Register adds a volume's WatchingGroup to the set the engine ticks over.
func (e *Engine) Register(g *WatchingGroup) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.groups = append(e.groups, g)
}

// Run ticks the engine on its configured interval until ctx is canceled.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

// Tick runs one classification pass immediately; exported so tests can
// drive the engine deterministically without waiting on the ticker.
func (e *Engine) Tick() { e.tick() }

func (e *Engine) tick() {
	e.mu.Lock()
	groups := append([]*WatchingGroup(nil), e.groups...)
	e.mu.Unlock()

	for _, g := range groups {
		e.checkAttribute(g, groups)
		e.checkSecurity(g, groups)
		e.checkFolderRemove(g, groups)
		e.checkFolderMove(g, groups)
		e.checkRename(g, groups)
		e.checkCreate(g, groups)
		e.checkRemove(g, groups)
		e.checkModify(g, groups)
		e.checkModifyWithoutModifyEvent(g, groups)
		e.checkCopy(g, groups)
		e.checkMove(g, groups)
	}
}

// ripe is the aging gate: an entry is only a candidate for classification
// once it has existed for at least DelayProcess.
func (e *Engine) ripe(info NotifyInfo) bool {
	return info.Alive(e.now()) >= e.cfg.DelayProcess
}

func (e *Engine) excluded(info NotifyInfo) bool {
	if e.cfg.Exclude == nil {
		return false
	}
	return e.cfg.Exclude(info.Path()) || e.cfg.Exclude(info.ParentPath())
}

func (e *Engine) contended(info NotifyInfo) bool {
	if e.cfg.IsOpen == nil {
		return false
	}
	return e.cfg.IsOpen(info.Path())
}

func (e *Engine) withinStabilityWindow(path string) bool {
	e.stableMu.Lock()
	defer e.stableMu.Unlock()
	until, ok := e.stability[path]
	if !ok {
		return false
	}
	if !e.now().Before(until) {
		delete(e.stability, path)
		return false
	}
	return true
}

func (e *Engine) extendStabilityWindow(path string) {
	e.stableMu.Lock()
	defer e.stableMu.Unlock()
	e.stability[path] = e.now().Add(e.cfg.StabilityWindow)
}

func (e *Engine) emit(ev Event) {
	ev.ID = newEventID()
	if ev.At.IsZero() {
		ev.At = e.now()
	}
	e.safeSink(ev)
}

// safeSink swallows a panicking sink rather than letting it take down the
// engine's goroutine; spec.md's failure semantics say a sink failure is
// ignored and never retried.
func (e *Engine) safeSink(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("sink panic", "recover", r)
		}
	}()
	e.sink(ev)
}

// eraseTrace clears every queue's entry for each of paths: add, remove,
// modify, attribute, security. Per spec.md 4.6.6, committing a
// classification always erases every trace of the involved path(s) across
// the volume's queues, not just the driving queue.
func (e *Engine) eraseTrace(g *WatchingGroup, paths ...string) {
	for _, p := range paths {
		g.FileAdd.Erase(p)
		g.FileRemove.Erase(p)
		g.FileModify.Erase(p)
		g.Attribute.Erase(p)
		g.Security.Erase(p)
	}
}

func (e *Engine) eraseRenameTrace(g *WatchingGroup, pair RenamePair) {
	e.eraseTrace(g, pair.Old.Path(), pair.New.Path())
	g.Rename.Erase(pair.Key())
}

func (e *Engine) eraseFamily(g *WatchingGroup, family []RenamePair) {
	for _, p := range family {
		g.Rename.Erase(p.Key())
	}
}

func (e *Engine) pathInAnyFileQueue(g *WatchingGroup, path string) bool {
	if _, ok := g.FileAdd.Find(path); ok {
		return true
	}
	if _, ok := g.FileRemove.Find(path); ok {
		return true
	}
	if _, ok := g.FileModify.Find(path); ok {
		return true
	}
	return g.Rename.Contains(path)
}

func (e *Engine) otherVolumeFileAdd(all []*WatchingGroup, g *WatchingGroup, base string) (NotifyInfo, *WatchingGroup, bool) {
	for _, other := range all {
		if other == g {
			continue
		}
		if info, ok := other.FileAdd.FindIf(func(n NotifyInfo) bool { return filepath.Base(n.Path()) == base }); ok {
			return info, other, true
		}
	}
	return NotifyInfo{}, nil, false
}

func (e *Engine) otherVolumeFileRemove(all []*WatchingGroup, g *WatchingGroup, base string) (NotifyInfo, *WatchingGroup, bool) {
	for _, other := range all {
		if other == g {
			continue
		}
		if info, ok := other.FileRemove.FindIf(func(n NotifyInfo) bool { return filepath.Base(n.Path()) == base }); ok {
			return info, other, true
		}
	}
	return NotifyInfo{}, nil, false
}

func findFolderAddByBase(all []*WatchingGroup, base, differentFromParent string) (NotifyInfo, *WatchingGroup, bool) {
	for _, g := range all {
		if info, ok := g.FolderAdd.FindIf(func(n NotifyInfo) bool {
			return filepath.Base(n.Path()) == base && filepath.Dir(n.Path()) != differentFromParent
		}); ok {
			return info, g, true
		}
	}
	return NotifyInfo{}, nil, false
}

func findFolderRemoveByBase(all []*WatchingGroup, base, differentFromParent string) (NotifyInfo, *WatchingGroup, bool) {
	for _, g := range all {
		if info, ok := g.FolderRemove.FindIf(func(n NotifyInfo) bool {
			return filepath.Base(n.Path()) == base && filepath.Dir(n.Path()) != differentFromParent
		}); ok {
			return info, g, true
		}
	}
	return NotifyInfo{}, nil, false
}

// --- 1: check_attribute ---

func (e *Engine) checkAttribute(g *WatchingGroup, all []*WatchingGroup) {
	info, ok := g.Attribute.Front()
	if !ok {
		g.Attribute.NextAvailableItem()
		return
	}
	if !e.ripe(info) {
		return
	}
	if e.excluded(info) {
		g.Attribute.Erase(info.Path())
		g.Attribute.NextAvailableItem()
		return
	}
	if e.pathInAnyFileQueue(g, info.Path()) {
		// An attribute change riding along with a real file edit is
		// suppressed: the other edit's own classification already
		// accounts for it.
		g.Attribute.Erase(info.Path())
		g.Attribute.NextAvailableItem()
		return
	}
	e.emit(Event{Kind: AttributeChange, Volume: g.Volume, Path: info.Path()})
	g.Attribute.Erase(info.Path())
	g.Attribute.NextAvailableItem()
}

// --- 2: check_security ---

func (e *Engine) checkSecurity(g *WatchingGroup, all []*WatchingGroup) {
	info, ok := g.Security.Front()
	if !ok {
		g.Security.NextAvailableItem()
		return
	}
	if !e.ripe(info) {
		return
	}
	if e.excluded(info) {
		g.Security.Erase(info.Path())
		g.Security.NextAvailableItem()
		return
	}
	if e.pathInAnyFileQueue(g, info.Path()) {
		g.Security.Erase(info.Path())
		g.Security.NextAvailableItem()
		return
	}
	e.emit(Event{Kind: SecurityChange, Volume: g.Volume, Path: info.Path()})
	g.Security.Erase(info.Path())
	g.Security.NextAvailableItem()
}

// --- 3: check_folder_remove ---

func (e *Engine) checkFolderRemove(g *WatchingGroup, all []*WatchingGroup) {
	info, ok := g.FolderRemove.Front()
	if !ok {
		g.FolderRemove.NextAvailableItem()
		return
	}
	if !e.ripe(info) {
		return
	}
	if e.excluded(info) {
		g.FolderRemove.Erase(info.Path())
		g.FolderRemove.NextAvailableItem()
		return
	}
	base := filepath.Base(info.Path())
	if _, _, found := findFolderAddByBase(all, base, filepath.Dir(info.Path())); found {
		// A matching folder.add elsewhere means this is really a move;
		// leave it for check_folder_move.
		return
	}
	e.emit(Event{Kind: FolderRemoveKind, Volume: g.Volume, Path: info.Path()})
	g.FolderRemove.Erase(info.Path())
	g.FolderRemove.NextAvailableItem()
}

// --- 4: check_folder_move ---

func (e *Engine) checkFolderMove(g *WatchingGroup, all []*WatchingGroup) {
	info, ok := g.FolderAdd.Front()
	if !ok {
		g.FolderAdd.NextAvailableItem()
		return
	}
	if !e.ripe(info) {
		return
	}
	if e.excluded(info) {
		g.FolderAdd.Erase(info.Path())
		g.FolderAdd.NextAvailableItem()
		return
	}
	base := filepath.Base(info.Path())
	removeInfo, removeGroup, found := findFolderRemoveByBase(all, base, filepath.Dir(info.Path()))
	if !found {
		// A folder add with no matching remove is never emitted on its
		// own (spec.md's output list has no plain folder-create kind);
		// it just waits here until a matching remove shows up or it
		// eventually ages out via queue overflow.
		return
	}
	e.emit(Event{Kind: FolderMoveKind, Volume: g.Volume, Path: removeInfo.Path(), Dest: info.Path()})
	g.FolderAdd.Erase(info.Path())
	removeGroup.FolderRemove.Erase(removeInfo.Path())
	g.FolderAdd.NextAvailableItem()
}

// --- 5: check_rename ---

func (e *Engine) checkRename(g *WatchingGroup, all []*WatchingGroup) {
	pair, ok := g.Rename.Front()
	if !ok {
		g.Rename.NextAvailableItem()
		return
	}
	if !e.ripe(pair.New) {
		return
	}
	if e.excluded(pair.New) || e.excluded(pair.Old) {
		e.eraseRenameTrace(g, pair)
		g.Rename.NextAvailableItem()
		return
	}
	if e.contended(pair.New) {
		e.extendStabilityWindow(pair.New.Path())
		return
	}
	if e.withinStabilityWindow(pair.New.Path()) || e.withinStabilityWindow(pair.Old.Path()) {
		return
	}

	oldPath, newPath := pair.Old.Path(), pair.New.Path()
	_, oldInAdd := g.FileAdd.Find(oldPath)
	_, newInAdd := g.FileAdd.Find(newPath)
	family := g.Rename.GetFamily(pair)

	switch {
	case !oldInAdd && !newInAdd && len(family) == 1:
		e.emit(Event{Kind: RenameKind, Volume: g.Volume, Path: oldPath, Dest: newPath})
		e.eraseRenameTrace(g, pair)

	default:
		if final, t1, t2, ok := wordSwap(family); ok {
			e.emit(Event{Kind: ModifyByWord, Volume: g.Volume, Path: final, Extra: []string{t1, t2}})
			e.eraseTrace(g, final, t1, t2)
			e.eraseFamily(g, family)
		} else if chain, ok := buildRenameChain(family); ok {
			tail := chain[len(chain)-1]
			tailFinal := tail.New.Path()
			pivot := tail.Old.Path()
			headOld := chain[0].Old.Path()

			// A family-of-2 chain is structurally identical whether it is a
			// browser's temp-name shuffle or a Word save-as backing up the
			// live document: the only distinguishing signal spec.md gives is
			// whether the pivot name already existed (file.add, predating
			// this rename) under its own right, rather than being minted
			// purely by these renames.
			if len(chain) == 2 {
				if addInfo, hasAdd := g.FileAdd.Find(pivot); hasAdd && addInfo.CreatedAt().Before(pair.New.CreatedAt()) {
					e.emit(Event{Kind: CreateByWord, Volume: g.Volume, Path: pivot, Extra: []string{tailFinal, headOld}})
					e.eraseTrace(g, pivot, tailFinal, headOld)
					e.eraseFamily(g, family)
					g.Rename.NextAvailableItem()
					return
				}
			}
			e.emit(Event{Kind: CreateByDownload, Volume: g.Volume, Path: tailFinal, Extra: []string{pivot, headOld}})
			e.eraseTrace(g, tailFinal, pivot, headOld)
			e.eraseFamily(g, family)
		} else if oldInAdd && len(family) == 1 {
			if newInAdd {
				e.emit(Event{Kind: CreateByRename, Volume: g.Volume, Path: newPath, Dest: oldPath})
			} else {
				e.emit(Event{Kind: ModifyByRename, Volume: g.Volume, Path: newPath, Dest: oldPath})
			}
			e.eraseRenameTrace(g, pair)
			g.FileAdd.Erase(oldPath)
		} else {
			// Not enough information yet (e.g. a download/Word chain
			// whose next hop hasn't committed): leave the front entry in
			// place for a later tick.
			return
		}
	}

	g.Rename.NextAvailableItem()
}

// buildRenameChain looks for a linear chain of >= 2 rename pairs where each
// pair's new name is the next pair's old name (X.tmp -> Y.crdownload -> Y),
// the shape both a browser's download-then-finalize sequence and a Word
// save-as backup-then-restore sequence produce. It returns the chain in
// traversal order (head first); the caller decides, from the family size and
// file.add history, whether the chain's tail or its pivot node is the
// classified final path.
func buildRenameChain(family []RenamePair) (chain []RenamePair, ok bool) {
	if len(family) < 2 {
		return nil, false
	}
	byOld := make(map[string]RenamePair, len(family))
	newSet := make(map[string]bool, len(family))
	for _, p := range family {
		byOld[p.Old.Path()] = p
		newSet[p.New.Path()] = true
	}
	var head RenamePair
	found := false
	for _, p := range family {
		if !newSet[p.Old.Path()] {
			head = p
			found = true
			break
		}
	}
	if !found {
		return nil, false
	}
	chain = []RenamePair{head}
	cur := head
	for {
		next, ok := byOld[cur.New.Path()]
		if !ok {
			break
		}
		chain = append(chain, next)
		cur = next
	}
	if len(chain) < 2 {
		return nil, false
	}
	return chain, true
}

// wordSwap recognizes the pure two-name swap a plain (not save-as) Word save
// produces: the live document is renamed to a backup name while a second
// temp file's content is renamed back onto the original name, touching
// exactly two distinct paths. This is structurally distinct from
// buildRenameChain's three-node shape (which needs a file.add check to
// disambiguate Word save-as from a download), so it never competes with it.
func wordSwap(family []RenamePair) (final, t1, t2 string, ok bool) {
	if len(family) != 2 {
		return "", "", "", false
	}
	p1, p2 := family[0], family[1]
	if p1.Old.Path() == p2.New.Path() && p2.Old.Path() == p1.New.Path() {
		return p2.New.Path(), p1.New.Path(), p2.Old.Path(), true
	}
	return "", "", "", false
}

// --- 6: check_create ---

func (e *Engine) checkCreate(g *WatchingGroup, all []*WatchingGroup) {
	info, ok := g.FileAdd.Front()
	if !ok {
		g.FileAdd.NextAvailableItem()
		return
	}
	if !e.ripe(info) {
		return
	}
	path := info.Path()
	if e.excluded(info) {
		e.eraseTrace(g, path)
		g.FileAdd.NextAvailableItem()
		return
	}
	if e.contended(info) {
		return
	}
	if g.Rename.Contains(path) {
		return
	}

	remInfo, inRemove := g.FileRemove.Find(path)
	modInfo, inModify := g.FileModify.Find(path)

	if inRemove && remInfo.CreatedAt().Before(info.CreatedAt()) && inModify && modInfo.CreatedAt().After(info.CreatedAt()) {
		e.emit(Event{Kind: CreateBySaveAs, Volume: g.Volume, Path: path})
		e.eraseTrace(g, path)
		g.FileAdd.NextAvailableItem()
		return
	}

	if !inRemove && !inModify {
		base := filepath.Base(path)
		if _, _, found := e.otherVolumeFileRemove(all, g, base); !found {
			e.emit(Event{Kind: CreateKind, Volume: g.Volume, Path: path})
			e.eraseTrace(g, path)
			g.FileAdd.NextAvailableItem()
			return
		}
	}
	// Leave it for check_modify_without_modify_event, check_copy or
	// check_move to examine on this same tick.
}

// --- 7: check_remove ---

func (e *Engine) checkRemove(g *WatchingGroup, all []*WatchingGroup) {
	info, ok := g.FileRemove.Front()
	if !ok {
		g.FileRemove.NextAvailableItem()
		return
	}
	if !e.ripe(info) {
		return
	}
	path := info.Path()
	if e.excluded(info) {
		e.eraseTrace(g, path)
		g.FileRemove.NextAvailableItem()
		return
	}
	if g.Rename.Contains(path) {
		return
	}
	if _, inAdd := g.FileAdd.Find(path); inAdd {
		return
	}
	base := filepath.Base(path)
	if _, _, found := e.otherVolumeFileAdd(all, g, base); found {
		// Defer to check_move: this is the source half of a cross-volume
		// move.
		return
	}
	e.emit(Event{Kind: RemoveKind, Volume: g.Volume, Path: path})
	e.eraseTrace(g, path)
	g.FileRemove.NextAvailableItem()
}

// --- 8: check_modify ---

func (e *Engine) checkModify(g *WatchingGroup, all []*WatchingGroup) {
	info, ok := g.FileModify.Front()
	if !ok {
		g.FileModify.NextAvailableItem()
		return
	}
	if !e.ripe(info) {
		return
	}
	path := info.Path()
	if e.excluded(info) {
		e.eraseTrace(g, path)
		g.FileModify.NextAvailableItem()
		return
	}
	if g.Rename.Contains(path) {
		return
	}
	if _, inAdd := g.FileAdd.Find(path); inAdd {
		return
	}
	if _, inRemove := g.FileRemove.Find(path); inRemove {
		return
	}
	e.emit(Event{Kind: ModifyKind, Volume: g.Volume, Path: path})
	e.eraseTrace(g, path)
	g.FileModify.NextAvailableItem()
}

// --- 9: check_modify_without_modify_event ---

func (e *Engine) checkModifyWithoutModifyEvent(g *WatchingGroup, all []*WatchingGroup) {
	info, ok := g.FileAdd.Front()
	if !ok {
		g.FileAdd.NextAvailableItem()
		return
	}
	if !e.ripe(info) {
		return
	}
	path := info.Path()
	if e.excluded(info) {
		e.eraseTrace(g, path)
		g.FileAdd.NextAvailableItem()
		return
	}
	if _, inModify := g.FileModify.Find(path); inModify {
		return
	}
	remInfo, inRemove := g.FileRemove.Find(path)
	if !inRemove || !remInfo.CreatedAt().Before(info.CreatedAt()) {
		return
	}
	e.emit(Event{Kind: ModifyKind, Volume: g.Volume, Path: path})
	e.eraseTrace(g, path)
	g.FileAdd.NextAvailableItem()
}

// --- 10: check_copy ---

func (e *Engine) checkCopy(g *WatchingGroup, all []*WatchingGroup) {
	info, ok := g.FileAdd.Front()
	if !ok {
		g.FileAdd.NextAvailableItem()
		return
	}
	if !e.ripe(info) {
		return
	}
	path := info.Path()
	if e.excluded(info) {
		e.eraseTrace(g, path)
		g.FileAdd.NextAvailableItem()
		return
	}
	if g.Rename.Contains(path) {
		return
	}
	if _, inModify := g.FileModify.Find(path); !inModify {
		return
	}
	if _, inRemove := g.FileRemove.Find(path); inRemove {
		return
	}
	base := filepath.Base(path)
	if _, _, found := e.otherVolumeFileRemove(all, g, base); found {
		return
	}
	e.emit(Event{Kind: CopyKind, Volume: g.Volume, Path: path})
	e.eraseTrace(g, path)
	g.FileAdd.NextAvailableItem()
}

// --- 11: check_move ---

func (e *Engine) checkMove(g *WatchingGroup, all []*WatchingGroup) {
	info, ok := g.FileAdd.Front()
	if !ok {
		g.FileAdd.NextAvailableItem()
		return
	}
	if !e.ripe(info) {
		return
	}
	path := info.Path()
	if e.excluded(info) {
		e.eraseTrace(g, path)
		g.FileAdd.NextAvailableItem()
		return
	}
	if _, inRemove := g.FileRemove.Find(path); inRemove {
		return
	}
	base := filepath.Base(path)
	srcInfo, srcGroup, found := e.otherVolumeFileRemove(all, g, base)
	if !found {
		// Nothing in this tick's chain classified it; it parks here
		// until a later tick, or is eventually silently overwritten by
		// queue overflow, per spec.md's failure semantics.
		return
	}
	e.emit(Event{Kind: MoveKind, Volume: g.Volume, Path: srcInfo.Path(), Dest: path})
	e.eraseTrace(g, path)
	srcGroup.FileRemove.Erase(srcInfo.Path())
	g.FileAdd.NextAvailableItem()
}
