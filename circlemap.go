package fileactivity

import (
	"sync"
	"sync/atomic"

	"github.com/dchest/siphash"
)

// numShards splits a BoundedMap's key directory into independent
// sub-directories so insert/find on unrelated keys rarely contend, matching
// the "short and non-blocking for steady-state traffic" requirement without
// a single map-wide mutex.
const numShards = 16

// sipK0/sipK1 are process-local, fixed keys for the siphash used to shard
// the key directory. They only need to distribute keys across shards, not
// resist adversarial input, so a fixed key is fine.
const (
	sipK0 uint64 = 0x9ae16a3b2f90404f
	sipK1 uint64 = 0xc949d7c7509e6557
)

func shardIndex(key string) int {
	h := siphash.Hash(sipK0, sipK1, []byte(key))
	return int(h % uint64(numShards))
}

// minClearThreshold is the floor on how many inserts a map tolerates before
// its key directory is swept, regardless of how small its capacity is.
const minClearThreshold = 10240

type keyShard struct {
	mu   sync.RWMutex
	keys map[string]uint32
}

// BoundedMap is a fixed-capacity, keyed ring buffer: new keys are appended
// at a monotonically advancing push cursor and wrap around to overwrite the
// oldest slot once capacity is exceeded, while a separate pop cursor walks
// occupied slots in insertion order for draining. A background clear
// periodically rebuilds the key directory so it cannot grow without bound
// even though churn on the slots themselves is unbounded.
//
// It backs every one of a WatchingGroup's typed queues; the zero value of V
// (its Valid() would report false were such a method required by callers)
// is never distinguished specially by the map itself — callers that need an
// empty-slot sentinel check Find's second return value.
type BoundedMap[V any] struct {
	capacity       uint32
	clearThreshold uint32

	data   []atomic.Pointer[V]
	shards [numShards]*keyShard

	pushIndex atomic.Uint32
	popIndex  atomic.Uint32
	pushCount atomic.Uint32
	isEmpty   atomic.Bool
	clearing  atomic.Bool

	// clearMu is held for read by every operation and for write only while
	// the key directory is being rebuilt, so readers/writers never observe
	// a half-cleared directory.
	clearMu sync.RWMutex
}

// NewBoundedMap allocates a BoundedMap with room for capacity distinct
// keys. Its key-directory clear threshold is max(capacity, 10240), mirroring
// the original map's clear_map_condition.
func NewBoundedMap[V any](capacity uint32) *BoundedMap[V] {
	if capacity == 0 {
		capacity = 1
	}
	threshold := capacity
	if threshold < minClearThreshold {
		threshold = minClearThreshold
	}
	m := &BoundedMap[V]{
		capacity:       capacity,
		clearThreshold: threshold,
		data:           make([]atomic.Pointer[V], capacity),
	}
	m.isEmpty.Store(true)
	for i := range m.shards {
		m.shards[i] = &keyShard{keys: make(map[string]uint32)}
	}
	return m
}

// Capacity returns the number of slots this map was constructed with.
func (m *BoundedMap[V]) Capacity() uint32 { return m.capacity }

// Empty reports whether the map currently holds no occupied slot. It is a
// hint, not a guarantee under concurrent writers, but is safe to use as a
// fast short-circuit before a scan.
func (m *BoundedMap[V]) Empty() bool { return m.isEmpty.Load() }

func (m *BoundedMap[V]) shardFor(key string) *keyShard { return m.shards[shardIndex(key)] }

// Insert stores value under key, updating it in place if key is already
// present. A brand-new key consumes the next push-cursor slot, silently
// overwriting whatever used to live there once the map is at capacity; a
// stale key directory entry pointing at an overwritten slot is an accepted
// consequence of this overflow behavior, not a bug to special-case.
func (m *BoundedMap[V]) Insert(key string, value V) {
	m.clearMu.RLock()

	sh := m.shardFor(key)

	sh.mu.RLock()
	idx, ok := sh.keys[key]
	sh.mu.RUnlock()

	if ok {
		m.data[idx].Store(&value)
		m.isEmpty.Store(false)
		m.clearMu.RUnlock()
		return
	}

	idx = (m.pushIndex.Add(1) - 1) % m.capacity
	m.data[idx].Store(&value)

	sh.mu.Lock()
	sh.keys[key] = idx
	sh.mu.Unlock()

	m.isEmpty.Store(false)
	needsClear := m.pushCount.Add(1) > m.clearThreshold
	m.clearMu.RUnlock()

	// clear() takes clearMu for write, so it must run only after the read
	// lock above is released — sync.RWMutex is not reentrant. It runs on
	// its own goroutine so the inserting caller does not wait for it.
	if needsClear {
		go m.clear()
	}
}

// Find looks up key directly via the key directory, in O(1) regardless of
// capacity.
func (m *BoundedMap[V]) Find(key string) (V, bool) {
	m.clearMu.RLock()
	defer m.clearMu.RUnlock()

	var zero V
	if m.isEmpty.Load() {
		return zero, false
	}

	sh := m.shardFor(key)
	sh.mu.RLock()
	idx, ok := sh.keys[key]
	sh.mu.RUnlock()
	if !ok {
		return zero, false
	}

	p := m.data[idx].Load()
	if p == nil {
		return zero, false
	}
	return *p, true
}

// FindIf scans occupied slots starting at the pop cursor and returns the
// first value for which pred reports true.
func (m *BoundedMap[V]) FindIf(pred func(V) bool) (V, bool) {
	m.clearMu.RLock()
	defer m.clearMu.RUnlock()

	var zero V
	if m.isEmpty.Load() {
		return zero, false
	}

	start := m.popIndex.Load()
	for i := uint32(0); i < m.capacity; i++ {
		idx := (start + i) % m.capacity
		if p := m.data[idx].Load(); p != nil && pred(*p) {
			return *p, true
		}
	}
	return zero, false
}

// RFindIf scans occupied slots starting at the pop cursor and moving
// backward, returning the first value for which pred reports true.
func (m *BoundedMap[V]) RFindIf(pred func(V) bool) (V, bool) {
	m.clearMu.RLock()
	defer m.clearMu.RUnlock()

	var zero V
	if m.isEmpty.Load() {
		return zero, false
	}

	start := m.popIndex.Load()
	for i := uint32(0); i < m.capacity; i++ {
		idx := (start - i + m.capacity) % m.capacity
		if p := m.data[idx].Load(); p != nil && pred(*p) {
			return *p, true
		}
	}
	return zero, false
}

// LoopAll visits every occupied slot once, starting at the pop cursor and
// moving forward.
func (m *BoundedMap[V]) LoopAll(f func(V)) {
	m.clearMu.RLock()
	defer m.clearMu.RUnlock()

	if m.isEmpty.Load() {
		return
	}
	start := m.popIndex.Load()
	for i := uint32(0); i < m.capacity; i++ {
		idx := (start + i) % m.capacity
		if p := m.data[idx].Load(); p != nil {
			f(*p)
		}
	}
}

// RLoopAll visits every occupied slot once, starting at the pop cursor and
// moving backward.
func (m *BoundedMap[V]) RLoopAll(f func(V)) {
	m.clearMu.RLock()
	defer m.clearMu.RUnlock()

	if m.isEmpty.Load() {
		return
	}
	start := m.popIndex.Load()
	for i := uint32(0); i < m.capacity; i++ {
		idx := (start - i + m.capacity) % m.capacity
		if p := m.data[idx].Load(); p != nil {
			f(*p)
		}
	}
}

// Erase removes key from the map, freeing its slot. Erasing an absent key
// is a no-op.
func (m *BoundedMap[V]) Erase(key string) {
	m.clearMu.RLock()
	defer m.clearMu.RUnlock()

	sh := m.shardFor(key)
	sh.mu.Lock()
	idx, ok := sh.keys[key]
	if ok {
		delete(sh.keys, key)
	}
	sh.mu.Unlock()

	if ok {
		m.data[idx].Store(nil)
	}
}

// Front returns the entry at the current pop cursor, which may be an
// unoccupied slot (second return false).
func (m *BoundedMap[V]) Front() (V, bool) {
	m.clearMu.RLock()
	defer m.clearMu.RUnlock()

	var zero V
	idx := m.popIndex.Load() % m.capacity
	p := m.data[idx].Load()
	if p == nil {
		return zero, false
	}
	return *p, true
}

// NextAvailableItem advances the pop cursor to the next occupied slot,
// wrapping at most once around the ring. If no occupied slot is found the
// map is marked empty and the cursor is left at its pre-advance position
// plus one full revolution.
func (m *BoundedMap[V]) NextAvailableItem() {
	m.clearMu.RLock()
	defer m.clearMu.RUnlock()

	if m.isEmpty.Load() {
		return
	}

	cur := m.popIndex.Load()
	found := false
	var next uint32
	for i := uint32(1); i <= m.capacity; i++ {
		next = (cur + i) % m.capacity
		if m.data[next].Load() != nil {
			found = true
			break
		}
	}
	if !found {
		m.isEmpty.Store(true)
		return
	}
	m.popIndex.Store(next)
}

// clear rebuilds every shard's key directory from the values currently held
// in the slots (values that expose a Key() string method), dropping stale
// entries left behind by overflow, and resets the insert counter that gates
// the next clear. It is safe to call concurrently; only one clear runs at a
// time.
func (m *BoundedMap[V]) clear() {
	if !m.clearing.CompareAndSwap(false, true) {
		return
	}
	defer m.clearing.Store(false)

	m.clearMu.Lock()
	for _, sh := range m.shards {
		sh.mu.Lock()
		sh.keys = make(map[string]uint32)
		sh.mu.Unlock()
	}
	for i := range m.data {
		p := m.data[i].Load()
		if p == nil {
			continue
		}
		if k, ok := any(*p).(interface{ Key() string }); ok {
			sh := m.shardFor(k.Key())
			sh.mu.Lock()
			sh.keys[k.Key()] = uint32(i)
			sh.mu.Unlock()
		}
	}
	m.pushCount.Store(0)
	m.clearMu.Unlock()
}
