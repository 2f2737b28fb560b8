package fileactivity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ManagerConfig tunes a Manager's engine timing, exclusion policy and
// queue sizing.
type ManagerConfig struct {
	Interval        time.Duration
	DelayProcess    time.Duration
	StabilityWindow time.Duration
	QueueCapacity   uint32
	ExcludePrefixes []string
	ExcludeAppData  bool
	Recursive       bool
	RecentCapacity  int
	Logger          *slog.Logger
}

const defaultRecentCapacity = 256

// Manager owns the full fleet for a process: it enumerates volumes, starts
// one VolumeWatcher per volume feeding a shared correlation Engine, and
// exposes start/stop/rule/sink control (C8).
type Manager struct {
	cfg    ManagerConfig
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	sink     Sink
	rule     Rule
	engine   *Engine
	watchers []*VolumeWatcher
	recent   *ringBuffer
	cancel   context.CancelFunc
}

// NewManager constructs a Manager with the given configuration, applying
// defaults to zero fields.
func NewManager(cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RecentCapacity <= 0 {
		cfg.RecentCapacity = defaultRecentCapacity
	}
	if cfg.QueueCapacity == 0 {
		cfg.QueueCapacity = DefaultQueueCapacity
	}
	return &Manager{
		cfg:    cfg,
		logger: logger,
		recent: newRingBuffer(cfg.RecentCapacity),
	}
}

// SetSink installs the Event sink new events are delivered to. Safe to
// call before or after Start; the sink is looked up for every event, so a
// change takes effect with the next event delivered.
func (m *Manager) SetSink(sink Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sink = sink
}

// SetRule installs an additional exclusion rule, combined with the
// manager's configured prefix/app-data exclusions. Safe to call before or
// after Start; takes effect on the next Start.
func (m *Manager) SetRule(rule Rule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rule = rule
}

// Start enumerates volumes and begins watching every one that
// successfully subscribes, classifying their raw edits against a shared
// correlation engine. Calling Start while already running returns
// ErrAlreadyRunning.
func (m *Manager) Start(ctx context.Context, flags NotifyFlags, subtree bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return ErrAlreadyRunning
	}
	if flags == 0 {
		return ErrInvalidFlags
	}

	volumes, err := EnumerateVolumes()
	if err != nil {
		return fmt.Errorf("fileactivity: enumerate volumes: %w", err)
	}
	if len(volumes) == 0 {
		return ErrNoVolumes
	}

	exclude := CombineRules(m.rule, PrefixRule(m.cfg.ExcludePrefixes...))
	if m.cfg.ExcludeAppData {
		exclude = CombineRules(exclude, AppDataRule())
	}

	engineCfg := EngineConfig{
		Interval:        m.cfg.Interval,
		DelayProcess:    m.cfg.DelayProcess,
		StabilityWindow: m.cfg.StabilityWindow,
		IsOpen:          DefaultIsOpen,
		Exclude:         exclude,
	}
	m.engine = NewEngine(engineCfg, m.recordingSink(), m.logger)

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	var started []*VolumeWatcher
	for _, v := range volumes {
		group := NewWatchingGroup(v.Root, m.cfg.QueueCapacity)
		driver, err := newFsnotifyDriver()
		if err != nil {
			m.logger.Warn("skip volume: driver init failed", "volume", v.Root, "error", err)
			continue
		}
		vw := NewVolumeWatcher(v.Root, driver, group, exclude, subtree, flags, m.logger)
		if err := vw.Start(runCtx); err != nil {
			m.logger.Warn("skip volume: start failed", "volume", v.Root, "error", err)
			driver.Close()
			continue
		}
		m.engine.Register(group)
		started = append(started, vw)
	}
	if len(started) == 0 {
		cancel()
		return ErrNoVolumes
	}

	m.watchers = started
	go m.engine.Run(runCtx)
	m.running = true
	return nil
}

// Stop cancels every volume watcher and the engine loop, and blocks until
// they have released their kernel subscriptions. Calling Stop when not
// running is a no-op.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	if m.cancel != nil {
		m.cancel()
	}
	for _, w := range m.watchers {
		if err := w.Stop(); err != nil {
			m.logger.Warn("volume watcher stop failed", "volume", w.Volume, "error", err)
		}
	}
	m.watchers = nil
	m.engine = nil
	m.running = false
}

// Volumes returns the roots currently being watched.
func (m *Manager) Volumes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.watchers))
	for i, w := range m.watchers {
		out[i] = w.Volume
	}
	return out
}

// Groups returns the WatchingGroup backing each currently watched volume,
// for diagnostics or direct inspection.
func (m *Manager) Groups() []*WatchingGroup {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.engine == nil {
		return nil
	}
	m.engine.mu.Lock()
	defer m.engine.mu.Unlock()
	return append([]*WatchingGroup(nil), m.engine.groups...)
}

// DumpDiagnostics writes a point-in-time queue-occupancy snapshot for
// every watched volume to path.
func (m *Manager) DumpDiagnostics(path string) error {
	return DumpDiagnostics(path, m.Groups(), time.Now())
}

// RecentEvents returns a snapshot of the most recently emitted events, up
// to the manager's configured RecentCapacity, oldest first.
func (m *Manager) RecentEvents() []Event { return m.recent.Snapshot() }

func (m *Manager) recordingSink() Sink {
	return func(e Event) {
		m.recent.Add(e)
		m.mu.Lock()
		user := m.sink
		m.mu.Unlock()
		if user != nil {
			user(e)
		} else {
			LogSink(m.logger)(e)
		}
	}
}

// ringBuffer is a small fixed-capacity, oldest-overwritten event buffer
// backing Manager.RecentEvents.
type ringBuffer struct {
	mu   sync.Mutex
	buf  []Event
	pos  int
	full bool
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity <= 0 {
		capacity = defaultRecentCapacity
	}
	return &ringBuffer{buf: make([]Event, capacity)}
}

func (r *ringBuffer) Add(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.pos] = e
	r.pos = (r.pos + 1) % len(r.buf)
	if r.pos == 0 {
		r.full = true
	}
}

func (r *ringBuffer) Snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		return append([]Event(nil), r.buf[:r.pos]...)
	}
	out := make([]Event, 0, len(r.buf))
	out = append(out, r.buf[r.pos:]...)
	out = append(out, r.buf[:r.pos]...)
	return out
}
