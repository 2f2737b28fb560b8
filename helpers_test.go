package fileactivity

import "time"

// fixedNow is an arbitrary, stable reference instant used across tests so
// NotifyInfo/Event timestamps are deterministic without touching the real
// clock.
var fixedNow = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// newTestEngine builds an Engine whose clock is a mutable pointer so a test
// can advance it past DelayProcess/StabilityWindow without a real sleep.
func newTestEngine(cfg EngineConfig, clock *time.Time) (*Engine, *[]Event) {
	var events []Event
	e := NewEngine(cfg, func(ev Event) { events = append(events, ev) }, nil)
	e.now = func() time.Time { return *clock }
	return e, &events
}

func push(g *BoundedMap[NotifyInfo], path string, action RawAction, at time.Time) {
	g.Insert(path, NewNotifyInfo(path, action, at))
}
