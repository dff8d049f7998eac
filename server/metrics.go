package server

import (
	"sync/atomic"
	"time"
)

// loopMetrics counts runs and cumulative duration of one tick loop.
type loopMetrics struct {
	count    int64
	totalNs  int64
	overruns int64
}

func (l *loopMetrics) add(elapsed, budget time.Duration) bool {
	atomic.AddInt64(&l.count, 1)
	atomic.AddInt64(&l.totalNs, elapsed.Nanoseconds())
	if elapsed > budget {
		atomic.AddInt64(&l.overruns, 1)
		return true
	}
	return false
}

func (l *loopMetrics) snapshot() map[string]any {
	n := atomic.LoadInt64(&l.count)
	total := atomic.LoadInt64(&l.totalNs)
	var avgMs float64
	if n > 0 {
		avgMs = float64(total) / float64(n) / 1e6
	}
	return map[string]any{
		"ticks":       n,
		"avg_tick_ms": avgMs,
		"overruns":    atomic.LoadInt64(&l.overruns),
	}
}

// RoomMetrics records runtime counters for one room. Every field is
// updated atomically; the HTTP handler reads them from another goroutine.
type RoomMetrics struct {
	Fast   loopMetrics
	Medium loopMetrics
	Slow   loopMetrics

	IntentsAccepted  int64 // applied to the world
	IntentsMalformed int64 // failed to decode
	IntentsIgnored   int64 // valid but not applicable (no player, cooldown, legacy score)
	InboxFull        int64 // intents dropped because the room inbox was full
	SendsDropped     int64 // frames not queued because a client was slow or gone
	Eliminations     int64
	Connections      int64 // currently attached sessions
	Players          int64 // live players, sampled every medium tick
	Food             int64 // live food, sampled every medium tick
}

func (m *RoomMetrics) IncAccepted() { atomic.AddInt64(&m.IntentsAccepted, 1) }
func (m *RoomMetrics) IncMalformed() { atomic.AddInt64(&m.IntentsMalformed, 1) }
func (m *RoomMetrics) IncIgnored() { atomic.AddInt64(&m.IntentsIgnored, 1) }
func (m *RoomMetrics) IncInboxFull() { atomic.AddInt64(&m.InboxFull, 1) }
func (m *RoomMetrics) IncSendDropped() { atomic.AddInt64(&m.SendsDropped, 1) }
func (m *RoomMetrics) IncEliminations() { atomic.AddInt64(&m.Eliminations, 1) }
func (m *RoomMetrics) AddConnections(d int64) {
	atomic.AddInt64(&m.Connections, d)
}

func (m *RoomMetrics) setPopulation(players, food int) {
	atomic.StoreInt64(&m.Players, int64(players))
	atomic.StoreInt64(&m.Food, int64(food))
}

// Snapshot returns a read-only copy for HTTP output.
func (m *RoomMetrics) Snapshot() map[string]any {
	return map[string]any{
		"fast":              m.Fast.snapshot(),
		"medium":            m.Medium.snapshot(),
		"slow":              m.Slow.snapshot(),
		"intents_accepted":  atomic.LoadInt64(&m.IntentsAccepted),
		"intents_malformed": atomic.LoadInt64(&m.IntentsMalformed),
		"intents_ignored":   atomic.LoadInt64(&m.IntentsIgnored),
		"inbox_full":        atomic.LoadInt64(&m.InboxFull),
		"sends_dropped":     atomic.LoadInt64(&m.SendsDropped),
		"eliminations":      atomic.LoadInt64(&m.Eliminations),
		"connections":       atomic.LoadInt64(&m.Connections),
		"players":           atomic.LoadInt64(&m.Players),
		"food":              atomic.LoadInt64(&m.Food),
	}
}
