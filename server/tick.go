package server

import (
	"time"

	"go.uber.org/zap"

	"cellarena/protocol"
)

// StartTicker launches the room goroutine. Three tickers drive the world:
// fast (collisions), medium (density and broadcast) and slow (replenish).
// Every tick first applies the commands queued since the previous one.
func (r *Room) StartTicker() {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	go r.run()
}

func (r *Room) run() {
	defer close(r.done)
	fast := time.NewTicker(r.cfg.FastEvery)
	defer fast.Stop()
	medium := time.NewTicker(r.cfg.MediumEvery)
	defer medium.Stop()
	slow := time.NewTicker(r.cfg.SlowEvery)
	defer slow.Stop()

	r.log.Info("room started",
		zap.Duration("fast", r.cfg.FastEvery),
		zap.Duration("medium", r.cfg.MediumEvery),
		zap.Duration("slow", r.cfg.SlowEvery))

	for {
		select {
		case <-r.quit:
			r.closeErr = r.shutdown()
			return
		case <-fast.C:
			r.timed(&r.metrics.Fast, "fast", r.cfg.FastEvery, r.fastTick)
		case <-medium.C:
			r.timed(&r.metrics.Medium, "medium", r.cfg.MediumEvery, r.mediumTick)
		case <-slow.C:
			r.timed(&r.metrics.Slow, "slow", r.cfg.SlowEvery, r.slowTick)
		}
	}
}

func (r *Room) timed(m *loopMetrics, loop string, budget time.Duration, tick func()) {
	start := time.Now()
	r.drain()
	tick()
	if elapsed := time.Since(start); m.add(elapsed, budget) {
		r.log.Warn("tick overrun", zap.String("loop", loop), zap.Duration("elapsed", elapsed), zap.Duration("budget", budget))
	}
}

// fastTick advances the simulation and notifies eliminated sessions. The
// session stays attached and may join again.
func (r *Room) fastTick() {
	r.world.FastTick(r.cfg.FastEvery)
	for _, e := range r.world.DrainEliminations() {
		r.metrics.IncEliminations()
		s, ok := r.byPlayer[e.PlayerID]
		if !ok {
			continue
		}
		delete(r.byPlayer, e.PlayerID)
		s.player = ""
		r.send(s, protocol.NewPlayerDeath(e))
	}
}

// mediumTick maintains density, then sends the leaderboard and player state
// to everyone, and each joined session the food it can see.
func (r *Room) mediumTick() {
	r.world.MediumTick()
	r.broadcast(protocol.NewLeaderboard(r.world.LeaderboardTop(r.cfg.Settings.LeaderboardSize)))
	r.broadcast(protocol.NewPlayerUpdate(r.world.Players()))
	for _, s := range r.sessions {
		if s.joined() {
			r.send(s, protocol.NewFoodUpdate(r.world.VisibleFood(s.player)))
		}
	}
	r.metrics.setPopulation(r.world.PlayerCount(), r.world.FoodCount())
}

func (r *Room) slowTick() {
	r.world.SlowTick()
}
