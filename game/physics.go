package game

import (
	"math"
	"math/rand"
	"time"
)

const (
	steerEpsilon   = 1e-3
	impulseEpsilon = 0.05
	targetDeadzone = 1.0
)

// tickContext is the explicit per-pass state handed to every stage.
type tickContext struct {
	now  time.Time
	dtMs float64
	s    *Settings
	w    *World
	rng  *rand.Rand
}

func (w *World) newTickContext(dt time.Duration) *tickContext {
	return &tickContext{
		now:  w.clock.Now(),
		dtMs: float64(dt) / float64(time.Millisecond),
		s:    &w.settings,
		w:    w,
		rng:  w.rng,
	}
}

// sizeDamping scales speed down as cells grow.
func sizeDamping(s *Settings, size float64) float64 {
	if size <= s.InitialSize {
		return 1
	}
	return math.Sqrt(s.InitialSize / size)
}

// cellStep is the steering displacement length for one tick, bounded to
// [MinSpeed, MaxSpeed].
func cellStep(s *Settings, size, dtMs float64) float64 {
	step := s.SpeedFactor * sizeDamping(s, size) * dtMs
	return math.Max(s.MinSpeed, math.Min(s.MaxSpeed, step))
}

func decaySizes(tc *tickContext) {
	if tc.s.DecayRate == 0 || tc.dtMs == 0 {
		return
	}
	keep := 1 - tc.s.DecayRate*tc.dtMs/1000
	for _, p := range tc.w.roster {
		for _, c := range p.Cells {
			if c.Size > tc.s.DecayMinSize {
				c.Size = math.Max(tc.s.DecayMinSize, c.Size*keep)
			}
		}
	}
}

// stepPhysics moves every cell by its steering and residual impulse, then
// clamps it into the field.
func stepPhysics(tc *tickContext) {
	for _, p := range tc.w.roster {
		for _, c := range p.Cells {
			dir := c.Dir
			if p.Target != nil {
				to := p.Target.Sub(c.Pos)
				if to.Len() < targetDeadzone {
					dir = Vec{}
				} else {
					dir = to.Normalize(0)
				}
				c.Dir = dir
			}
			if !dir.IsZero() && tc.dtMs > 0 {
				step := cellStep(tc.s, c.Size, tc.dtMs)
				if p.Target != nil {
					// do not overshoot the target point
					step = math.Min(step, p.Target.Sub(c.Pos).Len())
				}
				c.Pos = c.Pos.Add(dir.Scale(step))
			}
			if !c.Impulse.IsZero() {
				c.Pos = c.Pos.Add(c.Impulse)
				c.Impulse = c.Impulse.Scale(tc.s.ImpulseDecay)
				if c.Impulse.Len() < impulseEpsilon {
					c.Impulse = Vec{}
				}
			}
			clampToField(tc.s, c)
		}
	}
}

func clampToField(s *Settings, c *Cell) {
	r := c.Radius()
	c.Pos.X = clampRange(c.Pos.X, r, s.FieldWidth-r)
	c.Pos.Y = clampRange(c.Pos.Y, r, s.FieldHeight-r)
}

func clampRange(v, lo, hi float64) float64 {
	if lo > hi {
		return (lo + hi) / 2
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
