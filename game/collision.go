package game

import (
	"cmp"
	"math"
	"slices"

	"go.uber.org/zap"
)

func overlaps(a Vec, ra float64, b Vec, rb float64) bool {
	r := ra + rb
	return a.DistSq(b) <= r*r
}

// growFromFood adds nutrition to a cell, tapering to zero at MaxSize.
func growFromFood(s *Settings, size float64, actual int) float64 {
	taper := 1 - size/s.MaxSize
	if taper < 0 {
		taper = 0
	}
	return math.Min(s.MaxSize, size+float64(actual)/s.GrowthDivisor*taper)
}

// absorb combines two cells area-wise, keeping size roughly ∝ √mass.
func absorb(s *Settings, eater, victim float64) float64 {
	return math.Min(s.MaxSize, math.Sqrt(eater*eater+victim*victim*s.AbsorbRetention))
}

// consumeFood lets every cell eat the food it overlaps.
func consumeFood(tc *tickContext) {
	w := tc.w
	reach := tc.s.MaxFoodRadius()
	var candidates []FoodID
	for _, p := range w.roster {
		for _, c := range p.Cells {
			candidates = candidates[:0]
			w.index.Visit(c.Pos, c.Radius()+reach, func(id FoodID) {
				candidates = append(candidates, id)
			})
			for _, id := range candidates {
				f, ok := w.food.get(id)
				if !ok || !overlaps(c.Pos, c.Radius(), f.Pos, f.Radius()) {
					continue
				}
				p.Score += f.ActualSize
				c.Size = growFromFood(tc.s, c.Size, f.ActualSize)
				w.removeFood(id)
				if f.Origin == FoodGlobal {
					w.pendingRespawn++
				}
			}
		}
	}
}

type cellRef struct {
	p *Player
	c *Cell
}

// canEat is the single consumption rule: the eater must be larger by the
// threshold and its radius must cover the victim's center.
func canEat(s *Settings, eater, victim *Cell) bool {
	if eater.Size <= victim.Size*(1+s.EatThreshold) {
		return false
	}
	r := eater.Radius()
	return eater.Pos.DistSq(victim.Pos) <= r*r
}

// consumePlayers resolves cell-vs-cell consumption across players. The scan
// only marks victims; cell lists are rebuilt afterwards.
func consumePlayers(tc *tickContext) {
	w := tc.w
	var refs []cellRef
	alive := make(map[PlayerID]int, len(w.roster))
	for _, p := range w.roster {
		alive[p.ID] = len(p.Cells)
		for _, c := range p.Cells {
			refs = append(refs, cellRef{p: p, c: c})
		}
	}
	if len(refs) < 2 {
		return
	}
	// sweep along x: a pair can only interact if their x extents overlap
	slices.SortFunc(refs, func(a, b cellRef) int {
		return cmp.Compare(a.c.Pos.X-a.c.Radius(), b.c.Pos.X-b.c.Radius())
	})

	removed := make(map[*Cell]bool)
	var dead []Elimination
	eat := func(eater, victim cellRef) {
		s := victim.p.Score
		gain := s / alive[victim.p.ID]
		eater.p.Score += gain
		victim.p.Score -= gain
		eater.c.Size = absorb(tc.s, eater.c.Size, victim.c.Size)
		removed[victim.c] = true
		alive[victim.p.ID]--
		if alive[victim.p.ID] == 0 {
			dead = append(dead, Elimination{
				PlayerID:   victim.p.ID,
				Name:       victim.p.Name,
				FinalScore: s,
				EatenBy:    eater.p.ID,
				Reason:     ReasonEaten,
			})
		}
	}

	for i := range refs {
		a := refs[i]
		for j := i + 1; j < len(refs); j++ {
			if removed[a.c] {
				break
			}
			b := refs[j]
			if b.c.Pos.X-b.c.Radius() > a.c.Pos.X+a.c.Radius() {
				break
			}
			if a.p == b.p || removed[b.c] {
				continue
			}
			switch {
			case canEat(tc.s, a.c, b.c):
				eat(a, b)
			case canEat(tc.s, b.c, a.c):
				eat(b, a)
			}
		}
	}
	if len(removed) == 0 {
		return
	}

	for _, p := range w.roster {
		if alive[p.ID] < len(p.Cells) {
			p.Cells = slices.DeleteFunc(p.Cells, func(c *Cell) bool { return removed[c] })
		}
	}
	for _, e := range dead {
		w.eliminate(e)
	}
}

func (w *World) eliminate(e Elimination) {
	w.dropPlayer(e.PlayerID)
	w.eliminations = append(w.eliminations, e)
	w.log.Info("player eliminated",
		zap.String("player", string(e.PlayerID)),
		zap.String("name", e.Name),
		zap.Int("finalScore", e.FinalScore),
		zap.String("eatenBy", string(e.EatenBy)),
		zap.String("reason", string(e.Reason)))
}

// guardInvariants removes any player whose state can no longer be trusted,
// so one corrupt entity cannot stall the shared tick.
func (w *World) guardInvariants() {
	var bad []Elimination
	for _, p := range w.roster {
		if len(p.Cells) == 0 {
			bad = append(bad, Elimination{PlayerID: p.ID, Name: p.Name, FinalScore: p.Score, Reason: ReasonInvariant})
			continue
		}
		for _, c := range p.Cells {
			if !finite(c.Pos.X) || !finite(c.Pos.Y) || !finite(c.Size) || c.Size <= 0 {
				w.log.Warn("corrupt cell, removing player",
					zap.String("player", string(p.ID)),
					zap.Uint32("cell", uint32(c.ID)),
					zap.Float64("size", c.Size))
				bad = append(bad, Elimination{PlayerID: p.ID, Name: p.Name, FinalScore: p.Score, Reason: ReasonInvariant})
				break
			}
		}
	}
	for _, e := range bad {
		w.eliminate(e)
	}
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
