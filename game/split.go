package game

import (
	"errors"
	"fmt"
	"math"
)

// ErrSplitCooldown is returned when a split arrives before the cooldown has
// elapsed. The request is dropped, never queued.
var ErrSplitCooldown = errors.New("split on cooldown")

// ApplySplit halves every eligible cell into two cells of equal area. A
// split that changes nothing (no eligible cell) does not start the cooldown.
func (w *World) ApplySplit(id PlayerID) error {
	p, ok := w.players[id]
	if !ok {
		return fmt.Errorf("split %s: %w", id, ErrUnknownPlayer)
	}
	now := w.clock.Now()
	if !p.LastSplit.IsZero() && now.Sub(p.LastSplit) < w.settings.SplitCooldown {
		return fmt.Errorf("split %s: %w", id, ErrSplitCooldown)
	}
	s := &w.settings
	mergeAt := now.Add(s.MergeDelay)
	var born []*Cell
	for _, c := range p.Cells {
		if len(p.Cells)+len(born) >= s.MaxCells {
			break
		}
		if c.Size < s.MinSplitSize {
			continue
		}
		c.Size /= math.Sqrt2
		c.MergeAt = mergeAt
		sib := p.newCell(c.Pos, c.Size)
		sib.Dir = c.Dir
		sib.MergeAt = mergeAt
		sib.Impulse = splitDirection(p, c).Scale(s.SplitSpeed)
		born = append(born, sib)
	}
	if len(born) == 0 {
		return nil
	}
	p.Cells = append(p.Cells, born...)
	p.LastSplit = now
	return nil
}

// splitDirection is the cell's steering, or +x when the player is idle.
func splitDirection(p *Player, c *Cell) Vec {
	if p.Target != nil {
		if d := p.Target.Sub(c.Pos).Normalize(steerEpsilon); !d.IsZero() {
			return d
		}
	}
	if d := c.Dir.Normalize(steerEpsilon); !d.IsZero() {
		return d
	}
	return Vec{X: 1}
}

// mergeCells recombines at most one pair of each player's cells per tick.
func mergeCells(tc *tickContext) {
	for _, p := range tc.w.roster {
		if len(p.Cells) < 2 {
			continue
		}
		ai, bi, ok := findMergePair(tc, p)
		if !ok {
			continue
		}
		a, b := p.Cells[ai], p.Cells[bi]
		ma, mb := a.mass(), b.mass()
		a.Pos = a.Pos.Scale(ma).Add(b.Pos.Scale(mb)).Scale(1 / (ma + mb))
		a.Size = math.Min(tc.s.MaxSize, math.Sqrt(ma+mb))
		a.Impulse = Vec{}
		clampToField(tc.s, a)
		p.Cells = append(p.Cells[:bi], p.Cells[bi+1:]...)
	}
}

func findMergePair(tc *tickContext, p *Player) (int, int, bool) {
	for i, a := range p.Cells {
		if !a.Mergeable(tc.now) {
			continue
		}
		for j := i + 1; j < len(p.Cells); j++ {
			b := p.Cells[j]
			if !b.Mergeable(tc.now) {
				continue
			}
			reach := (a.Size + b.Size) * 0.5
			if a.Pos.DistSq(b.Pos) <= reach*reach {
				return i, j, true
			}
		}
	}
	return 0, 0, false
}
