package game

import (
	"math/rand"
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// newTestWorld builds an empty, deterministic world. FoodTarget defaults to
// zero so that replacement spawns do not interfere with counts.
func newTestWorld(t *testing.T, tweak func(*Settings)) (*World, *ManualClock) {
	t.Helper()
	s := DefaultSettings()
	s.FoodTarget = 0
	s.DecayRate = 0
	if tweak != nil {
		tweak(&s)
	}
	clock := NewManualClock(epoch)
	w, err := New(s, WithClock(clock), WithRand(rand.New(rand.NewSource(1))), WithoutInitialFood())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w, clock
}

// placePlayer adds a player whose single cell sits at pos with the given size.
func placePlayer(t *testing.T, w *World, name string, pos Vec, size float64) *Player {
	t.Helper()
	id := w.AddPlayer(name)
	p, ok := w.Player(id)
	if !ok {
		t.Fatalf("player %q missing right after join", name)
	}
	p.Cells[0].Pos = pos
	p.Cells[0].Size = size
	return p
}

func placeFood(w *World, pos Vec, size float64, actual int) *Food {
	f := w.spawnFood(pos, FoodGlobal)
	w.index.Remove(f.ID)
	f.Pos = pos
	f.Size = size
	f.ActualSize = actual
	w.index.Insert(f)
	return f
}

func approx(a, b, tol float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}
