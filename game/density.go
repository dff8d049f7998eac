package game

import (
	"math"

	"go.uber.org/zap"
)

func (w *World) spawnFood(pos Vec, origin FoodOrigin) *Food {
	s := &w.settings
	w.nextFood++
	size := s.FoodMinSize + w.rng.Float64()*(s.FoodMaxSize-s.FoodMinSize)
	actual := int(math.Round(size * s.FoodNutritionRatio))
	if actual < 1 {
		actual = 1
	}
	r := size / 2
	f := &Food{
		ID:         w.nextFood,
		Pos:        Vec{clampRange(pos.X, r, s.FieldWidth-r), clampRange(pos.Y, r, s.FieldHeight-r)},
		Size:       size,
		ActualSize: actual,
		Color:      foodColors[w.rng.Intn(len(foodColors))],
		Origin:     origin,
	}
	w.food.add(f)
	w.index.Insert(f)
	if origin == FoodGlobal {
		w.globalFood++
	}
	return f
}

func (w *World) removeFood(id FoodID) bool {
	f, ok := w.food.remove(id)
	if !ok {
		return false
	}
	w.index.Remove(id)
	if f.Origin == FoodGlobal {
		w.globalFood--
	}
	return true
}

func (w *World) randomFieldPoint() Vec {
	return Vec{w.rng.Float64() * w.settings.FieldWidth, w.rng.Float64() * w.settings.FieldHeight}
}

// randomDiscPoint is uniform over the disc (sqrt keeps density even).
func (w *World) randomDiscPoint(center Vec, radius float64) Vec {
	r := radius * math.Sqrt(w.rng.Float64())
	a := w.rng.Float64() * 2 * math.Pi
	return Vec{center.X + r*math.Cos(a), center.Y + r*math.Sin(a)}
}

// maintainDensity recomputes visibility, spawns local food for any player
// seeing fewer than MinFoodDensity items, and retires local food nobody can
// see any more.
func maintainDensity(tc *tickContext) {
	w := tc.w
	s := tc.s
	for _, f := range w.food.items {
		f.Visible = false
	}
	for _, p := range w.roster {
		center := p.Center()
		visible := 0
		w.index.Visit(center, s.ViewDistance, func(id FoodID) {
			if f, ok := w.food.get(id); ok {
				f.Visible = true
				visible++
			}
		})
		deficit := min(s.MinFoodDensity-visible, s.DensitySpawnCap)
		if deficit <= 0 {
			continue
		}
		for i := 0; i < deficit; i++ {
			f := w.spawnFood(w.randomDiscPoint(center, s.ViewDistance*s.LocalSpawnFactor), FoodLocal)
			if f.Pos.DistSq(center) <= s.ViewDistance*s.ViewDistance {
				f.Visible = true
			}
		}
		w.log.Debug("local food spawned",
			zap.String("player", string(p.ID)),
			zap.Int("visible", visible),
			zap.Int("spawned", deficit))
	}

	var stale []FoodID
	for _, f := range w.food.items {
		if f.Origin == FoodLocal && !f.Visible {
			stale = append(stale, f.ID)
		}
	}
	for _, id := range stale {
		w.removeFood(id)
	}
}

// replenish tops global food back up to FoodTarget, uniformly over the field.
func (w *World) replenish(tc *tickContext) {
	missing := tc.s.FoodTarget - w.globalFood
	for i := 0; i < missing; i++ {
		w.spawnFood(w.randomFieldPoint(), FoodGlobal)
	}
	w.pendingRespawn = 0
	if missing > 0 {
		w.log.Debug("food replenished", zap.Int("spawned", missing), zap.Int("total", w.food.len()))
	}
}

// spawnReplacements places food eaten this tick back into the field, capped
// per tick and never above the global target.
func spawnReplacements(tc *tickContext) {
	w := tc.w
	if w.pendingRespawn == 0 {
		return
	}
	n := min(w.pendingRespawn, tc.s.RespawnPerTick, tc.s.FoodTarget-w.globalFood)
	if n <= 0 {
		w.pendingRespawn = 0
		return
	}
	for i := 0; i < n; i++ {
		w.spawnFood(w.randomFieldPoint(), FoodGlobal)
	}
	w.pendingRespawn -= n
}
