package game

import "math"

type indexEntry struct {
	id  FoodID
	pos Vec
}

type indexSlot struct {
	cell int
	pos  int
}

// FoodIndex is a uniform grid over the field mapping grid cell to the food
// inside it. Food never moves, so an item stays in the bucket computed at
// insert time until it is removed.
type FoodIndex struct {
	cellSize float64
	cols     int
	rows     int
	buckets  [][]indexEntry
	slots    map[FoodID]indexSlot
}

// NewFoodIndex covers a width×height field with square buckets of cellSize.
func NewFoodIndex(width, height, cellSize float64) *FoodIndex {
	cols := int(math.Ceil(width/cellSize)) + 1
	rows := int(math.Ceil(height/cellSize)) + 1
	return &FoodIndex{
		cellSize: cellSize,
		cols:     cols,
		rows:     rows,
		buckets:  make([][]indexEntry, cols*rows),
		slots:    make(map[FoodID]indexSlot),
	}
}

func (g *FoodIndex) clampCol(x float64) int {
	c := int(math.Floor(x / g.cellSize))
	if c < 0 {
		return 0
	}
	if c >= g.cols {
		return g.cols - 1
	}
	return c
}

func (g *FoodIndex) clampRow(y float64) int {
	r := int(math.Floor(y / g.cellSize))
	if r < 0 {
		return 0
	}
	if r >= g.rows {
		return g.rows - 1
	}
	return r
}

// Insert adds f. Re-inserting a live id first removes the old entry.
func (g *FoodIndex) Insert(f *Food) {
	if _, ok := g.slots[f.ID]; ok {
		g.Remove(f.ID)
	}
	cell := g.clampRow(f.Pos.Y)*g.cols + g.clampCol(f.Pos.X)
	g.slots[f.ID] = indexSlot{cell: cell, pos: len(g.buckets[cell])}
	g.buckets[cell] = append(g.buckets[cell], indexEntry{id: f.ID, pos: f.Pos})
}

// Remove drops id from its bucket in O(1). Unknown ids are ignored.
func (g *FoodIndex) Remove(id FoodID) bool {
	s, ok := g.slots[id]
	if !ok {
		return false
	}
	b := g.buckets[s.cell]
	last := len(b) - 1
	if s.pos != last {
		b[s.pos] = b[last]
		moved := g.slots[b[s.pos].id]
		moved.pos = s.pos
		g.slots[b[s.pos].id] = moved
	}
	g.buckets[s.cell] = b[:last]
	delete(g.slots, id)
	return true
}

// Contains reports whether id is indexed.
func (g *FoodIndex) Contains(id FoodID) bool {
	_, ok := g.slots[id]
	return ok
}

// Len is the number of indexed items.
func (g *FoodIndex) Len() int { return len(g.slots) }

// Visit calls fn for every item whose position lies within radius of p. Only
// the buckets covering the circle's bounding box are scanned. fn must not
// mutate the index.
func (g *FoodIndex) Visit(p Vec, radius float64, fn func(id FoodID)) {
	if radius < 0 {
		return
	}
	r2 := radius * radius
	minC, maxC := g.clampCol(p.X-radius), g.clampCol(p.X+radius)
	minR, maxR := g.clampRow(p.Y-radius), g.clampRow(p.Y+radius)
	for row := minR; row <= maxR; row++ {
		for col := minC; col <= maxC; col++ {
			for _, e := range g.buckets[row*g.cols+col] {
				if e.pos.DistSq(p) <= r2 {
					fn(e.id)
				}
			}
		}
	}
}

// QueryRadius returns the ids within radius of p.
func (g *FoodIndex) QueryRadius(p Vec, radius float64) []FoodID {
	var out []FoodID
	g.Visit(p, radius, func(id FoodID) { out = append(out, id) })
	return out
}

// CountRadius counts the ids within radius of p without allocating.
func (g *FoodIndex) CountRadius(p Vec, radius float64) int {
	n := 0
	g.Visit(p, radius, func(FoodID) { n++ })
	return n
}
