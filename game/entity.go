package game

import (
	"math"
	"time"
)

// PlayerID identifies a player for the lifetime of its session.
type PlayerID string

// CellID is unique within one player.
type CellID uint32

// FoodID is unique within one World.
type FoodID uint64

// Vec is a point or displacement in field coordinates.
type Vec struct {
	X, Y float64
}

func (v Vec) Add(o Vec) Vec { return Vec{v.X + o.X, v.Y + o.Y} }
func (v Vec) Sub(o Vec) Vec { return Vec{v.X - o.X, v.Y - o.Y} }
func (v Vec) Scale(k float64) Vec { return Vec{v.X * k, v.Y * k} }
func (v Vec) LenSq() float64 { return v.X*v.X + v.Y*v.Y }
func (v Vec) Len() float64 { return math.Sqrt(v.LenSq()) }
func (v Vec) IsZero() bool { return v.X == 0 && v.Y == 0 }
func (v Vec) DistSq(o Vec) float64 { return v.Sub(o).LenSq() }

// Normalize returns a unit vector, or zero when v is shorter than eps.
func (v Vec) Normalize(eps float64) Vec {
	l := v.Len()
	if l < eps {
		return Vec{}
	}
	return Vec{v.X / l, v.Y / l}
}

// Cell is one circular mass unit owned by a player.
type Cell struct {
	ID      CellID
	Pos     Vec
	Size    float64 // diameter
	Dir     Vec     // steering, |Dir| <= 1
	Impulse Vec     // residual split velocity, px per tick
	MergeAt time.Time
}

// Radius is the collision radius.
func (c *Cell) Radius() float64 { return c.Size / 2 }

func (c *Cell) mass() float64 { return c.Size * c.Size }

// Mergeable reports whether the cell's merge lock has expired.
func (c *Cell) Mergeable(now time.Time) bool { return !now.Before(c.MergeAt) }

// Player is one participant and the cells it controls.
type Player struct {
	ID        PlayerID
	Name      string
	Cells     []*Cell
	Score     int
	LastSplit time.Time

	// Target, when set, overrides Dir: every cell steers toward it each tick.
	Target *Vec

	nextCell CellID
}

func (p *Player) newCell(pos Vec, size float64) *Cell {
	p.nextCell++
	return &Cell{ID: p.nextCell, Pos: pos, Size: size}
}

// Center is the mass-weighted centroid of the player's cells.
func (p *Player) Center() Vec {
	var sum Vec
	var mass float64
	for _, c := range p.Cells {
		m := c.mass()
		sum = sum.Add(c.Pos.Scale(m))
		mass += m
	}
	if mass == 0 {
		return Vec{}
	}
	return sum.Scale(1 / mass)
}

// TotalSize is the area-equivalent size of all cells combined.
func (p *Player) TotalSize() float64 {
	var mass float64
	for _, c := range p.Cells {
		mass += c.mass()
	}
	return math.Sqrt(mass)
}

func (p *Player) cell(id CellID) *Cell {
	for _, c := range p.Cells {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// FoodOrigin records which pass placed a food item.
type FoodOrigin uint8

const (
	// FoodGlobal is placed field-wide and lives until eaten.
	FoodGlobal FoodOrigin = iota
	// FoodLocal is placed near a player and retired once nobody can see it.
	FoodLocal
)

// Food is a static pellet.
type Food struct {
	ID         FoodID
	Pos        Vec
	Size       float64 // visual diameter, used for collision
	ActualSize int     // nutrition, added to score
	Color      string
	Origin     FoodOrigin
	Visible    bool
}

// Radius is the collision radius.
func (f *Food) Radius() float64 { return f.Size / 2 }

var foodColors = []string{"#FFB3BA", "#FFDFBA", "#FFFFBA", "#BAFFC9", "#BAE1FF", "#FFC6FF"}

// foodArena stores food densely; removal swaps the last element into the hole.
type foodArena struct {
	items []*Food
	index map[FoodID]int
}

func newFoodArena() *foodArena {
	return &foodArena{index: make(map[FoodID]int)}
}

func (a *foodArena) add(f *Food) {
	a.index[f.ID] = len(a.items)
	a.items = append(a.items, f)
}

func (a *foodArena) get(id FoodID) (*Food, bool) {
	i, ok := a.index[id]
	if !ok {
		return nil, false
	}
	return a.items[i], true
}

func (a *foodArena) remove(id FoodID) (*Food, bool) {
	i, ok := a.index[id]
	if !ok {
		return nil, false
	}
	f := a.items[i]
	last := len(a.items) - 1
	if i != last {
		a.items[i] = a.items[last]
		a.index[a.items[i].ID] = i
	}
	a.items[last] = nil
	a.items = a.items[:last]
	delete(a.index, id)
	return f, true
}

func (a *foodArena) len() int { return len(a.items) }
