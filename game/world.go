// Package game is the authoritative arena simulation: players made of one or
// more cells, static food, and the fixed-rate stages that advance them.
//
// A World is not safe for concurrent use. The owner (one goroutine) applies
// intents between ticks and calls FastTick, MediumTick and SlowTick at their
// own rates; no stage ever observes another stage half finished.
package game

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrUnknownPlayer is returned for intents addressed to a player that is not
// (or no longer) in the arena.
var ErrUnknownPlayer = errors.New("unknown player")

// MaxNameLen bounds display names, in runes.
const MaxNameLen = 16

// Reason says why a player left the arena involuntarily.
type Reason string

const (
	ReasonEaten     Reason = "eaten"
	ReasonInvariant Reason = "invariant"
)

// Elimination is queued when a player loses its last cell.
type Elimination struct {
	PlayerID   PlayerID
	Name       string
	FinalScore int
	EatenBy    PlayerID
	Reason     Reason
}

// LeaderboardEntry is a read-only projection of one player.
type LeaderboardEntry struct {
	ID    PlayerID
	Name  string
	Score int
}

// Option customises a World.
type Option func(*World)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option { return func(w *World) { w.clock = c } }

// WithRand replaces the random source used for spawns and colors.
func WithRand(r *rand.Rand) Option { return func(w *World) { w.rng = r } }

// WithLogger attaches a logger; the default discards everything.
func WithLogger(l *zap.Logger) Option { return func(w *World) { w.log = l } }

// WithoutInitialFood skips seeding the field at construction.
func WithoutInitialFood() Option { return func(w *World) { w.seedFood = false } }

// World is the single source of truth for one arena.
type World struct {
	settings Settings
	clock    Clock
	rng      *rand.Rand
	log      *zap.Logger
	seedFood bool

	players map[PlayerID]*Player
	roster  []*Player // join order, for stable iteration
	joined  int

	food       *foodArena
	index      *FoodIndex
	nextFood   FoodID
	globalFood int

	pendingRespawn int
	eliminations   []Elimination

	leaderboard []LeaderboardEntry
	lbDirty     bool
}

// New builds a World and seeds it with food up to the target count.
func New(settings Settings, opts ...Option) (*World, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	w := &World{
		settings: settings,
		clock:    systemClock{},
		log:      zap.NewNop(),
		seedFood: true,
		players:  make(map[PlayerID]*Player),
		food:     newFoodArena(),
		index:    NewFoodIndex(settings.FieldWidth, settings.FieldHeight, settings.GridCellSize),
		lbDirty:  true,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.rng == nil {
		w.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if w.seedFood {
		w.replenish(w.newTickContext(0))
	}
	return w, nil
}

// Settings returns the immutable tunables.
func (w *World) Settings() Settings { return w.settings }

// Now is the world's clock reading.
func (w *World) Now() time.Time { return w.clock.Now() }

// AddPlayer spawns a player with one cell at a random position.
func (w *World) AddPlayer(name string) PlayerID {
	w.joined++
	name = sanitizeName(name)
	if name == "" {
		name = fmt.Sprintf("Player %d", w.joined)
	}
	p := &Player{ID: PlayerID(uuid.NewString()), Name: name}
	r := w.settings.InitialSize / 2
	pos := Vec{
		X: r + w.rng.Float64()*(w.settings.FieldWidth-2*r),
		Y: r + w.rng.Float64()*(w.settings.FieldHeight-2*r),
	}
	p.Cells = append(p.Cells, p.newCell(pos, w.settings.InitialSize))
	w.players[p.ID] = p
	w.roster = append(w.roster, p)
	w.lbDirty = true
	w.log.Info("player joined", zap.String("player", string(p.ID)), zap.String("name", name))
	return p.ID
}

// RemovePlayer drops a player and all of its cells immediately.
func (w *World) RemovePlayer(id PlayerID) error {
	if _, ok := w.players[id]; !ok {
		return fmt.Errorf("remove %s: %w", id, ErrUnknownPlayer)
	}
	w.dropPlayer(id)
	w.log.Info("player removed", zap.String("player", string(id)))
	return nil
}

func (w *World) dropPlayer(id PlayerID) {
	delete(w.players, id)
	w.roster = slices.DeleteFunc(w.roster, func(p *Player) bool { return p.ID == id })
	w.lbDirty = true
}

// ApplyIntent sets the steering direction of every cell. Vectors longer than
// one are normalised; near-zero vectors stop the player.
func (w *World) ApplyIntent(id PlayerID, dir Vec) error {
	p, ok := w.players[id]
	if !ok {
		return fmt.Errorf("move %s: %w", id, ErrUnknownPlayer)
	}
	if dir.LenSq() > 1 {
		dir = dir.Normalize(0)
	} else if dir.LenSq() < steerEpsilon*steerEpsilon {
		dir = Vec{}
	}
	p.Target = nil
	for _, c := range p.Cells {
		c.Dir = dir
	}
	return nil
}

// ApplyTarget steers every cell toward a point in field coordinates.
func (w *World) ApplyTarget(id PlayerID, target Vec) error {
	p, ok := w.players[id]
	if !ok {
		return fmt.Errorf("target %s: %w", id, ErrUnknownPlayer)
	}
	t := target
	p.Target = &t
	return nil
}

// Player looks up a live player.
func (w *World) Player(id PlayerID) (*Player, bool) {
	p, ok := w.players[id]
	return p, ok
}

// Players lists live players in join order.
func (w *World) Players() []*Player { return slices.Clone(w.roster) }

// PlayerCount is the number of live players.
func (w *World) PlayerCount() int { return len(w.roster) }

// Food lists every live food item.
func (w *World) Food() []*Food { return slices.Clone(w.food.items) }

// FoodCount is the number of live food items.
func (w *World) FoodCount() int { return w.food.len() }

// FoodByID looks up a live food item.
func (w *World) FoodByID(id FoodID) (*Food, bool) { return w.food.get(id) }

// Index exposes the spatial index for read-only queries.
func (w *World) Index() *FoodIndex { return w.index }

// VisibleFood returns the food within view distance of the player's centroid
// and marks it visible.
func (w *World) VisibleFood(id PlayerID) []*Food {
	p, ok := w.players[id]
	if !ok {
		return nil
	}
	var out []*Food
	w.index.Visit(p.Center(), w.settings.ViewDistance, func(fid FoodID) {
		if f, ok := w.food.get(fid); ok {
			f.Visible = true
			out = append(out, f)
		}
	})
	return out
}

// DrainEliminations returns and clears the queued eliminations.
func (w *World) DrainEliminations() []Elimination {
	out := w.eliminations
	w.eliminations = nil
	return out
}

// LeaderboardTop returns up to n players by score, highest first.
func (w *World) LeaderboardTop(n int) []LeaderboardEntry {
	if w.lbDirty {
		w.recomputeLeaderboard()
	}
	if n > len(w.leaderboard) {
		n = len(w.leaderboard)
	}
	if n < 0 {
		n = 0
	}
	return slices.Clone(w.leaderboard[:n])
}

func (w *World) recomputeLeaderboard() {
	entries := make([]LeaderboardEntry, 0, len(w.roster))
	for _, p := range w.roster {
		entries = append(entries, LeaderboardEntry{ID: p.ID, Name: p.Name, Score: p.Score})
	}
	slices.SortStableFunc(entries, func(a, b LeaderboardEntry) int { return b.Score - a.Score })
	w.leaderboard = entries
	w.lbDirty = false
}

// FastTick runs decay, movement, food and player collisions, merging, and
// the invariant guard. dt is the nominal interval since the previous call.
func (w *World) FastTick(dt time.Duration) {
	tc := w.newTickContext(dt)
	decaySizes(tc)
	stepPhysics(tc)
	consumeFood(tc)
	consumePlayers(tc)
	mergeCells(tc)
	spawnReplacements(tc)
	w.guardInvariants()
	w.lbDirty = true
}

// MediumTick maintains local food density and refreshes the leaderboard.
func (w *World) MediumTick() {
	tc := w.newTickContext(0)
	maintainDensity(tc)
	w.recomputeLeaderboard()
}

// SlowTick tops the food population back up to the target.
func (w *World) SlowTick() {
	w.replenish(w.newTickContext(0))
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name))
	if utf8.RuneCountInString(name) > MaxNameLen {
		name = string([]rune(name)[:MaxNameLen])
	}
	return name
}
