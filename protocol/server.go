package protocol

import "cellarena/game"

// Message is one outbound snapshot. The variants below are the only
// implementations.
type Message interface {
	Type() string
	message()
}

// Encode wraps m in an envelope and marshals it with c.
func Encode(c Codec, m Message) ([]byte, error) {
	return c.Marshal(envelope{Type: m.Type(), Data: m})
}

// Params mirrors game.Settings with durations in milliseconds.
type Params struct {
	FieldWidth      float64 `json:"fieldWidth"`
	FieldHeight     float64 `json:"fieldHeight"`
	InitialSize     float64 `json:"initialSize"`
	MaxSize         float64 `json:"maxSize"`
	SpeedFactor     float64 `json:"speedFactor"`
	MinSpeed        float64 `json:"minSpeed"`
	MaxSpeed        float64 `json:"maxSpeed"`
	FoodTarget      int     `json:"foodTarget"`
	FoodMinSize     float64 `json:"foodMinSize"`
	FoodMaxSize     float64 `json:"foodMaxSize"`
	SplitCooldownMs int64   `json:"splitCooldown"`
	MergeDelayMs    int64   `json:"mergeDelay"`
	MinSplitSize    float64 `json:"minSplitSize"`
	MaxCells        int     `json:"maxCells"`
	EatThreshold    float64 `json:"eatThreshold"`
	ViewDistance    float64 `json:"viewDistance"`
}

// ParamsFrom projects the settings a client needs to render and predict.
func ParamsFrom(s game.Settings) Params {
	return Params{
		FieldWidth:      s.FieldWidth,
		FieldHeight:     s.FieldHeight,
		InitialSize:     s.InitialSize,
		MaxSize:         s.MaxSize,
		SpeedFactor:     s.SpeedFactor,
		MinSpeed:        s.MinSpeed,
		MaxSpeed:        s.MaxSpeed,
		FoodTarget:      s.FoodTarget,
		FoodMinSize:     s.FoodMinSize,
		FoodMaxSize:     s.FoodMaxSize,
		SplitCooldownMs: s.SplitCooldown.Milliseconds(),
		MergeDelayMs:    s.MergeDelay.Milliseconds(),
		MinSplitSize:    s.MinSplitSize,
		MaxCells:        s.MaxCells,
		EatThreshold:    s.EatThreshold,
		ViewDistance:    s.ViewDistance,
	}
}

// GameParams answers a join.
type GameParams struct {
	PlayerID string `json:"playerId"`
	Settings Params `json:"settings"`
}

// LeaderEntry is one leaderboard row.
type LeaderEntry struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Leaderboard is sent as a bare array, highest score first.
type Leaderboard []LeaderEntry

// NewLeaderboard converts the world's view. The result is never nil.
func NewLeaderboard(entries []game.LeaderboardEntry) Leaderboard {
	out := make(Leaderboard, 0, len(entries))
	for _, e := range entries {
		out = append(out, LeaderEntry{ID: string(e.ID), Name: e.Name, Score: e.Score})
	}
	return out
}

type CellView struct {
	ID   uint32  `json:"id"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Size float64 `json:"size"`
}

// PlayerView carries the cells plus the centroid and combined size for
// clients that draw one blob per player.
type PlayerView struct {
	Name  string     `json:"name"`
	X     float64    `json:"x"`
	Y     float64    `json:"y"`
	Size  float64    `json:"size"`
	Score int        `json:"score"`
	Cells []CellView `json:"cells"`
}

// PlayerUpdate is the full player state.
type PlayerUpdate struct {
	Players map[string]PlayerView `json:"players"`
}

// NewPlayerUpdate snapshots every live player.
func NewPlayerUpdate(players []*game.Player) PlayerUpdate {
	out := PlayerUpdate{Players: make(map[string]PlayerView, len(players))}
	for _, p := range players {
		c := p.Center()
		v := PlayerView{
			Name:  p.Name,
			X:     c.X,
			Y:     c.Y,
			Size:  p.TotalSize(),
			Score: p.Score,
			Cells: make([]CellView, 0, len(p.Cells)),
		}
		for _, cell := range p.Cells {
			v.Cells = append(v.Cells, CellView{ID: uint32(cell.ID), X: cell.Pos.X, Y: cell.Pos.Y, Size: cell.Size})
		}
		out.Players[string(p.ID)] = v
	}
	return out
}

type FoodView struct {
	ID    uint64  `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Size  float64 `json:"size"`
	Color string  `json:"color"`
}

// FoodUpdate lists the food one player can see.
type FoodUpdate struct {
	Foods []FoodView `json:"foods"`
}

func NewFoodUpdate(foods []*game.Food) FoodUpdate {
	out := FoodUpdate{Foods: make([]FoodView, 0, len(foods))}
	for _, f := range foods {
		out.Foods = append(out.Foods, FoodView{ID: uint64(f.ID), X: f.Pos.X, Y: f.Pos.Y, Size: f.Size, Color: f.Color})
	}
	return out
}

// PlayerDeath is sent once to an eliminated connection.
type PlayerDeath struct {
	PlayerID   string `json:"playerId"`
	FinalScore int    `json:"finalScore"`
	EatenBy    string `json:"eatenBy,omitempty"`
	Reason     string `json:"reason"`
}

func NewPlayerDeath(e game.Elimination) PlayerDeath {
	return PlayerDeath{
		PlayerID:   string(e.PlayerID),
		FinalScore: e.FinalScore,
		EatenBy:    string(e.EatenBy),
		Reason:     string(e.Reason),
	}
}

func (GameParams) Type() string { return TypeGameParams }
func (Leaderboard) Type() string { return TypeLeaderboard }
func (PlayerUpdate) Type() string { return TypePlayerUpdate }
func (FoodUpdate) Type() string { return TypeFoodUpdate }
func (PlayerDeath) Type() string { return TypePlayerDeath }

func (GameParams) message() {}
func (Leaderboard) message() {}
func (PlayerUpdate) message() {}
func (FoodUpdate) message() {}
func (PlayerDeath) message() {}
