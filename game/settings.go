package game

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidSettings is returned by Settings.Validate.
var ErrInvalidSettings = errors.New("invalid game settings")

// Settings are the arena tunables. A World copies them at construction and
// never mutates them afterwards.
type Settings struct {
	FieldWidth  float64 `json:"fieldWidth"`
	FieldHeight float64 `json:"fieldHeight"`

	// Food
	FoodTarget         int     `json:"foodTarget"`
	FoodMinSize        float64 `json:"foodMinSize"`
	FoodMaxSize        float64 `json:"foodMaxSize"`
	FoodNutritionRatio float64 `json:"foodNutritionRatio"` // actual size = visual size × ratio
	RespawnPerTick     int     `json:"respawnPerTick"`

	// Cells
	InitialSize   float64 `json:"initialSize"`
	MaxSize       float64 `json:"maxSize"`
	GrowthDivisor float64 `json:"growthDivisor"`
	DecayMinSize  float64 `json:"decayMinSize"`
	DecayRate     float64 `json:"decayRate"` // fraction of size lost per second above DecayMinSize

	// Movement
	SpeedFactor  float64 `json:"speedFactor"` // px per ms at InitialSize
	MinSpeed     float64 `json:"minSpeed"`    // px per tick
	MaxSpeed     float64 `json:"maxSpeed"`    // px per tick
	ImpulseDecay float64 `json:"impulseDecay"`

	// Split / merge
	SplitCooldown time.Duration `json:"splitCooldown"`
	SplitSpeed    float64       `json:"splitSpeed"`
	MinSplitSize  float64       `json:"minSplitSize"`
	MaxCells      int           `json:"maxCells"`
	MergeDelay    time.Duration `json:"mergeDelay"`

	// Consumption
	EatThreshold    float64 `json:"eatThreshold"`
	AbsorbRetention float64 `json:"absorbRetention"`

	// Visibility and density
	ViewDistance     float64 `json:"viewDistance"`
	GridCellSize     float64 `json:"gridCellSize"`
	MinFoodDensity   int     `json:"minFoodDensity"`
	DensitySpawnCap  int     `json:"densitySpawnCap"`
	LocalSpawnFactor float64 `json:"localSpawnFactor"`
	LeaderboardSize  int     `json:"leaderboardSize"`
}

// DefaultSettings returns the stock arena configuration.
func DefaultSettings() Settings {
	return Settings{
		FieldWidth:  5000,
		FieldHeight: 5000,

		FoodTarget:         1500,
		FoodMinSize:        24,
		FoodMaxSize:        36,
		FoodNutritionRatio: 0.25,
		RespawnPerTick:     20,

		InitialSize:   48,
		MaxSize:       900,
		GrowthDivisor: 4,
		DecayMinSize:  200,
		DecayRate:     0.002,

		SpeedFactor:  0.25,
		MinSpeed:     0.5,
		MaxSpeed:     5,
		ImpulseDecay: 0.95,

		SplitCooldown: 750 * time.Millisecond,
		SplitSpeed:    20,
		MinSplitSize:  80,
		MaxCells:      16,
		MergeDelay:    10 * time.Second,

		EatThreshold:    0.1,
		AbsorbRetention: 1,

		ViewDistance:     800,
		GridCellSize:     100,
		MinFoodDensity:   40,
		DensitySpawnCap:  60,
		LocalSpawnFactor: 0.75,
		LeaderboardSize:  10,
	}
}

// MaxFoodRadius is the largest collision radius any food item can have.
func (s Settings) MaxFoodRadius() float64 { return s.FoodMaxSize / 2 }

// Validate reports the first inconsistent tunable.
func (s Settings) Validate() error {
	check := func(ok bool, format string, args ...any) error {
		if ok {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrInvalidSettings, fmt.Sprintf(format, args...))
	}
	for _, err := range []error{
		check(s.FieldWidth > 0 && s.FieldHeight > 0, "field must be positive, got %vx%v", s.FieldWidth, s.FieldHeight),
		check(s.InitialSize > 0 && s.InitialSize < s.MaxSize, "initialSize %v must be in (0, maxSize %v)", s.InitialSize, s.MaxSize),
		check(s.MaxSize <= math.Min(s.FieldWidth, s.FieldHeight), "maxSize %v does not fit the field", s.MaxSize),
		check(s.FoodMinSize > 0 && s.FoodMinSize <= s.FoodMaxSize, "food size range [%v,%v] invalid", s.FoodMinSize, s.FoodMaxSize),
		check(s.FoodNutritionRatio > 0 && s.FoodNutritionRatio <= 1, "foodNutritionRatio %v must be in (0,1]", s.FoodNutritionRatio),
		check(s.FoodTarget >= 0 && s.RespawnPerTick >= 0, "food counts must not be negative"),
		check(s.GrowthDivisor > 0, "growthDivisor must be positive"),
		check(s.DecayRate >= 0 && s.DecayRate < 1, "decayRate %v must be in [0,1)", s.DecayRate),
		check(s.DecayMinSize >= s.InitialSize, "decayMinSize %v must not be below initialSize", s.DecayMinSize),
		check(s.SpeedFactor >= 0 && s.MinSpeed >= 0 && s.MinSpeed <= s.MaxSpeed, "speed bounds invalid"),
		check(s.ImpulseDecay >= 0 && s.ImpulseDecay < 1, "impulseDecay %v must be in [0,1)", s.ImpulseDecay),
		check(s.MinSplitSize/math.Sqrt2 >= s.InitialSize, "minSplitSize %v would split below initialSize", s.MinSplitSize),
		check(s.MaxCells >= 1, "maxCells must be at least 1"),
		check(s.SplitCooldown >= 0 && s.MergeDelay >= 0, "durations must not be negative"),
		check(s.EatThreshold >= 0, "eatThreshold must not be negative"),
		check(s.AbsorbRetention > 0 && s.AbsorbRetention <= 1, "absorbRetention %v must be in (0,1]", s.AbsorbRetention),
		check(s.ViewDistance > 0 && s.GridCellSize > 0, "viewDistance and gridCellSize must be positive"),
		check(s.MinFoodDensity >= 0 && s.DensitySpawnCap >= 0, "density bounds must not be negative"),
		check(s.LocalSpawnFactor > 0 && s.LocalSpawnFactor <= 1, "localSpawnFactor %v must be in (0,1]", s.LocalSpawnFactor),
		check(s.LeaderboardSize > 0, "leaderboardSize must be positive"),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}
