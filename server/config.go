package server

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"cellarena/game"
)

// Config is everything main needs to start the process.
type Config struct {
	Addr        string
	StaticDir   string
	LogFile     string
	LogLevel    string
	LogStderr   bool
	DefaultRoom string

	FastHz   float64
	MediumHz float64
	SlowHz   float64

	Settings game.Settings
}

// RoomConfig derives the per-room parameters.
func (c Config) RoomConfig() RoomConfig {
	return RoomConfig{
		Settings:    c.Settings,
		FastEvery:   hzToInterval(c.FastHz),
		MediumEvery: hzToInterval(c.MediumHz),
		SlowEvery:   hzToInterval(c.SlowHz),
	}
}

func hzToInterval(hz float64) time.Duration {
	return time.Duration(float64(time.Second) / hz)
}

// LoadConfig layers command-line flags over ARENA_* environment variables.
// A .env file (path in ARENA_ENV_FILE, default ".env") is loaded first and
// never overrides variables already set in the environment.
func LoadConfig(args []string) (Config, error) {
	envFile := os.Getenv("ARENA_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	env := envReader{}
	s := game.DefaultSettings()
	cfg := Config{
		Addr:        env.str("ARENA_ADDR", ":8080"),
		StaticDir:   env.str("ARENA_STATIC_DIR", "public"),
		LogFile:     env.str("ARENA_LOG_FILE", "app.log"),
		LogLevel:    env.str("ARENA_LOG_LEVEL", "info"),
		LogStderr:   env.boolean("ARENA_LOG_STDERR", false),
		DefaultRoom: env.str("ARENA_DEFAULT_ROOM", "main"),
		FastHz:      env.float("ARENA_FAST_HZ", 50),
		MediumHz:    env.float("ARENA_MEDIUM_HZ", 33),
		SlowHz:      env.float("ARENA_SLOW_HZ", 1),
	}
	s.FieldWidth = env.float("ARENA_FIELD_WIDTH", s.FieldWidth)
	s.FieldHeight = env.float("ARENA_FIELD_HEIGHT", s.FieldHeight)
	s.FoodTarget = env.integer("ARENA_FOOD_TARGET", s.FoodTarget)
	s.MinFoodDensity = env.integer("ARENA_MIN_FOOD_DENSITY", s.MinFoodDensity)
	s.ViewDistance = env.float("ARENA_VIEW_DISTANCE", s.ViewDistance)
	s.MaxCells = env.integer("ARENA_MAX_CELLS", s.MaxCells)
	s.LeaderboardSize = env.integer("ARENA_LEADERBOARD_SIZE", s.LeaderboardSize)
	if env.err != nil {
		return Config{}, env.err
	}

	fset := flag.NewFlagSet("cellarena", flag.ContinueOnError)
	fset.StringVar(&cfg.Addr, "addr", cfg.Addr, "server listen address, e.g. :8080")
	fset.StringVar(&cfg.StaticDir, "static", cfg.StaticDir, "directory served at /")
	fset.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "rolling log file path")
	fset.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fset.BoolVar(&cfg.LogStderr, "log-stderr", cfg.LogStderr, "also write logs to stderr")
	fset.StringVar(&cfg.DefaultRoom, "room", cfg.DefaultRoom, "room used when /ws has no ?room=")
	fset.Float64Var(&cfg.FastHz, "fast-hz", cfg.FastHz, "collision loop rate")
	fset.Float64Var(&cfg.MediumHz, "medium-hz", cfg.MediumHz, "density and broadcast loop rate")
	fset.Float64Var(&cfg.SlowHz, "slow-hz", cfg.SlowHz, "food replenish loop rate")
	fset.Float64Var(&s.FieldWidth, "field-width", s.FieldWidth, "arena width")
	fset.Float64Var(&s.FieldHeight, "field-height", s.FieldHeight, "arena height")
	fset.IntVar(&s.FoodTarget, "food-target", s.FoodTarget, "global food population")
	fset.IntVar(&s.MinFoodDensity, "min-food-density", s.MinFoodDensity, "food each player should see")
	fset.Float64Var(&s.ViewDistance, "view-distance", s.ViewDistance, "visibility radius")
	fset.IntVar(&s.MaxCells, "max-cells", s.MaxCells, "cells per player")
	fset.IntVar(&s.LeaderboardSize, "leaderboard", s.LeaderboardSize, "leaderboard rows")
	if err := fset.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.Settings = s

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the loop rates and the game settings.
func (c Config) Validate() error {
	for name, hz := range map[string]float64{"fast": c.FastHz, "medium": c.MediumHz, "slow": c.SlowHz} {
		if !(hz > 0) || hz > 1000 {
			return fmt.Errorf("%s tick rate %v out of range (0, 1000]", name, hz)
		}
	}
	if c.DefaultRoom == "" {
		return errors.New("default room must not be empty")
	}
	return c.Settings.Validate()
}

// envReader keeps the first parse error so that callers can read a batch of
// variables before checking.
type envReader struct {
	err error
}

func (e *envReader) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func (e *envReader) float(key string, def float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return f
}

func (e *envReader) integer(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return n
}

func (e *envReader) boolean(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return b
}

func (e *envReader) fail(key string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("env %s: %w", key, err)
	}
}
