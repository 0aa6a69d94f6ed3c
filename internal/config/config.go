// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for all simulation and server settings.
//
// IMPORTANT: When changing values, only modify this file (or a scenario file).
// All other parts of the codebase should reference these values.
package config

import (
	"os"
	"strconv"
	"time"
)

// =============================================================================
// MAP CONFIGURATION
// =============================================================================

// Point is a map coordinate in pixels.
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Entity ids the simulation assigns itself. Tower ids must not collide with them.
const (
	Team1BaseID    = "base-1"
	Team2BaseID    = "base-2"
	MinionIDPrefix = "minion-"
)

// TowerSpec describes one tower of the fixed roster.
type TowerSpec struct {
	ID   string  `yaml:"id"`
	X    float64 `yaml:"x"`
	Y    float64 `yaml:"y"`
	Lane int     `yaml:"lane"`
}

// MapConfig holds the battlefield layout.
type MapConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`

	Team1Base Point `yaml:"team1_base"`
	Team2Base Point `yaml:"team2_base"`

	// Towers are listed in lane order, nearest to the owning base first.
	Team1Towers []TowerSpec `yaml:"team1_towers"`
	Team2Towers []TowerSpec `yaml:"team2_towers"`
}

// DefaultMap returns the single-lane diagonal map.
func DefaultMap() MapConfig {
	return MapConfig{
		Width:     1000,
		Height:    1000,
		Team1Base: Point{X: 100, Y: 850},
		Team2Base: Point{X: 900, Y: 150},
		Team1Towers: []TowerSpec{
			{ID: "t1_1", X: 200, Y: 750, Lane: 1},
			{ID: "t1_2", X: 350, Y: 600, Lane: 1},
			{ID: "t1_3", X: 500, Y: 450, Lane: 1},
		},
		Team2Towers: []TowerSpec{
			{ID: "t2_1", X: 800, Y: 250, Lane: 1},
			{ID: "t2_2", X: 650, Y: 400, Lane: 1},
			{ID: "t2_3", X: 500, Y: 550, Lane: 1},
		},
	}
}

// =============================================================================
// SIMULATION TUNING
// =============================================================================

// SimConfig holds unit balance and timing.
type SimConfig struct {
	TickRate         int           `yaml:"tick_rate"`           // Fixed simulation ticks per second
	MaxTicksPerFrame int           `yaml:"max_ticks_per_frame"` // Accumulator catch-up cap
	FrameInterval    time.Duration `yaml:"frame_interval"`      // How often the loop drains the accumulator

	MinionSpeed     float64       `yaml:"minion_speed"` // Pixels per tick
	MinionHP        int           `yaml:"minion_hp"`
	AttackDamage    int           `yaml:"attack_damage"`
	AttackCooldown  time.Duration `yaml:"attack_cooldown"`
	AttackRange     float64       `yaml:"attack_range"`
	HoldWhenEngaged bool          `yaml:"hold_when_engaged"`

	TowerHP int `yaml:"tower_hp"`
	CoreHP  int `yaml:"core_hp"`

	GoldPerKill   int           `yaml:"gold_per_kill"`
	SpawnInterval time.Duration `yaml:"spawn_interval"`

	HeroHealth int `yaml:"hero_health"` // Display-only value, not driven by the simulation
}

// DefaultSim returns the default balance values.
func DefaultSim() SimConfig {
	return SimConfig{
		TickRate:         60,
		MaxTicksPerFrame: 10,
		FrameInterval:    time.Second / 60,
		MinionSpeed:      1,
		MinionHP:         100,
		AttackDamage:     10,
		AttackCooldown:   1000 * time.Millisecond,
		AttackRange:      100,
		HoldWhenEngaged:  false,
		TowerHP:          1000,
		CoreHP:           5000,
		GoldPerKill:      10,
		SpawnInterval:    5000 * time.Millisecond,
		HeroHealth:       100,
	}
}

// SimFromEnv returns simulation tuning with environment variable overrides.
func SimFromEnv(cfg SimConfig) SimConfig {
	if tr := getEnvInt("TICK_RATE", 0); tr > 0 {
		cfg.TickRate = tr
	}
	if ms := getEnvInt("SPAWN_INTERVAL_MS", 0); ms > 0 {
		cfg.SpawnInterval = time.Duration(ms) * time.Millisecond
	}
	if ms := getEnvInt("FRAME_INTERVAL_MS", 0); ms > 0 {
		cfg.FrameInterval = time.Duration(ms) * time.Millisecond
	}
	if v := getEnvFloat("MINION_SPEED", -1); v > 0 {
		cfg.MinionSpeed = v
	}
	if os.Getenv("HOLD_WHEN_ENGAGED") == "true" {
		cfg.HoldWhenEngaged = true
	}
	return cfg
}

// TickDuration returns the fixed simulation step.
func (c SimConfig) TickDuration() time.Duration {
	if c.TickRate <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.TickRate)
}

// =============================================================================
// RESOURCE LIMITS
// =============================================================================

// ResourceLimits controls DoS protection and snapshot sizing.
type ResourceLimits struct {
	MaxMinions   int // Hard cap on live minions; spawns beyond it are dropped
	MaxSnapshot  int // Hard cap on entities copied into a snapshot
	MaxListeners int // Hard cap on event subscribers
}

// DefaultLimits returns the default resource limits.
func DefaultLimits() ResourceLimits {
	return ResourceLimits{
		MaxMinions:   2000,
		MaxSnapshot:  2500,
		MaxListeners: 64,
	}
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int
	EventLogPath string
	FrameWidth   int // PNG frame width for /api/frame.png
	FrameHeight  int
	AdminToken   string // Bearer token for match control; empty disables the check
	DebugAddr    string // pprof and /metrics, localhost only
	FeedSocket   string // Unix socket for terminal viewers; empty disables the feed
	Traffic      TrafficLimits
}

// TrafficLimits holds per-client request budgets for the HTTP API.
// Rates are tokens per second; a zero rate disables that budget.
type TrafficLimits struct {
	PollRate     float64 // state, stats and event queries
	PollBurst    int
	FrameRate    float64 // PNG rendering is the most expensive route
	FrameBurst   int
	ControlRate  float64 // match reset
	ControlBurst int

	WSPerIP int // concurrent WebSocket connections from one client
	WSTotal int // concurrent WebSocket connections overall

	// TrustProxy reads the client address from X-Forwarded-For / X-Real-IP.
	// Only enable behind a proxy that overwrites those headers.
	TrustProxy bool
}

// DefaultTraffic returns the default request budgets.
func DefaultTraffic() TrafficLimits {
	return TrafficLimits{
		PollRate:     10,
		PollBurst:    20,
		FrameRate:    2,
		FrameBurst:   4,
		ControlRate:  0.2,
		ControlBurst: 2,
		WSPerIP:      10,
		WSTotal:      500,
	}
}

// TrafficFromEnv returns request budgets with environment variable overrides.
func TrafficFromEnv(cfg TrafficLimits) TrafficLimits {
	if v := getEnvFloat("RATE_POLL_RPS", -1); v >= 0 {
		cfg.PollRate = v
	}
	if v := getEnvInt("RATE_POLL_BURST", 0); v > 0 {
		cfg.PollBurst = v
	}
	if v := getEnvFloat("RATE_FRAME_RPS", -1); v >= 0 {
		cfg.FrameRate = v
	}
	if v := getEnvInt("RATE_FRAME_BURST", 0); v > 0 {
		cfg.FrameBurst = v
	}
	if v := getEnvFloat("RATE_CONTROL_RPS", -1); v >= 0 {
		cfg.ControlRate = v
	}
	if v := getEnvInt("WS_MAX_PER_IP", 0); v > 0 {
		cfg.WSPerIP = v
	}
	if v := getEnvInt("WS_MAX_TOTAL", 0); v > 0 {
		cfg.WSTotal = v
	}
	if os.Getenv("TRUST_PROXY") == "true" {
		cfg.TrustProxy = true
	}
	return cfg
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:         3000,
		EventLogPath: "events.jsonl",
		FrameWidth:   500,
		FrameHeight:  500,
		DebugAddr:    "127.0.0.1:6060",
		FeedSocket:   "/tmp/lane-clash.sock",
		Traffic:      DefaultTraffic(),
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if path, ok := os.LookupEnv("EVENT_LOG_PATH"); ok {
		cfg.EventLogPath = path
	}
	if w := getEnvInt("FRAME_WIDTH", 0); w > 0 {
		cfg.FrameWidth = w
	}
	if h := getEnvInt("FRAME_HEIGHT", 0); h > 0 {
		cfg.FrameHeight = h
	}
	cfg.AdminToken = os.Getenv("ADMIN_TOKEN")
	if addr := os.Getenv("DEBUG_ADDR"); addr != "" {
		cfg.DebugAddr = addr
	}
	if path, ok := os.LookupEnv("FEED_SOCKET"); ok {
		cfg.FeedSocket = path
	}
	cfg.Traffic = TrafficFromEnv(cfg.Traffic)

	return cfg
}

// =============================================================================
// SPATIAL CONFIGURATION
// =============================================================================

// SpatialConfig holds spatial indexing settings.
type SpatialConfig struct {
	GridCellSize int // Cell size for the minion target prefilter
}

// DefaultSpatial returns the default spatial configuration.
func DefaultSpatial() SpatialConfig {
	return SpatialConfig{
		GridCellSize: 100, // pixels, equal to the attack range
	}
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Name    string // Scenario name shown to viewers
	Map     MapConfig
	Sim     SimConfig
	Server  ServerConfig
	Limits  ResourceLimits
	Spatial SpatialConfig
}

// Default returns the complete configuration without any overrides.
func Default() AppConfig {
	return AppConfig{
		Name:    "default",
		Map:     DefaultMap(),
		Sim:     DefaultSim(),
		Server:  DefaultServer(),
		Limits:  DefaultLimits(),
		Spatial: DefaultSpatial(),
	}
}

// Load returns the complete configuration with scenario and environment overrides.
// SCENARIO_PATH, when set, must point at a readable scenario file.
func Load() (AppConfig, error) {
	cfg := Default()
	cfg.Server = ServerFromEnv()

	if path := os.Getenv("SCENARIO_PATH"); path != "" {
		sc, err := LoadScenario(path)
		if err != nil {
			return cfg, err
		}
		sc.Apply(&cfg)
	}

	cfg.Sim = SimFromEnv(cfg.Sim)
	return cfg, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
