package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario is the on-disk form of a match setup. Fields missing from the
// file keep their default values; tower lists are replaced wholesale.
//
//	map:
//	  team1_base: {x: 100, y: 850}
//	  team1_towers:
//	    - {id: t1_1, x: 200, y: 750, lane: 1}
//	sim:
//	  spawn_interval: 5s
//	  attack_cooldown: 1s
type Scenario struct {
	Name string    `yaml:"name"`
	Map  MapConfig `yaml:"map"`
	Sim  SimConfig `yaml:"sim"`
}

// LoadScenario reads a YAML scenario file layered over the defaults.
func LoadScenario(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	return ParseScenario(b)
}

// ParseScenario decodes scenario YAML layered over the defaults and validates it.
func ParseScenario(b []byte) (*Scenario, error) {
	sc := &Scenario{
		Name: "default",
		Map:  DefaultMap(),
		Sim:  DefaultSim(),
	}
	if err := yaml.Unmarshal(b, sc); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", sc.Name, err)
	}
	return sc, nil
}

// Validate rejects layouts the simulation cannot run.
func (sc *Scenario) Validate() error {
	if sc.Map.Width <= 0 || sc.Map.Height <= 0 {
		return fmt.Errorf("map size must be positive, got %vx%v", sc.Map.Width, sc.Map.Height)
	}
	if sc.Sim.TickRate <= 0 {
		return fmt.Errorf("tick_rate must be positive, got %d", sc.Sim.TickRate)
	}
	if sc.Sim.MinionSpeed <= 0 {
		return fmt.Errorf("minion_speed must be positive, got %v", sc.Sim.MinionSpeed)
	}
	if sc.Sim.SpawnInterval <= 0 {
		return fmt.Errorf("spawn_interval must be positive, got %v", sc.Sim.SpawnInterval)
	}
	if sc.Sim.GoldPerKill < 0 {
		return fmt.Errorf("gold_per_kill must not be negative, got %d", sc.Sim.GoldPerKill)
	}

	seen := make(map[string]bool)
	for _, list := range [][]TowerSpec{sc.Map.Team1Towers, sc.Map.Team2Towers} {
		for _, t := range list {
			if t.ID == "" {
				return fmt.Errorf("tower at (%v,%v) has no id", t.X, t.Y)
			}
			if t.ID == Team1BaseID || t.ID == Team2BaseID || strings.HasPrefix(t.ID, MinionIDPrefix) {
				return fmt.Errorf("tower id %q is reserved", t.ID)
			}
			if seen[t.ID] {
				return fmt.Errorf("duplicate tower id %q", t.ID)
			}
			seen[t.ID] = true
		}
	}
	return nil
}

// Apply copies the scenario's map and tuning into cfg.
func (sc *Scenario) Apply(cfg *AppConfig) {
	cfg.Name = sc.Name
	cfg.Map = sc.Map
	cfg.Sim = sc.Sim
}
