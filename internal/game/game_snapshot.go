package game

import (
	"sync/atomic"
	"time"
)

// EntitySnapshot is an immutable copy of one entity for rendering.
// Uses value types (not pointers) to ensure immutability.
type EntitySnapshot struct {
	ID        string  `json:"id"`
	Kind      string  `json:"kind"`
	Team      string  `json:"team"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	HP        int     `json:"hp"`
	MaxHP     int     `json:"maxHp"`
	Alive     bool    `json:"alive"`
	Lane      int     `json:"lane,omitempty"`
	PathIndex int     `json:"pathIndex,omitempty"`
	Engaged   bool    `json:"engaged,omitempty"`
}

// TeamSnapshot aggregates per-team economy and score.
type TeamSnapshot struct {
	Team     string `json:"team"`
	Gold     int    `json:"gold"`
	Kills    int    `json:"kills"`
	Losses   int    `json:"losses"`
	Spawned  int    `json:"spawned"`
	Minions  int    `json:"minions"`
	BaseHP   int    `json:"baseHp"`
	TowersUp int    `json:"towersUp"`
}

// GameSnapshot is a complete immutable match state for rendering.
// Towers include destroyed ones (Alive=false) so views can draw rubble.
type GameSnapshot struct {
	Sequence   uint64        `json:"sequence"`  // Monotonic sequence for ordering
	Timestamp  time.Time     `json:"timestamp"` // When snapshot was created
	TickNumber uint64        `json:"tick"`      // Simulation tick this represents
	SimTime    time.Duration `json:"simTimeNs"` // Simulation clock

	MapWidth  float64 `json:"mapWidth"`
	MapHeight float64 `json:"mapHeight"`

	Bases   []EntitySnapshot `json:"bases"`
	Towers  []EntitySnapshot `json:"towers"`
	Minions []EntitySnapshot `json:"minions"`
	Teams   []TeamSnapshot   `json:"teams"`

	GoldTotal  int    `json:"goldTotal"`
	HeroHealth int    `json:"heroHealth"` // display-only, never changed by the simulation
	Over       bool   `json:"over"`
	Winner     string `json:"winner,omitempty"`
	Pending    int    `json:"pendingSpawns"`
}

// SnapshotStore publishes complete snapshots for lock-free readers.
// Each published snapshot is a fresh allocation and is never written again,
// so readers may hold on to it for as long as they like.
type SnapshotStore struct {
	current  atomic.Pointer[GameSnapshot]
	sequence atomic.Uint64
	maxItems int
}

// NewSnapshotStore creates a store that caps minion entries at maxItems
func NewSnapshotStore(maxItems int) *SnapshotStore {
	st := &SnapshotStore{maxItems: maxItems}
	st.current.Store(&GameSnapshot{})
	return st
}

// Capture copies the state into a new snapshot and publishes it.
// Must be called with the engine lock held.
func (st *SnapshotStore) Capture(s *State, mapW, mapH float64) *GameSnapshot {
	prev := st.current.Load()

	snap := &GameSnapshot{
		Sequence:   st.sequence.Add(1),
		Timestamp:  time.Now(),
		TickNumber: s.Tick,
		SimTime:    s.Now,
		MapWidth:   mapW,
		MapHeight:  mapH,
		Bases:      make([]EntitySnapshot, 0, 2),
		Towers:     make([]EntitySnapshot, 0, len(s.towers)),
		Minions:    make([]EntitySnapshot, 0, max(len(prev.Minions), len(s.minions))),
		Teams:      make([]TeamSnapshot, 0, 2),
		GoldTotal:  s.Gold.Total(),
		HeroHealth: s.sim.HeroHealth,
		Over:       s.Over,
		Pending:    s.PendingCount(),
	}
	if s.Over {
		snap.Winner = s.Winner.String()
	}

	for _, team := range Teams {
		b := s.Base(team)
		snap.Bases = append(snap.Bases, entitySnapshot(s, b))
	}
	for _, t := range s.towers {
		es := entitySnapshot(s, t)
		es.Lane = t.Lane
		snap.Towers = append(snap.Towers, es)
	}

	var minionsByTeam [3]int
	for _, m := range s.minions {
		minionsByTeam[m.Team]++
		if st.maxItems > 0 && len(snap.Minions) >= st.maxItems {
			continue
		}
		es := entitySnapshot(s, m)
		es.PathIndex = m.PathIndex
		es.Engaged = m.Engaged
		snap.Minions = append(snap.Minions, es)
	}

	for _, team := range Teams {
		snap.Teams = append(snap.Teams, TeamSnapshot{
			Team:     team.String(),
			Gold:     s.Gold.Gold(team),
			Kills:    s.Kills[team],
			Losses:   s.Destroyed[team],
			Spawned:  s.Spawned[team],
			Minions:  minionsByTeam[team],
			BaseHP:   s.Base(team).HP,
			TowersUp: len(s.ActiveTowers(team)),
		})
	}

	st.current.Store(snap)
	return snap
}

// Latest returns the most recently published snapshot (never nil)
func (st *SnapshotStore) Latest() *GameSnapshot {
	return st.current.Load()
}

func entitySnapshot(s *State, e Entity) EntitySnapshot {
	es := EntitySnapshot{
		ID:    e.EntityID(),
		Kind:  e.Kind().String(),
		Team:  e.TeamID().String(),
		X:     e.Center().X,
		Y:     e.Center().Y,
		HP:    e.Health(),
		Alive: s.IsActive(e),
	}
	switch v := e.(type) {
	case *Base:
		es.MaxHP = v.MaxHP
	case *Tower:
		es.MaxHP = v.MaxHP
	case *Minion:
		es.MaxHP = v.MaxHP
	}
	return es
}

// TeamByName returns the team snapshot with the given wire name
func (g *GameSnapshot) TeamByName(name string) (TeamSnapshot, bool) {
	for _, t := range g.Teams {
		if t.Team == name {
			return t, true
		}
	}
	return TeamSnapshot{}, false
}
