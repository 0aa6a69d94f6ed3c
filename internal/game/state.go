package game

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"lane-clash/internal/config"
)

// Ledger holds the gold earned by each team. Every counter is non-negative.
type Ledger struct {
	gold [3]int
}

// Credit adds a non-negative amount to a team's balance and returns the new balance.
func (l *Ledger) Credit(team Team, amount int) int {
	if amount < 0 || team == TeamNone {
		return l.Gold(team)
	}
	l.gold[team] += amount
	return l.gold[team]
}

// Gold returns a team's balance
func (l *Ledger) Gold(team Team) int {
	if int(team) >= len(l.gold) {
		return 0
	}
	return l.gold[team]
}

// Total returns the combined balance of both teams
func (l *Ledger) Total() int {
	return l.gold[Team1] + l.gold[Team2]
}

// State is the authoritative entity model of one match. All fields other
// than the pending spawn buffer are owned by the engine goroutine and must
// only be touched while the engine lock is held.
type State struct {
	sim config.SimConfig

	bases   [3]*Base
	towers  []*Tower          // roster order, destroyed towers included
	minions []*Minion         // active minions in spawn order
	index   map[string]Entity // every addressable entity by id
	lanes   map[Team][]Path   // one path per lane, ascending lane number

	Gold Ledger

	// Now is the simulation clock: ticks elapsed times the fixed step.
	Now  time.Duration
	Tick uint64

	Winner Team
	Over   bool

	// Per-team counters for stats
	Kills     [3]int
	Destroyed [3]int
	Spawned   [3]int

	events []Event

	pendingMu sync.Mutex
	pending   [][]*Minion // one group per QueueSpawn call

	nextMinionID atomic.Uint64
	waveCount    atomic.Uint64
}

// NewState builds the initial match state from the map roster.
func NewState(m config.MapConfig, sim config.SimConfig) *State {
	s := &State{
		sim:     sim,
		index:   make(map[string]Entity),
		lanes:   make(map[Team][]Path),
		minions: make([]*Minion, 0, 64),
	}

	s.bases[Team1] = &Base{ID: config.Team1BaseID, Team: Team1, Pos: Vec2{X: m.Team1Base.X, Y: m.Team1Base.Y}, HP: sim.CoreHP, MaxHP: sim.CoreHP}
	s.bases[Team2] = &Base{ID: config.Team2BaseID, Team: Team2, Pos: Vec2{X: m.Team2Base.X, Y: m.Team2Base.Y}, HP: sim.CoreHP, MaxHP: sim.CoreHP}
	s.index[s.bases[Team1].ID] = s.bases[Team1]
	s.index[s.bases[Team2].ID] = s.bases[Team2]

	addTowers := func(team Team, specs []config.TowerSpec) {
		for _, ts := range specs {
			t := &Tower{
				ID:    ts.ID,
				Team:  team,
				Pos:   Vec2{X: ts.X, Y: ts.Y},
				HP:    sim.TowerHP,
				MaxHP: sim.TowerHP,
				Lane:  ts.Lane,
			}
			s.towers = append(s.towers, t)
			s.index[t.ID] = t
		}
	}
	addTowers(Team1, m.Team1Towers)
	addTowers(Team2, m.Team2Towers)

	for _, team := range Teams {
		s.lanes[team] = s.buildLanePaths(team)
	}
	return s
}

// buildLanePaths returns, per lane, the opposing towers in roster order
// followed by the opposing base.
func (s *State) buildLanePaths(team Team) []Path {
	enemy := team.Opponent()

	byLane := make(map[int][]*Tower)
	for _, t := range s.towers {
		if t.Team == enemy {
			byLane[t.Lane] = append(byLane[t.Lane], t)
		}
	}

	lanes := make([]int, 0, len(byLane))
	for lane := range byLane {
		lanes = append(lanes, lane)
	}
	sort.Ints(lanes)

	baseRef := EntityRef(s.bases[enemy].ID)
	if len(lanes) == 0 {
		return []Path{{baseRef}}
	}

	paths := make([]Path, 0, len(lanes))
	for _, lane := range lanes {
		towers := byLane[lane]
		p := make(Path, 0, len(towers)+1)
		for _, t := range towers {
			p = append(p, EntityRef(t.ID))
		}
		p = append(p, baseRef)
		paths = append(paths, p)
	}
	return paths
}

// Sim returns the tuning the state was built with
func (s *State) Sim() config.SimConfig { return s.sim }

// Lookup returns any addressable entity by id, active or not.
func (s *State) Lookup(id string) (Entity, bool) {
	e, ok := s.index[id]
	return e, ok
}

// IsActive reports whether e is a valid attack target / movement blocker.
func (s *State) IsActive(e Entity) bool {
	switch v := e.(type) {
	case *Base:
		return v.HP > 0
	case *Tower:
		return !v.Destroyed && v.HP > 0
	case *Minion:
		return !v.Destroyed && v.HP > 0
	default:
		return false
	}
}

// Base returns a team's core
func (s *State) Base(team Team) *Base {
	if int(team) >= len(s.bases) {
		return nil
	}
	return s.bases[team]
}

// Towers returns every tower in roster order, destroyed ones included.
func (s *State) Towers() []*Tower { return s.towers }

// ActiveTowers returns a team's towers that are still standing.
func (s *State) ActiveTowers(team Team) []*Tower {
	out := make([]*Tower, 0, len(s.towers))
	for _, t := range s.towers {
		if t.Team == team && s.IsActive(t) {
			out = append(out, t)
		}
	}
	return out
}

// Minions returns the active minion list in iteration order.
// The slice is owned by the state; do not retain it across ticks.
func (s *State) Minions() []*Minion { return s.minions }

// EnemyMinions returns the opposing team's minions with hp > 0, in iteration order.
func (s *State) EnemyMinions(team Team) []*Minion {
	out := make([]*Minion, 0, len(s.minions))
	for _, m := range s.minions {
		if m.Team != team && m.HP > 0 {
			out = append(out, m)
		}
	}
	return out
}

// NextTower returns the tower the minion is currently walking toward, if the
// waypoint at PathIndex references one that is still standing.
func (s *State) NextTower(m *Minion) *Tower {
	if m.Arrived() {
		return nil
	}
	wp := m.Path[m.PathIndex]
	if wp.Kind() != WaypointEntity {
		return nil
	}
	e, ok := s.Lookup(wp.Ref())
	if !ok {
		return nil
	}
	t, ok := e.(*Tower)
	if !ok || !s.IsActive(t) {
		return nil
	}
	return t
}

// LanePaths returns a team's lane paths
func (s *State) LanePaths(team Team) []Path { return s.lanes[team] }

// NewMinion builds a minion at the team's base on the given lane path.
// It is safe to call from the spawn goroutine.
func (s *State) NewMinion(team Team, path Path) *Minion {
	id := s.nextMinionID.Add(1) - 1
	return &Minion{
		ID:             fmt.Sprintf("%s%d", config.MinionIDPrefix, id),
		Team:           team,
		Pos:            s.bases[team].Pos,
		HP:             s.sim.MinionHP,
		MaxHP:          s.sim.MinionHP,
		AttackDamage:   s.sim.AttackDamage,
		AttackCooldown: s.sim.AttackCooldown,
		Path:           path,
	}
}

// QueueWave queues exactly one minion per team. Lanes rotate between waves.
// Safe for concurrent use; the minions appear at the start of the next tick.
func (s *State) QueueWave() []*Minion {
	wave := s.waveCount.Add(1) - 1
	out := make([]*Minion, 0, len(Teams))
	for _, team := range Teams {
		paths := s.lanes[team]
		path := paths[int(wave%uint64(len(paths)))]
		out = append(out, s.NewMinion(team, path))
	}
	s.QueueSpawn(out...)
	return out
}

// QueueSpawn buffers minions for the next tick as one group. Safe for
// concurrent use.
func (s *State) QueueSpawn(ms ...*Minion) {
	if len(ms) == 0 {
		return
	}
	s.pendingMu.Lock()
	s.pending = append(s.pending, ms)
	s.pendingMu.Unlock()
}

// PendingCount returns the number of buffered spawns
func (s *State) PendingCount() int {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	n := 0
	for _, group := range s.pending {
		n += len(group)
	}
	return n
}

// applyPending moves buffered spawns into the active set. A group that would
// push the active set past maxMinions is dropped whole, so a wave never
// arrives for one team only. Returns the minions added and the number dropped.
func (s *State) applyPending(maxMinions int) (added []*Minion, dropped int) {
	s.pendingMu.Lock()
	groups := s.pending
	s.pending = nil
	s.pendingMu.Unlock()

	for _, group := range groups {
		if maxMinions > 0 && len(s.minions)+len(group) > maxMinions {
			dropped += len(group)
			continue
		}
		for _, m := range group {
			s.minions = append(s.minions, m)
			s.index[m.ID] = m
			s.Spawned[m.Team]++
			added = append(added, m)
		}
	}
	return added, dropped
}

// AddMinion inserts a minion into the active set immediately. Intended for
// scenario setup and tests; live spawns go through QueueSpawn.
func (s *State) AddMinion(m *Minion) {
	s.minions = append(s.minions, m)
	s.index[m.ID] = m
	s.Spawned[m.Team]++
}

// cleanup removes destroyed minions from the active list in place and
// returns how many were removed. Towers stay addressable by id.
func (s *State) cleanup() int {
	n := 0
	for _, m := range s.minions {
		if s.IsActive(m) {
			s.minions[n] = m
			n++
			continue
		}
		delete(s.index, m.ID)
	}
	removed := len(s.minions) - n
	for i := n; i < len(s.minions); i++ {
		s.minions[i] = nil
	}
	s.minions = s.minions[:n]
	return removed
}

// emit appends an event to the current tick's outbox.
func (s *State) emit(ev Event) {
	ev.TickNum = s.Tick
	s.events = append(s.events, ev)
}

// drainEvents hands the outbox to the caller and resets it.
func (s *State) drainEvents() []Event {
	out := s.events
	s.events = nil
	return out
}
