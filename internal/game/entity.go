package game

import (
	"math"
	"time"
)

// Team identifies one side of the match.
type Team uint8

const (
	TeamNone Team = iota
	Team1
	Team2
)

// String returns the wire name of the team
func (t Team) String() string {
	switch t {
	case Team1:
		return "team1"
	case Team2:
		return "team2"
	default:
		return "none"
	}
}

// Opponent returns the other team
func (t Team) Opponent() Team {
	switch t {
	case Team1:
		return Team2
	case Team2:
		return Team1
	default:
		return TeamNone
	}
}

// Teams lists both sides in tie-break order (team1 is always evaluated first).
var Teams = [2]Team{Team1, Team2}

// EntityKind classifies destroyable entities.
type EntityKind uint8

const (
	KindBase EntityKind = iota + 1
	KindTower
	KindMinion
)

// String returns the wire name of the kind
func (k EntityKind) String() string {
	switch k {
	case KindBase:
		return "base"
	case KindTower:
		return "tower"
	case KindMinion:
		return "minion"
	default:
		return "unknown"
	}
}

// Vec2 is a map position in pixels.
type Vec2 struct {
	X, Y float64
}

// Sub returns v - o
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{X: v.X - o.X, Y: v.Y - o.Y} }

// Len returns the Euclidean length
func (v Vec2) Len() float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y) }

// Dist returns the Euclidean distance between two points
func (v Vec2) Dist(o Vec2) float64 { return v.Sub(o).Len() }

// Entity is anything that can be attacked: a base, a tower or a minion.
type Entity interface {
	EntityID() string
	Kind() EntityKind
	TeamID() Team
	Center() Vec2
	Health() int
	// damage subtracts hp, clamps at zero and reports whether the entity died.
	damage(amount int) bool
}

// Base is a team's core structure. One per team, never removed.
type Base struct {
	ID    string
	Team  Team
	Pos   Vec2
	HP    int
	MaxHP int
}

func (b *Base) EntityID() string { return b.ID }
func (b *Base) Kind() EntityKind { return KindBase }
func (b *Base) TeamID() Team     { return b.Team }
func (b *Base) Center() Vec2     { return b.Pos }
func (b *Base) Health() int      { return b.HP }

func (b *Base) damage(amount int) bool {
	b.HP = clampHP(b.HP - amount)
	return b.HP == 0
}

// Tower is a lane defence structure. It leaves the active set when destroyed
// but stays addressable by id so path references still resolve to "inactive".
type Tower struct {
	ID        string
	Team      Team
	Pos       Vec2
	HP        int
	MaxHP     int
	Lane      int
	Destroyed bool
}

func (t *Tower) EntityID() string { return t.ID }
func (t *Tower) Kind() EntityKind { return KindTower }
func (t *Tower) TeamID() Team     { return t.Team }
func (t *Tower) Center() Vec2     { return t.Pos }
func (t *Tower) Health() int      { return t.HP }

func (t *Tower) damage(amount int) bool {
	t.HP = clampHP(t.HP - amount)
	if t.HP == 0 {
		t.Destroyed = true
	}
	return t.Destroyed
}

// Minion is an autonomous lane unit.
type Minion struct {
	ID             string
	Team           Team
	Pos            Vec2
	HP             int
	MaxHP          int
	AttackDamage   int
	AttackCooldown time.Duration

	// LastAttackAt is simulation time of the last successful attack.
	// Only meaningful once HasAttacked is set.
	LastAttackAt time.Duration
	HasAttacked  bool

	Path      Path
	PathIndex int

	// Engaged is set when the minion's target from the last tick is still alive.
	Engaged   bool
	Destroyed bool
}

func (m *Minion) EntityID() string { return m.ID }
func (m *Minion) Kind() EntityKind { return KindMinion }
func (m *Minion) TeamID() Team     { return m.Team }
func (m *Minion) Center() Vec2     { return m.Pos }
func (m *Minion) Health() int      { return m.HP }

func (m *Minion) damage(amount int) bool {
	m.HP = clampHP(m.HP - amount)
	if m.HP == 0 {
		m.Destroyed = true
	}
	return m.Destroyed
}

// Arrived reports whether the minion has consumed its whole path.
func (m *Minion) Arrived() bool {
	return m.PathIndex >= len(m.Path)
}

func clampHP(hp int) int {
	if hp < 0 {
		return 0
	}
	return hp
}
