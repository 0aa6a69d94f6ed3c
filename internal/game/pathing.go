package game

// MoveResult describes what Advance did to a minion this tick.
type MoveResult uint8

const (
	MoveStepped     MoveResult = iota // moved exactly one speed step
	MoveReached                       // snapped onto the waypoint, PathIndex advanced
	MoveHolding                       // path consumed, or holding while engaged
	MoveUnreachable                   // waypoint entity inactive, waypoint skipped
)

// Advance moves a minion one fixed step toward its current waypoint.
//
// Movement is not scaled by elapsed time; the clock guarantees one call per
// fixed tick. An entity waypoint that no longer resolves leaves the minion
// motionless for this tick and is skipped so the next tick heads for the
// following waypoint.
func Advance(m *Minion, s *State) MoveResult {
	if m.Arrived() {
		return MoveHolding
	}
	if m.Engaged && s.sim.HoldWhenEngaged {
		return MoveHolding
	}

	target, ok := m.Path[m.PathIndex].Resolve(s)
	if !ok {
		m.PathIndex++
		return MoveUnreachable
	}

	speed := s.sim.MinionSpeed
	delta := target.Sub(m.Pos)
	dist := delta.Len()

	if dist < speed {
		m.Pos = target
		m.PathIndex++
		return MoveReached
	}

	m.Pos.X += delta.X / dist * speed
	m.Pos.Y += delta.Y / dist * speed
	return MoveStepped
}
