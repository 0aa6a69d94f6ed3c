package game

import (
	"fmt"
	"strings"
)

// WaypointKind tags the Waypoint variant.
type WaypointKind uint8

const (
	WaypointCoordinate WaypointKind = iota + 1
	WaypointEntity
)

// Waypoint is either a literal coordinate or a reference to a destroyable
// entity whose current position is looked up every tick.
type Waypoint struct {
	kind  WaypointKind
	coord Vec2
	ref   string
}

// Coordinate builds a literal-position waypoint
func Coordinate(x, y float64) Waypoint {
	return Waypoint{kind: WaypointCoordinate, coord: Vec2{X: x, Y: y}}
}

// EntityRef builds a waypoint that follows the entity with the given id
func EntityRef(id string) Waypoint {
	return Waypoint{kind: WaypointEntity, ref: id}
}

// Kind returns the variant tag
func (w Waypoint) Kind() WaypointKind { return w.kind }

// Ref returns the referenced entity id ("" for coordinates)
func (w Waypoint) Ref() string { return w.ref }

// Resolve returns the current target point of the waypoint. The second
// result is false when the referenced entity is missing or inactive.
func (w Waypoint) Resolve(s *State) (Vec2, bool) {
	switch w.kind {
	case WaypointCoordinate:
		return w.coord, true
	case WaypointEntity:
		e, ok := s.Lookup(w.ref)
		if !ok || !s.IsActive(e) {
			return Vec2{}, false
		}
		return e.Center(), true
	default:
		return Vec2{}, false
	}
}

// String implements fmt.Stringer
func (w Waypoint) String() string {
	if w.kind == WaypointEntity {
		return "@" + w.ref
	}
	return fmt.Sprintf("(%.0f,%.0f)", w.coord.X, w.coord.Y)
}

// Path is an immutable ordered waypoint list, shared by all minions of one
// team and lane. Never mutate a Path after it has been handed to a minion.
type Path []Waypoint

// String renders the path as waypoints joined by '>'
func (p Path) String() string {
	var b strings.Builder
	for i, wp := range p {
		if i > 0 {
			b.WriteByte('>')
		}
		b.WriteString(wp.String())
	}
	return b.String()
}
