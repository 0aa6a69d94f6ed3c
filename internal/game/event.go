package game

import "time"

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown   EventType = iota
	EventTypeTick                // Tick boundary with simulation time
	EventTypeSpawn               // Minion entered the active set
	EventTypeDamage              // Hit landed
	EventTypeDestroyed           // Entity left the active set
	EventTypeGold                // Gold credited for a minion kill
	EventTypeMatchOver           // Winner declared
	EventTypeReset               // Match rebuilt from scratch
)

// EventVersion for backwards compatibility in replay
const EventVersion uint8 = 1

// Event is the core event structure. Events are collected during a tick and
// delivered to subscribers and the event log once the tick has finished.
type Event struct {
	Version   uint8       `json:"version"`   // Schema version
	Type      EventType   `json:"type"`      // Event type
	Timestamp int64       `json:"timestamp"` // Unix nano
	Sequence  uint64      `json:"sequence"`  // Monotonic sequence (set by the event log)
	TickNum   uint64      `json:"tickNum"`   // Simulation tick this occurred in
	EntityID  string      `json:"entityId"`  // Subject entity (for rate limiting)
	Payload   interface{} `json:"payload"`   // Typed payload, see below
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeTick:
		return "tick"
	case EventTypeSpawn:
		return "spawn"
	case EventTypeDamage:
		return "damage"
	case EventTypeDestroyed:
		return "destroyed"
	case EventTypeGold:
		return "gold"
	case EventTypeMatchOver:
		return "match_over"
	case EventTypeReset:
		return "reset"
	default:
		return "unknown"
	}
}

// MarshalText lets EventType appear by name in JSON output.
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Typed payloads for different event types

// TickPayload contains tick boundary information for replay
type TickPayload struct {
	SimTimeNs   int64 `json:"simTimeNs"`
	MinionCount int   `json:"minionCount"`
}

// SpawnPayload contains spawn details
type SpawnPayload struct {
	Team string  `json:"team"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	HP   int     `json:"hp"`
	Path string  `json:"path"`
}

// DamagePayload contains damage event details
type DamagePayload struct {
	AttackerID string `json:"attackerId"`
	VictimID   string `json:"victimId"`
	Damage     int    `json:"damage"`
	VictimHP   int    `json:"victimHp"`
}

// DestroyedPayload is the destroy notification consumed by views
type DestroyedPayload struct {
	EntityID string  `json:"entityId"`
	Kind     string  `json:"kind"`
	Team     string  `json:"team"`
	KillerID string  `json:"killerId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// GoldPayload contains a ledger credit
type GoldPayload struct {
	Team    string `json:"team"`
	Amount  int    `json:"amount"`
	Balance int    `json:"balance"`
}

// MatchOverPayload contains the terminal result
type MatchOverPayload struct {
	Winner    string `json:"winner"`
	Loser     string `json:"loser"`
	SimTimeNs int64  `json:"simTimeNs"`
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, entityID string, payload interface{}) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		EntityID:  entityID,
		Payload:   payload,
	}
}
