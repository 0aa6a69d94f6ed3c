// Package ipc streams match snapshots from a running server to local viewers.
// Uses Unix domain sockets (TCP localhost on Windows) with gob-framed messages.
package ipc

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"lane-clash/internal/game"
)

const (
	// DefaultSocketPath is the Unix socket path for the snapshot feed
	DefaultSocketPath = "/tmp/lane-clash.sock"

	// DefaultTCPPort is used instead of a socket on Windows
	DefaultTCPPort = "127.0.0.1:7070"

	// Message types
	MsgTypeSnapshot byte = 0x01
	MsgTypePing     byte = 0x02
	MsgTypePong     byte = 0x03
	MsgTypeMatch    byte = 0x04

	// Protocol version for compatibility checking
	ProtocolVersion uint16 = 1

	// Connection settings
	MaxMessageSize = 1024 * 1024 // 1MB max message
	WriteTimeout   = 50 * time.Millisecond
	ReadTimeout    = 100 * time.Millisecond // idle poll between frames
	FrameTimeout   = time.Second            // once a frame has started
	ReconnectDelay = 500 * time.Millisecond
)

// SnapshotMessage is the wire form of a game snapshot
type SnapshotMessage struct {
	Sequence   uint64
	Timestamp  int64 // Unix nano
	TickNumber uint64
	SimTime    int64

	Bases   []EntityData
	Towers  []EntityData
	Minions []EntityData
	Teams   []TeamData

	GoldTotal  int
	HeroHealth int
	Over       bool
	Winner     string
	Pending    int
}

// EntityData is the wire form of a base, tower or minion
type EntityData struct {
	ID        string
	Kind      string
	Team      string
	X, Y      float64
	HP, MaxHP int
	Alive     bool
	Lane      int
	PathIndex int
	Engaged   bool
}

// TeamData is the wire form of a team's score line
type TeamData struct {
	Team     string
	Gold     int
	Kills    int
	Losses   int
	Spawned  int
	Minions  int
	BaseHP   int
	TowersUp int
}

// MatchMessage is sent once to every new viewer
type MatchMessage struct {
	Name      string
	MapWidth  float64
	MapHeight float64
	TickRate  int
}

const HeaderSize = 8 // version(2) + type(1) + reserved(1) + length(4)

var bufferPool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

// WriteMessage writes a framed message to the connection
func WriteMessage(w io.Writer, msgType byte, data interface{}) error {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	if data != nil {
		if err := gob.NewEncoder(buf).Encode(data); err != nil {
			return fmt.Errorf("gob encode: %w", err)
		}
	}
	if buf.Len() > MaxMessageSize {
		return fmt.Errorf("message too large: %d > %d", buf.Len(), MaxMessageSize)
	}

	var header [HeaderSize]byte
	binary.LittleEndian.PutUint16(header[0:2], ProtocolVersion)
	header[2] = msgType
	binary.LittleEndian.PutUint32(header[4:8], uint32(buf.Len()))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if buf.Len() > 0 {
		if _, err := w.Write(buf.Bytes()); err != nil {
			return fmt.Errorf("write body: %w", err)
		}
	}
	return nil
}

// ReadMessage reads a framed message from the connection
func ReadMessage(r io.Reader) (byte, []byte, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, fmt.Errorf("read header: %w", err)
	}

	version := binary.LittleEndian.Uint16(header[0:2])
	if version != ProtocolVersion {
		return 0, nil, fmt.Errorf("version mismatch: got %d, want %d", version, ProtocolVersion)
	}
	length := binary.LittleEndian.Uint32(header[4:8])
	if length > MaxMessageSize {
		return 0, nil, fmt.Errorf("message too large: %d > %d", length, MaxMessageSize)
	}

	var body []byte
	if length > 0 {
		body = make([]byte, length)
		if _, err := io.ReadFull(r, body); err != nil {
			return 0, nil, fmt.Errorf("read body: %w", err)
		}
	}
	return header[2], body, nil
}

// DecodeSnapshot decodes a snapshot from gob bytes
func DecodeSnapshot(data []byte) (*SnapshotMessage, error) {
	var msg SnapshotMessage
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&msg); err != nil {
		return nil, fmt.Errorf("gob decode snapshot: %w", err)
	}
	return &msg, nil
}

// DecodeMatch decodes match info from gob bytes
func DecodeMatch(data []byte) (*MatchMessage, error) {
	var msg MatchMessage
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&msg); err != nil {
		return nil, fmt.Errorf("gob decode match: %w", err)
	}
	return &msg, nil
}

// CleanupSocket removes the socket file if it exists
func CleanupSocket(path string) error {
	if _, err := os.Stat(path); err == nil {
		return os.Remove(path)
	}
	return nil
}

// FromSnapshot converts a game snapshot to its wire form
func FromSnapshot(s *game.GameSnapshot) *SnapshotMessage {
	msg := &SnapshotMessage{
		Sequence:   s.Sequence,
		Timestamp:  s.Timestamp.UnixNano(),
		TickNumber: s.TickNumber,
		SimTime:    int64(s.SimTime),
		Bases:      toEntityData(s.Bases),
		Towers:     toEntityData(s.Towers),
		Minions:    toEntityData(s.Minions),
		GoldTotal:  s.GoldTotal,
		HeroHealth: s.HeroHealth,
		Over:       s.Over,
		Winner:     s.Winner,
		Pending:    s.Pending,
	}
	msg.Teams = make([]TeamData, len(s.Teams))
	for i, t := range s.Teams {
		msg.Teams[i] = TeamData(t)
	}
	return msg
}

// ToGameSnapshot converts the wire form back so the renderers can draw it.
// Map size comes from the match message.
func (msg *SnapshotMessage) ToGameSnapshot(match MatchMessage) *game.GameSnapshot {
	snap := &game.GameSnapshot{
		Sequence:   msg.Sequence,
		Timestamp:  time.Unix(0, msg.Timestamp),
		TickNumber: msg.TickNumber,
		SimTime:    time.Duration(msg.SimTime),
		MapWidth:   match.MapWidth,
		MapHeight:  match.MapHeight,
		Bases:      fromEntityData(msg.Bases),
		Towers:     fromEntityData(msg.Towers),
		Minions:    fromEntityData(msg.Minions),
		GoldTotal:  msg.GoldTotal,
		HeroHealth: msg.HeroHealth,
		Over:       msg.Over,
		Winner:     msg.Winner,
		Pending:    msg.Pending,
	}
	snap.Teams = make([]game.TeamSnapshot, len(msg.Teams))
	for i, t := range msg.Teams {
		snap.Teams[i] = game.TeamSnapshot(t)
	}
	return snap
}

func toEntityData(in []game.EntitySnapshot) []EntityData {
	out := make([]EntityData, len(in))
	for i, e := range in {
		out[i] = EntityData(e)
	}
	return out
}

func fromEntityData(in []EntityData) []game.EntitySnapshot {
	out := make([]game.EntitySnapshot, len(in))
	for i, e := range in {
		out[i] = game.EntitySnapshot(e)
	}
	return out
}
