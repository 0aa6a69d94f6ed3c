package game

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestEventLogWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")

	el := NewEventLog()
	if err := el.Start(path); err != nil {
		t.Fatal(err)
	}
	el.Emit(NewEvent(EventTypeSpawn, "minion-0", SpawnPayload{Team: "team1", HP: 100}))
	el.Emit(NewEvent(EventTypeMatchOver, "base-2", MatchOverPayload{Winner: "team1", Loser: "team2"}))
	el.Stop()
	el.Stop() // idempotent

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var types []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec struct {
			Type     string `json:"type"`
			Sequence uint64 `json:"sequence"`
		}
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		types = append(types, rec.Type)
	}

	if len(types) != 2 || types[0] != "spawn" || types[1] != "match_over" {
		t.Errorf("logged types = %v", types)
	}
}

func TestEventLogPerEntityLimit(t *testing.T) {
	el := NewEventLog()
	if err := el.Start(""); err != nil {
		t.Fatal(err)
	}
	defer el.Stop()

	accepted := 0
	for i := 0; i < 50; i++ {
		if el.Emit(NewEvent(EventTypeDamage, "tower-under-siege", DamagePayload{Damage: 10})) {
			accepted++
		}
	}
	if accepted >= 50 {
		t.Error("per-entity limiter let every event through")
	}
	if el.GetDroppedCount() == 0 {
		t.Error("dropped count not recorded")
	}

	// Match boundaries are never rate limited
	for i := 0; i < 50; i++ {
		if !el.Emit(Event{Type: EventTypeTick, EntityID: "tower-under-siege"}) {
			t.Fatalf("tick event %d dropped", i)
		}
	}
}

func TestEventLogRecent(t *testing.T) {
	el := NewEventLog()
	if el.Emit(NewEvent(EventTypeReset, "", nil)) {
		t.Error("Emit accepted an event before Start")
	}

	el.Start("")
	defer el.Stop()

	for i := 0; i < 5; i++ {
		el.Emit(Event{Type: EventTypeTick, TickNum: uint64(i)})
	}

	got := el.Recent(3)
	if len(got) != 3 {
		t.Fatalf("Recent(3) returned %d events", len(got))
	}
	if got[0].TickNum != 2 || got[2].TickNum != 4 {
		t.Errorf("Recent order = %d..%d, want 2..4", got[0].TickNum, got[2].TickNum)
	}
	if n := len(el.Recent(0)); n != 5 {
		t.Errorf("Recent(0) returned %d, want all 5", n)
	}
}
