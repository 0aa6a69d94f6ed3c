package game

import (
	"testing"
	"time"

	"lane-clash/internal/config"
)

// TestAttackKillsMinionOnce drives a 15hp minion down with 10-damage hits
func TestAttackKillsMinionOnce(t *testing.T) {
	s := newTestState(nil)
	attacker := testMinion(s, Team1, 0, 0, nil)
	victim := testMinion(s, Team2, 10, 0, nil)
	victim.HP = 15

	cooldown := attacker.AttackCooldown
	now := time.Duration(0)

	if res := Attack(s, attacker, victim, now); !res.Hit || res.Killed {
		t.Fatalf("first attack = %+v, want hit without kill", res)
	}
	if victim.HP != 5 {
		t.Fatalf("victim hp = %d, want 5", victim.HP)
	}

	// Still cooling down: no effect
	if res := Attack(s, attacker, victim, now+cooldown); res.Hit {
		t.Fatalf("attack at exactly the cooldown boundary landed: %+v", res)
	}

	now += cooldown + time.Millisecond
	res := Attack(s, attacker, victim, now)
	if !res.Killed {
		t.Fatalf("second attack = %+v, want kill", res)
	}
	if victim.HP > 0 {
		t.Errorf("victim hp = %d, want <= 0", victim.HP)
	}
	if got := s.Gold.Gold(Team1); got != s.Sim().GoldPerKill {
		t.Errorf("team1 gold = %d, want %d", got, s.Sim().GoldPerKill)
	}

	// Hitting the corpse after another cooldown changes nothing
	now += 2 * cooldown
	if res := Attack(s, attacker, victim, now); res.Hit {
		t.Errorf("attack on dead target landed: %+v", res)
	}
	if got := s.Gold.Gold(Team1); got != s.Sim().GoldPerKill {
		t.Errorf("gold credited twice: %d", got)
	}

	if removed := s.cleanup(); removed != 1 {
		t.Errorf("cleanup removed %d, want 1", removed)
	}
	if _, ok := s.Lookup(victim.ID); ok {
		t.Error("dead minion still addressable after cleanup")
	}
	for _, m := range s.Minions() {
		if m == victim {
			t.Error("dead minion still in active list")
		}
	}
}

func TestAttackGoldOnlyForMinions(t *testing.T) {
	tests := []struct {
		name   string
		target func(s *State) Entity
		gold   int
	}{
		{"minion", func(s *State) Entity { return testMinion(s, Team2, 0, 0, nil) }, 10},
		{"tower", func(s *State) Entity { return s.ActiveTowers(Team2)[0] }, 0},
		{"base", func(s *State) Entity { return s.Base(Team2) }, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestState(func(c *config.SimConfig) { c.AttackDamage = 1_000_000 })
			attacker := testMinion(s, Team1, 0, 0, nil)
			target := tt.target(s)

			res := Attack(s, attacker, target, 0)
			if !res.Killed {
				t.Fatalf("overkill hit did not kill: %+v", res)
			}
			if target.Health() != 0 {
				t.Errorf("hp = %d, want clamped to 0", target.Health())
			}
			if got := s.Gold.Total(); got != tt.gold {
				t.Errorf("gold = %d, want %d", got, tt.gold)
			}
			if s.IsActive(target) {
				t.Error("killed target still active")
			}
		})
	}
}

func TestAttackEmitsEvents(t *testing.T) {
	s := newTestState(nil)
	attacker := testMinion(s, Team1, 0, 0, nil)
	victim := testMinion(s, Team2, 0, 0, nil)
	victim.HP = attacker.AttackDamage

	Attack(s, attacker, victim, 0)

	events := s.drainEvents()
	want := []EventType{EventTypeDamage, EventTypeDestroyed, EventTypeGold}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i, ev := range events {
		if ev.Type != want[i] {
			t.Errorf("event %d = %s, want %s", i, ev.Type, want[i])
		}
	}
	if s.Kills[Team1] != 1 || s.Destroyed[Team2] != 1 {
		t.Errorf("kills=%v destroyed=%v", s.Kills, s.Destroyed)
	}
}

func TestCanAttack(t *testing.T) {
	m := &Minion{AttackCooldown: time.Second}
	if !m.CanAttack(0) {
		t.Error("first attack should be allowed immediately")
	}

	m.HasAttacked = true
	m.LastAttackAt = 2 * time.Second

	tests := []struct {
		now  time.Duration
		want bool
	}{
		{2 * time.Second, false},
		{3 * time.Second, false},
		{3*time.Second + 1, true},
	}
	for _, tt := range tests {
		if got := m.CanAttack(tt.now); got != tt.want {
			t.Errorf("CanAttack(%v) = %v, want %v", tt.now, got, tt.want)
		}
	}
}

func TestLedgerIgnoresNegativeCredit(t *testing.T) {
	var l Ledger
	l.Credit(Team1, 10)
	l.Credit(Team1, -50)
	l.Credit(Team2, 5)

	if l.Gold(Team1) != 10 || l.Total() != 15 {
		t.Errorf("ledger = %d/%d, want 10/15", l.Gold(Team1), l.Total())
	}
}
