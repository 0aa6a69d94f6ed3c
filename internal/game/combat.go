package game

import (
	"log"
	"time"
)

// AttackResult reports the outcome of one Attack call.
type AttackResult struct {
	Hit    bool // damage was applied
	Damage int
	Killed bool // target hp reached zero on this hit
	Gold   int  // gold credited to the attacker's team
}

// CanAttack reports whether the attacker's cooldown window has elapsed.
func (m *Minion) CanAttack(now time.Duration) bool {
	return !m.HasAttacked || now-m.LastAttackAt > m.AttackCooldown
}

// Attack resolves one attack of attacker on target at simulation time now.
//
// It is a no-op while the attacker is cooling down or the target is already
// dead, so at most one hit lands per cooldown window however often it is
// called. A killing blow detaches the target from the active set, emits a
// removal event and, only for minion victims, credits GoldPerKill to the
// attacker's team.
func Attack(s *State, attacker *Minion, target Entity, now time.Duration) AttackResult {
	if target == nil || !attacker.CanAttack(now) || target.Health() <= 0 {
		return AttackResult{}
	}

	dmg := attacker.AttackDamage
	killed := target.damage(dmg)
	attacker.LastAttackAt = now
	attacker.HasAttacked = true

	s.emit(NewEvent(EventTypeDamage, target.EntityID(), DamagePayload{
		AttackerID: attacker.ID,
		VictimID:   target.EntityID(),
		Damage:     dmg,
		VictimHP:   target.Health(),
	}))

	res := AttackResult{Hit: true, Damage: dmg}
	if !killed {
		return res
	}

	res.Killed = true
	s.Kills[attacker.Team]++
	s.Destroyed[target.TeamID()]++

	log.Printf("💀 %s %s destroyed by %s", target.Kind(), target.EntityID(), attacker.ID)

	s.emit(NewEvent(EventTypeDestroyed, target.EntityID(), DestroyedPayload{
		EntityID: target.EntityID(),
		Kind:     target.Kind().String(),
		Team:     target.TeamID().String(),
		KillerID: attacker.ID,
		X:        target.Center().X,
		Y:        target.Center().Y,
	}))

	if target.Kind() == KindMinion && s.sim.GoldPerKill > 0 {
		balance := s.Gold.Credit(attacker.Team, s.sim.GoldPerKill)
		res.Gold = s.sim.GoldPerKill
		s.emit(NewEvent(EventTypeGold, attacker.ID, GoldPayload{
			Team:    attacker.Team.String(),
			Amount:  s.sim.GoldPerKill,
			Balance: balance,
		}))
	}

	return res
}
