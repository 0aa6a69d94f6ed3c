package game

// SelectTarget picks an attack target for unit. Priority, first match wins:
//
//  1. the first enemy minion in iteration order closer than aggroRange
//     (iteration order, not true nearest distance)
//  2. nextTower, the single tower on the unit's own path, if alive and in range
//  3. enemyBase, if alive and in range
//
// Returns nil when nothing is in range.
func SelectTarget(unit *Minion, enemyMinions []*Minion, nextTower *Tower, enemyBase *Base, aggroRange float64) Entity {
	for _, em := range enemyMinions {
		if em.HP <= 0 || em.Destroyed || em.Team == unit.Team {
			continue
		}
		if unit.Pos.Dist(em.Pos) < aggroRange {
			return em
		}
	}

	if nextTower != nil && nextTower.HP > 0 && !nextTower.Destroyed && nextTower.Team != unit.Team {
		if unit.Pos.Dist(nextTower.Pos) < aggroRange {
			return nextTower
		}
	}

	if enemyBase != nil && enemyBase.HP > 0 && enemyBase.Team != unit.Team {
		if unit.Pos.Dist(enemyBase.Pos) < aggroRange {
			return enemyBase
		}
	}

	return nil
}
