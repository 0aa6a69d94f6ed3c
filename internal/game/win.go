package game

import "log"

// CheckWinCondition declares a winner once a base has fallen. Team1's base
// is checked before team2's, so a double knockout in one tick goes to team2.
// It reports true only on the call that declares the result; once the match
// is over it keeps returning the recorded winner with false.
func CheckWinCondition(s *State) (Team, bool) {
	if s.Over {
		return s.Winner, false
	}

	for _, team := range Teams {
		if s.Base(team).HP > 0 {
			continue
		}

		s.Over = true
		s.Winner = team.Opponent()
		s.emit(NewEvent(EventTypeMatchOver, s.Base(team).ID, MatchOverPayload{
			Winner:    s.Winner.String(),
			Loser:     team.String(),
			SimTimeNs: int64(s.Now),
		}))
		log.Printf("🏆 %s wins! (%s base destroyed at tick %d)", s.Winner, team, s.Tick)
		return s.Winner, true
	}

	return TeamNone, false
}
