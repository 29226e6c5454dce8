package sim

import "github.com/vovakirdan/hexarena/internal/hex"

// Collision records one deflected ball.
type Collision struct {
	Ball int
	Cell hex.Cell
	Kind CollisionKind
}

// TickEvents lists what happened during one Tick.
type TickEvents struct {
	Collisions     []Collision
	RemovedPlayers []hex.Cell
	RemovedBalls   []int
}

// Tick advances the arena by one fixed step: dead players are cleared,
// shields turn, balls collide and move. It uses no randomness, so equal
// states tick to equal states.
func (s *State) Tick() TickEvents {
	var ev TickEvents
	s.clearDead(&ev)
	s.turnShields()
	s.moveBalls(&ev)
	return ev
}

// clearDead removes dead players whose cells hold no ball. Balls keep a
// corpse in place unless the ball budget is exceeded or the corpse is
// walled in, in which case the balls go instead.
func (s *State) clearDead(ev *TickEvents) {
	for off, p := range s.players {
		if p == nil || p.Alive() {
			continue
		}
		c := hex.CellAt(off)
		balls := s.BallsIn(c)
		for len(balls) > 0 && s.mayDropBall(p) {
			i := balls[len(balls)-1]
			balls = balls[:len(balls)-1]
			s.RemoveBall(i)
			ev.RemovedBalls = append(ev.RemovedBalls, i)
		}
		if len(balls) > 0 {
			continue
		}
		s.RemovePlayer(c)
		ev.RemovedPlayers = append(ev.RemovedPlayers, c)
	}
}

func (s *State) mayDropBall(corpse *Player) bool {
	if s.params.RemoveTrappedBalls && corpse.Enclosed() {
		return true
	}
	return s.params.BallBlockPolicy == BlockByRatio && s.BallCount > s.params.BallQuota(s.PlayerCount)
}

func (s *State) turnShields() {
	for _, p := range s.players {
		if p != nil && p.ShieldMomentum != 0 {
			p.ShieldAngle = hex.WrapAngle(p.ShieldAngle + p.ShieldMomentum*s.params.ShieldIncrement)
		}
	}
}

func (s *State) moveBalls(ev *TickEvents) {
	for i, b := range s.balls {
		if b == nil {
			continue
		}
		c := hex.PositionToCell(b.Position)
		if p := s.PlayerAt(c); p != nil {
			if kind := Collide(p, b, s.params); kind != NoCollision {
				ev.Collisions = append(ev.Collisions, Collision{Ball: i, Cell: c, Kind: kind})
			}
		}
		b.Position = b.Position.Add(b.Velocity)
	}
}
