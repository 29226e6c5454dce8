package delta

import (
	"github.com/vovakirdan/hexarena/internal/hex"
	"github.com/vovakirdan/hexarena/internal/sim"
)

// Apply performs changes on s in order. Re-applying a record is
// harmless, and records naming a missing player or ball are skipped.
// It returns the number of records that found their target.
func Apply(s *sim.State, changes []Change) int {
	applied := 0
	for _, ch := range changes {
		if applyOne(s, ch) {
			applied++
		}
	}
	return applied
}

func applyOne(s *sim.State, ch Change) bool {
	if ch.Kind.IsPlayer() && !hex.InBounds(ch.Cell) {
		return false
	}
	switch ch.Kind {
	case PlayerAdded:
		if ch.Player == nil {
			return false
		}
		s.AddPlayer(ch.Cell, ch.Player.Clone())
		return true
	case PlayerRemoved:
		return s.RemovePlayer(ch.Cell)
	case HealthChanged, ShieldAngleChanged, ShieldMomentumChanged:
		p := s.PlayerAt(ch.Cell)
		if p == nil {
			return false
		}
		switch ch.Kind {
		case HealthChanged:
			p.Health = ch.Value
		case ShieldAngleChanged:
			p.ShieldAngle = ch.Value
		default:
			p.ShieldMomentum = ch.Value
		}
		return true
	case BallAdded:
		if ch.Ball == nil || ch.Index < 0 {
			return false
		}
		s.PutBall(ch.Index, ch.Ball.Clone())
		return true
	case BallRemoved:
		return s.RemoveBall(ch.Index)
	case BallPositionChanged, BallVelocityChanged:
		b := s.Ball(ch.Index)
		if b == nil {
			return false
		}
		if ch.Kind == BallPositionChanged {
			b.Position = ch.Vec
		} else {
			b.Velocity = ch.Vec
		}
		return true
	}
	return false
}

// Without returns changes minus the shield records addressed to cell.
// Clients drive their own shield locally and skip the server's echo.
func Without(changes []Change, cell hex.Cell) []Change {
	out := make([]Change, 0, len(changes))
	for _, ch := range changes {
		if ch.Cell == cell && (ch.Kind == ShieldAngleChanged || ch.Kind == ShieldMomentumChanged) {
			continue
		}
		out = append(out, ch)
	}
	return out
}
