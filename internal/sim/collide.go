package sim

import (
	"math"

	"github.com/vovakirdan/hexarena/internal/hex"
)

// CollisionKind identifies which test deflected a ball.
type CollisionKind uint8

const (
	NoCollision CollisionKind = iota
	BoundCollision
	ShieldCollision
	BodyCollision
)

func (k CollisionKind) String() string {
	switch k {
	case BoundCollision:
		return "bound"
	case ShieldCollision:
		return "shield"
	case BodyCollision:
		return "body"
	default:
		return "none"
	}
}

// Collide runs the boundary, shield and body tests in that order against
// the player owning the ball's cell. The first test that fires wins.
func Collide(p *Player, b *Ball, params Params) CollisionKind {
	switch {
	case collideBound(p, b, params):
		return BoundCollision
	case collideShield(p, b, params):
		return ShieldCollision
	case collideBody(p, b, params):
		return BodyCollision
	}
	return NoCollision
}

func collideBound(p *Player, b *Ball, params Params) bool {
	points := hex.ZonePoints()
	normals := hex.BoundNormals()
	for d, active := range p.ActiveBounds {
		if !active {
			continue
		}
		n := normals[d]
		v := b.Position.Sub(p.Position.Add(points[d]))
		if v.Dot(n) >= hex.BallRadius+params.BoundSlack {
			continue
		}
		vn := b.Velocity.Dot(n)
		if vn > -params.MinApproach {
			continue
		}
		b.Velocity = clampSpeed(reflect(b.Velocity, n, vn, -vn), params)
		return true
	}
	return false
}

func collideShield(p *Player, b *Ball, params Params) bool {
	if !p.Alive() {
		return false
	}
	v := b.Position.Sub(p.Position)
	dist := v.Len()
	if dist == 0 || dist >= hex.ShieldRadius+hex.BallRadius+1 {
		return false
	}
	n := v.Scale(1 / dist)
	vn := b.Velocity.Dot(n)
	if vn > -params.MinApproach {
		return false
	}
	if math.Abs(hex.WrapAngle(v.Angle()-p.ShieldAngle)) >= hex.HalfShieldWidth {
		return false
	}
	b.Velocity = clampSpeed(reflect(b.Velocity, n, vn, -(vn - params.ShieldBoost)), params)
	return true
}

func collideBody(p *Player, b *Ball, params Params) bool {
	if !p.Alive() {
		return false
	}
	v := b.Position.Sub(p.Position)
	dist := v.Len()
	if dist == 0 || dist >= hex.PlayerRadius+hex.BallRadius+1 {
		return false
	}
	n := v.Scale(1 / dist)
	vn := b.Velocity.Dot(n)
	if vn > -params.MinApproach {
		return false
	}
	damped := vn * params.BodyDamping
	b.Velocity = clampSpeed(reflect(b.Velocity, n, vn, -damped), params)
	p.Health = max(p.Health+params.DamageFactor*damped, 0)
	return true
}

// reflect replaces the component of vel along unit normal n, currently
// vn, by out.
func reflect(vel, n hex.Vec, vn, out float64) hex.Vec {
	return vel.Sub(n.Scale(vn)).Add(n.Scale(out))
}

func clampSpeed(vel hex.Vec, params Params) hex.Vec {
	speed := vel.Len()
	switch {
	case speed == 0:
		return vel
	case speed < params.MinBallSpeed:
		return vel.Scale(params.MinBallSpeed / speed)
	case speed > params.MaxBallSpeed:
		return vel.Scale(params.MaxBallSpeed / speed)
	}
	return vel
}
