package sim

import (
	"math"
	"math/rand"
	"testing"

	"github.com/vovakirdan/hexarena/internal/hex"
)

func centrePlayer(angle float64) *Player {
	return NewPlayer(PlayerSpec{Name: "Alice", Cell: hex.Center, ShieldAngle: &angle})
}

func TestShieldBounce(t *testing.T) {
	params := DefaultParams()
	p := centrePlayer(0)
	b := &Ball{
		Position: p.Position.Add(hex.Vec{X: 200}),
		Velocity: hex.Vec{X: -5},
	}

	if kind := Collide(p, b, params); kind != ShieldCollision {
		t.Fatalf("Collide() = %v, expected shield", kind)
	}
	if b.Velocity.X <= 0 {
		t.Errorf("ball should bounce away, velocity = %v", b.Velocity)
	}
	if want := 5 + params.ShieldBoost; math.Abs(b.Velocity.X-want) > 1e-9 {
		t.Errorf("outgoing speed = %v, expected %v", b.Velocity.X, want)
	}
	if b.Velocity.Y != 0 {
		t.Errorf("perpendicular component changed: %v", b.Velocity.Y)
	}
	if p.Health != MaxHealth {
		t.Errorf("shield hit changed health to %v", p.Health)
	}
}

func TestBodyHitOutsideShield(t *testing.T) {
	params := DefaultParams()

	damage := func(speed float64) float64 {
		p := centrePlayer(math.Pi) // shield faces away from the ball
		b := &Ball{
			Position: p.Position.Add(hex.Vec{X: 180}),
			Velocity: hex.Vec{X: -speed},
		}
		if kind := Collide(p, b, params); kind != BodyCollision {
			t.Fatalf("Collide() = %v, expected body", kind)
		}
		if b.Velocity.X <= 0 {
			t.Errorf("ball should bounce away, velocity = %v", b.Velocity)
		}
		return MaxHealth - p.Health
	}

	slow := damage(5)
	fast := damage(10)
	if slow <= 0 {
		t.Fatalf("body hit did no damage")
	}
	if want := params.DamageFactor * params.BodyDamping * 5; math.Abs(slow-want) > 1e-9 {
		t.Errorf("damage = %v, expected %v", slow, want)
	}
	if math.Abs(fast-2*slow) > 1e-9 {
		t.Errorf("damage not proportional to speed: %v vs %v", slow, fast)
	}
}

func TestBodyDamageFloorsAtZero(t *testing.T) {
	params := DefaultParams()
	health := 0.5
	angle := math.Pi
	p := NewPlayer(PlayerSpec{Cell: hex.Center, Health: &health, ShieldAngle: &angle})
	b := &Ball{Position: p.Position.Add(hex.Vec{X: 180}), Velocity: hex.Vec{X: -40}}

	Collide(p, b, params)
	if p.Health != 0 {
		t.Errorf("Health = %v, expected 0", p.Health)
	}
	if p.Alive() {
		t.Error("player should be dead")
	}
}

func TestDeadPlayerOnlyBounces(t *testing.T) {
	params := DefaultParams()
	health := 0.0
	p := NewPlayer(PlayerSpec{Cell: hex.Center, Health: &health})
	b := &Ball{Position: p.Position.Add(hex.Vec{X: 180}), Velocity: hex.Vec{X: -5}}

	if kind := Collide(p, b, params); kind != NoCollision {
		t.Errorf("Collide() on corpse = %v, expected none", kind)
	}
}

func TestBoundReflection(t *testing.T) {
	params := DefaultParams()
	p := centrePlayer(0)
	// Just inside the right edge, moving right.
	b := &Ball{
		Position: p.Position.Add(hex.Vec{X: 470}),
		Velocity: hex.Vec{X: 6, Y: 1},
	}
	if kind := Collide(p, b, params); kind != BoundCollision {
		t.Fatalf("Collide() = %v, expected bound", kind)
	}
	if math.Abs(b.Velocity.X+6) > 1e-9 || math.Abs(b.Velocity.Y-1) > 1e-9 {
		t.Errorf("velocity = %v, expected (-6, 1)", b.Velocity)
	}

	// An open edge lets the ball through.
	p.ActiveBounds[hex.Right] = false
	b = &Ball{Position: p.Position.Add(hex.Vec{X: 470}), Velocity: hex.Vec{X: 6, Y: 1}}
	if kind := Collide(p, b, params); kind != NoCollision {
		t.Errorf("Collide() through open edge = %v, expected none", kind)
	}
}

func TestSpeedClampAfterCollision(t *testing.T) {
	params := DefaultParams()
	rng := rand.New(rand.NewSource(7))
	hits := 0
	for range 5000 {
		p := centrePlayer(rng.Float64()*2*math.Pi - math.Pi)
		at := hex.FromAngle(rng.Float64() * 2 * math.Pi).Scale(rng.Float64() * 520)
		dir := hex.FromAngle(rng.Float64() * 2 * math.Pi).Scale(0.5 + rng.Float64()*80)
		b := &Ball{Position: p.Position.Add(at), Velocity: dir}
		if Collide(p, b, params) == NoCollision {
			continue
		}
		hits++
		speed := b.Velocity.Len()
		if speed < params.MinBallSpeed-1e-9 || speed > params.MaxBallSpeed+1e-9 {
			t.Fatalf("speed %v outside [%v, %v]", speed, params.MinBallSpeed, params.MaxBallSpeed)
		}
	}
	if hits == 0 {
		t.Fatal("no collisions generated")
	}
}
