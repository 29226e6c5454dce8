// Package sim holds the arena simulation: players, balls, collision
// response and the fixed-step integrator shared by server and clients.
package sim

import (
	"errors"
	"fmt"
	"math"
)

// BallBlockPolicy decides whether balls keep a dead player's cell alive.
type BallBlockPolicy string

const (
	// BlockByRatio deletes blocking balls while the arena holds more
	// balls than the player:ball ratio allows.
	BlockByRatio BallBlockPolicy = "ratio"
	// BlockAlways never deletes a blocking ball.
	BlockAlways BallBlockPolicy = "always"
)

// Params are the tunable physics coefficients. Server and clients must
// run with identical values; the server ships them in every full state.
type Params struct {
	MinBallSpeed float64 `json:"min_ball_speed" yaml:"min_ball_speed" toml:"min_ball_speed"`
	MaxBallSpeed float64 `json:"max_ball_speed" yaml:"max_ball_speed" toml:"max_ball_speed"`

	// ShieldIncrement is the shield rotation per tick at momentum 1.
	ShieldIncrement float64 `json:"shield_increment" yaml:"shield_increment" toml:"shield_increment"`
	// ShieldBoost is added to the outgoing speed of a shield bounce.
	ShieldBoost float64 `json:"shield_boost" yaml:"shield_boost" toml:"shield_boost"`
	// BodyDamping scales the normal speed of a body hit.
	BodyDamping float64 `json:"body_damping" yaml:"body_damping" toml:"body_damping"`
	// DamageFactor converts normal impact speed into health loss.
	DamageFactor float64 `json:"damage_factor" yaml:"damage_factor" toml:"damage_factor"`

	BoundSlack  float64 `json:"bound_slack" yaml:"bound_slack" toml:"bound_slack"`
	MinApproach float64 `json:"min_approach" yaml:"min_approach" toml:"min_approach"`

	PlayerBallRatio    int             `json:"player_ball_ratio" yaml:"player_ball_ratio" toml:"player_ball_ratio"`
	BallBlockPolicy    BallBlockPolicy `json:"ball_block_policy" yaml:"ball_block_policy" toml:"ball_block_policy"`
	RemoveTrappedBalls bool            `json:"remove_trapped_balls" yaml:"remove_trapped_balls" toml:"remove_trapped_balls"`
}

// DefaultParams returns the standard arena coefficients.
func DefaultParams() Params {
	return Params{
		MinBallSpeed:       2,
		MaxBallSpeed:       50,
		ShieldIncrement:    math.Pi / 25,
		ShieldBoost:        1,
		BodyDamping:        0.9,
		DamageFactor:       0.4,
		BoundSlack:         4,
		MinApproach:        0.1,
		PlayerBallRatio:    7,
		BallBlockPolicy:    BlockByRatio,
		RemoveTrappedBalls: true,
	}
}

// Validate checks that the parameters describe a playable arena.
func (p Params) Validate() error {
	var errs []error
	if p.MinBallSpeed <= 0 {
		errs = append(errs, fmt.Errorf("min_ball_speed must be positive, got %v", p.MinBallSpeed))
	}
	if p.MaxBallSpeed < p.MinBallSpeed {
		errs = append(errs, fmt.Errorf("max_ball_speed %v below min_ball_speed %v", p.MaxBallSpeed, p.MinBallSpeed))
	}
	if p.PlayerBallRatio < 1 {
		errs = append(errs, fmt.Errorf("player_ball_ratio must be at least 1, got %d", p.PlayerBallRatio))
	}
	if p.BodyDamping < 0 || p.DamageFactor < 0 || p.ShieldBoost < 0 {
		errs = append(errs, errors.New("body_damping, damage_factor and shield_boost must not be negative"))
	}
	switch p.BallBlockPolicy {
	case BlockByRatio, BlockAlways:
	default:
		errs = append(errs, fmt.Errorf("unknown ball_block_policy %q", p.BallBlockPolicy))
	}
	return errors.Join(errs...)
}

// BallQuota is the number of balls the arena keeps for playerCount players.
func (p Params) BallQuota(playerCount int) int {
	ratio := max(p.PlayerBallRatio, 1)
	return (playerCount + ratio - 1) / ratio
}
