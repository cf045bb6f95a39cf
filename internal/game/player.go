// Package game holds the world value types (players, spores) and the
// radius/mass geometry they share. All mutation happens on the hub
// goroutine; nothing in this package is safe for concurrent use.
package game

import (
	"math"
	"math/rand/v2"
	"time"
)

// World and player tuning. The client renders against the same numbers.
const (
	WorldBound = 3000.0

	InitRadius         = 20.0
	MinRadius          = 10.0
	InitDirectionAngle = 0.0
	InitSpeed          = 150.0

	RushSpeed    = 300.0
	RushDuration = 2 * time.Second
)

// Player is an in-world avatar owned by a joined client.
// DBID survives across sessions; ConnectionID is fixed for one session.
type Player struct {
	DBID         int64
	ConnectionID string
	Nickname     string
	Color        int32

	X              float64
	Y              float64
	Radius         float64
	DirectionAngle float64
	Speed          float64

	// RushStartedAt is zero while no rush is active.
	RushStartedAt time.Time
}

// NewRandomPlayer spawns a player at a uniform random position inside
// the world bound with initial radius and speed.
func NewRandomPlayer(rng *rand.Rand, dbID int64, connectionID, nickname string, color int32) *Player {
	return &Player{
		DBID:           dbID,
		ConnectionID:   connectionID,
		Nickname:       nickname,
		Color:          color,
		X:              randomCoord(rng),
		Y:              randomCoord(rng),
		Radius:         InitRadius,
		DirectionAngle: InitDirectionAngle,
		Speed:          InitSpeed,
	}
}

// Rushing reports whether a rush is currently stamped on the player.
func (p *Player) Rushing() bool {
	return !p.RushStartedAt.IsZero()
}

// Tick advances the player by delta along its direction angle and
// expires a finished rush, restoring the base speed.
func (p *Player) Tick(now time.Time, delta time.Duration) {
	dt := delta.Seconds()
	p.X += p.Speed * math.Cos(p.DirectionAngle) * dt
	p.Y += p.Speed * math.Sin(p.DirectionAngle) * dt

	if p.Rushing() && now.Sub(p.RushStartedAt) > RushDuration {
		p.RushStartedAt = time.Time{}
		p.Speed = InitSpeed
	}
}

// IncreaseMass grows the player by the given mass.
func (p *Player) IncreaseMass(mass float64) {
	p.Radius = MassToRadius(RadiusToMass(p.Radius) + mass)
}

// TryDecreaseMass shrinks the player by the given mass. It refuses when
// the player is already at the minimum radius or when the decrease
// would push the radius below it, so Radius >= MinRadius always holds.
func (p *Player) TryDecreaseMass(mass float64) bool {
	if p.Radius <= MinRadius {
		return false
	}
	remaining := RadiusToMass(p.Radius) - mass
	if remaining <= 0 || MassToRadius(remaining) < MinRadius {
		return false
	}
	p.Radius = MassToRadius(remaining)
	return true
}

// TryDropMass is TryDecreaseMass returning the dropped mass on success,
// for callers that turn the loss into a spore.
func (p *Player) TryDropMass(mass float64) (float64, bool) {
	if !p.TryDecreaseMass(mass) {
		return 0, false
	}
	return mass, true
}

// Rush boosts the player's speed and stamps the rush start. The mass
// cost and the eligibility checks belong to the hub.
func (p *Player) Rush(now time.Time) {
	p.Speed = RushSpeed
	p.RushStartedAt = now
}

// Respawn re-randomizes the position and resets radius, speed and rush
// state. Identity (DBID, ConnectionID, Nickname, Color) is kept.
func (p *Player) Respawn(rng *rand.Rand) {
	p.X = randomCoord(rng)
	p.Y = randomCoord(rng)
	p.Radius = InitRadius
	p.Speed = InitSpeed
	p.RushStartedAt = time.Time{}
}

func randomCoord(rng *rand.Rand) float64 {
	return (rng.Float64()*2 - 1) * WorldBound
}
