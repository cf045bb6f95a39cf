package game

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestMassRadiusRoundTrip(t *testing.T) {
	for _, mass := range []float64{1, 100, 1256.6, 98765.4} {
		assert.InDelta(t, mass, RadiusToMass(MassToRadius(mass)), 1e-9)
	}
	for _, radius := range []float64{5, 10, 20, 333.3} {
		assert.InDelta(t, radius, MassToRadius(RadiusToMass(radius)), 1e-9)
	}
}

func TestClose(t *testing.T) {
	// 25² < (20+10+10)² — consumable even though the circles barely touch.
	assert.True(t, Close(0, 0, 20, 25, 0, 10))
	// Far spore must be rejected.
	assert.False(t, Close(0, 0, 20, 200, 0, 10))
	// Boundary is exclusive.
	assert.False(t, Close(0, 0, 20, 40, 0, 10))
}

func TestNewRandomPlayerBounds(t *testing.T) {
	rng := testRand()
	for range 100 {
		p := NewRandomPlayer(rng, 1, "conn", "alice", 0x112233FF)
		require.LessOrEqual(t, math.Abs(p.X), WorldBound)
		require.LessOrEqual(t, math.Abs(p.Y), WorldBound)
		require.Equal(t, InitRadius, p.Radius)
		require.Equal(t, InitSpeed, p.Speed)
		require.False(t, p.Rushing())
	}
}

func TestPlayerTickMoves(t *testing.T) {
	p := NewRandomPlayer(testRand(), 1, "conn", "alice", 0)
	p.X, p.Y = 0, 0
	p.DirectionAngle = 0

	p.Tick(time.Now(), 500*time.Millisecond)

	assert.InDelta(t, InitSpeed*0.5, p.X, 1e-9)
	assert.InDelta(t, 0, p.Y, 1e-9)
}

func TestRushExpiry(t *testing.T) {
	p := NewRandomPlayer(testRand(), 1, "conn", "alice", 0)
	p.Radius = 30

	t0 := time.Now()
	p.Rush(t0)
	require.Equal(t, RushSpeed, p.Speed)

	p.Tick(t0.Add(1900*time.Millisecond), 50*time.Millisecond)
	assert.Equal(t, RushSpeed, p.Speed)
	assert.True(t, p.Rushing())

	p.Tick(t0.Add(2100*time.Millisecond), 50*time.Millisecond)
	assert.Equal(t, InitSpeed, p.Speed)
	assert.False(t, p.Rushing())
}

func TestTryDecreaseMass(t *testing.T) {
	p := NewRandomPlayer(testRand(), 1, "conn", "alice", 0)

	p.Radius = MinRadius
	assert.False(t, p.TryDecreaseMass(1))
	assert.Equal(t, MinRadius, p.Radius)

	p.Radius = 30
	assert.False(t, p.TryDecreaseMass(RadiusToMass(30)+1), "would zero out the mass")

	// A decrease that would land below the minimum radius is refused.
	p.Radius = 11
	assert.False(t, p.TryDecreaseMass(RadiusToMass(11)-RadiusToMass(9)))
	assert.Equal(t, 11.0, p.Radius)

	p.Radius = 30
	require.True(t, p.TryDecreaseMass(RadiusToMass(30)*0.2))
	assert.InDelta(t, MassToRadius(RadiusToMass(30)*0.8), p.Radius, 1e-9)
	assert.GreaterOrEqual(t, p.Radius, MinRadius)
}

func TestTryDropMass(t *testing.T) {
	p := NewRandomPlayer(testRand(), 1, "conn", "alice", 0)
	p.Radius = 30

	dropped, ok := p.TryDropMass(100)
	require.True(t, ok)
	assert.Equal(t, 100.0, dropped)

	p.Radius = MinRadius
	_, ok = p.TryDropMass(1)
	assert.False(t, ok)
}

func TestIncreaseMass(t *testing.T) {
	p := NewRandomPlayer(testRand(), 1, "conn", "alice", 0)
	p.Radius = 20

	p.IncreaseMass(RadiusToMass(10))

	// Eating a radius-10 spore at radius 20: new mass π·(400+100).
	assert.InDelta(t, math.Pi*500, RadiusToMass(p.Radius), 1e-9)
}

func TestRespawnKeepsIdentity(t *testing.T) {
	rng := testRand()
	p := NewRandomPlayer(rng, 7, "conn-7", "bob", 0x00FF00FF)
	p.Radius = 50
	p.Rush(time.Now())

	p.Respawn(rng)

	assert.Equal(t, int64(7), p.DBID)
	assert.Equal(t, "conn-7", p.ConnectionID)
	assert.Equal(t, "bob", p.Nickname)
	assert.Equal(t, int32(0x00FF00FF), p.Color)
	assert.Equal(t, InitRadius, p.Radius)
	assert.Equal(t, InitSpeed, p.Speed)
	assert.False(t, p.Rushing())
}

func TestNewRandomSpore(t *testing.T) {
	rng := testRand()
	for range 100 {
		s := NewRandomSpore(rng)
		require.Len(t, s.ID, 21)
		require.LessOrEqual(t, math.Abs(s.X), WorldBound)
		require.LessOrEqual(t, math.Abs(s.Y), WorldBound)
		require.GreaterOrEqual(t, s.Radius, 10.0)
		require.Less(t, s.Radius, 13.0)
	}
}
