package game

import (
	"math/rand/v2"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Spore is an edible pellet. Spores are never mutated after creation;
// consumption removes them and drops insert fresh ones.
type Spore struct {
	ID     string
	X      float64
	Y      float64
	Radius float64
}

// NewRandomSpore creates a spore at a uniform random position inside
// the world bound with radius in [10, 13), floored at 5.
func NewRandomSpore(rng *rand.Rand) *Spore {
	return &Spore{
		ID:     gonanoid.Must(),
		X:      randomCoord(rng),
		Y:      randomCoord(rng),
		Radius: max(rng.Float64()*3+10, 5),
	}
}
