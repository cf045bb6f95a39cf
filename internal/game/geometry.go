package game

import "math"

// proximitySlack widens the consume check by one tick of motion so a
// client-reported consumption is not rejected just because the server
// simulated the eater a frame ahead of the client.
const proximitySlack = 10.0

// RadiusToMass converts a circle radius to its mass (area).
func RadiusToMass(radius float64) float64 {
	return math.Pi * radius * radius
}

// MassToRadius converts a mass (area) back to the circle radius.
func MassToRadius(mass float64) float64 {
	return math.Sqrt(mass / math.Pi)
}

// Close reports whether two circles are near enough for one to consume
// the other: squared center distance below (r1+r2+slack)².
func Close(x1, y1, r1, x2, y2, r2 float64) bool {
	dx := x1 - x2
	dy := y1 - y2
	reach := r1 + r2 + proximitySlack
	return dx*dx+dy*dy < reach*reach
}
