package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateDistanceIsSymmetric(t *testing.T) {
	points := [][2]float64{
		{46.7558, 33.3486},
		{50.4501, 30.5234},
		{-33.8688, 151.2093},
		{0, 0},
		{89.9, -179.9},
	}

	for _, a := range points {
		for _, b := range points {
			assert.Equal(t,
				CalculateDistance(a[0], a[1], b[0], b[1]),
				CalculateDistance(b[0], b[1], a[0], a[1]),
			)
		}
	}
}

func TestCalculateDistanceToSelfIsZero(t *testing.T) {
	assert.Zero(t, CalculateDistance(46.7558, 33.3486, 46.7558, 33.3486))
	assert.Zero(t, CalculateDistance(-90, 0, -90, 0))
}

func TestCalculateDistanceKnownValue(t *testing.T) {
	// One degree of longitude along the equator.
	assert.InDelta(t, 111.19, CalculateDistance(0, 0, 0, 1), 0.01)
	// Pole to pole.
	assert.InDelta(t, 20015.09, CalculateDistance(90, 0, -90, 0), 0.01)
}
