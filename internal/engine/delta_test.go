package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"padel-rating/internal/constants"
)

func TestComputeDelta_Bounds(t *testing.T) {
	tests := []struct {
		name     string
		isWinner bool
		myAvg    float64
		oppAvg   float64
		gameDiff int
	}{
		{"even teams narrow win", true, 3.5, 3.5, 1},
		{"even teams narrow loss", false, 3.5, 3.5, 1},
		{"huge underdog win", true, 1.0, 7.0, 6},
		{"huge favourite loss", false, 7.0, 1.0, 6},
		{"blowout", true, 4.0, 4.0, 7},
		{"zero margin", true, 4.0, 4.0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta := ComputeDelta(tt.isWinner, tt.myAvg, tt.oppAvg, tt.gameDiff)

			mag := delta
			if mag < 0 {
				mag = -mag
			}
			assert.GreaterOrEqual(t, mag, constants.MinAdjust)
			assert.LessOrEqual(t, mag, constants.MaxAdjust)

			if tt.isWinner {
				assert.Positive(t, delta, "winner delta must be strictly positive")
			} else {
				assert.Negative(t, delta, "loser delta must be strictly negative")
			}
		})
	}
}

func TestComputeDelta_StrongerOpponentPaysMore(t *testing.T) {
	vsStronger := ComputeDelta(true, 3.0, 5.0, 2)
	vsWeaker := ComputeDelta(true, 5.0, 3.0, 2)
	assert.Greater(t, vsStronger, vsWeaker, "beating a stronger side is worth more")
}

func TestComputeDelta_MarginGrowsAdjustment(t *testing.T) {
	narrow := ComputeDelta(true, 4.0, 4.0, 1)
	blowout := ComputeDelta(true, 4.0, 4.0, 6)
	assert.Greater(t, blowout, narrow)
}

// Player A (4.00 avg) beats player B (3.50 avg) 6-2. The opponent-is-weaker
// term pulls the winner's gain down, the 4-game margin pushes it back up; the
// loser evaluates the mirror from their own seat.
func TestComputeDelta_ConcreteScenario(t *testing.T) {
	winner := ComputeDelta(true, 4.00, 3.50, 4)
	loser := ComputeDelta(false, 3.50, 4.00, 4)

	// 0.010 + (3.5-4.0)*0.01 + 4*0.0005 = 0.007
	assert.InDelta(t, 0.007, winner, 1e-9)
	// -(0.010 + (4.0-3.5)*0.01 + 4*0.0005) = -0.017
	assert.InDelta(t, -0.017, loser, 1e-9)
}

func TestTeamAverage(t *testing.T) {
	snapshot := map[string]float64{"a": 4.0, "b": 5.0}

	assert.InDelta(t, 4.5, TeamAverage([]string{"a", "b"}, snapshot), 1e-9)
	assert.InDelta(t, constants.DefaultRating, TeamAverage(nil, snapshot), 1e-9)
	// Unknown members count at the default rating.
	assert.InDelta(t, (4.0+constants.DefaultRating)/2, TeamAverage([]string{"a", "ghost"}, snapshot), 1e-9)
}

func TestRounding(t *testing.T) {
	assert.InDelta(t, 3.57, RoundRating(3.5678), 1e-9)
	assert.InDelta(t, 0.017, RoundDelta(0.01699), 1e-9)
	assert.InDelta(t, -0.017, RoundDelta(-0.0174), 1e-9)
}
