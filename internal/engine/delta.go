package engine

import (
	"math"

	"padel-rating/internal/constants"
)

// ComputeDelta returns the signed rating change for one side of a match.
//
// The magnitude starts at the base gain, grows when the opponent side is
// rated higher than the caller's side, grows with the game margin, and is
// clamped to [MinAdjust, MaxAdjust]. Winners gain, losers lose. Ties are the
// caller's responsibility and must never reach this function.
func ComputeDelta(isWinner bool, myTeamAvg, opponentTeamAvg float64, gameDiff int) float64 {
	delta := constants.BaseGain

	// Beating stronger opposition is worth more; losing to weaker opposition
	// costs more. Each side evaluates the difference from its own seat, so the
	// term carries the same sign for both calls.
	delta += (opponentTeamAvg - myTeamAvg) * constants.KFactor

	delta += float64(gameDiff) * constants.MarginFactor

	delta = math.Max(constants.MinAdjust, math.Min(constants.MaxAdjust, delta))

	if isWinner {
		return delta
	}
	return -delta
}

// TeamAverage is the mean rating of a side, with absent members counted at
// the default rating.
func TeamAverage(ids []string, snapshot map[string]float64) float64 {
	if len(ids) == 0 {
		return constants.DefaultRating
	}
	var sum float64
	for _, id := range ids {
		if r, ok := snapshot[id]; ok {
			sum += r
		} else {
			sum += constants.DefaultRating
		}
	}
	return sum / float64(len(ids))
}

// RoundRating and RoundDelta match the precision the store keeps: ratings at
// two decimals, recorded deltas at three. Keeping the rounding here makes
// replays bit-stable.
func RoundRating(v float64) float64 {
	return math.Round(v*100) / 100
}

func RoundDelta(v float64) float64 {
	return math.Round(v*1000) / 1000
}
