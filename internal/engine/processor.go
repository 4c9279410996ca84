package engine

import (
	"errors"
	"time"

	"padel-rating/internal/domain"
)

// ErrNoParticipants is returned when a match carries no resolvable player
// identifiers in any supported shape. Callers log and skip; it never aborts a
// wider flow.
var ErrNoParticipants = errors.New("no resolvable participants")

// Result is the pure outcome of processing one match: pending rating
// mutations plus the audit entries explaining them. Nothing is written here.
type Result struct {
	Mutations []domain.RatingUpdate
	History   []domain.RatingHistoryEntry

	// DeltaA and DeltaB are the signed per-team adjustments, kept for
	// notification text.
	DeltaA, DeltaB float64
}

// ProcessMatch computes the rating effect of a single finished match against
// a snapshot of current ratings.
//
// Ties produce an empty result with no error. Matches with no resolvable
// participants return ErrNoParticipants. Mutations and history entries are
// emitted only for players present in the snapshot; unknown IDs still count
// toward their team's average at the default rating.
func ProcessMatch(match *domain.MatchRecord, snapshot map[string]float64, reason domain.HistoryReason) (Result, error) {
	teams := ResolveTeams(match)
	if teams.Kind == Unresolvable {
		return Result{}, ErrNoParticipants
	}

	if match.ScoreA == match.ScoreB {
		return Result{}, nil
	}

	avgA := TeamAverage(teams.A, snapshot)
	avgB := TeamAverage(teams.B, snapshot)

	gameDiff := match.ScoreA - match.ScoreB
	if gameDiff < 0 {
		gameDiff = -gameDiff
	}
	wonA := match.ScoreA > match.ScoreB

	deltaA := ComputeDelta(wonA, avgA, avgB, gameDiff)
	deltaB := ComputeDelta(!wonA, avgB, avgA, gameDiff)

	at := match.Date
	if at.IsZero() {
		at = time.Now()
	}

	res := Result{DeltaA: deltaA, DeltaB: deltaB}
	res.apply(teams.A, deltaA, snapshot, match.ID, at, reason)
	res.apply(teams.B, deltaB, snapshot, match.ID, at, reason)

	return res, nil
}

func (r *Result) apply(ids []string, delta float64, snapshot map[string]float64, matchID string, at time.Time, reason domain.HistoryReason) {
	for _, id := range ids {
		old, ok := snapshot[id]
		if !ok {
			// No player record: the ID influenced the team average but gets
			// no mutation of its own.
			continue
		}
		next := RoundRating(old + delta)

		r.Mutations = append(r.Mutations, domain.RatingUpdate{
			PlayerID:  id,
			NewRating: next,
			At:        at,
		})
		r.History = append(r.History, domain.RatingHistoryEntry{
			PlayerID:  id,
			OldRating: old,
			NewRating: next,
			Delta:     RoundDelta(delta),
			Date:      at,
			MatchID:   matchID,
			Reason:    reason,
		})
	}
}
