package domain

import (
	"time"
)

// MatchSource identifies which of the two match collections a record came
// from. Both sources share the same logical shape and are processed uniformly.
type MatchSource string

const (
	SourceMatches  MatchSource = "matches"
	SourceTraining MatchSource = "training_matches"
)

// MatchStatus values as stored. Only finished matches feed the rating engine.
type MatchStatus string

const (
	StatusOpen      MatchStatus = "open"
	StatusLive      MatchStatus = "live"
	StatusPairing   MatchStatus = "pairing"
	StatusFinished  MatchStatus = "finished"
	StatusCancelled MatchStatus = "cancelled"
)

// HistoryReason marks why a rating history entry was written.
type HistoryReason string

const (
	ReasonMatchResult   HistoryReason = "match_result"
	ReasonRecalculation HistoryReason = "recalculation"
	ReasonSeedInit      HistoryReason = "seed_init"
)

type Player struct {
	ID     string  `firestore:"-"`
	Name   string  `firestore:"name"`
	Rating float64 `firestore:"rating"`

	// SelfRating is the operator/self-assessed baseline used to seed a full
	// recalculation. Zero means unset.
	SelfRating float64 `firestore:"self_rating"`

	LastRatingUpdate time.Time `firestore:"last_rating_update"`
}

type MatchRecord struct {
	ID     string
	Source MatchSource

	TeamAIDs []string
	TeamBIDs []string

	// Legacy participant slots; the first two are implicitly team A. Only
	// consulted when the explicit ID arrays are absent.
	Player1 string
	Player2 string
	Player3 string
	Player4 string

	ScoreA int
	ScoreB int

	Status MatchStatus

	// Date is the chronological ordering key. Zero means the stored date was
	// missing or unparseable; such records sort to the epoch sentinel.
	Date time.Time
}

// Finished reports whether the record is eligible for rating processing.
func (m *MatchRecord) Finished() bool {
	return m.Status == StatusFinished
}

type RatingHistoryEntry struct {
	ID        string        `firestore:"-"`
	PlayerID  string        `firestore:"player_id"`
	OldRating float64       `firestore:"old_rating"`
	NewRating float64       `firestore:"new_rating"`
	Delta     float64       `firestore:"delta"`
	Date      time.Time     `firestore:"date"`
	MatchID   string        `firestore:"match_id"`
	Reason    HistoryReason `firestore:"reason"`
}

// RatingUpdate is one pending mutation of a player's stored rating.
type RatingUpdate struct {
	PlayerID  string
	NewRating float64
	At        time.Time
}

// HistoryPoint is what the charting UI consumes.
type HistoryPoint struct {
	Rating float64   `json:"rating"`
	Date   time.Time `json:"date"`
}
