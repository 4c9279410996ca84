package constants

import "time"

// Rating adjustment tuning. The clamp keeps a single match from moving a
// player more than MaxAdjust in either direction.
const (
	BaseGain      = 0.010
	KFactor       = 0.01
	MarginFactor  = 0.0005
	MinAdjust     = 0.005
	MaxAdjust     = 0.025
	DefaultRating = 3.5
)

const (
	DatabaseTimeout = 5 * time.Second
	WebhookTimeout  = 5 * time.Second
	RequestTimeout  = 30 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute

	// StoreBatchLimit is the hard cap on operations per committed batch,
	// kept below the document store's 500-write ceiling.
	StoreBatchLimit = 450
)

const (
	PlayersCollection         = "players"
	MatchesCollection         = "matches"
	TrainingMatchesCollection = "training_matches"
	RatingHistoryCollection   = "rating_history"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultHistoryLimit = 10
)
