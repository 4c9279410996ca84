package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"padel-rating/internal/constants"
	"padel-rating/internal/domain"
	"padel-rating/internal/engine"
	"padel-rating/internal/notify"
	"padel-rating/internal/store"
)

// ErrRecalcRunning is returned when a second recalculation is requested while
// one is still in flight. One at a time, by convention.
var ErrRecalcRunning = errors.New("recalculation already running")

// RatingService owns both rating entry points: the single-match live update
// and the full destructive recalculation.
//
// Single-match updates for different matches may race on a shared player; the
// store's last-write-wins field semantics are accepted, and a full
// recalculation repairs any drift.
type RatingService struct {
	store    store.Store
	notifier notify.Notifier
	logger   zerolog.Logger

	recalcRunning atomic.Bool
}

func NewRatingService(s store.Store, n notify.Notifier, logger zerolog.Logger) *RatingService {
	return &RatingService{store: s, notifier: n, logger: logger}
}

// ProcessMatch applies the rating effect of one freshly finished match. It
// reads only the participants involved, processes, and commits a single
// batch. Skips (ties, unresolvable participants, ineligible records) are not
// errors; this path never blocks match finalization.
func (s *RatingService) ProcessMatch(ctx context.Context, source domain.MatchSource, matchID string) (*engine.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	match, err := s.store.GetMatch(ctx, source, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load match: %w", err)
	}

	if !match.Finished() && match.ScoreA+match.ScoreB == 0 {
		s.logger.Info().Str("match_id", matchID).Str("status", string(match.Status)).Msg("match not eligible for rating, skipping")
		return &engine.Result{}, nil
	}

	teams := engine.ResolveTeams(match)
	if teams.Kind == engine.Unresolvable {
		s.logger.Warn().Str("match_id", matchID).Msg("no player ids found for rating adjustment")
		return &engine.Result{}, nil
	}

	snapshot, err := s.participantRatings(ctx, append(append([]string{}, teams.A...), teams.B...))
	if err != nil {
		return nil, err
	}

	res, err := engine.ProcessMatch(match, snapshot, domain.ReasonMatchResult)
	if err != nil {
		// Unreachable after the resolution check above, kept for safety.
		s.logger.Warn().Err(err).Str("match_id", matchID).Msg("match skipped")
		return &engine.Result{}, nil
	}
	if len(res.Mutations) == 0 {
		s.logger.Info().Str("match_id", matchID).Msg("tie or no known participants, no rating change")
		return &res, nil
	}

	batch := store.Batch{RatingUpdates: res.Mutations, HistoryWrites: res.History}
	if err := s.store.CommitBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to commit rating update: %w", err)
	}

	winnerDelta := res.DeltaA
	if res.DeltaB > winnerDelta {
		winnerDelta = res.DeltaB
	}

	s.logger.Info().
		Str("match_id", matchID).
		Str("source", string(source)).
		Float64("delta_a", res.DeltaA).
		Float64("delta_b", res.DeltaB).
		Int("players_updated", len(res.Mutations)).
		Msg("ratings updated")

	s.notifier.Toast(fmt.Sprintf("Levels updated: winners +%.3f", winnerDelta))

	return &res, nil
}

func (s *RatingService) participantRatings(ctx context.Context, ids []string) (map[string]float64, error) {
	players, err := s.store.GetPlayers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}

	snapshot := make(map[string]float64, len(players))
	for id, p := range players {
		snapshot[id] = p.Rating
	}
	return snapshot, nil
}

// RecalculateAll rebuilds every rating and the full audit trail from the
// complete match corpus. Destructive and idempotent; see engine.Recalculation.
func (s *RatingService) RecalculateAll(ctx context.Context) (*engine.Report, error) {
	if !s.recalcRunning.CompareAndSwap(false, true) {
		return nil, ErrRecalcRunning
	}
	defer s.recalcRunning.Store(false)

	s.logger.Info().Msg("starting global rating recalculation")
	return engine.NewRecalculation(s.store, s.logger).Run(ctx)
}

// PlayerHistory returns a player's rating trajectory in ascending date order
// for charting.
func (s *RatingService) PlayerHistory(ctx context.Context, playerID string, limit int) ([]domain.HistoryPoint, error) {
	if limit <= 0 {
		limit = constants.DefaultHistoryLimit
	}

	entries, err := s.store.PlayerHistory(ctx, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	// Store returns newest first; the chart wants oldest first.
	points := make([]domain.HistoryPoint, len(entries))
	for i, e := range entries {
		points[len(entries)-1-i] = domain.HistoryPoint{Rating: e.NewRating, Date: e.Date}
	}
	return points, nil
}

// SeedHistory writes a synthetic upward-trending rating history for a player
// and sets the final rating accordingly. Maintenance tool for accounts that
// predate the audit trail.
func (s *RatingService) SeedHistory(ctx context.Context, playerID string, startRating float64, matchCount int) (float64, error) {
	if matchCount <= 0 {
		return 0, fmt.Errorf("match count must be positive")
	}
	if startRating <= 0 {
		startRating = constants.DefaultRating
	}

	player, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		return 0, fmt.Errorf("failed to load player: %w", err)
	}
	if player == nil {
		return 0, fmt.Errorf("player %s not found", playerID)
	}

	b := store.NewBatcher(s.store, constants.StoreBatchLimit)
	now := time.Now()
	current := startRating

	for i := 1; i <= matchCount; i++ {
		date := now.Add(-time.Duration(matchCount-i) * 24 * time.Hour)
		delta := engine.RoundDelta(rand.Float64()*0.05 + 0.05)
		old := current
		current = engine.RoundRating(current + delta)

		entry := domain.RatingHistoryEntry{
			PlayerID:  playerID,
			OldRating: old,
			NewRating: current,
			Delta:     delta,
			Date:      date,
			Reason:    domain.ReasonSeedInit,
		}
		if err := b.AddHistoryWrite(ctx, entry); err != nil {
			return 0, err
		}
	}

	update := domain.RatingUpdate{PlayerID: playerID, NewRating: current, At: now}
	if err := b.AddRatingUpdate(ctx, update); err != nil {
		return 0, err
	}
	if err := b.Flush(ctx); err != nil {
		return 0, err
	}

	s.logger.Info().
		Str("player_id", playerID).
		Int("entries", matchCount).
		Float64("final_rating", current).
		Msg("synthetic history seeded")
	return current, nil
}
