package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"padel-rating/internal/constants"
	"padel-rating/internal/domain"
	"padel-rating/internal/store"
)

// State of a recalculation run. FAILED is reachable from any non-idle state.
type State string

const (
	StateIdle       State = "IDLE"
	StateLoading    State = "LOADING"
	StateOrdering   State = "ORDERING"
	StateReplaying  State = "REPLAYING"
	StatePersisting State = "PERSISTING"
	StateDone       State = "DONE"
	StateFailed     State = "FAILED"
)

// Report summarizes a completed recalculation.
type Report struct {
	MatchesProcessed int `json:"matches_processed"`
	MatchesSkipped   int `json:"matches_skipped"`
	EntriesWritten   int `json:"entries_written"`
	PlayersUpdated   int `json:"players_updated"`
	BatchesCommitted int `json:"batches_committed"`
}

// Recalculation is one full, destructive rebuild of every rating and the
// whole audit trail. Each value is single-use: the rating snapshot it replays
// against belongs to this invocation alone.
type Recalculation struct {
	store  store.Store
	logger zerolog.Logger
	state  State
}

func NewRecalculation(s store.Store, logger zerolog.Logger) *Recalculation {
	return &Recalculation{store: s, logger: logger, state: StateIdle}
}

func (r *Recalculation) State() State { return r.state }

// Run drives the pipeline to completion. Any store error is fatal to the run;
// re-running from scratch is always safe because the audit wipe makes the
// whole operation idempotent.
func (r *Recalculation) Run(ctx context.Context) (*Report, error) {
	r.state = StateLoading
	players, matches, err := r.load(ctx)
	if err != nil {
		return nil, r.fail("load", err)
	}

	r.state = StateOrdering
	orderMatches(matches)

	r.logger.Info().
		Int("players", len(players)).
		Int("matches", len(matches)).
		Msg("replaying match history")

	r.state = StateReplaying
	snapshot := make(map[string]float64, len(players))
	for _, p := range players {
		snapshot[p.ID] = seedRating(p)
	}

	var history []domain.RatingHistoryEntry
	lastTouched := make(map[string]time.Time)
	report := &Report{}

	for i := range matches {
		m := &matches[i]
		res, err := ProcessMatch(m, snapshot, domain.ReasonRecalculation)
		if err != nil {
			if errors.Is(err, ErrNoParticipants) {
				r.logger.Warn().Str("match_id", m.ID).Str("source", string(m.Source)).Msg("match has no resolvable participants, skipping")
				report.MatchesSkipped++
				continue
			}
			return nil, r.fail("replay", err)
		}
		if len(res.Mutations) == 0 {
			// Ties and matches whose participants no longer exist.
			report.MatchesSkipped++
			continue
		}

		for _, mut := range res.Mutations {
			snapshot[mut.PlayerID] = mut.NewRating
			lastTouched[mut.PlayerID] = mut.At
		}
		history = append(history, res.History...)
		report.MatchesProcessed++
	}

	r.state = StatePersisting
	if err := r.persist(ctx, players, snapshot, lastTouched, history, report); err != nil {
		return nil, r.fail("persist", err)
	}

	r.state = StateDone
	report.EntriesWritten = len(history)
	report.PlayersUpdated = len(players)

	r.logger.Info().
		Int("matches_processed", report.MatchesProcessed).
		Int("matches_skipped", report.MatchesSkipped).
		Int("entries_written", report.EntriesWritten).
		Int("players_updated", report.PlayersUpdated).
		Int("batches_committed", report.BatchesCommitted).
		Msg("recalculation complete")
	return report, nil
}

func (r *Recalculation) fail(stage string, err error) error {
	r.state = StateFailed
	r.logger.Error().Err(err).Str("stage", stage).Msg("recalculation failed")
	return fmt.Errorf("recalculation %s: %w", stage, err)
}

// load fetches players and both match sources concurrently. Reads may run in
// parallel; only the write phase is serialized.
func (r *Recalculation) load(ctx context.Context) ([]domain.Player, []domain.MatchRecord, error) {
	g, gCtx := errgroup.WithContext(ctx)

	var players []domain.Player
	var regular, training []domain.MatchRecord

	g.Go(func() error {
		var err error
		players, err = r.store.GetAllPlayers(gCtx)
		return err
	})
	g.Go(func() error {
		var err error
		regular, err = r.store.GetFinishedMatches(gCtx, domain.SourceMatches)
		return err
	})
	g.Go(func() error {
		var err error
		training, err = r.store.GetFinishedMatches(gCtx, domain.SourceTraining)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return players, append(regular, training...), nil
}

// orderMatches sorts the union of both sources by date ascending. Unparseable
// dates are zero and sort to the front as the sentinel position. Date ties
// keep their input order, which is stable across runs.
func orderMatches(matches []domain.MatchRecord) {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Date.Before(matches[j].Date)
	})
}

// seedRating is the replay baseline: the self-assessed starting value when
// the player set one, the default otherwise. The currently stored rating is
// deliberately ignored, it is the output of the previous run.
func seedRating(p domain.Player) float64 {
	if p.SelfRating > 0 {
		return p.SelfRating
	}
	return constants.DefaultRating
}

func (r *Recalculation) persist(
	ctx context.Context,
	players []domain.Player,
	snapshot map[string]float64,
	lastTouched map[string]time.Time,
	history []domain.RatingHistoryEntry,
	report *Report,
) error {
	staleIDs, err := r.store.AllHistoryIDs(ctx)
	if err != nil {
		return err
	}
	r.logger.Info().Int("count", len(staleIDs)).Msg("wiping prior audit trail")

	b := store.NewBatcher(r.store, constants.StoreBatchLimit)

	for _, id := range staleIDs {
		if err := b.AddHistoryDelete(ctx, id); err != nil {
			return err
		}
	}
	for _, e := range history {
		if err := b.AddHistoryWrite(ctx, e); err != nil {
			return err
		}
	}

	// Final ratings are written for the full player set, touched or not, so
	// every player carries the last computed value.
	now := time.Now()
	for _, p := range players {
		at, ok := lastTouched[p.ID]
		if !ok {
			at = now
		}
		update := domain.RatingUpdate{PlayerID: p.ID, NewRating: snapshot[p.ID], At: at}
		if err := b.AddRatingUpdate(ctx, update); err != nil {
			return err
		}
	}

	if err := b.Flush(ctx); err != nil {
		return err
	}

	report.BatchesCommitted = b.Committed()
	return nil
}
