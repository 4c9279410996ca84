package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"padel-rating/internal/constants"
	"padel-rating/internal/domain"
	"padel-rating/internal/logger"
	"padel-rating/internal/store/storetest"
)

func day(n int) time.Time {
	return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func testPlayers() []domain.Player {
	return []domain.Player{
		{ID: "a1", Rating: 4.20, SelfRating: 4.00},
		{ID: "a2", Rating: 4.10, SelfRating: 4.00},
		{ID: "b1", Rating: 3.40, SelfRating: 3.50},
		{ID: "b2", Rating: 3.30}, // no self-rating, seeds at the default
	}
}

func finishedMatch(id string, src domain.MatchSource, date time.Time, a, b []string, sa, sb int) domain.MatchRecord {
	return domain.MatchRecord{
		ID: id, Source: src, Status: domain.StatusFinished,
		TeamAIDs: a, TeamBIDs: b, ScoreA: sa, ScoreB: sb, Date: date,
	}
}

func TestRecalculation_SeedsFromSelfRating(t *testing.T) {
	mem := storetest.NewMemory()
	for _, p := range testPlayers() {
		mem.AddPlayer(p)
	}

	rec := NewRecalculation(mem, logger.New())
	report, err := rec.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDone, rec.State())

	// No matches: every player lands exactly on their seed, not on the rating
	// previously stored.
	assert.InDelta(t, 4.00, mem.Players["a1"].Rating, 1e-9)
	assert.InDelta(t, 3.50, mem.Players["b1"].Rating, 1e-9)
	assert.InDelta(t, constants.DefaultRating, mem.Players["b2"].Rating, 1e-9)

	assert.Equal(t, 0, report.MatchesProcessed)
	assert.Equal(t, 4, report.PlayersUpdated)
}

func TestRecalculation_CompoundsSnapshot(t *testing.T) {
	mem := storetest.NewMemory()
	for _, p := range testPlayers() {
		mem.AddPlayer(p)
	}
	teamA := []string{"a1", "a2"}
	teamB := []string{"b1", "b2"}
	mem.AddMatch(finishedMatch("m1", domain.SourceMatches, day(0), teamA, teamB, 6, 2))
	mem.AddMatch(finishedMatch("m2", domain.SourceMatches, day(1), teamA, teamB, 6, 4))

	rec := NewRecalculation(mem, logger.New())
	report, err := rec.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.MatchesProcessed)

	// m1: avgA 4.00 vs avgB (3.5+3.5)/2=3.5, margin 4 -> +0.007 / -0.017.
	// m2 reads the post-m1 snapshot: avgA 4.007->rounded members 4.01,
	// so each member carries m1's rounded result forward.
	var entries []domain.RatingHistoryEntry
	for _, e := range mem.History {
		entries = append(entries, e)
	}
	require.Len(t, entries, 8)

	m2Old := map[string]float64{}
	for _, e := range entries {
		if e.MatchID == "m2" {
			m2Old[e.PlayerID] = e.OldRating
			assert.Equal(t, domain.ReasonRecalculation, e.Reason)
		}
	}
	assert.InDelta(t, 4.01, m2Old["a1"], 1e-9, "second match must read the first match's output")
	assert.InDelta(t, 3.48, m2Old["b1"], 1e-9)
}

func TestRecalculation_DeterministicUnderShuffle(t *testing.T) {
	teamA := []string{"a1", "a2"}
	teamB := []string{"b1", "b2"}

	var matches []domain.MatchRecord
	for i := 0; i < 20; i++ {
		src := domain.SourceMatches
		if i%3 == 0 {
			src = domain.SourceTraining
		}
		sa, sb := 6, i%6
		if i%2 == 0 {
			sa, sb = sb, sa
		}
		matches = append(matches, finishedMatch(fmt.Sprintf("m%02d", i), src, day(i), teamA, teamB, sa, sb))
	}

	run := func(shuffled []domain.MatchRecord) map[string]float64 {
		mem := storetest.NewMemory()
		for _, p := range testPlayers() {
			mem.AddPlayer(p)
		}
		for _, m := range shuffled {
			mem.AddMatch(m)
		}
		rec := NewRecalculation(mem, logger.New())
		_, err := rec.Run(context.Background())
		require.NoError(t, err)

		out := make(map[string]float64)
		for id, p := range mem.Players {
			out[id] = p.Rating
		}
		return out
	}

	baseline := run(matches)

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 5; trial++ {
		shuffled := append([]domain.MatchRecord(nil), matches...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		assert.Equal(t, baseline, run(shuffled), "replay must be independent of input order")
	}
}

func TestRecalculation_WipesAndRebuildsHistory(t *testing.T) {
	mem := storetest.NewMemory()
	for _, p := range testPlayers() {
		mem.AddPlayer(p)
	}
	// Stale audit data from a previous run plus a manual entry.
	mem.AddHistory(domain.RatingHistoryEntry{ID: "stale1", PlayerID: "a1", MatchID: "gone"})
	mem.AddHistory(domain.RatingHistoryEntry{ID: "stale2", PlayerID: "b9", MatchID: "gone"})

	teamA := []string{"a1", "a2"}
	teamB := []string{"b1", "b2"}
	mem.AddMatch(finishedMatch("m1", domain.SourceMatches, day(0), teamA, teamB, 6, 2))
	mem.AddMatch(finishedMatch("tie", domain.SourceMatches, day(1), teamA, teamB, 5, 5))
	mem.AddMatch(finishedMatch("t1", domain.SourceTraining, day(2), teamA, teamB, 2, 6))
	// Not finished: must not contribute.
	open := finishedMatch("m-open", domain.SourceMatches, day(3), teamA, teamB, 6, 0)
	open.Status = domain.StatusOpen
	mem.AddMatch(open)

	rec := NewRecalculation(mem, logger.New())
	report, err := rec.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.MatchesProcessed)
	assert.Equal(t, 1, report.MatchesSkipped, "the tie is skipped")
	assert.Equal(t, 8, report.EntriesWritten)

	// Exactly one entry per (player, non-tie finished match) pair, none
	// referencing anything else.
	seen := make(map[string]int)
	for _, e := range mem.History {
		assert.Contains(t, []string{"m1", "t1"}, e.MatchID)
		seen[e.PlayerID+"/"+e.MatchID]++
	}
	assert.Len(t, seen, 8)
	for pair, count := range seen {
		assert.Equal(t, 1, count, pair)
	}
}

func TestRecalculation_UnresolvableMatchSkipped(t *testing.T) {
	mem := storetest.NewMemory()
	for _, p := range testPlayers() {
		mem.AddPlayer(p)
	}
	mem.AddMatch(domain.MatchRecord{
		ID: "broken", Source: domain.SourceMatches,
		Status: domain.StatusFinished, ScoreA: 6, ScoreB: 1, Date: day(0),
	})

	rec := NewRecalculation(mem, logger.New())
	report, err := rec.Run(context.Background())
	require.NoError(t, err, "a match with no participants must not crash the pipeline")
	assert.Equal(t, 0, report.MatchesProcessed)
	assert.Equal(t, 1, report.MatchesSkipped)
}

func TestRecalculation_UnparseableDateOrdersFirst(t *testing.T) {
	mem := storetest.NewMemory()
	for _, p := range testPlayers() {
		mem.AddPlayer(p)
	}
	teamA := []string{"a1", "a2"}
	teamB := []string{"b1", "b2"}

	dated := finishedMatch("dated", domain.SourceMatches, day(0), teamA, teamB, 6, 2)
	undated := finishedMatch("undated", domain.SourceMatches, time.Time{}, teamA, teamB, 2, 6)
	mem.AddMatch(dated)
	mem.AddMatch(undated)

	rec := NewRecalculation(mem, logger.New())
	_, err := rec.Run(context.Background())
	require.NoError(t, err)

	// The undated match replays at the sentinel position, so the dated match
	// must have read its output.
	for _, e := range mem.History {
		if e.MatchID == "dated" && e.PlayerID == "a1" {
			assert.InDelta(t, 3.99, e.OldRating, 1e-9, "sentinel-dated match replays first")
		}
	}
}

func TestRecalculation_FailsOnLoadError(t *testing.T) {
	mem := storetest.NewMemory()
	mem.PlayersErr = errors.New("store unavailable")

	rec := NewRecalculation(mem, logger.New())
	_, err := rec.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateFailed, rec.State())
}

func TestRecalculation_FailsOnCommitError(t *testing.T) {
	mem := storetest.NewMemory()
	for _, p := range testPlayers() {
		mem.AddPlayer(p)
	}
	mem.AddMatch(finishedMatch("m1", domain.SourceMatches, day(0), []string{"a1", "a2"}, []string{"b1", "b2"}, 6, 2))
	mem.CommitErr = errors.New("batch rejected")

	rec := NewRecalculation(mem, logger.New())
	_, err := rec.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateFailed, rec.State())
}

func TestRecalculation_SplitsOversizedWrites(t *testing.T) {
	mem := storetest.NewMemory()
	for _, p := range testPlayers() {
		mem.AddPlayer(p)
	}
	// Enough stale entries that deletes alone exceed one batch.
	for i := 0; i < constants.StoreBatchLimit+50; i++ {
		mem.AddHistory(domain.RatingHistoryEntry{ID: fmt.Sprintf("stale%04d", i), PlayerID: "a1"})
	}

	rec := NewRecalculation(mem, logger.New())
	report, err := rec.Run(context.Background())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, report.BatchesCommitted, 2)
	for _, b := range mem.Batches {
		assert.LessOrEqual(t, b.Ops(), constants.StoreBatchLimit)
	}
	assert.Empty(t, mem.History, "all stale entries wiped")
}
