package store

import (
	"context"
	"fmt"

	"padel-rating/internal/domain"
)

// Store is the engine's view of the document store. Both backends expose the
// same four collections: players, two match sources, and the rating history
// audit trail.
type Store interface {
	GetAllPlayers(ctx context.Context) ([]domain.Player, error)
	// GetPlayer returns nil without error when the player does not exist.
	GetPlayer(ctx context.Context, id string) (*domain.Player, error)
	GetPlayers(ctx context.Context, ids []string) (map[string]domain.Player, error)
	GetFinishedMatches(ctx context.Context, source domain.MatchSource) ([]domain.MatchRecord, error)
	GetMatch(ctx context.Context, source domain.MatchSource, id string) (*domain.MatchRecord, error)

	// PlayerHistory returns audit entries for one player, newest first.
	PlayerHistory(ctx context.Context, playerID string, limit int) ([]domain.RatingHistoryEntry, error)
	AllHistoryIDs(ctx context.Context) ([]string, error)

	// CommitBatch applies every operation atomically. Either the whole batch
	// is durable or none of it is; partial success is never reported.
	CommitBatch(ctx context.Context, batch Batch) error
}

// Batch is one atomic commit unit. Callers keep Ops() within the store's
// batch limit; CommitBatch rejects oversized batches.
type Batch struct {
	RatingUpdates  []domain.RatingUpdate
	HistoryWrites  []domain.RatingHistoryEntry
	HistoryDeletes []string
}

func (b *Batch) Ops() int {
	return len(b.RatingUpdates) + len(b.HistoryWrites) + len(b.HistoryDeletes)
}

func (b *Batch) empty() bool { return b.Ops() == 0 }

// Batcher accumulates operations and commits full batches strictly in
// sequence, so a failure aborts at a known position.
type Batcher struct {
	store Store
	limit int
	cur   Batch

	committed int
}

func NewBatcher(s Store, limit int) *Batcher {
	return &Batcher{store: s, limit: limit}
}

func (b *Batcher) AddRatingUpdate(ctx context.Context, u domain.RatingUpdate) error {
	if err := b.commitIfFull(ctx); err != nil {
		return err
	}
	b.cur.RatingUpdates = append(b.cur.RatingUpdates, u)
	return nil
}

func (b *Batcher) AddHistoryWrite(ctx context.Context, e domain.RatingHistoryEntry) error {
	if err := b.commitIfFull(ctx); err != nil {
		return err
	}
	b.cur.HistoryWrites = append(b.cur.HistoryWrites, e)
	return nil
}

func (b *Batcher) AddHistoryDelete(ctx context.Context, id string) error {
	if err := b.commitIfFull(ctx); err != nil {
		return err
	}
	b.cur.HistoryDeletes = append(b.cur.HistoryDeletes, id)
	return nil
}

// Flush commits whatever remains. Must be called once at the end.
func (b *Batcher) Flush(ctx context.Context) error {
	if b.cur.empty() {
		return nil
	}
	if err := b.store.CommitBatch(ctx, b.cur); err != nil {
		return fmt.Errorf("commit batch %d: %w", b.committed+1, err)
	}
	b.committed++
	b.cur = Batch{}
	return nil
}

// Committed reports how many batches have been committed so far.
func (b *Batcher) Committed() int { return b.committed }

func (b *Batcher) commitIfFull(ctx context.Context) error {
	if b.cur.Ops() < b.limit {
		return nil
	}
	return b.Flush(ctx)
}
