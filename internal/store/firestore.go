package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"padel-rating/internal/config"
	"padel-rating/internal/constants"
	"padel-rating/internal/domain"
)

// FirestoreStore is the production backend. Documents are decoded through the
// schema-with-defaults layer so legacy shapes never leak past this package.
type FirestoreStore struct {
	client *firestore.Client
	logger zerolog.Logger
}

func NewFirestore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*FirestoreStore, error) {
	client, err := firestore.NewClient(ctx, cfg.FirestoreProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	logger.Info().Str("project_id", cfg.FirestoreProjectID).Msg("firestore client created")
	return &FirestoreStore{client: client, logger: logger}, nil
}

func (s *FirestoreStore) Close() error { return s.client.Close() }

func (s *FirestoreStore) GetAllPlayers(ctx context.Context) ([]domain.Player, error) {
	iter := s.client.Collection(constants.PlayersCollection).Documents(ctx)
	defer iter.Stop()

	var players []domain.Player
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate players: %w", err)
		}
		players = append(players, decodePlayer(doc.Ref.ID, doc.Data()))
	}
	return players, nil
}

func (s *FirestoreStore) GetPlayer(ctx context.Context, id string) (*domain.Player, error) {
	doc, err := s.client.Collection(constants.PlayersCollection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player %s: %w", id, err)
	}
	p := decodePlayer(doc.Ref.ID, doc.Data())
	return &p, nil
}

func (s *FirestoreStore) GetPlayers(ctx context.Context, ids []string) (map[string]domain.Player, error) {
	refs := make([]*firestore.DocumentRef, len(ids))
	for i, id := range ids {
		refs[i] = s.client.Collection(constants.PlayersCollection).Doc(id)
	}

	docs, err := s.client.GetAll(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("failed to get players: %w", err)
	}

	players := make(map[string]domain.Player, len(docs))
	for _, doc := range docs {
		if !doc.Exists() {
			continue
		}
		players[doc.Ref.ID] = decodePlayer(doc.Ref.ID, doc.Data())
	}
	return players, nil
}

func (s *FirestoreStore) GetFinishedMatches(ctx context.Context, source domain.MatchSource) ([]domain.MatchRecord, error) {
	iter := s.client.Collection(string(source)).
		Where("status", "==", string(domain.StatusFinished)).
		Documents(ctx)
	defer iter.Stop()

	var matches []domain.MatchRecord
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate %s: %w", source, err)
		}
		matches = append(matches, decodeMatch(doc.Ref.ID, source, doc.Data()))
	}

	s.logger.Debug().Str("source", string(source)).Int("count", len(matches)).Msg("finished matches loaded")
	return matches, nil
}

func (s *FirestoreStore) GetMatch(ctx context.Context, source domain.MatchSource, id string) (*domain.MatchRecord, error) {
	doc, err := s.client.Collection(string(source)).Doc(id).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get match %s/%s: %w", source, id, err)
	}
	m := decodeMatch(doc.Ref.ID, source, doc.Data())
	return &m, nil
}

func (s *FirestoreStore) PlayerHistory(ctx context.Context, playerID string, limit int) ([]domain.RatingHistoryEntry, error) {
	iter := s.client.Collection(constants.RatingHistoryCollection).
		Where("player_id", "==", playerID).
		OrderBy("date", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var entries []domain.RatingHistoryEntry
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate history: %w", err)
		}
		var e domain.RatingHistoryEntry
		if err := doc.DataTo(&e); err != nil {
			return nil, fmt.Errorf("failed to decode history entry %s: %w", doc.Ref.ID, err)
		}
		e.ID = doc.Ref.ID
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *FirestoreStore) AllHistoryIDs(ctx context.Context) ([]string, error) {
	// Select() fetches refs only; entry payloads are not needed for deletion.
	iter := s.client.Collection(constants.RatingHistoryCollection).Select().Documents(ctx)
	defer iter.Stop()

	var ids []string
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate history ids: %w", err)
		}
		ids = append(ids, doc.Ref.ID)
	}
	return ids, nil
}

func (s *FirestoreStore) CommitBatch(ctx context.Context, batch Batch) error {
	if batch.Ops() > constants.StoreBatchLimit {
		return fmt.Errorf("batch of %d operations exceeds limit %d", batch.Ops(), constants.StoreBatchLimit)
	}

	wb := s.client.Batch()

	for _, id := range batch.HistoryDeletes {
		wb.Delete(s.client.Collection(constants.RatingHistoryCollection).Doc(id))
	}

	for _, e := range batch.HistoryWrites {
		id := e.ID
		if id == "" {
			var err error
			id, err = gonanoid.New()
			if err != nil {
				return fmt.Errorf("failed to generate nanoid: %w", err)
			}
		}
		wb.Set(s.client.Collection(constants.RatingHistoryCollection).Doc(id), e)
	}

	for _, u := range batch.RatingUpdates {
		wb.Update(s.client.Collection(constants.PlayersCollection).Doc(u.PlayerID), []firestore.Update{
			{Path: "rating", Value: u.NewRating},
			{Path: "last_rating_update", Value: u.At},
		})
	}

	if _, err := wb.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	s.logger.Debug().
		Int("rating_updates", len(batch.RatingUpdates)).
		Int("history_writes", len(batch.HistoryWrites)).
		Int("history_deletes", len(batch.HistoryDeletes)).
		Msg("batch committed")
	return nil
}
