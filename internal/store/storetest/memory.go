// Package storetest provides an in-memory Store for exercising the engine
// and service layers without a backend.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"padel-rating/internal/constants"
	"padel-rating/internal/domain"
	"padel-rating/internal/store"
)

type Memory struct {
	mu sync.Mutex

	Players map[string]domain.Player
	Matches map[domain.MatchSource][]domain.MatchRecord
	History map[string]domain.RatingHistoryEntry

	// Batches records every committed batch in order.
	Batches []store.Batch

	// Error injection, checked before the corresponding operation.
	PlayersErr error
	MatchesErr error
	CommitErr  error

	nextID int
}

func NewMemory() *Memory {
	return &Memory{
		Players: make(map[string]domain.Player),
		Matches: make(map[domain.MatchSource][]domain.MatchRecord),
		History: make(map[string]domain.RatingHistoryEntry),
	}
}

func (m *Memory) AddPlayer(p domain.Player) {
	m.Players[p.ID] = p
}

func (m *Memory) AddMatch(rec domain.MatchRecord) {
	m.Matches[rec.Source] = append(m.Matches[rec.Source], rec)
}

func (m *Memory) AddHistory(e domain.RatingHistoryEntry) {
	m.History[e.ID] = e
}

func (m *Memory) GetAllPlayers(ctx context.Context) ([]domain.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PlayersErr != nil {
		return nil, m.PlayersErr
	}

	ids := make([]string, 0, len(m.Players))
	for id := range m.Players {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	players := make([]domain.Player, 0, len(ids))
	for _, id := range ids {
		players = append(players, m.Players[id])
	}
	return players, nil
}

func (m *Memory) GetPlayer(ctx context.Context, id string) (*domain.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PlayersErr != nil {
		return nil, m.PlayersErr
	}
	if p, ok := m.Players[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (m *Memory) GetPlayers(ctx context.Context, ids []string) (map[string]domain.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PlayersErr != nil {
		return nil, m.PlayersErr
	}

	out := make(map[string]domain.Player)
	for _, id := range ids {
		if p, ok := m.Players[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *Memory) GetFinishedMatches(ctx context.Context, source domain.MatchSource) ([]domain.MatchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MatchesErr != nil {
		return nil, m.MatchesErr
	}

	var out []domain.MatchRecord
	for _, rec := range m.Matches[source] {
		if rec.Status == domain.StatusFinished {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *Memory) GetMatch(ctx context.Context, source domain.MatchSource, id string) (*domain.MatchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.Matches[source] {
		if rec.ID == id {
			cp := rec
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("match %s/%s not found", source, id)
}

func (m *Memory) PlayerHistory(ctx context.Context, playerID string, limit int) ([]domain.RatingHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var entries []domain.RatingHistoryEntry
	for _, e := range m.History {
		if e.PlayerID == playerID {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Date.After(entries[j].Date) })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (m *Memory) AllHistoryIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.History))
	for id := range m.History {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) CommitBatch(ctx context.Context, batch store.Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CommitErr != nil {
		return m.CommitErr
	}
	if batch.Ops() > constants.StoreBatchLimit {
		return fmt.Errorf("batch of %d operations exceeds limit %d", batch.Ops(), constants.StoreBatchLimit)
	}

	for _, id := range batch.HistoryDeletes {
		delete(m.History, id)
	}
	for _, e := range batch.HistoryWrites {
		if e.ID == "" {
			m.nextID++
			e.ID = fmt.Sprintf("h%06d", m.nextID)
		}
		m.History[e.ID] = e
	}
	for _, u := range batch.RatingUpdates {
		p, ok := m.Players[u.PlayerID]
		if !ok {
			return fmt.Errorf("rating update for unknown player %s", u.PlayerID)
		}
		p.Rating = u.NewRating
		p.LastRatingUpdate = u.At
		m.Players[u.PlayerID] = p
	}

	m.Batches = append(m.Batches, batch)
	return nil
}
