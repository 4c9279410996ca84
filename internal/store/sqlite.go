package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"padel-rating/internal/config"
	"padel-rating/internal/constants"
	"padel-rating/internal/domain"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// SQLiteStore backs self-hosted and local-development deployments. Batches
// stay atomic through a single transaction per commit.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewSQLite(cfg *config.Config, logger zerolog.Logger) (*SQLiteStore, error) {
	logger.Info().Str("path", cfg.DBPath).Msg("connecting to database")

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(constants.DBMaxOpenConns)
	db.SetMaxIdleConns(constants.DBMaxIdleConns)
	db.SetConnMaxLifetime(constants.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(constants.DBMaxIdleTime)

	if err := optimizeSQLite(db, logger); err != nil {
		return nil, fmt.Errorf("failed to optimize SQLite: %w", err)
	}
	if err := runMigrations(db, logger); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info().Msg("database connection established and optimized")
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// DB exposes the handle for lifecycle shutdown.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

func runMigrations(db *sql.DB, logger zerolog.Logger) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run goose migrations: %w", err)
	}

	logger.Info().Msg("migrations completed successfully")
	return nil
}

func optimizeSQLite(sqlDB *sql.DB, logger zerolog.Logger) error {
	pragmas := []struct {
		name  string
		value string
	}{
		{"journal_mode", "WAL"},
		{"synchronous", "NORMAL"},
		{"cache_size", "-64000"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "ON"},
		{"temp_store", "MEMORY"},
	}

	for _, pragma := range pragmas {
		query := fmt.Sprintf("PRAGMA %s = %s", pragma.name, pragma.value)
		if _, err := sqlDB.Exec(query); err != nil {
			logger.Warn().
				Err(err).
				Str("pragma", pragma.name).
				Str("value", pragma.value).
				Msg("failed to set pragma")
			return fmt.Errorf("failed to set PRAGMA %s: %w", pragma.name, err)
		}
	}

	return nil
}

func (s *SQLiteStore) GetAllPlayers(ctx context.Context) ([]domain.Player, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, rating, self_rating, last_rating_update FROM players`)
	if err != nil {
		return nil, fmt.Errorf("failed to query players: %w", err)
	}
	defer rows.Close()

	var players []domain.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

func (s *SQLiteStore) GetPlayer(ctx context.Context, id string) (*domain.Player, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, rating, self_rating, last_rating_update FROM players WHERE id = ?`, id)
	p, err := scanPlayer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLiteStore) GetPlayers(ctx context.Context, ids []string) (map[string]domain.Player, error) {
	players := make(map[string]domain.Player, len(ids))
	for _, id := range ids {
		row := s.db.QueryRowContext(ctx,
			`SELECT id, name, rating, self_rating, last_rating_update FROM players WHERE id = ?`, id)
		p, err := scanPlayer(row)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, err
		}
		players[p.ID] = p
	}
	return players, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPlayer(row rowScanner) (domain.Player, error) {
	var p domain.Player
	var last sql.NullTime
	if err := row.Scan(&p.ID, &p.Name, &p.Rating, &p.SelfRating, &last); err != nil {
		if err == sql.ErrNoRows {
			return p, err
		}
		return p, fmt.Errorf("failed to scan player: %w", err)
	}
	if last.Valid {
		p.LastRatingUpdate = last.Time
	}
	return p, nil
}

const matchColumns = `id, team_a_blob, team_b_blob, player1, player2, player3, player4, score_a, score_b, status, date`

func (s *SQLiteStore) GetFinishedMatches(ctx context.Context, source domain.MatchSource) ([]domain.MatchRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE status = ?`, matchColumns, string(source))
	rows, err := s.db.QueryContext(ctx, query, string(domain.StatusFinished))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", source, err)
	}
	defer rows.Close()

	var matches []domain.MatchRecord
	for rows.Next() {
		m, err := scanMatch(rows, source)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (s *SQLiteStore) GetMatch(ctx context.Context, source domain.MatchSource, id string) (*domain.MatchRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, matchColumns, string(source))
	row := s.db.QueryRowContext(ctx, query, id)
	m, err := scanMatch(row, source)
	if err != nil {
		return nil, fmt.Errorf("failed to get match %s/%s: %w", source, id, err)
	}
	return &m, nil
}

func scanMatch(row rowScanner, source domain.MatchSource) (domain.MatchRecord, error) {
	m := domain.MatchRecord{Source: source}
	var teamA, teamB []byte
	var status string
	var date sql.NullTime

	err := row.Scan(&m.ID, &teamA, &teamB, &m.Player1, &m.Player2, &m.Player3, &m.Player4,
		&m.ScoreA, &m.ScoreB, &status, &date)
	if err != nil {
		return m, err
	}

	if len(teamA) > 0 {
		if err := msgpack.Unmarshal(teamA, &m.TeamAIDs); err != nil {
			return m, fmt.Errorf("failed to decode team A blob for %s: %w", m.ID, err)
		}
	}
	if len(teamB) > 0 {
		if err := msgpack.Unmarshal(teamB, &m.TeamBIDs); err != nil {
			return m, fmt.Errorf("failed to decode team B blob for %s: %w", m.ID, err)
		}
	}

	m.Status = domain.MatchStatus(status)
	if date.Valid {
		m.Date = date.Time
	}
	return m, nil
}

func (s *SQLiteStore) PlayerHistory(ctx context.Context, playerID string, limit int) ([]domain.RatingHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, player_id, old_rating, new_rating, delta, date, match_id, reason
		 FROM rating_history WHERE player_id = ? ORDER BY date DESC LIMIT ?`,
		playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []domain.RatingHistoryEntry
	for rows.Next() {
		var e domain.RatingHistoryEntry
		var reason string
		if err := rows.Scan(&e.ID, &e.PlayerID, &e.OldRating, &e.NewRating, &e.Delta, &e.Date, &e.MatchID, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.Reason = domain.HistoryReason(reason)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) AllHistoryIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM rating_history`)
	if err != nil {
		return nil, fmt.Errorf("failed to query history ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) CommitBatch(ctx context.Context, batch Batch) error {
	if batch.Ops() > constants.StoreBatchLimit {
		return fmt.Errorf("batch of %d operations exceeds limit %d", batch.Ops(), constants.StoreBatchLimit)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range batch.HistoryDeletes {
		if _, err := tx.ExecContext(ctx, `DELETE FROM rating_history WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete history entry %s: %w", id, err)
		}
	}

	for _, e := range batch.HistoryWrites {
		id := e.ID
		if id == "" {
			id, err = gonanoid.New()
			if err != nil {
				return fmt.Errorf("failed to generate nanoid: %w", err)
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO rating_history (id, player_id, old_rating, new_rating, delta, date, match_id, reason)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, e.PlayerID, e.OldRating, e.NewRating, e.Delta, e.Date, e.MatchID, string(e.Reason))
		if err != nil {
			return fmt.Errorf("failed to insert history entry: %w", err)
		}
	}

	for _, u := range batch.RatingUpdates {
		_, err := tx.ExecContext(ctx,
			`UPDATE players SET rating = ?, last_rating_update = ? WHERE id = ?`,
			u.NewRating, u.At, u.PlayerID)
		if err != nil {
			return fmt.Errorf("failed to update rating for %s: %w", u.PlayerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	s.logger.Debug().
		Int("rating_updates", len(batch.RatingUpdates)).
		Int("history_writes", len(batch.HistoryWrites)).
		Int("history_deletes", len(batch.HistoryDeletes)).
		Msg("batch committed")
	return nil
}

// UpsertPlayer and UpsertMatch support seeding local databases; the engine
// itself never creates players or matches.
func (s *SQLiteStore) UpsertPlayer(ctx context.Context, p *domain.Player) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO players (id, name, rating, self_rating, last_rating_update)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			rating = excluded.rating,
			self_rating = excluded.self_rating,
			last_rating_update = excluded.last_rating_update`,
		p.ID, p.Name, p.Rating, p.SelfRating, nullableTime(p.LastRatingUpdate))
	if err != nil {
		return fmt.Errorf("failed to upsert player %s: %w", p.ID, err)
	}
	return nil
}

func (s *SQLiteStore) UpsertMatch(ctx context.Context, m *domain.MatchRecord) error {
	teamA, err := msgpack.Marshal(m.TeamAIDs)
	if err != nil {
		return fmt.Errorf("failed to encode team A: %w", err)
	}
	teamB, err := msgpack.Marshal(m.TeamBIDs)
	if err != nil {
		return fmt.Errorf("failed to encode team B: %w", err)
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (id, team_a_blob, team_b_blob, player1, player2, player3, player4, score_a, score_b, status, date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			team_a_blob = excluded.team_a_blob,
			team_b_blob = excluded.team_b_blob,
			player1 = excluded.player1,
			player2 = excluded.player2,
			player3 = excluded.player3,
			player4 = excluded.player4,
			score_a = excluded.score_a,
			score_b = excluded.score_b,
			status = excluded.status,
			date = excluded.date`, string(m.Source))

	_, err = s.db.ExecContext(ctx, query,
		m.ID, teamA, teamB, m.Player1, m.Player2, m.Player3, m.Player4,
		m.ScoreA, m.ScoreB, string(m.Status), nullableTime(m.Date))
	if err != nil {
		return fmt.Errorf("failed to upsert match %s: %w", m.ID, err)
	}
	return nil
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
