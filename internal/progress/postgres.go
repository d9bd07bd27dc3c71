package progress

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore keeps progress in Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

var pgSchema = []string{
	`CREATE TABLE IF NOT EXISTS processed_matches (
		match_id TEXT PRIMARY KEY,
		processed_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS snapshots (
		match_id TEXT NOT NULL,
		patch TEXT NOT NULL,
		minute INTEGER NOT NULL,
		gold_diff INTEGER NOT NULL,
		xp_diff INTEGER NOT NULL,
		cs_diff INTEGER NOT NULL,
		tower_diff INTEGER NOT NULL,
		dragon_diff INTEGER NOT NULL,
		final_win SMALLINT NOT NULL,
		PRIMARY KEY (match_id, minute)
	)`,
	`CREATE TABLE IF NOT EXISTS match_metadata (
		match_id TEXT PRIMARY KEY,
		patch TEXT NOT NULL,
		winning_team INTEGER NOT NULL,
		baron_diff INTEGER NOT NULL,
		dragon_diff INTEGER NOT NULL,
		tower_diff INTEGER NOT NULL,
		best_champ TEXT NOT NULL,
		best_lane TEXT NOT NULL
	)`,
}

// NewPGStore creates a connection pool and ensures the schema exists.
func NewPGStore(ctx context.Context, dbURL string) (*PGStore, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("postgres: database URL is required")
	}
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, query := range pgSchema {
		if _, err := pool.Exec(ctx, query); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return &PGStore{pool: pool}, nil
}

// Load returns every processed match ID.
func (s *PGStore) Load(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT match_id FROM processed_matches`)
	if err != nil {
		return nil, fmt.Errorf("query processed matches: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		seen[id] = struct{}{}
	}
	return seen, rows.Err()
}

// Append queues every insert into one pgx batch inside a transaction.
func (s *PGStore) Append(ctx context.Context, b Batch) error {
	if b.Empty() {
		return nil
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, r := range b.Snapshots {
			batch.Queue(`
				INSERT INTO snapshots (match_id, patch, minute, gold_diff, xp_diff, cs_diff, tower_diff, dragon_diff, final_win)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				ON CONFLICT (match_id, minute) DO NOTHING
			`, r.MatchID, r.Patch, r.Minute, r.GoldDiff, r.XPDiff, r.CSDiff, r.TowerDiff, r.DragonDiff, r.FinalWin)
		}
		for _, r := range b.Metadata {
			batch.Queue(`
				INSERT INTO match_metadata (match_id, patch, winning_team, baron_diff, dragon_diff, tower_diff, best_champ, best_lane)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				ON CONFLICT (match_id) DO NOTHING
			`, r.MatchID, r.Patch, r.WinningTeam, r.BaronDiff, r.DragonDiff, r.TowerDiff, r.BestChamp, r.BestLane)
		}
		for _, id := range b.MatchIDs {
			batch.Queue(`INSERT INTO processed_matches (match_id) VALUES ($1) ON CONFLICT (match_id) DO NOTHING`, id)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("append batch: %w", err)
		}
		return nil
	})
}

// Close closes the pool.
func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}
