package progress

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// SQLStore keeps progress in a SQLite-dialect database. It serves both a
// local modernc sqlite file and a remote libsql (Turso) database.
type SQLStore struct {
	db *sql.DB
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS processed_matches (
		match_id TEXT PRIMARY KEY,
		processed_at TEXT NOT NULL
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
		final_win INTEGER NOT NULL,
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
	`CREATE INDEX IF NOT EXISTS idx_snapshots_patch ON snapshots(patch)`,
}

// NewSQLiteStore opens (creating if needed) a local SQLite database file.
func NewSQLiteStore(ctx context.Context, path string) (*SQLStore, error) {
	if path == "" {
		path = "progress.db"
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// One writer; extra connections only contend for the file lock.
	db.SetMaxOpenConns(1)
	return newSQLStore(ctx, db)
}

// NewLibSQLStore connects to a libsql server such as Turso.
func NewLibSQLStore(ctx context.Context, dbURL, authToken string) (*SQLStore, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("libsql: database URL is required")
	}
	connStr, err := libsqlConnString(dbURL, authToken)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("libsql", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to libsql: %w", err)
	}
	return newSQLStore(ctx, db)
}

// libsqlConnString adds authToken to the query of dbURL, keeping any
// parameters already there.
func libsqlConnString(dbURL, authToken string) (string, error) {
	if authToken == "" {
		return dbURL, nil
	}
	u, err := url.Parse(dbURL)
	if err != nil {
		return "", fmt.Errorf("libsql: bad database URL: %w", err)
	}
	q := u.Query()
	q.Set("authToken", authToken)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func newSQLStore(ctx context.Context, db *sql.DB) (*SQLStore, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLStore{db: db}
	if err := s.createTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) createTables(ctx context.Context) error {
	for _, query := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Load returns every processed match ID.
func (s *SQLStore) Load(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT match_id FROM processed_matches`)
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

// Append writes the whole batch in one transaction.
func (s *SQLStore) Append(ctx context.Context, b Batch) error {
	if b.Empty() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := appendTx(ctx, tx, b); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func appendTx(ctx context.Context, tx *sql.Tx, b Batch) error {
	snapStmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO snapshots (match_id, patch, minute, gold_diff, xp_diff, cs_diff, tower_diff, dragon_diff, final_win)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer snapStmt.Close()
	for _, r := range b.Snapshots {
		if _, err := snapStmt.ExecContext(ctx, r.MatchID, r.Patch, r.Minute, r.GoldDiff, r.XPDiff,
			r.CSDiff, r.TowerDiff, r.DragonDiff, r.FinalWin); err != nil {
			return fmt.Errorf("insert snapshot %s/%d: %w", r.MatchID, r.Minute, err)
		}
	}

	metaStmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO match_metadata (match_id, patch, winning_team, baron_diff, dragon_diff, tower_diff, best_champ, best_lane)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer metaStmt.Close()
	for _, r := range b.Metadata {
		if _, err := metaStmt.ExecContext(ctx, r.MatchID, r.Patch, r.WinningTeam, r.BaronDiff,
			r.DragonDiff, r.TowerDiff, r.BestChamp, r.BestLane); err != nil {
			return fmt.Errorf("insert metadata %s: %w", r.MatchID, err)
		}
	}

	idStmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO processed_matches (match_id, processed_at) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer idStmt.Close()
	now := time.Now().UTC().Format(time.RFC3339)
	for _, id := range b.MatchIDs {
		if _, err := idStmt.ExecContext(ctx, id, now); err != nil {
			return fmt.Errorf("insert processed %s: %w", id, err)
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
