package watchlist

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"AlphaPulse/internal/model"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists the watchlist in a single SQLite table.
// All mutations go through one connection under mu, each in its own transaction.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
	log zerolog.Logger
}

// NewSQLiteStore opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" for a throwaway store.
func NewSQLiteStore(dbPath string, log zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %w", model.ErrStorage, err)
	}
	// Single writer; also keeps ":memory:" pointing at one database.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %s: %w", model.ErrStorage, pragma, err)
		}
	}

	s := &SQLiteStore{db: db, now: time.Now, log: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrate: %w", model.ErrStorage, err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite watchlist opened")
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS watchlist (
			symbol   TEXT PRIMARY KEY,
			added_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_watchlist_added ON watchlist(added_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:30], err)
		}
	}
	return nil
}

func (s *SQLiteStore) Add(ctx context.Context, symbol string) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO watchlist (symbol, added_at) VALUES (?, ?)`,
		symbol, s.now().UnixNano())
	if err != nil {
		return "", fmt.Errorf("%w: add %s: %w", model.ErrStorage, symbol, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("%w: add %s: %w", model.ErrStorage, symbol, err)
	}
	if n == 0 {
		return AlreadyPresent, nil
	}
	return Added, nil
}

func (s *SQLiteStore) Remove(ctx context.Context, symbol string) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM watchlist WHERE symbol = ?`, symbol)
	if err != nil {
		return "", fmt.Errorf("%w: remove %s: %w", model.ErrStorage, symbol, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("%w: remove %s: %w", model.ErrStorage, symbol, err)
	}
	if n == 0 {
		return NotPresent, nil
	}
	return Removed, nil
}

// Toggle removes symbol if tracked, otherwise adds it, in one transaction.
func (s *SQLiteStore) Toggle(ctx context.Context, symbol string) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("%w: toggle %s: %w", model.ErrStorage, symbol, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM watchlist WHERE symbol = ?`, symbol)
	if err != nil {
		return "", fmt.Errorf("%w: toggle %s: %w", model.ErrStorage, symbol, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("%w: toggle %s: %w", model.ErrStorage, symbol, err)
	}

	outcome := Removed
	if n == 0 {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO watchlist (symbol, added_at) VALUES (?, ?)`,
			symbol, s.now().UnixNano()); err != nil {
			return "", fmt.Errorf("%w: toggle %s: %w", model.ErrStorage, symbol, err)
		}
		outcome = Added
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("%w: toggle %s: commit: %w", model.ErrStorage, symbol, err)
	}
	return outcome, nil
}

func (s *SQLiteStore) Contains(ctx context.Context, symbol string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM watchlist WHERE symbol = ?`, symbol).Scan(&one)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, fmt.Errorf("%w: contains %s: %w", model.ErrStorage, symbol, err)
	}
	return true, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]model.WatchlistEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, added_at FROM watchlist ORDER BY added_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %w", model.ErrStorage, err)
	}
	defer rows.Close()

	var entries []model.WatchlistEntry
	for rows.Next() {
		var (
			sym string
			ts  int64
		)
		if err := rows.Scan(&sym, &ts); err != nil {
			return nil, fmt.Errorf("%w: list scan: %w", model.ErrStorage, err)
		}
		entries = append(entries, model.WatchlistEntry{Symbol: sym, AddedAt: time.Unix(0, ts)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list: %w", model.ErrStorage, err)
	}
	return entries, nil
}

func (s *SQLiteStore) Close() error {
	s.log.Info().Msg("closing sqlite watchlist")
	return s.db.Close()
}
