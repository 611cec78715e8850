package store

import (
	"context"
	"fmt"
)

// migrations are applied in order; the index+1 is the schema version.
var migrations = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS response_cache (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			operation TEXT NOT NULL,
			cache_key TEXT NOT NULL,
			status_code INTEGER NOT NULL,
			body BLOB,
			fetched_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL,
			UNIQUE(operation, cache_key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_response_cache_expires ON response_cache(expires_at)`,
	},
}

// SchemaVersion is the version Migrate brings a database to.
func SchemaVersion() int {
	return len(migrations)
}

// Migrate applies any migrations newer than the recorded schema version.
func (s *Store) Migrate(ctx context.Context) error {
	if !s.open() {
		return ErrNotOpen
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := s.DB.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("store migration failed: %w", err)
	}

	current, err := s.CurrentVersion(ctx)
	if err != nil {
		return err
	}

	for v := current; v < len(migrations); v++ {
		tx, err := s.DB.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("store migration %d: %w", v+1, err)
		}
		for _, stmt := range migrations[v] {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("store migration %d: %w", v+1, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM schema_version`); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("store migration %d: %w", v+1, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, v+1); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("store migration %d: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("store migration %d: %w", v+1, err)
		}
	}
	return nil
}

// CurrentVersion returns the recorded schema version, 0 for a fresh database.
func (s *Store) CurrentVersion(ctx context.Context) (int, error) {
	if !s.open() {
		return 0, ErrNotOpen
	}
	var version int
	row := s.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}
