package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/hibp-mcp/hibp-mcp/internal/config"
)

const driverLibsql = "libsql"

// ErrNotOpen is returned by every method called on a nil or closed store.
var ErrNotOpen = errors.New("store is not open")

// Store is the local response cache database.
type Store struct {
	DB     *sql.DB
	Clock  func() time.Time
	driver string
	dsn    string
}

// Open connects to the configured database and applies pending migrations.
// Only libsql (local file, :memory:, or remote Turso URL) is supported.
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = driverLibsql
	}
	if driver != driverLibsql {
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}

	target, err := resolveTarget(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverLibsql, target.dsn)
	if err != nil {
		return nil, fmt.Errorf("open libsql store: %w", err)
	}
	if target.local {
		// single writer for file and memory databases
		db.SetMaxOpenConns(1)
	}

	s := &Store{DB: db, driver: driver, dsn: target.redacted()}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	if err := s.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping libsql store: %w", err)
	}
	return s.Migrate(ctx)
}

// Close releases the connection pool. Closing a nil store is a no-op.
func (s *Store) Close() error {
	if !s.open() {
		return nil
	}
	return s.DB.Close()
}

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error {
	if !s.open() {
		return ErrNotOpen
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return s.DB.PingContext(ctx)
}

// Driver returns the driver name, or "" for a nil store.
func (s *Store) Driver() string {
	if s == nil {
		return ""
	}
	return s.driver
}

// Location returns the database location with credentials removed.
func (s *Store) Location() string {
	if s == nil {
		return ""
	}
	return s.dsn
}

func (s *Store) open() bool {
	return s != nil && s.DB != nil
}

func (s *Store) now() time.Time {
	if s.Clock != nil {
		return s.Clock().UTC()
	}
	return time.Now().UTC()
}
