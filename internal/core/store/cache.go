package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibp-mcp/hibp-mcp/internal/core"
)

// GetCachedResponse returns a stored upstream response if it has not expired.
// A miss returns nil, nil.
func (s *Store) GetCachedResponse(ctx context.Context, operation core.Operation, key string) (*core.CachedResponse, error) {
	if !s.open() {
		return nil, ErrNotOpen
	}

	if ctx == nil {
		ctx = context.Background()
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("cache key is required")
	}

	var (
		statusCode int
		body       []byte
		fetchedAt  int64
		expiresAt  int64
	)

	row := s.DB.QueryRowContext(ctx, `
		SELECT status_code, body, fetched_at, expires_at
		FROM response_cache
		WHERE operation = ? AND cache_key = ? AND expires_at > ?
	`, string(operation), key, s.now().Unix())

	if err := row.Scan(&statusCode, &body, &fetchedAt, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch cached response: %w", err)
	}

	return &core.CachedResponse{
		StatusCode: statusCode,
		Body:       body,
		FetchedAt:  time.Unix(fetchedAt, 0).UTC(),
		ExpiresAt:  time.Unix(expiresAt, 0).UTC(),
	}, nil
}

// SetCachedResponse stores an upstream response for ttl.
func (s *Store) SetCachedResponse(ctx context.Context, operation core.Operation, key string, resp core.CachedResponse, ttl time.Duration) error {
	if !s.open() {
		return ErrNotOpen
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if ttl <= 0 {
		return nil
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("cache key is required")
	}

	now := s.now()
	expires := now.Add(ttl)

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO response_cache (operation, cache_key, status_code, body, fetched_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(operation, cache_key) DO UPDATE SET
			status_code = excluded.status_code,
			body = excluded.body,
			fetched_at = excluded.fetched_at,
			expires_at = excluded.expires_at
	`, string(operation), key, resp.StatusCode, resp.Body, now.Unix(), expires.Unix())
	if err != nil {
		return fmt.Errorf("store cached response: %w", err)
	}

	return nil
}

// PurgeExpired deletes expired cache rows and reports how many were removed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	if !s.open() {
		return 0, ErrNotOpen
	}

	if ctx == nil {
		ctx = context.Background()
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM response_cache WHERE expires_at <= ?`, s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("purge cached responses: %w", err)
	}
	return res.RowsAffected()
}

// ClearCache deletes every cached response.
func (s *Store) ClearCache(ctx context.Context) (int64, error) {
	if !s.open() {
		return 0, ErrNotOpen
	}

	if ctx == nil {
		ctx = context.Background()
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM response_cache`)
	if err != nil {
		return 0, fmt.Errorf("clear cached responses: %w", err)
	}
	return res.RowsAffected()
}
