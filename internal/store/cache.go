package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetLookup returns the cached lookup payload for a code. ok is false on
// a cache miss.
func (s *Store) GetLookup(ctx context.Context, code string) (payload []byte, ok bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var text string
	err = s.db.QueryRowContext(ctx, `SELECT payload FROM lookup_cache WHERE code = ?`, code).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get lookup %s: %w", code, err)
	}
	return []byte(text), true, nil
}

// PutLookup caches a lookup payload, replacing any previous entry.
func (s *Store) PutLookup(ctx context.Context, code string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lookup_cache (code, payload, fetched_at) VALUES (?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			payload = excluded.payload,
			fetched_at = excluded.fetched_at
	`, code, string(payload), s.now())
	if err != nil {
		return fmt.Errorf("put lookup %s: %w", code, err)
	}
	return nil
}

// LookupCount returns the number of cached codes.
func (s *Store) LookupCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM lookup_cache`).Scan(&n)
	return n, err
}
