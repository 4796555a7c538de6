package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// keepStaged is how many staged write-backs survive pruning.
const keepStaged = 20

// ErrNothingStaged is returned by LatestStaged on an empty table.
var ErrNothingStaged = errors.New("no staged write-back")

// StagedWrite is one serialized copy of the record set.
type StagedWrite struct {
	ID       int64
	Records  int
	Body     string
	StagedAt time.Time
}

// Stage keeps a serialized record set so it can be copied over the source
// by hand. Only the newest keepStaged copies are retained.
func (s *Store) Stage(ctx context.Context, csv string, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("stage: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO staged_writes (record_count, body, staged_at) VALUES (?, ?, ?)`,
		count, csv, s.now()); err != nil {
		return fmt.Errorf("stage: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM staged_writes
		WHERE id NOT IN (SELECT id FROM staged_writes ORDER BY id DESC LIMIT ?)
	`, keepStaged); err != nil {
		return fmt.Errorf("prune staged: %w", err)
	}
	return tx.Commit()
}

// LatestStaged returns the most recent staged write-back.
func (s *Store) LatestStaged(ctx context.Context) (StagedWrite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var w StagedWrite
	err := s.db.QueryRowContext(ctx, `
		SELECT id, record_count, body, staged_at
		FROM staged_writes ORDER BY id DESC LIMIT 1
	`).Scan(&w.ID, &w.Records, &w.Body, &w.StagedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return StagedWrite{}, ErrNothingStaged
	}
	if err != nil {
		return StagedWrite{}, fmt.Errorf("latest staged: %w", err)
	}
	return w, nil
}

// StagedCount returns the number of retained staged write-backs.
func (s *Store) StagedCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM staged_writes`).Scan(&n)
	return n, err
}
