package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/abelbrown/yarnstash/internal/model"
)

// SaveView inserts or replaces a saved view. Filters are stored as JSON
// tagged with the current layout version.
func (s *Store) SaveView(ctx context.Context, v model.SavedView) error {
	filters, err := json.Marshal(v.Filters)
	if err != nil {
		return fmt.Errorf("encode filters: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO saved_views (id, name, version, filters, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			version = excluded.version,
			filters = excluded.filters
	`, v.ID, v.Name, model.FilterSpecVersion, string(filters), v.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("save view %s: %w", v.ID, err)
	}
	return nil
}

// DeleteView removes a view. Deleting a missing view is not an error.
func (s *Store) DeleteView(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM saved_views WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete view %s: %w", id, err)
	}
	return nil
}

// ListViews returns every saved view, oldest first. Older filter layouts
// are migrated on the way out.
func (s *Store) ListViews(ctx context.Context) ([]model.SavedView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, version, filters, created_at
		FROM saved_views
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list views: %w", err)
	}
	defer rows.Close()

	views := []model.SavedView{}
	for rows.Next() {
		var (
			v       model.SavedView
			version int
			filters string
			created time.Time
		)
		if err := rows.Scan(&v.ID, &v.Name, &version, &filters, &created); err != nil {
			return nil, err
		}
		v.Filters, err = model.DecodeFilterSpec(version, []byte(filters))
		if err != nil {
			return nil, fmt.Errorf("view %s: %w", v.ID, err)
		}
		v.CreatedAt = created.UTC()
		views = append(views, v)
	}
	return views, rows.Err()
}

// ExportViews writes every view to path as a JSON array.
func (s *Store) ExportViews(ctx context.Context, path string) (int, error) {
	views, err := s.ListViews(ctx)
	if err != nil {
		return 0, err
	}
	data, err := model.EncodeViews(views)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("export views: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, fmt.Errorf("export views: %w", err)
	}
	return len(views), nil
}

// ImportViews reads a JSON array written by ExportViews (any layout
// version) and saves each view, replacing views with the same ID.
func (s *Store) ImportViews(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("import views: %w", err)
	}
	views, err := model.DecodeViews(data)
	if err != nil {
		return 0, err
	}
	for _, v := range views {
		if err := s.SaveView(ctx, v); err != nil {
			return 0, err
		}
	}
	return len(views), nil
}
