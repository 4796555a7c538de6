package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// SavedView is a named snapshot of a FilterSpec.
type SavedView struct {
	ID        string
	Name      string
	Filters   FilterSpec
	CreatedAt time.Time
}

// viewJSON is the exported layout: ISO-8601 creation time and a layout
// version so older exports can still be read.
type viewJSON struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Version   int             `json:"version,omitempty"`
	Filters   json.RawMessage `json:"filters"`
	CreatedAt string          `json:"createdAt"`
}

// EncodeViews serializes views as a JSON array.
func EncodeViews(views []SavedView) ([]byte, error) {
	out := make([]viewJSON, 0, len(views))
	for _, v := range views {
		filters, err := json.Marshal(v.Filters)
		if err != nil {
			return nil, fmt.Errorf("encode view %s: %w", v.ID, err)
		}
		out = append(out, viewJSON{
			ID:        v.ID,
			Name:      v.Name,
			Version:   FilterSpecVersion,
			Filters:   filters,
			CreatedAt: v.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return json.MarshalIndent(out, "", "  ")
}

// DecodeViews reads a JSON array written by EncodeViews or by the older
// unversioned export.
func DecodeViews(data []byte) ([]SavedView, error) {
	var raw []viewJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode views: %w", err)
	}
	views := make([]SavedView, 0, len(raw))
	for _, r := range raw {
		version := r.Version
		if version == 0 {
			version = 1
		}
		filters, err := DecodeFilterSpec(version, r.Filters)
		if err != nil {
			return nil, fmt.Errorf("view %s: %w", r.ID, err)
		}
		created, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("view %s: created at: %w", r.ID, err)
		}
		views = append(views, SavedView{
			ID:        r.ID,
			Name:      r.Name,
			Filters:   filters,
			CreatedAt: created,
		})
	}
	return views, nil
}
