// Package state holds the canonical record set, the current filter spec,
// and the filtered view derived from them.
//
// # Recompute rule
//
// The filtered view is recomputed eagerly, exactly when the record set or
// the filter spec changes value. Replacing records with an equal set or
// setting an equal spec is a no-op. Nothing else triggers a recompute.
//
// # Thread Safety
//
// Store is safe for concurrent use. Readers get copies; the canonical
// slices never leave the Store.
//
// # Change Channel
//
// Subscribe returns a buffered channel that receives a Change after every
// mutation. Sends never block; when the buffer is full the change is
// dropped. A Change is a signal to re-read, so a dropped one loses nothing
// as long as an earlier one is still queued.
package state

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/abelbrown/yarnstash/internal/filter"
	"github.com/abelbrown/yarnstash/internal/model"
	"github.com/abelbrown/yarnstash/internal/otel"
)

const comp = "state"

var (
	ErrViewNotFound   = errors.New("saved view not found")
	ErrRecordNotFound = errors.New("record not found")
	ErrEmptyViewName  = errors.New("view name is empty")
	ErrEmptyRecordID  = errors.New("record id is empty")
)

// ViewRepository persists saved views.
type ViewRepository interface {
	SaveView(ctx context.Context, v model.SavedView) error
	DeleteView(ctx context.Context, id string) error
	ListViews(ctx context.Context) ([]model.SavedView, error)
}

// ChangeKind says what a mutation touched.
type ChangeKind string

const (
	ChangeRecords ChangeKind = "records"
	ChangeFilters ChangeKind = "filters"
	ChangeViews   ChangeKind = "views"
)

// Change is sent to subscribers after a mutation.
type Change struct {
	Kind       ChangeKind
	Generation uint64
}

// Snapshot is a consistent copy of the Store.
type Snapshot struct {
	Records    []model.Record
	Filtered   []model.Record
	Filters    model.FilterSpec
	Views      []model.SavedView
	Generation uint64
}

// Options configures a Store.
type Options struct {
	Clock    clockwork.Clock
	Views    ViewRepository // nil keeps views in memory only
	Taxonomy *model.ColorTaxonomy
	Events   *otel.Logger
	NewID    func() string
}

// Store is the process-wide state container.
type Store struct {
	clock  clockwork.Clock
	repo   ViewRepository
	tax    *model.ColorTaxonomy
	events *otel.Logger
	newID  func() string

	mu         sync.RWMutex
	records    []model.Record
	spec       model.FilterSpec
	filtered   []model.Record
	views      []model.SavedView
	generation uint64

	changes chan Change
}

// New creates an empty Store.
func New(opts Options) *Store {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Taxonomy == nil {
		opts.Taxonomy = model.DefaultColorTaxonomy()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Store{
		clock:    opts.Clock,
		repo:     opts.Views,
		tax:      opts.Taxonomy,
		events:   opts.Events,
		newID:    opts.NewID,
		records:  []model.Record{},
		filtered: []model.Record{},
		views:    []model.SavedView{},
		changes:  make(chan Change, 10),
	}
}

// Subscribe returns the change channel. It is never closed.
func (s *Store) Subscribe() <-chan Change {
	return s.changes
}

func (s *Store) send(kind ChangeKind, gen uint64) {
	select {
	case s.changes <- Change{Kind: kind, Generation: gen}:
	default:
	}
}

// recomputeLocked rebuilds the filtered view. Caller must hold s.mu.
func (s *Store) recomputeLocked() {
	start := s.clock.Now()
	s.filtered = filter.ApplyWith(s.records, s.spec, s.tax)
	s.generation++
	s.events.Emit(otel.Event{
		Level: otel.LevelDebug, Kind: otel.KindFilterApply, Comp: comp,
		Count: len(s.filtered), Dur: s.clock.Since(start),
		Extra: map[string]any{"total": len(s.records), "active": s.spec.Active()},
	})
}

// ReplaceRecords swaps in a full record set, as delivered by the sync
// engine. It reports whether anything changed.
func (s *Store) ReplaceRecords(records []model.Record) bool {
	s.mu.Lock()
	if model.EqualRecords(s.records, records) {
		s.mu.Unlock()
		return false
	}
	s.records = model.CloneRecords(records)
	s.recomputeLocked()
	gen := s.generation
	s.mu.Unlock()

	s.send(ChangeRecords, gen)
	return true
}

// SetFilters replaces the current filter spec. It reports whether
// anything changed.
func (s *Store) SetFilters(spec model.FilterSpec) bool {
	s.mu.Lock()
	if s.spec.Equal(spec) {
		s.mu.Unlock()
		return false
	}
	s.spec = spec.Clone()
	s.recomputeLocked()
	gen := s.generation
	s.mu.Unlock()

	s.send(ChangeFilters, gen)
	return true
}

// ResetFilters restores the spec that admits every record.
func (s *Store) ResetFilters() bool {
	return s.SetFilters(model.DefaultFilterSpec())
}

// UpdateFilters applies fn to a copy of the current spec and stores the
// result.
func (s *Store) UpdateFilters(fn func(*model.FilterSpec)) bool {
	spec := s.Filters()
	fn(&spec)
	return s.SetFilters(spec)
}

// UpsertRecord merges patch into the record with the given id, or appends
// a new record built from patch when no record has that id.
func (s *Store) UpsertRecord(id string, patch model.PartialRecord) (model.Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.Record{}, ErrEmptyRecordID
	}

	s.mu.Lock()
	i := slices.IndexFunc(s.records, func(r model.Record) bool { return r.ID == id })
	var (
		out     model.Record
		created bool
	)
	if i >= 0 {
		out = patch.ApplyTo(s.records[i])
		if out.Equal(s.records[i]) {
			s.mu.Unlock()
			return out.Clone(), nil
		}
		s.records[i] = out
	} else {
		out = patch.Complete(id, model.Record{Weight: model.WeightOther})
		s.records = append(s.records, out)
		created = true
	}
	s.recomputeLocked()
	gen := s.generation
	s.mu.Unlock()

	s.events.Emit(otel.Event{Kind: otel.KindRecordSave, Comp: comp, Msg: id, Extra: map[string]any{"created": created}})
	s.send(ChangeRecords, gen)
	return out.Clone(), nil
}

// AddQty adds delta to the quantity of the record with the given id in
// one step, so concurrent increments are never lost. The result is
// clamped at zero.
func (s *Store) AddQty(id string, delta int) (model.Record, error) {
	s.mu.Lock()
	i := slices.IndexFunc(s.records, func(r model.Record) bool { return r.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return model.Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	s.records[i].Qty = max(s.records[i].Qty+delta, 0)
	out := s.records[i].Clone()
	s.recomputeLocked()
	gen := s.generation
	s.mu.Unlock()

	s.events.Emit(otel.Event{Kind: otel.KindRecordSave, Comp: comp, Msg: id, Count: delta})
	s.send(ChangeRecords, gen)
	return out, nil
}

// Record returns the record with the given id.
func (s *Store) Record(id string) (model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.ID == id {
			return r.Clone(), nil
		}
	}
	return model.Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
}

// FindByCode finds the record a scanned code refers to: one whose id or
// brand color equals the code.
func (s *Store) FindByCode(code string) (model.Record, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return model.Record{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.ID == code || r.BrandColor == code {
			return r.Clone(), true
		}
	}
	return model.Record{}, false
}

// LoadViews replaces the in-memory view list with the repository's.
func (s *Store) LoadViews(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	views, err := s.repo.ListViews(ctx)
	if err != nil {
		s.events.Error(otel.KindStoreError, comp, err)
		return fmt.Errorf("load views: %w", err)
	}
	s.mu.Lock()
	s.views = views
	gen := s.generation
	s.mu.Unlock()
	s.send(ChangeViews, gen)
	return nil
}

// SaveView captures the current filter spec under name.
func (s *Store) SaveView(ctx context.Context, name string) (model.SavedView, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.SavedView{}, ErrEmptyViewName
	}
	v := model.SavedView{
		ID:        s.newID(),
		Name:      name,
		Filters:   s.Filters(),
		CreatedAt: s.clock.Now(),
	}
	if s.repo != nil {
		if err := s.repo.SaveView(ctx, v); err != nil {
			s.events.Error(otel.KindStoreError, comp, err)
			return model.SavedView{}, fmt.Errorf("save view: %w", err)
		}
	}

	s.mu.Lock()
	s.views = append(s.views, v)
	gen := s.generation
	s.mu.Unlock()

	s.events.Emit(otel.Event{Kind: otel.KindViewSave, Comp: comp, Msg: name, Count: v.Filters.Active()})
	s.send(ChangeViews, gen)
	return v, nil
}

// LoadView makes a saved view's spec the current one.
func (s *Store) LoadView(id string) error {
	s.mu.RLock()
	i := slices.IndexFunc(s.views, func(v model.SavedView) bool { return v.ID == id })
	var spec model.FilterSpec
	if i >= 0 {
		spec = s.views[i].Filters.Clone()
	}
	s.mu.RUnlock()

	if i < 0 {
		return fmt.Errorf("%w: %s", ErrViewNotFound, id)
	}
	s.events.Emit(otel.Event{Kind: otel.KindViewLoad, Comp: comp, Msg: id})
	s.SetFilters(spec)
	return nil
}

// DeleteView removes a saved view.
func (s *Store) DeleteView(ctx context.Context, id string) error {
	s.mu.RLock()
	found := slices.ContainsFunc(s.views, func(v model.SavedView) bool { return v.ID == id })
	s.mu.RUnlock()
	if !found {
		return fmt.Errorf("%w: %s", ErrViewNotFound, id)
	}

	if s.repo != nil {
		if err := s.repo.DeleteView(ctx, id); err != nil {
			s.events.Error(otel.KindStoreError, comp, err)
			return fmt.Errorf("delete view: %w", err)
		}
	}

	s.mu.Lock()
	s.views = slices.DeleteFunc(s.views, func(v model.SavedView) bool { return v.ID == id })
	gen := s.generation
	s.mu.Unlock()

	s.events.Emit(otel.Event{Kind: otel.KindViewDelete, Comp: comp, Msg: id})
	s.send(ChangeViews, gen)
	return nil
}

// Records returns a copy of the canonical record set.
func (s *Store) Records() []model.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.CloneRecords(s.records)
}

// Filtered returns a copy of the filtered view.
func (s *Store) Filtered() []model.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.CloneRecords(s.filtered)
}

// Filters returns a copy of the current spec.
func (s *Store) Filters() model.FilterSpec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.spec.Clone()
}

// Views returns the saved views, oldest first.
func (s *Store) Views() []model.SavedView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.SavedView, len(s.views))
	for i, v := range s.views {
		v.Filters = v.Filters.Clone()
		out[i] = v
	}
	return out
}

// Snapshot returns a consistent copy of everything.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	views := make([]model.SavedView, len(s.views))
	for i, v := range s.views {
		v.Filters = v.Filters.Clone()
		views[i] = v
	}
	return Snapshot{
		Records:    model.CloneRecords(s.records),
		Filtered:   model.CloneRecords(s.filtered),
		Filters:    s.spec.Clone(),
		Views:      views,
		Generation: s.generation,
	}
}

// Generation counts rebuilds of the filtered view.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Taxonomy returns the color taxonomy used for color-group filtering.
func (s *Store) Taxonomy() *model.ColorTaxonomy {
	return s.tax
}
