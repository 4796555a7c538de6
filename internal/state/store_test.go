package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelbrown/yarnstash/internal/model"
)

type memRepo struct {
	mu    sync.Mutex
	views map[string]model.SavedView
	order []string
	err   error
}

func newMemRepo() *memRepo { return &memRepo{views: map[string]model.SavedView{}} }

func (r *memRepo) SaveView(_ context.Context, v model.SavedView) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if _, ok := r.views[v.ID]; !ok {
		r.order = append(r.order, v.ID)
	}
	r.views[v.ID] = v
	return nil
}

func (r *memRepo) DeleteView(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	delete(r.views, id)
	return nil
}

func (r *memRepo) ListViews(context.Context) ([]model.SavedView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var out []model.SavedView
	for _, id := range r.order {
		if v, ok := r.views[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func records() []model.Record {
	return []model.Record{
		{ID: "record-0", Brand: "Red Heart", Weight: model.WeightMedium, Qty: 3, BrandColor: "0312"},
		{ID: "record-1", Brand: "Lion Brand", Weight: model.WeightMedium, Qty: 10},
		{ID: "record-2", Brand: "Bernat", Weight: model.WeightBulky, Qty: 1},
	}
}

func newStore(t *testing.T, repo ViewRepository) (*Store, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	n := 0
	s := New(Options{
		Clock: clock,
		Views: repo,
		NewID: func() string { n++; return fmt.Sprintf("view-%d", n) },
	})
	return s, clock
}

func TestNewStoreIsEmpty(t *testing.T) {
	s, _ := newStore(t, nil)
	assert.NotNil(t, s.Records())
	assert.NotNil(t, s.Filtered())
	assert.Empty(t, s.Views())
	assert.True(t, s.Filters().IsDefault())
	assert.Zero(t, s.Generation())
}

func TestReplaceRecordsRecomputes(t *testing.T) {
	s, _ := newStore(t, nil)

	require.True(t, s.ReplaceRecords(records()))
	assert.Len(t, s.Filtered(), 3)
	assert.EqualValues(t, 1, s.Generation())

	assert.False(t, s.ReplaceRecords(records()), "equal set is a no-op")
	assert.EqualValues(t, 1, s.Generation())

	changed := records()[:2]
	require.True(t, s.ReplaceRecords(changed))
	assert.Len(t, s.Filtered(), 2)
	assert.EqualValues(t, 2, s.Generation())
}

func TestSetFiltersRecomputesOnlyOnChange(t *testing.T) {
	s, _ := newStore(t, nil)
	s.ReplaceRecords(records())
	gen := s.Generation()

	spec := model.FilterSpec{Weights: []model.Weight{model.WeightMedium}, Qty: model.AtLeast(5)}
	require.True(t, s.SetFilters(spec))
	assert.Equal(t, gen+1, s.Generation())

	filtered := s.Filtered()
	require.Len(t, filtered, 1)
	assert.Equal(t, "record-1", filtered[0].ID)

	assert.False(t, s.SetFilters(spec.Clone()))
	assert.Equal(t, gen+1, s.Generation())

	// Reads never recompute.
	s.Snapshot()
	s.Views()
	s.Records()
	assert.Equal(t, gen+1, s.Generation())

	require.True(t, s.ResetFilters())
	assert.Len(t, s.Filtered(), 3)
	assert.False(t, s.ResetFilters())
}

func TestUpdateFilters(t *testing.T) {
	s, _ := newStore(t, nil)
	s.ReplaceRecords(records())

	s.UpdateFilters(func(f *model.FilterSpec) { f.Brands = []string{"Bernat"} })
	s.UpdateFilters(func(f *model.FilterSpec) { f.Search = "bern" })

	f := s.Filters()
	assert.Equal(t, []string{"Bernat"}, f.Brands)
	assert.Equal(t, "bern", f.Search)
	assert.Len(t, s.Filtered(), 1)
}

func TestFiltersAreCopies(t *testing.T) {
	s, _ := newStore(t, nil)
	spec := model.FilterSpec{Brands: []string{"Caron"}}
	s.SetFilters(spec)

	spec.Brands[0] = "mutated"
	got := s.Filters()
	assert.Equal(t, "Caron", got.Brands[0])

	got.Brands[0] = "again"
	assert.Equal(t, "Caron", s.Filters().Brands[0])
}

func TestRecordsAreCopies(t *testing.T) {
	s, _ := newStore(t, nil)
	in := records()
	in[0].Colors = []string{"Red"}
	s.ReplaceRecords(in)

	in[0].Colors[0] = "Blue"
	out := s.Records()
	assert.Equal(t, "Red", out[0].Colors[0])

	out[0].Qty = 99
	assert.Equal(t, 3, s.Records()[0].Qty)
}

func TestUpsertMergesExisting(t *testing.T) {
	s, _ := newStore(t, nil)
	s.ReplaceRecords(records())
	gen := s.Generation()

	got, err := s.UpsertRecord("record-0", model.PartialRecord{Qty: model.Some(4)})
	require.NoError(t, err)
	assert.Equal(t, 4, got.Qty)
	assert.Equal(t, "Red Heart", got.Brand, "unset fields keep their value")
	assert.Equal(t, gen+1, s.Generation())

	r, err := s.Record("record-0")
	require.NoError(t, err)
	assert.Equal(t, 4, r.Qty)
	assert.Len(t, s.Records(), 3)
}

func TestUpsertNoChangeDoesNotRecompute(t *testing.T) {
	s, _ := newStore(t, nil)
	s.ReplaceRecords(records())
	gen := s.Generation()

	_, err := s.UpsertRecord("record-0", model.PartialRecord{Qty: model.Some(3)})
	require.NoError(t, err)
	assert.Equal(t, gen, s.Generation())
}

func TestUpsertInsertsNew(t *testing.T) {
	s, _ := newStore(t, nil)
	s.ReplaceRecords(records())

	got, err := s.UpsertRecord("record-99", model.PartialRecord{
		Brand:  model.Some("Caron"),
		Weight: model.Some(model.Weight("chunky")),
		Qty:    model.Some(-2),
	})
	require.NoError(t, err)
	assert.Equal(t, "record-99", got.ID)
	assert.Equal(t, model.WeightOther, got.Weight)
	assert.Zero(t, got.Qty)

	all := s.Records()
	require.Len(t, all, 4)
	assert.Equal(t, "record-99", all[3].ID, "appended at the end")
}

func TestUpsertRequiresID(t *testing.T) {
	s, _ := newStore(t, nil)
	_, err := s.UpsertRecord("  ", model.PartialRecord{})
	assert.ErrorIs(t, err, ErrEmptyRecordID)
}

func TestUpsertRefiltersView(t *testing.T) {
	s, _ := newStore(t, nil)
	s.ReplaceRecords(records())
	s.SetFilters(model.FilterSpec{Qty: model.AtLeast(5)})
	require.Len(t, s.Filtered(), 1)

	_, err := s.UpsertRecord("record-2", model.PartialRecord{Qty: model.Some(7)})
	require.NoError(t, err)
	assert.Len(t, s.Filtered(), 2)
}

func TestAddQtyIsAtomic(t *testing.T) {
	s, _ := newStore(t, nil)
	s.ReplaceRecords(records())
	before, err := s.Record("record-1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AddQty("record-1", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	after, err := s.Record("record-1")
	require.NoError(t, err)
	assert.Equal(t, before.Qty+50, after.Qty)

	r, err := s.AddQty("record-1", -(after.Qty + 5))
	require.NoError(t, err)
	assert.Zero(t, r.Qty, "quantity never goes negative")

	_, err = s.AddQty("nope", 1)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestRecordNotFound(t *testing.T) {
	s, _ := newStore(t, nil)
	_, err := s.Record("nope")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestFindByCode(t *testing.T) {
	s, _ := newStore(t, nil)
	s.ReplaceRecords(records())

	r, ok := s.FindByCode("0312")
	require.True(t, ok)
	assert.Equal(t, "record-0", r.ID)

	r, ok = s.FindByCode(" record-2 ")
	require.True(t, ok)
	assert.Equal(t, "Bernat", r.Brand)

	_, ok = s.FindByCode("")
	assert.False(t, ok)
	_, ok = s.FindByCode("999")
	assert.False(t, ok)
}

func TestSaveAndLoadView(t *testing.T) {
	repo := newMemRepo()
	s, clock := newStore(t, repo)
	s.ReplaceRecords(records())

	spec := model.FilterSpec{Brands: []string{"Bernat"}, MachineWash: model.Yes}
	s.SetFilters(spec)

	v, err := s.SaveView(context.Background(), "  Bernat washables ")
	require.NoError(t, err)
	assert.Equal(t, "view-1", v.ID)
	assert.Equal(t, "Bernat washables", v.Name)
	assert.Equal(t, clock.Now(), v.CreatedAt)
	assert.True(t, v.Filters.Equal(spec))
	assert.Len(t, repo.views, 1)

	s.ResetFilters()
	require.NoError(t, s.LoadView(v.ID))
	assert.True(t, s.Filters().Equal(spec))
}

func TestSavedViewIsASnapshot(t *testing.T) {
	s, _ := newStore(t, nil)
	s.SetFilters(model.FilterSpec{Brands: []string{"Caron"}})
	v, err := s.SaveView(context.Background(), "caron")
	require.NoError(t, err)

	s.UpdateFilters(func(f *model.FilterSpec) { f.Brands = append(f.Brands, "Bernat") })
	assert.Equal(t, []string{"Caron"}, s.Views()[0].Filters.Brands)

	views := s.Views()
	views[0].Filters.Brands[0] = "mutated"
	assert.Equal(t, "Caron", s.Views()[0].Filters.Brands[0])
	assert.Equal(t, v.ID, s.Views()[0].ID)
}

func TestSaveViewValidation(t *testing.T) {
	s, _ := newStore(t, nil)
	_, err := s.SaveView(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyViewName)
}

func TestSaveViewRepositoryFailure(t *testing.T) {
	repo := newMemRepo()
	repo.err = errors.New("disk full")
	s, _ := newStore(t, repo)

	_, err := s.SaveView(context.Background(), "mine")
	require.Error(t, err)
	assert.Empty(t, s.Views(), "failed save must not appear")
}

func TestDeleteView(t *testing.T) {
	repo := newMemRepo()
	s, _ := newStore(t, repo)
	ctx := context.Background()

	a, _ := s.SaveView(ctx, "a")
	b, _ := s.SaveView(ctx, "b")

	require.NoError(t, s.DeleteView(ctx, a.ID))
	views := s.Views()
	require.Len(t, views, 1)
	assert.Equal(t, b.ID, views[0].ID)
	assert.NotContains(t, repo.views, a.ID)

	assert.ErrorIs(t, s.DeleteView(ctx, a.ID), ErrViewNotFound)
	assert.ErrorIs(t, s.LoadView(a.ID), ErrViewNotFound)
}

func TestLoadViewsFromRepository(t *testing.T) {
	repo := newMemRepo()
	repo.SaveView(context.Background(), model.SavedView{ID: "x", Name: "persisted", Filters: model.FilterSpec{Search: "wool"}})

	s, _ := newStore(t, repo)
	require.NoError(t, s.LoadViews(context.Background()))
	require.Len(t, s.Views(), 1)

	require.NoError(t, s.LoadView("x"))
	assert.Equal(t, "wool", s.Filters().Search)
}

func TestLoadViewsWithoutRepository(t *testing.T) {
	s, _ := newStore(t, nil)
	assert.NoError(t, s.LoadViews(context.Background()))
}

func TestSubscribeSignalsChanges(t *testing.T) {
	s, _ := newStore(t, nil)
	ch := s.Subscribe()

	s.ReplaceRecords(records())
	s.SetFilters(model.FilterSpec{Search: "red"})
	s.SaveView(context.Background(), "reds")

	var kinds []ChangeKind
	for range 3 {
		select {
		case c := <-ch:
			kinds = append(kinds, c.Kind)
		case <-time.After(time.Second):
			t.Fatal("missing change")
		}
	}
	assert.Equal(t, []ChangeKind{ChangeRecords, ChangeFilters, ChangeViews}, kinds)
}

func TestSubscribeNeverBlocks(t *testing.T) {
	s, _ := newStore(t, nil)
	for i := range 50 {
		s.SetFilters(model.FilterSpec{Qty: model.AtLeast(i + 1)})
	}
	assert.Len(t, s.Subscribe(), cap(s.changes))
}

func TestConcurrentMutations(t *testing.T) {
	s, _ := newStore(t, nil)
	s.ReplaceRecords(records())

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.UpsertRecord("record-1", model.PartialRecord{Qty: model.Some(i)})
			s.SetFilters(model.FilterSpec{Qty: model.AtLeast(i % 3)})
			s.Snapshot()
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.Len(t, snap.Records, 3)
	for _, r := range snap.Filtered {
		assert.True(t, snap.Filters.Qty.Contains(r.Qty))
	}
}
