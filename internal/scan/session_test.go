package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelbrown/yarnstash/internal/lookup"
	"github.com/abelbrown/yarnstash/internal/model"
	"github.com/abelbrown/yarnstash/internal/state"
)

type stubLookup struct {
	results map[string]lookup.Result
	err     error
	calls   int
}

func (s *stubLookup) Lookup(_ context.Context, code string) (lookup.Result, error) {
	s.calls++
	if r, ok := s.results[code]; ok {
		return r, nil
	}
	if s.err != nil {
		return lookup.Result{}, s.err
	}
	return lookup.Result{}, lookup.ErrNoData
}

func seeded(t *testing.T) *state.Store {
	t.Helper()
	st := state.New(state.Options{})
	st.ReplaceRecords([]model.Record{
		{ID: "0001", Brand: "Red Heart", Qty: 2, Weight: model.WeightMedium, Material: "Acrylic", Colors: []string{"Red"}},
		{ID: "r-2", Brand: "Bernat", Qty: 1, Weight: model.WeightSuperBulky, BrandColor: "0002", Colors: []string{"Navy"}},
	})
	return st
}

func newSession(st Records, lk Lookuper, clock clockwork.Clock) *Session {
	n := 0
	return NewSession(Options{
		Records: st,
		Lookup:  lk,
		Clock:   clock,
		NewID: func(time.Time) string {
			n++
			return fmt.Sprintf("new-%d", n)
		},
	})
}

func TestScanExistingIncrementsQty(t *testing.T) {
	st := seeded(t)
	lk := &stubLookup{}
	s := newSession(st, lk, clockwork.NewFakeClock())

	res, err := s.Scan(context.Background(), "0001")
	require.NoError(t, err)
	assert.Equal(t, Incremented, res.Outcome)
	assert.Equal(t, 3, res.Record.Qty)

	rec, err := st.Record("0001")
	require.NoError(t, err)
	assert.Equal(t, 3, rec.Qty)
	assert.Len(t, st.Records(), 2, "record count unchanged")
	assert.Zero(t, lk.calls, "known codes skip the lookup")
	assert.Empty(t, s.Pending())
}

func TestScanMatchesBrandColor(t *testing.T) {
	st := seeded(t)
	s := newSession(st, nil, clockwork.NewFakeClock())

	res, err := s.Scan(context.Background(), " 0002 ")
	require.NoError(t, err)
	assert.Equal(t, Incremented, res.Outcome)
	assert.Equal(t, "r-2", res.Record.ID)
	assert.Equal(t, 2, res.Record.Qty)
}

func TestScanUnknownWithFailedLookupCommitsDefaults(t *testing.T) {
	st := seeded(t)
	s := newSession(st, &stubLookup{}, clockwork.NewFakeClock())

	res, err := s.Scan(context.Background(), "9999")
	require.NoError(t, err)
	assert.Equal(t, Queued, res.Outcome)
	assert.Nil(t, res.Item.Lookup)
	assert.Len(t, st.Records(), 2, "nothing is added before review")

	added, err := s.Commit()
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Len(t, st.Records(), 3)

	got := added[0]
	assert.Equal(t, "new-1", got.ID)
	assert.Equal(t, "Unknown", got.Brand)
	assert.Equal(t, 1, got.Qty)
	assert.Equal(t, model.WeightMedium, got.Weight)
	assert.Equal(t, "Mixed", got.Material)
	assert.Empty(t, got.Colors)
	assert.Empty(t, s.Pending())
}

func TestCommitLayersEditsOverLookup(t *testing.T) {
	st := seeded(t)
	product := lookup.Product{Brand: "lion brand", Name: "Wool-Ease Thick & Quick Blue", Description: "super chunky, 106 yards", Category: "Yarn"}
	lk := &stubLookup{results: map[string]lookup.Result{
		"5555": {Code: "5555", Source: "upcitemdb", Product: product, Data: lookup.ToPartial(product)},
	}}
	s := newSession(st, lk, clockwork.NewFakeClock())

	_, err := s.Scan(context.Background(), "5555")
	require.NoError(t, err)
	require.NoError(t, s.Edit("5555", model.PartialRecord{Material: model.Some("Wool Blend")}))
	require.NoError(t, s.Edit("5555", model.PartialRecord{Softness: model.Some(4)}))

	preview := s.Pending()[0].Preview()
	assert.Equal(t, "Lion Brand", preview.Brand)

	added, err := s.Commit()
	require.NoError(t, err)
	require.Len(t, added, 1)
	got := added[0]
	assert.Equal(t, "Lion Brand", got.Brand, "from lookup")
	assert.Equal(t, model.WeightSuperBulky, got.Weight, "from lookup")
	assert.Equal(t, 106, got.Length, "from lookup")
	assert.Equal(t, "Wool Blend", got.Material, "edit wins")
	assert.Equal(t, 4, got.Softness, "later edit kept alongside earlier one")
	assert.Equal(t, []string{"Blue"}, got.Colors)
}

func TestDebounce(t *testing.T) {
	st := seeded(t)
	clock := clockwork.NewFakeClock()
	s := newSession(st, nil, clock)
	ctx := context.Background()

	_, err := s.Scan(ctx, "0001")
	require.NoError(t, err)
	res, err := s.Scan(ctx, "0001")
	require.NoError(t, err)
	assert.Equal(t, Ignored, res.Outcome)

	clock.Advance(1999 * time.Millisecond)
	res, _ = s.Scan(ctx, "0001")
	assert.Equal(t, Ignored, res.Outcome, "window runs from the accepted scan")

	clock.Advance(time.Millisecond)
	res, _ = s.Scan(ctx, "0001")
	assert.Equal(t, Incremented, res.Outcome)

	rec, _ := st.Record("0001")
	assert.Equal(t, 4, rec.Qty)

	// Different codes are never debounced against each other.
	res, _ = s.Scan(ctx, "0002")
	assert.Equal(t, Incremented, res.Outcome)

	sum := s.Summary()
	assert.Equal(t, 3, sum.TotalScans)
	assert.Equal(t, 2, sum.Ignored)
	assert.Equal(t, 3, sum.Updated)
}

func TestRescanPendingBumpsCount(t *testing.T) {
	st := seeded(t)
	clock := clockwork.NewFakeClock()
	lk := &stubLookup{}
	s := newSession(st, lk, clock)
	ctx := context.Background()

	_, err := s.Scan(ctx, "7777")
	require.NoError(t, err)
	clock.Advance(3 * time.Second)
	res, err := s.Scan(ctx, "7777")
	require.NoError(t, err)
	assert.Equal(t, Requeued, res.Outcome)
	assert.Equal(t, 2, res.Item.Count)
	assert.Equal(t, 1, lk.calls)

	added, err := s.Commit()
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Equal(t, 2, added[0].Qty)
}

func TestDiscardAndRestore(t *testing.T) {
	st := seeded(t)
	s := newSession(st, nil, clockwork.NewFakeClock())
	ctx := context.Background()

	_, _ = s.Scan(ctx, "a")
	_, _ = s.Scan(ctx, "b")
	_, _ = s.Scan(ctx, "c")

	require.NoError(t, s.Discard("a"))
	require.NoError(t, s.Discard("b"))
	require.NoError(t, s.Restore("b"))
	assert.ErrorIs(t, s.Discard("zzz"), ErrNotPending)
	assert.ErrorIs(t, s.Edit("zzz", model.PartialRecord{}), ErrNotPending)

	pending := s.Pending()
	require.Len(t, pending, 3)
	assert.True(t, pending[0].Discarded)
	assert.False(t, pending[1].Discarded)
	assert.Equal(t, 2, s.Summary().Pending)

	added, err := s.Commit()
	require.NoError(t, err)
	assert.Len(t, added, 2)
	assert.Len(t, st.Records(), 4)

	sum := s.Summary()
	assert.Equal(t, 2, sum.Committed)
	assert.Equal(t, 1, sum.Discarded)
	assert.Zero(t, sum.Pending)
}

type failingRecords struct {
	*state.Store
	fail string
}

func (f failingRecords) UpsertRecord(id string, patch model.PartialRecord) (model.Record, error) {
	if patch.Brand.Value == f.fail {
		return model.Record{}, errors.New("disk full")
	}
	return f.Store.UpsertRecord(id, patch)
}

func TestCommitKeepsFailedItems(t *testing.T) {
	st := seeded(t)
	s := newSession(failingRecords{Store: st, fail: "Bad"}, nil, clockwork.NewFakeClock())
	ctx := context.Background()

	_, _ = s.Scan(ctx, "good")
	_, _ = s.Scan(ctx, "bad")
	require.NoError(t, s.Edit("bad", model.PartialRecord{Brand: model.Some("Bad")}))

	added, err := s.Commit()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit bad")
	assert.Len(t, added, 1)

	pending := s.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "bad", pending[0].Code)
}

func TestLookupErrorIsReturned(t *testing.T) {
	s := newSession(seeded(t), &stubLookup{err: context.Canceled}, clockwork.NewFakeClock())
	_, err := s.Scan(context.Background(), "4242")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, s.Pending())
}

func TestFailedLookupDoesNotDebounce(t *testing.T) {
	lk := &stubLookup{err: context.Canceled}
	s := newSession(seeded(t), lk, clockwork.NewFakeClock())
	ctx := context.Background()

	_, err := s.Scan(ctx, "4242")
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, s.Summary().TotalScans)

	lk.err = nil
	res, err := s.Scan(ctx, "4242")
	require.NoError(t, err)
	assert.Equal(t, Queued, res.Outcome, "retry inside the window is not ignored")
	assert.Equal(t, 2, lk.calls)

	sum := s.Summary()
	assert.Equal(t, 1, sum.TotalScans)
	assert.Zero(t, sum.Ignored)
}

func TestEmptyCode(t *testing.T) {
	s := newSession(seeded(t), nil, clockwork.NewFakeClock())
	_, err := s.Scan(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyCode)
}

func TestNewRecordID(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	id := NewRecordID(now)
	assert.True(t, strings.HasPrefix(id, "record-1700000000123-"), id)
	assert.Len(t, id, len("record-1700000000123-")+8)
	assert.NotEqual(t, id, NewRecordID(now))
}
