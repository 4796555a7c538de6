// Package scan runs a quick-scan session: codes come in one at a time,
// known codes bump the stock count right away, unknown codes are looked up
// and queued for review, and Commit turns the reviewed queue into records.
package scan

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/abelbrown/yarnstash/internal/lookup"
	"github.com/abelbrown/yarnstash/internal/model"
	"github.com/abelbrown/yarnstash/internal/otel"
)

const comp = "scan"

var (
	ErrNotPending = errors.New("code is not pending review")
	ErrEmptyCode  = errors.New("scanned code is empty")
)

// Records is the slice of the state store a session needs.
type Records interface {
	FindByCode(code string) (model.Record, bool)
	UpsertRecord(id string, patch model.PartialRecord) (model.Record, error)
	AddQty(id string, delta int) (model.Record, error)
}

// Lookuper resolves unknown codes.
type Lookuper interface {
	Lookup(ctx context.Context, code string) (lookup.Result, error)
}

// Outcome says what a scan did.
type Outcome int

const (
	Ignored     Outcome = iota // same code again inside the debounce window
	Incremented                // existing record, qty + 1
	Queued                     // new code, waiting for review
	Requeued                   // pending code scanned again, pending qty + 1
)

func (o Outcome) String() string {
	switch o {
	case Ignored:
		return "ignored"
	case Incremented:
		return "quantity updated"
	case Queued:
		return "new item added"
	case Requeued:
		return "pending quantity updated"
	default:
		return "unknown"
	}
}

// Result reports one scan.
type Result struct {
	Code    string
	Outcome Outcome
	Record  model.Record // the updated record, for Incremented
	Item    Item         // the pending item, for Queued and Requeued
}

// Item is a scanned code waiting for review.
type Item struct {
	Code      string
	ScannedAt time.Time
	Count     int
	Lookup    *lookup.Result // nil when nothing was found
	Edits     model.PartialRecord
	Discarded bool
}

// Preview is the record Commit would build from the item right now,
// with a placeholder id.
func (it Item) Preview() model.Record {
	return it.build("")
}

func (it Item) build(id string) model.Record {
	patch := it.Edits
	if it.Lookup != nil {
		patch = patch.Or(it.Lookup.Data)
	}
	if !it.Edits.Qty.Set {
		patch.Qty = model.Some(it.Count)
	}
	return patch.Complete(id, newRecordDefaults)
}

var newRecordDefaults = model.Record{
	Brand:    "Unknown",
	Qty:      1,
	Weight:   model.WeightMedium,
	Material: "Mixed",
}

// Summary counts what a session did.
type Summary struct {
	TotalScans int
	Ignored    int
	Updated    int
	Pending    int
	Discarded  int
	Committed  int
}

// Options configures a Session.
type Options struct {
	Records  Records
	Lookup   Lookuper // nil skips lookups
	Clock    clockwork.Clock
	Debounce time.Duration // default 2s
	Events   *otel.Logger
	NewID    func(now time.Time) string
}

// Session is one quick-scan run. It is safe for concurrent use.
type Session struct {
	records  Records
	lookup   Lookuper
	clock    clockwork.Clock
	debounce time.Duration
	events   *otel.Logger
	newID    func(time.Time) string

	mu       sync.Mutex
	lastSeen map[string]time.Time
	pending  []*Item
	summary  Summary
}

// NewSession starts a session.
func NewSession(opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 2 * time.Second
	}
	if opts.NewID == nil {
		opts.NewID = NewRecordID
	}
	return &Session{
		records:  opts.Records,
		lookup:   opts.Lookup,
		clock:    opts.Clock,
		debounce: opts.Debounce,
		events:   opts.Events,
		newID:    opts.NewID,
		lastSeen: make(map[string]time.Time),
	}
}

// NewRecordID returns "record-<unix millis>-<8 random hex chars>".
func NewRecordID(now time.Time) string {
	return fmt.Sprintf("record-%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}

// Scan handles one scanned code.
func (s *Session) Scan(ctx context.Context, code string) (Result, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Result{}, ErrEmptyCode
	}
	now := s.clock.Now()

	s.mu.Lock()
	if last, ok := s.lastSeen[code]; ok && now.Sub(last) < s.debounce {
		s.summary.Ignored++
		s.mu.Unlock()
		return Result{Code: code, Outcome: Ignored}, nil
	}
	prevSeen, hadSeen := s.lastSeen[code]
	s.lastSeen[code] = now
	s.summary.TotalScans++

	if it := s.findLocked(code); it != nil {
		it.Count++
		it.Discarded = false
		item := *it
		s.mu.Unlock()
		s.emit(code, Requeued)
		return Result{Code: code, Outcome: Requeued, Item: item}, nil
	}
	s.mu.Unlock()

	if existing, ok := s.records.FindByCode(code); ok {
		updated, err := s.records.AddQty(existing.ID, 1)
		if err != nil {
			return Result{}, fmt.Errorf("increment %s: %w", existing.ID, err)
		}
		s.mu.Lock()
		s.summary.Updated++
		s.mu.Unlock()
		s.emit(code, Incremented)
		return Result{Code: code, Outcome: Incremented, Record: updated}, nil
	}

	it := &Item{Code: code, ScannedAt: now, Count: 1}
	if s.lookup != nil {
		res, err := s.lookup.Lookup(ctx, code)
		switch {
		case err == nil:
			it.Lookup = &res
		case errors.Is(err, lookup.ErrNoData):
		default:
			s.forget(code, now, prevSeen, hadSeen)
			return Result{}, err
		}
	}

	s.mu.Lock()
	// Another Scan of the same code may have queued it meanwhile.
	if prev := s.findLocked(code); prev != nil {
		prev.Count++
		item := *prev
		s.mu.Unlock()
		return Result{Code: code, Outcome: Requeued, Item: item}, nil
	}
	s.pending = append(s.pending, it)
	item := *it
	s.mu.Unlock()

	s.emit(code, Queued)
	return Result{Code: code, Outcome: Queued, Item: item}, nil
}

// forget undoes the bookkeeping of a scan that did not complete, so the
// code can be scanned again right away.
func (s *Session) forget(code string, at, prev time.Time, hadPrev bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.lastSeen[code].Equal(at) {
		return
	}
	if hadPrev {
		s.lastSeen[code] = prev
	} else {
		delete(s.lastSeen, code)
	}
	s.summary.TotalScans--
}

func (s *Session) emit(code string, o Outcome) {
	s.events.Emit(otel.Event{Kind: otel.KindScan, Comp: comp, Code: code, Msg: o.String()})
}

func (s *Session) findLocked(code string) *Item {
	i := slices.IndexFunc(s.pending, func(it *Item) bool { return it.Code == code })
	if i < 0 {
		return nil
	}
	return s.pending[i]
}

// Pending returns the review queue, discarded items included, in scan
// order.
func (s *Session) Pending() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Item, len(s.pending))
	for i, it := range s.pending {
		out[i] = *it
	}
	return out
}

// Edit layers patch over the item's earlier edits.
func (s *Session) Edit(code string, patch model.PartialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := s.findLocked(code)
	if it == nil {
		return fmt.Errorf("%w: %s", ErrNotPending, code)
	}
	it.Edits = patch.Or(it.Edits)
	return nil
}

// Discard marks an item to be skipped by Commit.
func (s *Session) Discard(code string) error {
	return s.setDiscarded(code, true)
}

// Restore undoes Discard.
func (s *Session) Restore(code string) error {
	return s.setDiscarded(code, false)
}

func (s *Session) setDiscarded(code string, v bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := s.findLocked(code)
	if it == nil {
		return fmt.Errorf("%w: %s", ErrNotPending, code)
	}
	it.Discarded = v
	return nil
}

// Commit inserts a record for every pending item that was not discarded
// and empties the queue. Field values come from the user's edits first,
// then the lookup, then the new-record defaults. Items that fail to
// insert stay queued.
func (s *Session) Commit() ([]model.Record, error) {
	s.mu.Lock()
	queue := s.pending
	s.pending = nil
	s.mu.Unlock()

	var (
		added  []model.Record
		failed []*Item
		errs   []error
	)
	for _, it := range queue {
		if it.Discarded {
			s.mu.Lock()
			s.summary.Discarded++
			s.mu.Unlock()
			continue
		}
		rec := it.build(s.newID(s.clock.Now()))
		saved, err := s.records.UpsertRecord(rec.ID, fullPatch(rec))
		if err != nil {
			failed = append(failed, it)
			errs = append(errs, fmt.Errorf("commit %s: %w", it.Code, err))
			continue
		}
		added = append(added, saved)
	}

	s.mu.Lock()
	s.pending = append(failed, s.pending...)
	s.summary.Committed += len(added)
	s.mu.Unlock()

	s.events.Emit(otel.Event{Kind: otel.KindScanCommit, Comp: comp, Count: len(added)})
	return added, errors.Join(errs...)
}

// fullPatch sets every field of r.
func fullPatch(r model.Record) model.PartialRecord {
	return model.PartialRecord{
		Brand:       model.Some(r.Brand),
		SubBrand:    model.Some(r.SubBrand),
		Vintage:     model.Some(r.Vintage),
		Qty:         model.Some(r.Qty),
		Length:      model.Some(r.Length),
		Multicolor:  model.Some(r.Multicolor),
		Softness:    model.Some(r.Softness),
		Weight:      model.Some(r.Weight),
		HookSize:    model.Some(r.HookSize),
		Rows:        model.Some(r.Rows),
		MachineWash: model.Some(r.MachineWash),
		MachineDry:  model.Some(r.MachineDry),
		Material:    model.Some(r.Material),
		BrandColor:  model.Some(r.BrandColor),
		Colors:      model.Some(r.Colors),
	}
}

// Summary returns the session counters.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := s.summary
	for _, it := range s.pending {
		if !it.Discarded {
			sum.Pending++
		}
	}
	return sum
}
