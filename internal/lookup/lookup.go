// Package lookup turns a scanned product code into a best-effort partial
// record by asking several product databases at once.
//
// Every provider call is independent: one failing, timing out, or finding
// nothing never affects the others. When no provider returns data the
// result is ErrNoData, which callers treat as "enter it by hand", not as a
// failure.
package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/yarnstash/internal/logging"
	"github.com/abelbrown/yarnstash/internal/model"
	"github.com/abelbrown/yarnstash/internal/otel"
)

const comp = "lookup"

// ErrNoData means no provider knew the code.
var ErrNoData = errors.New("no product data found")

// Product is what a provider knows about a code, before mapping.
type Product struct {
	Brand       string `json:"brand,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Image       string `json:"image,omitempty"`
}

// IsZero reports a product with no usable text.
func (p Product) IsZero() bool {
	return p.Brand == "" && p.Name == "" && p.Description == "" && p.Category == ""
}

// Provider is one product database.
type Provider interface {
	Name() string
	// Lookup returns ErrNoData when the code is unknown.
	Lookup(ctx context.Context, code string) (Product, error)
}

// Result is a successful lookup.
type Result struct {
	Code       string              `json:"code"`
	Source     string              `json:"source"`
	Confidence float64             `json:"confidence"`
	Product    Product             `json:"product"`
	Data       model.PartialRecord `json:"-"`
}

// Persister keeps successful lookups across runs.
type Persister interface {
	GetLookup(ctx context.Context, code string) ([]byte, bool, error)
	PutLookup(ctx context.Context, code string, payload []byte) error
}

// Options configures a Service.
type Options struct {
	Providers []Provider
	Persist   Persister
	Timeout   time.Duration // per provider call; default 8s
	Events    *otel.Logger
}

// Service fans a code out to every provider and keeps the answers.
// Successful results are cached for the life of the Service (and in
// Persist, when set). Codes nobody knew are remembered too, so a repeated
// scan does not hit the network again.
type Service struct {
	providers []Provider
	persist   Persister
	timeout   time.Duration
	events    *otel.Logger

	mu     sync.Mutex
	hits   map[string]Result
	failed map[string]struct{}
}

// NewService creates a lookup service.
func NewService(opts Options) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = 8 * time.Second
	}
	return &Service{
		providers: opts.Providers,
		persist:   opts.Persist,
		timeout:   opts.Timeout,
		events:    opts.Events,
		hits:      make(map[string]Result),
		failed:    make(map[string]struct{}),
	}
}

// Lookup resolves a code. It returns ErrNoData when nothing was found;
// any other error is the caller's context ending.
func (s *Service) Lookup(ctx context.Context, code string) (Result, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Result{}, ErrNoData
	}

	s.mu.Lock()
	if r, ok := s.hits[code]; ok {
		s.mu.Unlock()
		return r, nil
	}
	if _, ok := s.failed[code]; ok {
		s.mu.Unlock()
		return Result{}, ErrNoData
	}
	s.mu.Unlock()

	if r, ok := s.fromPersist(ctx, code); ok {
		s.remember(code, r)
		return r, nil
	}

	s.events.Emit(otel.Event{Kind: otel.KindLookupStart, Comp: comp, Code: code, Count: len(s.providers)})
	products := s.fanOut(ctx, code)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	for i, p := range products {
		if p.IsZero() {
			continue
		}
		r := Result{
			Code:       code,
			Source:     s.providers[i].Name(),
			Confidence: Confidence(p),
			Product:    p,
			Data:       ToPartial(p),
		}
		s.remember(code, r)
		s.save(ctx, r)
		s.events.Emit(otel.Event{Kind: otel.KindLookupHit, Comp: comp, Code: code, Source: r.Source, Extra: map[string]any{"confidence": r.Confidence}})
		return r, nil
	}

	s.mu.Lock()
	s.failed[code] = struct{}{}
	s.mu.Unlock()
	s.events.Emit(otel.Event{Kind: otel.KindLookupMiss, Comp: comp, Code: code})
	return Result{}, ErrNoData
}

// fanOut asks every provider concurrently and waits for all of them.
// Slot i holds provider i's product, zero on any failure.
func (s *Service) fanOut(ctx context.Context, code string) []Product {
	products := make([]Product, len(s.providers))
	var g errgroup.Group
	for i, p := range s.providers {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			start := time.Now()
			prod, err := p.Lookup(callCtx, code)
			switch {
			case errors.Is(err, ErrNoData):
			case err != nil:
				s.events.Emit(otel.Event{
					Level: otel.LevelWarn, Kind: otel.KindLookupError, Comp: comp,
					Source: p.Name(), Code: code, Err: err.Error(), Dur: time.Since(start),
				})
				logging.Debug("lookup provider failed", "provider", p.Name(), "code", code, "err", err)
			default:
				products[i] = prod
			}
			return nil // never fail the group; failures are per provider
		})
	}
	_ = g.Wait()
	return products
}

func (s *Service) remember(code string, r Result) {
	s.mu.Lock()
	s.hits[code] = r
	s.mu.Unlock()
}

func (s *Service) fromPersist(ctx context.Context, code string) (Result, bool) {
	if s.persist == nil {
		return Result{}, false
	}
	data, ok, err := s.persist.GetLookup(ctx, code)
	if err != nil {
		s.events.Error(otel.KindStoreError, comp, err)
		return Result{}, false
	}
	if !ok {
		return Result{}, false
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		logging.Warn("discarding unreadable cached lookup", "code", code, "err", err)
		return Result{}, false
	}
	r.Data = ToPartial(r.Product)
	return r, true
}

func (s *Service) save(ctx context.Context, r Result) {
	if s.persist == nil {
		return
	}
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := s.persist.PutLookup(ctx, r.Code, data); err != nil {
		s.events.Error(otel.KindStoreError, comp, err)
	}
}

// Forget clears both the hit cache and the remembered misses.
func (s *Service) Forget() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.hits)
	clear(s.failed)
}
