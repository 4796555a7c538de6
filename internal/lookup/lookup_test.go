package lookup

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelbrown/yarnstash/internal/model"
)

type funcProvider struct {
	name  string
	calls atomic.Int32
	fn    func(ctx context.Context, code string) (Product, error)
}

func (f *funcProvider) Name() string { return f.name }

func (f *funcProvider) Lookup(ctx context.Context, code string) (Product, error) {
	f.calls.Add(1)
	return f.fn(ctx, code)
}

func returning(name string, p Product, err error) *funcProvider {
	return &funcProvider{name: name, fn: func(context.Context, string) (Product, error) { return p, err }}
}

type memPersister struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memPersister) GetLookup(_ context.Context, code string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[code]
	return d, ok, nil
}

func (m *memPersister) PutLookup(_ context.Context, code string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string][]byte{}
	}
	m.data[code] = payload
	return nil
}

var yarn = Product{
	Brand:       "red heart",
	Name:        "Super Saver Worsted Cherry Red",
	Description: "100% acrylic, 364 yards",
	Category:    "Yarn",
}

func TestAllProvidersFailIsNoData(t *testing.T) {
	a := returning("a", Product{}, errors.New("boom"))
	b := returning("b", Product{}, ErrNoData)
	svc := NewService(Options{Providers: []Provider{a, b}})

	_, err := svc.Lookup(context.Background(), "0001")
	assert.ErrorIs(t, err, ErrNoData)

	_, err = svc.Lookup(context.Background(), "0001")
	assert.ErrorIs(t, err, ErrNoData)
	assert.EqualValues(t, 1, a.calls.Load(), "known miss is not looked up again")
	assert.EqualValues(t, 1, b.calls.Load())
}

func TestFirstProviderWithDataWins(t *testing.T) {
	a := returning("a", Product{}, errors.New("down"))
	b := returning("b", Product{Name: "From B"}, nil)
	c := returning("c", Product{Name: "From C"}, nil)
	svc := NewService(Options{Providers: []Provider{a, b, c}})

	r, err := svc.Lookup(context.Background(), "0002")
	require.NoError(t, err)
	assert.Equal(t, "b", r.Source)
	assert.Equal(t, "From B", r.Product.Name)
	for _, p := range []*funcProvider{a, b, c} {
		assert.EqualValues(t, 1, p.calls.Load(), "every provider is asked")
	}
}

func TestZeroProductCountsAsMiss(t *testing.T) {
	svc := NewService(Options{Providers: []Provider{returning("a", Product{Image: "x.png"}, nil)}})
	_, err := svc.Lookup(context.Background(), "0003")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestHitsAreCached(t *testing.T) {
	a := returning("a", yarn, nil)
	svc := NewService(Options{Providers: []Provider{a}})

	r1, err := svc.Lookup(context.Background(), " 0004 ")
	require.NoError(t, err)
	r2, err := svc.Lookup(context.Background(), "0004")
	require.NoError(t, err)
	assert.Equal(t, r1.Product, r2.Product)
	assert.EqualValues(t, 1, a.calls.Load())

	svc.Forget()
	_, err = svc.Lookup(context.Background(), "0004")
	require.NoError(t, err)
	assert.EqualValues(t, 2, a.calls.Load())
}

func TestPersistedHitsSurviveRestart(t *testing.T) {
	persist := &memPersister{}
	a := returning("a", yarn, nil)

	first := NewService(Options{Providers: []Provider{a}, Persist: persist})
	_, err := first.Lookup(context.Background(), "0005")
	require.NoError(t, err)

	second := NewService(Options{Providers: []Provider{a}, Persist: persist})
	r, err := second.Lookup(context.Background(), "0005")
	require.NoError(t, err)
	assert.EqualValues(t, 1, a.calls.Load())
	assert.Equal(t, "a", r.Source)
	assert.Equal(t, "Red Heart", r.Data.Brand.Value, "partial rebuilt from stored product")
}

func TestSlowProviderIsIsolated(t *testing.T) {
	slow := &funcProvider{name: "slow", fn: func(ctx context.Context, _ string) (Product, error) {
		<-ctx.Done()
		return Product{}, ctx.Err()
	}}
	fast := returning("fast", Product{Name: "Quick"}, nil)
	svc := NewService(Options{Providers: []Provider{slow, fast}, Timeout: 50 * time.Millisecond})

	r, err := svc.Lookup(context.Background(), "0006")
	require.NoError(t, err)
	assert.Equal(t, "fast", r.Source)
}

func TestCancelledContext(t *testing.T) {
	slow := &funcProvider{name: "slow", fn: func(ctx context.Context, _ string) (Product, error) {
		<-ctx.Done()
		return Product{}, ctx.Err()
	}}
	svc := NewService(Options{Providers: []Provider{slow}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Lookup(ctx, "0007")
	assert.ErrorIs(t, err, context.Canceled)

	// A cancelled lookup is not remembered as a miss.
	svc.providers = []Provider{returning("ok", Product{Name: "Now"}, nil)}
	_, err = svc.Lookup(context.Background(), "0007")
	assert.NoError(t, err)
}

func TestBlankCode(t *testing.T) {
	svc := NewService(Options{})
	_, err := svc.Lookup(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestOpenFoodFacts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v0/product/0123.json":
			w.Write([]byte(`{"status":1,"product":{"brands":"Caron, Yarnspirations","product_name":"Simply Soft Navy","generic_name":"worsted yarn","categories":"Crafts, Yarn","image_url":"https://img/x.jpg"}}`))
		case "/api/v0/product/0404.json":
			w.Write([]byte(`{"status":0}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	off := NewOpenFoodFacts(srv.URL, time.Millisecond)
	p, err := off.Lookup(context.Background(), "0123")
	require.NoError(t, err)
	assert.Equal(t, Product{
		Brand:       "Caron",
		Name:        "Simply Soft Navy",
		Description: "worsted yarn",
		Category:    "Crafts",
		Image:       "https://img/x.jpg",
	}, p)

	_, err = off.Lookup(context.Background(), "0404")
	assert.ErrorIs(t, err, ErrNoData)
	_, err = off.Lookup(context.Background(), "9999")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestUPCItemDB(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/prod/trial/lookup" {
			http.NotFound(w, r)
			return
		}
		switch r.URL.Query().Get("upc") {
		case "0123":
			w.Write([]byte(`{"items":[{"brand":"Bernat","title":"Blanket Yarn Super Chunky","description":"polyester","category":"Arts & Crafts > Yarn","images":["a.jpg","b.jpg"]}]}`))
		case "0500":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.Write([]byte(`{"items":[]}`))
		}
	}))
	defer srv.Close()

	u := NewUPCItemDB(srv.URL, time.Millisecond)
	p, err := u.Lookup(context.Background(), "0123")
	require.NoError(t, err)
	assert.Equal(t, "Bernat", p.Brand)
	assert.Equal(t, "a.jpg", p.Image)

	_, err = u.Lookup(context.Background(), "0000")
	assert.ErrorIs(t, err, ErrNoData)

	_, err = u.Lookup(context.Background(), "0500")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoData)
}

func TestBarcodeLookupNeedsKey(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		w.Write([]byte(`{"products":[{"brand":"Patons","title":"Classic Wool","category":"Yarn"}]}`))
	}))
	defer srv.Close()

	_, err := NewBarcodeLookup(srv.URL, "", time.Millisecond).Lookup(context.Background(), "1")
	assert.ErrorIs(t, err, ErrNoData)
	assert.Zero(t, hits.Load())

	p, err := NewBarcodeLookup(srv.URL, "secret", time.Millisecond).Lookup(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "Patons", p.Brand)
}

func TestToPartial(t *testing.T) {
	got := ToPartial(yarn)

	assert.Equal(t, model.Some("Red Heart"), got.Brand)
	assert.Equal(t, model.Some(model.WeightMedium), got.Weight)
	assert.Equal(t, model.Some("Acrylic"), got.Material)
	assert.Equal(t, model.Some(364), got.Length)
	assert.Equal(t, model.Some("Red"), got.BrandColor)
	assert.Equal(t, model.Some([]string{"Red"}), got.Colors)
	assert.Equal(t, model.Some(1), got.Qty)
	assert.Equal(t, model.Some(true), got.MachineWash)
	assert.False(t, got.Softness.Set, "softness is left for the user")
}

func TestToPartialDefaults(t *testing.T) {
	got := ToPartial(Product{Name: "Mystery skein"})

	assert.False(t, got.Brand.Set)
	assert.Equal(t, model.WeightMedium, got.Weight.Value)
	assert.Equal(t, "Mixed", got.Material.Value)
	assert.False(t, got.Length.Set)
	assert.False(t, got.BrandColor.Set)
	assert.False(t, got.Colors.Set)
}

func TestExtractWeight(t *testing.T) {
	tests := []struct {
		text string
		want model.Weight
	}{
		{"blanket super chunky", model.WeightSuperBulky},
		{"chunky knit", model.WeightBulky},
		{"fine lace weight", model.WeightLace},
		{"sport weight", model.WeightFine},
		{"soft dk merino", model.WeightLight},
		{"aran tweed", model.WeightMedium},
		{"sdkx", model.WeightMedium},
		{"", model.WeightMedium},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extractWeight(tt.text), tt.text)
	}
}

func TestYardage(t *testing.T) {
	tests := map[string]int{
		"skein 200 yds":      200,
		"100m ball":          100,
		"approx 370 yards":   370,
		"weighs 100 grams":   0,
		"164 meters, 150 g":  164,
		"ball band 85 metre": 0,
	}
	for text, want := range tests {
		got := ToPartial(Product{Name: text})
		if want == 0 {
			assert.False(t, got.Length.Set, text)
			continue
		}
		assert.Equal(t, model.Some(want), got.Length, text)
	}
}

func TestNormalizeBrand(t *testing.T) {
	assert.Equal(t, "Lion Brand", NormalizeBrand("  LION BRAND "))
	assert.Equal(t, "Hobby Lobby", NormalizeBrand("Hobby Lobby"))
}

func TestConfidence(t *testing.T) {
	assert.InDelta(t, 1.0, Confidence(yarn), 1e-9)
	assert.InDelta(t, 2.0/7, Confidence(Product{Name: "x"}), 1e-9)
	assert.InDelta(t, 4.0/7, Confidence(Product{Brand: "b", Category: "Yarn & Fiber"}), 1e-9)
	assert.Zero(t, Confidence(Product{}))
}
