package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	openFoodFactsURL = "https://world.openfoodfacts.org"
	upcItemDBURL     = "https://api.upcitemdb.com"
	barcodeLookupURL = "https://api.barcodelookup.com"

	userAgent = "yarnstash/1.0 (+https://github.com/abelbrown/yarnstash)"
	maxBody   = 1 << 20
)

// httpProvider is the shared plumbing of the HTTP-backed providers.
type httpProvider struct {
	name    string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

func newHTTPProvider(name, baseURL string, minInterval time.Duration) httpProvider {
	if minInterval <= 0 {
		minInterval = 750 * time.Millisecond
	}
	return httpProvider{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

func (h httpProvider) Name() string { return h.name }

// getJSON fetches path and decodes the body into v. 404 means the code is
// unknown and maps to ErrNoData.
func (h httpProvider) getJSON(ctx context.Context, path string, v any) error {
	if err := h.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNoData
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%s: HTTP %d", h.name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// OpenFoodFacts queries the Open Food Facts product API.
type OpenFoodFacts struct{ httpProvider }

// NewOpenFoodFacts creates the provider. An empty baseURL means the public
// service.
func NewOpenFoodFacts(baseURL string, minInterval time.Duration) *OpenFoodFacts {
	if baseURL == "" {
		baseURL = openFoodFactsURL
	}
	return &OpenFoodFacts{newHTTPProvider("openfoodfacts", baseURL, minInterval)}
}

type offResponse struct {
	Status  int `json:"status"`
	Product *struct {
		Brands      string `json:"brands"`
		ProductName string `json:"product_name"`
		GenericName string `json:"generic_name"`
		Categories  string `json:"categories"`
		ImageURL    string `json:"image_url"`
	} `json:"product"`
}

func (o *OpenFoodFacts) Lookup(ctx context.Context, code string) (Product, error) {
	var resp offResponse
	if err := o.getJSON(ctx, "/api/v0/product/"+url.PathEscape(code)+".json", &resp); err != nil {
		return Product{}, err
	}
	if resp.Status != 1 || resp.Product == nil {
		return Product{}, ErrNoData
	}
	p := resp.Product
	return Product{
		Brand:       firstListItem(p.Brands),
		Name:        p.ProductName,
		Description: p.GenericName,
		Category:    firstListItem(p.Categories),
		Image:       p.ImageURL,
	}, nil
}

// UPCItemDB queries the UPCitemdb trial endpoint.
type UPCItemDB struct{ httpProvider }

// NewUPCItemDB creates the provider. An empty baseURL means the public
// service.
func NewUPCItemDB(baseURL string, minInterval time.Duration) *UPCItemDB {
	if baseURL == "" {
		baseURL = upcItemDBURL
	}
	return &UPCItemDB{newHTTPProvider("upcitemdb", baseURL, minInterval)}
}

type upcItemDBResponse struct {
	Items []struct {
		Brand       string   `json:"brand"`
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Category    string   `json:"category"`
		Images      []string `json:"images"`
	} `json:"items"`
}

func (u *UPCItemDB) Lookup(ctx context.Context, code string) (Product, error) {
	var resp upcItemDBResponse
	if err := u.getJSON(ctx, "/prod/trial/lookup?upc="+url.QueryEscape(code), &resp); err != nil {
		return Product{}, err
	}
	if len(resp.Items) == 0 {
		return Product{}, ErrNoData
	}
	it := resp.Items[0]
	p := Product{
		Brand:       it.Brand,
		Name:        it.Title,
		Description: it.Description,
		Category:    it.Category,
	}
	if len(it.Images) > 0 {
		p.Image = it.Images[0]
	}
	return p, nil
}

// BarcodeLookup queries barcodelookup.com. It needs an API key; without one
// every lookup reports ErrNoData without touching the network.
type BarcodeLookup struct {
	httpProvider
	key string
}

// NewBarcodeLookup creates the provider. An empty baseURL means the public
// service.
func NewBarcodeLookup(baseURL, key string, minInterval time.Duration) *BarcodeLookup {
	if baseURL == "" {
		baseURL = barcodeLookupURL
	}
	return &BarcodeLookup{httpProvider: newHTTPProvider("barcodelookup", baseURL, minInterval), key: key}
}

// Available reports whether an API key is configured.
func (b *BarcodeLookup) Available() bool { return b.key != "" }

type barcodeLookupResponse struct {
	Products []struct {
		Brand       string   `json:"brand"`
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Category    string   `json:"category"`
		Images      []string `json:"images"`
	} `json:"products"`
}

func (b *BarcodeLookup) Lookup(ctx context.Context, code string) (Product, error) {
	if !b.Available() {
		return Product{}, ErrNoData
	}
	q := url.Values{"barcode": {code}, "key": {b.key}}
	var resp barcodeLookupResponse
	if err := b.getJSON(ctx, "/v3/products?"+q.Encode(), &resp); err != nil {
		return Product{}, err
	}
	if len(resp.Products) == 0 {
		return Product{}, ErrNoData
	}
	it := resp.Products[0]
	p := Product{
		Brand:       it.Brand,
		Name:        it.Title,
		Description: it.Description,
		Category:    it.Category,
	}
	if len(it.Images) > 0 {
		p.Image = it.Images[0]
	}
	return p, nil
}

// DefaultProviders returns the three public providers in priority order.
func DefaultProviders(barcodeKey string, minInterval time.Duration) []Provider {
	return []Provider{
		NewOpenFoodFacts("", minInterval),
		NewBarcodeLookup("", barcodeKey, minInterval),
		NewUPCItemDB("", minInterval),
	}
}

func firstListItem(s string) string {
	first, _, _ := strings.Cut(s, ",")
	return strings.TrimSpace(first)
}
