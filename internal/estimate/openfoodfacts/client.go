// Package openfoodfacts looks foods up in the Open Food Facts database.
package openfoodfacts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"kcal/internal/estimate"
)

const (
	DefaultBaseURL = "https://world.openfoodfacts.org"
	defaultBrand   = "OpenFoodFacts"
	userAgent      = "kcal/1.0 (food journal)"
)

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	CacheTTL   time.Duration
	HTTPClient *http.Client
}

// Client implements estimate.FoodFinder. Results, including misses, are
// cached per normalized search term.
type Client struct {
	baseURL string
	http    *http.Client
	cache   *gocache.Cache
}

var _ estimate.FoodFinder = (*Client)(nil)

func New(cfg Config) *Client {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Client{
		baseURL: base,
		http:    hc,
		cache:   gocache.New(ttl, 10*time.Minute),
	}
}

// FoodLookupByName implements estimate.FoodFinder. A miss or a failed
// request returns nil; only context cancellation is reported as an error.
func (c *Client) FoodLookupByName(ctx context.Context, term string) (*estimate.FoodMatch, error) {
	key := strings.ToLower(strings.TrimSpace(term))
	if key == "" {
		return nil, nil
	}
	if v, ok := c.cache.Get(key); ok {
		m, _ := v.(*estimate.FoodMatch)
		return m, nil
	}

	m, err := c.search(ctx, term)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.WarnContext(ctx, "OpenFoodFacts search failed", "term", term, "error", err)
		return nil, nil
	}
	c.cache.Set(key, m, gocache.DefaultExpiration)
	return m, nil
}

func (c *Client) search(ctx context.Context, term string) (*estimate.FoodMatch, error) {
	params := url.Values{}
	params.Set("search_terms", term)
	params.Set("search_simple", "1")
	params.Set("action", "process")
	params.Set("json", "1")
	params.Set("page_size", "10")
	params.Set("fields", "product_name,brands,nutriments,serving_size")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/cgi/search.pl?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search status %d", resp.StatusCode)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return pick(out.Products, term), nil
}

// pick prefers the first product with energy per 100g, else the first
// product that has any nutriments.
func pick(products []product, term string) *estimate.FoodMatch {
	if len(products) == 0 {
		return nil
	}
	best := -1
	for i, p := range products {
		if p.hasKcal100g() {
			best = i
			break
		}
	}
	if best < 0 {
		best = 0
	}
	p := products[best]
	if p.Nutriments == nil {
		return nil
	}
	name := strings.TrimSpace(p.ProductName)
	if name == "" {
		name = term
	}
	brand := strings.TrimSpace(p.Brands)
	if brand == "" {
		brand = defaultBrand
	}
	return &estimate.FoodMatch{Name: name, Brand: brand, Per100g: p.per100g()}
}
