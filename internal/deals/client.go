// Package deals queries the price-comparison API for cheaper offers on a
// product the user is about to buy.
package deals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pennyhq/penny-companion/internal/common"
	"github.com/pennyhq/penny-companion/internal/model"
)

const (
	searchLimit = 5
	maxDeals    = 3
)

// fillerWords are marketing qualifiers that confuse product search.
var fillerWords = regexp.MustCompile(`(?i)US Version|eSIM|Unlocked|Renewed`)

var punctuation = regexp.MustCompile(`[(),]`)

// Client talks to the price-comparison API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates a price-comparison client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Result is the documented two-outcome union of a deal lookup: either the
// search completed (Deals may be empty), or the lookup itself failed and
// Unavailable carries the reason. The overlay renders both as "no deals",
// but the distinction stays visible to callers and logs.
type Result struct {
	Unavailable string
	Deals       []model.Deal
}

// Found reports whether the lookup completed, regardless of how many deals
// it produced.
func (r Result) Found() bool {
	return r.Unavailable == ""
}

// Search API response types.
type searchResponse struct {
	Data *searchData `json:"data"`
}

type searchData struct {
	Results []searchProduct `json:"results"`
}

type searchProduct struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type offersResponse struct {
	Data *offersData `json:"data"`
}

type offersData struct {
	Offers []model.Deal `json:"offers"`
}

// CleanQuery turns a noisy product title into a search-friendly query:
// punctuation stripped, filler qualifiers removed, truncated to the first
// six tokens. Idempotent on already-clean input.
func CleanQuery(raw string) string {
	cleaned := punctuation.ReplaceAllString(raw, "")
	cleaned = fillerWords.ReplaceAllString(cleaned, "")

	tokens := strings.Fields(cleaned)
	if len(tokens) > 6 {
		tokens = tokens[:6]
	}
	return strings.TrimSpace(strings.Join(tokens, " "))
}

// FindCheaper searches for the product and returns up to three offers
// strictly cheaper than currentPrice, sorted ascending by price. Lookup
// failures fold into Result.Unavailable; this method never returns an
// error because no failure here may block checkout.
func (c *Client) FindCheaper(ctx context.Context, query string, currentPrice float64) Result {
	cleaned := CleanQuery(query)
	slog.Debug("Cleaned deal query", "raw", query, "cleaned", cleaned)

	products, err := c.search(ctx, cleaned)
	if err != nil {
		common.LogError(err, "Deal search failed", common.Fields{"query": cleaned})
		return Result{Unavailable: err.Error()}
	}
	if len(products) == 0 {
		return Result{Deals: []model.Deal{}}
	}

	offers, err := c.offers(ctx, products[0].ID)
	if err != nil {
		common.LogError(err, "Offer fetch failed", common.Fields{"product_id": products[0].ID})
		return Result{Unavailable: err.Error()}
	}

	return Result{Deals: filterCheaper(offers, currentPrice)}
}

// search queries the product-search endpoint.
func (c *Client) search(ctx context.Context, query string) ([]searchProduct, error) {
	u := fmt.Sprintf("%s/products/search?q=%s&limit=%d", c.baseURL, url.QueryEscape(query), searchLimit)

	body, err := c.get(ctx, u)
	if err != nil {
		// A non-2xx answer is the upstream talking; only transport failures
		// get the network prefix.
		var upstream *common.UpstreamError
		if errors.As(err, &upstream) {
			return nil, fmt.Errorf("Search failed: %d", upstream.StatusCode)
		}
		return nil, fmt.Errorf("Network error on search: %w", err)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	// Missing data or results means "no results", not an error.
	if parsed.Data == nil {
		return nil, nil
	}
	return parsed.Data.Results, nil
}

// offers fetches offers for a product id.
func (c *Client) offers(ctx context.Context, productID string) ([]model.Deal, error) {
	u := fmt.Sprintf("%s/products/%s/offers", c.baseURL, url.PathEscape(productID))

	body, err := c.get(ctx, u)
	if err != nil {
		var upstream *common.UpstreamError
		if errors.As(err, &upstream) {
			return nil, fmt.Errorf("Offer fetch failed: %d", upstream.StatusCode)
		}
		return nil, fmt.Errorf("Network error on offers: %w", err)
	}

	var parsed offersResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse offers response: %w", err)
	}

	if parsed.Data == nil {
		return nil, nil
	}
	return parsed.Data.Offers, nil
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &common.UpstreamError{
			StatusCode: resp.StatusCode,
			Body:       fmt.Sprintf("request failed: %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// filterCheaper keeps offers with 0 < price < currentPrice, sorted
// ascending, capped at maxDeals.
func filterCheaper(offers []model.Deal, currentPrice float64) []model.Deal {
	cheaper := make([]model.Deal, 0, len(offers))
	for _, offer := range offers {
		if offer.Price > 0 && offer.Price < currentPrice {
			cheaper = append(cheaper, offer)
		}
	}

	sort.SliceStable(cheaper, func(i, j int) bool {
		return cheaper[i].Price < cheaper[j].Price
	})

	if len(cheaper) > maxDeals {
		cheaper = cheaper[:maxDeals]
	}
	return cheaper
}
