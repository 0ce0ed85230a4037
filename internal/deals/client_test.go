package deals

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pennyhq/penny-companion/internal/model"
)

func TestCleanQuery(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "already clean input is unchanged",
			input: "iPhone 13 Pro",
			want:  "iPhone 13 Pro",
		},
		{
			name:  "strips filler and punctuation",
			input: "Samsung Galaxy S21 (Unlocked), US Version",
			want:  "Samsung Galaxy S21",
		},
		{
			name:  "filler words are case insensitive",
			input: "Pixel 9 UNLOCKED renewed",
			want:  "Pixel 9",
		},
		{
			name:  "truncates to six tokens",
			input: "one two three four five six seven eight",
			want:  "one two three four five six",
		},
		{
			name:  "collapses whitespace left by removals",
			input: "MacBook Air (M2, 2022) eSIM",
			want:  "MacBook Air M2 2022",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanQuery(tt.input))
		})
	}
}

func TestCleanQueryIdempotent(t *testing.T) {
	inputs := []string{
		"iPhone 13 Pro",
		"Samsung Galaxy S21 (Unlocked), US Version",
		"one two three four five six seven",
	}
	for _, input := range inputs {
		once := CleanQuery(input)
		assert.Equal(t, once, CleanQuery(once), "cleaning twice must equal cleaning once for %q", input)
	}
}

func TestFilterCheaper(t *testing.T) {
	offers := []model.Deal{
		{Seller: "A", Price: 95.00},
		{Seller: "B", Price: 0},
		{Seller: "C", Price: -3},
		{Seller: "D", Price: 120.00},
		{Seller: "E", Price: 40.00},
		{Seller: "F", Price: 60.00},
		{Seller: "G", Price: 70.00},
	}

	got := filterCheaper(offers, 100.00)

	require.Len(t, got, 3)
	for i, deal := range got {
		assert.Greater(t, deal.Price, 0.0)
		assert.Less(t, deal.Price, 100.00)
		if i > 0 {
			assert.LessOrEqual(t, got[i-1].Price, deal.Price)
		}
	}
	assert.Equal(t, "E", got[0].Seller)
}

func TestFilterCheaperStableOnEqualPrices(t *testing.T) {
	offers := []model.Deal{
		{Seller: "first", Price: 50.00},
		{Seller: "second", Price: 50.00},
	}

	got := filterCheaper(offers, 100.00)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Seller)
	assert.Equal(t, "second", got[1].Seller)
}

// newTestServer serves the search and offers endpoints from canned JSON.
func newTestServer(t *testing.T, searchBody, offersBody string, searchStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/products/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		if searchStatus != http.StatusOK {
			w.WriteHeader(searchStatus)
			return
		}
		fmt.Fprint(w, searchBody)
	})
	mux.HandleFunc("/products/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		fmt.Fprint(w, offersBody)
	})
	return httptest.NewServer(mux)
}

func TestFindCheaperEmptyResults(t *testing.T) {
	server := newTestServer(t, `{"data":{"results":[]}}`, ``, http.StatusOK)
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	result := client.FindCheaper(context.Background(), "iPhone 13 Pro", 500)

	assert.True(t, result.Found())
	assert.Empty(t, result.Deals)
}

func TestFindCheaperMissingDataField(t *testing.T) {
	// A response without the expected data field is "no results", not an
	// error.
	server := newTestServer(t, `{}`, ``, http.StatusOK)
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	result := client.FindCheaper(context.Background(), "anything", 500)

	assert.True(t, result.Found())
	assert.Empty(t, result.Deals)
}

func TestFindCheaperHappyPath(t *testing.T) {
	searchBody := `{"data":{"results":[{"id":"prod-1","title":"iPhone 13 Pro"}]}}`
	offersBody := `{"data":{"offers":[
		{"seller":"ShopA","price":450.00,"url":"https://a.example/p"},
		{"seller":"ShopB","price":510.00,"url":"https://b.example/p"},
		{"seller":"ShopC","price":430.00,"url":"https://c.example/p"}
	]}}`
	server := newTestServer(t, searchBody, offersBody, http.StatusOK)
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	result := client.FindCheaper(context.Background(), "iPhone 13 Pro", 500)

	require.True(t, result.Found())
	require.Len(t, result.Deals, 2)
	assert.Equal(t, "ShopC", result.Deals[0].Seller)
	assert.Equal(t, "ShopA", result.Deals[1].Seller)
}

func TestFindCheaperSearchFailure(t *testing.T) {
	server := newTestServer(t, ``, ``, http.StatusBadGateway)
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	result := client.FindCheaper(context.Background(), "iPhone 13 Pro", 500)

	// A bad status is the upstream answering, not a transport failure.
	assert.False(t, result.Found())
	assert.Equal(t, "Search failed: 502", result.Unavailable)
	assert.Empty(t, result.Deals)
}

func TestFindCheaperOffersFailure(t *testing.T) {
	searchBody := `{"data":{"results":[{"id":"prod-1","title":"iPhone 13 Pro"}]}}`
	mux := http.NewServeMux()
	mux.HandleFunc("/products/search", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, searchBody)
	})
	mux.HandleFunc("/products/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	result := client.FindCheaper(context.Background(), "iPhone 13 Pro", 500)

	assert.False(t, result.Found())
	assert.Equal(t, "Offer fetch failed: 503", result.Unavailable)
}

func TestFindCheaperNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close() // Stop immediately so the dial fails.

	client := NewClient(server.URL, "test-key")
	result := client.FindCheaper(context.Background(), "iPhone 13 Pro", 500)

	assert.False(t, result.Found())
	assert.Contains(t, result.Unavailable, "Network error on search")
}

func TestFindCheaperNoOffersField(t *testing.T) {
	searchBody := `{"data":{"results":[{"id":"prod-1"}]}}`
	server := newTestServer(t, searchBody, `{"data":{}}`, http.StatusOK)
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	result := client.FindCheaper(context.Background(), "thing", 500)

	assert.True(t, result.Found())
	assert.Empty(t, result.Deals)
}

func TestSearchEncodesQuery(t *testing.T) {
	var gotQuery string
	mux := http.NewServeMux()
	mux.HandleFunc("/products/search", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		_ = json.NewEncoder(w).Encode(searchResponse{Data: &searchData{}})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	_ = client.FindCheaper(context.Background(), "Samsung Galaxy S21 (Unlocked), US Version", 500)

	assert.Equal(t, "Samsung Galaxy S21", gotQuery)
}
