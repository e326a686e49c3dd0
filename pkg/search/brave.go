package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const defaultTimeout = 10 * time.Second

var braveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// Brave implements Searcher using the Brave Search API.
// Free tier: 2,000 queries/month, 1 query/second.
type Brave struct {
	client
	limiter *rate.Limiter
	apiKey  string
}

// braveResponse represents the Brave Search API response.
type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// NewBrave creates a Brave Search API client.
func NewBrave(apiKey string, opts ...Option) *Brave {
	return &Brave{
		client:  newClient(opts),
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		apiKey:  apiKey,
	}
}

// LoadBraveAPIKey loads the Brave API key from (in priority order):
// 1. BRAVE_API_KEY environment variable
// 2. ~/.brave file (first line, trimmed)
//
// Returns empty string if no key is found.
func LoadBraveAPIKey() string {
	if key := os.Getenv("BRAVE_API_KEY"); key != "" {
		return key
	}
	if home, err := os.UserHomeDir(); err == nil {
		if data, err := os.ReadFile(filepath.Join(home, ".brave")); err == nil {
			if key := strings.TrimSpace(string(data)); key != "" {
				return key
			}
		}
	}
	return ""
}

// Search implements Searcher.
func (b *Brave) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	count := min(max(maxResults, 1), 20)
	data, err := b.fetch(ctx, cacheKey("brave", query, count), func(ctx context.Context) (*http.Request, error) {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		u, err := url.Parse(braveEndpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		q := u.Query()
		q.Set("q", query)
		q.Set("count", strconv.Itoa(count))
		u.RawQuery = q.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Subscription-Token", b.apiKey)
		b.logger.DebugContext(ctx, "brave search", "query", query)
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("brave search: %w", err)
	}

	var br braveResponse
	if err := json.Unmarshal(data, &br); err != nil {
		return nil, fmt.Errorf("decode brave response: %w", err)
	}
	results := make([]Result, 0, len(br.Web.Results))
	for _, r := range br.Web.Results {
		results = append(results, Result{Title: r.Title, URL: r.URL, Snippet: r.Description})
	}
	return truncate(results, maxResults), nil
}
