// Package search provides web-search and paginated structured-search clients.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/codeGROOVE-dev/personamatch/pkg/httpcache"
)

// Result is one web search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"content,omitempty"`
}

// Searcher is the web-search port. An error means the call failed; an empty
// slice means the provider found nothing.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// Func adapts a function to Searcher.
type Func func(ctx context.Context, query string, maxResults int) ([]Result, error)

// Search calls f.
func (f Func) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	return f(ctx, query, maxResults)
}

// Page is one page of structured search results. NextStart is zero when the
// provider reports no further pages.
type Page struct {
	Items     []Result
	NextStart int
}

// HasNext reports whether the provider offered another page.
func (p Page) HasNext() bool { return p.NextStart > 0 }

// PageSearcher is the structured-search port.
type PageSearcher interface {
	SearchPage(ctx context.Context, query string, start, num int) (Page, error)
}

// client holds what every provider shares.
type client struct {
	httpClient *http.Client
	cache      httpcache.Cacher
	logger     *slog.Logger
}

// Option configures a provider.
type Option func(*client)

// WithCache sets a cache for raw responses.
func WithCache(cache httpcache.Cacher) Option {
	return func(c *client) { c.cache = cache }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *client) { c.logger = logger }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) { c.httpClient = hc }
}

func newClient(opts []Option) client {
	c := client{logger: slog.Default()}
	for _, opt := range opts {
		opt(&c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if c.cache == nil {
		c.cache = httpcache.NewNull()
	}
	return c
}

// fetch runs newRequest through the transient retry policy, caching the body under key.
func (c *client) fetch(ctx context.Context, key string, newRequest func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	return c.cache.GetSet(ctx, key, func(ctx context.Context) ([]byte, error) {
		return httpcache.Fetch(ctx, c.httpClient, httpcache.TransientPolicy(), func(uint) (*http.Request, error) {
			return newRequest(ctx)
		}, c.logger)
	}, c.cache.TTL())
}

func cacheKey(provider, query string, n ...int) string {
	key := provider + ":" + query
	for _, v := range n {
		key += "|" + strconv.Itoa(v)
	}
	return provider + ":" + httpcache.URLToKey(key)
}

func truncate(results []Result, n int) []Result {
	if n > 0 && len(results) > n {
		return results[:n]
	}
	return results
}

// New builds the web searcher named by provider ("tavily" or "brave").
func New(provider, apiKey string, opts ...Option) (Searcher, error) {
	switch provider {
	case "tavily", "":
		return NewTavily(apiKey, opts...), nil
	case "brave":
		return NewBrave(apiKey, opts...), nil
	default:
		return nil, fmt.Errorf("unknown search provider %q", provider)
	}
}
