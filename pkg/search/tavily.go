package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

var tavilyEndpoint = "https://api.tavily.com/search"

// Tavily implements Searcher using the Tavily search API.
type Tavily struct {
	client
	apiKey string
}

type tavilyRequest struct {
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth"`
	MaxResults  int    `json:"max_results"`
}

type tavilyResponse struct {
	Results []Result `json:"results"`
}

// NewTavily creates a Tavily client.
func NewTavily(apiKey string, opts ...Option) *Tavily {
	return &Tavily{client: newClient(opts), apiKey: apiKey}
}

// Search implements Searcher.
func (t *Tavily) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if maxResults <= 0 {
		maxResults = 5
	}
	body, err := json.Marshal(tavilyRequest{Query: query, SearchDepth: "basic", MaxResults: maxResults})
	if err != nil {
		return nil, fmt.Errorf("encode tavily request: %w", err)
	}
	data, err := t.fetch(ctx, cacheKey("tavily", query, maxResults), func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, tavilyEndpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
		t.logger.DebugContext(ctx, "tavily search", "query", query)
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("tavily search: %w", err)
	}

	var tr tavilyResponse
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, fmt.Errorf("decode tavily response: %w", err)
	}
	return truncate(tr.Results, maxResults), nil
}
