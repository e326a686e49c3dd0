package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// PageSize is the largest page Google Custom Search serves.
const PageSize = 10

var googleEndpoint = "https://www.googleapis.com/customsearch/v1"

// Google implements PageSearcher with the Custom Search JSON API.
// Successive page requests are spaced one second apart.
type Google struct {
	client
	limiter  *rate.Limiter
	apiKey   string
	engineID string
}

type googleResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
	Queries struct {
		NextPage []struct {
			StartIndex int `json:"startIndex"`
		} `json:"nextPage"`
	} `json:"queries"`
}

// NewGoogle creates a Custom Search client for engineID (the cx parameter).
func NewGoogle(apiKey, engineID string, opts ...Option) *Google {
	return &Google{
		client:   newClient(opts),
		limiter:  rate.NewLimiter(rate.Every(time.Second), 1),
		apiKey:   apiKey,
		engineID: engineID,
	}
}

// SetPageInterval changes the spacing between page requests.
func (g *Google) SetPageInterval(d time.Duration) {
	if d <= 0 {
		g.limiter = rate.NewLimiter(rate.Inf, 1)
		return
	}
	g.limiter = rate.NewLimiter(rate.Every(d), 1)
}

// StartIndex returns the 1-based start parameter for a 1-based page number.
func StartIndex(page int) int { return (page-1)*PageSize + 1 }

// SearchPage implements PageSearcher.
func (g *Google) SearchPage(ctx context.Context, query string, start, num int) (Page, error) {
	num = min(max(num, 1), PageSize)
	start = max(start, 1)
	data, err := g.fetch(ctx, cacheKey("google", query, start, num), func(ctx context.Context) (*http.Request, error) {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		u, err := url.Parse(googleEndpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		q := u.Query()
		q.Set("key", g.apiKey)
		q.Set("cx", g.engineID)
		q.Set("q", query)
		q.Set("start", strconv.Itoa(start))
		q.Set("num", strconv.Itoa(num))
		u.RawQuery = q.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		g.logger.DebugContext(ctx, "google custom search", "query", query, "start", start)
		return req, nil
	})
	if err != nil {
		return Page{}, fmt.Errorf("google search: %w", err)
	}

	var gr googleResponse
	if err := json.Unmarshal(data, &gr); err != nil {
		return Page{}, fmt.Errorf("decode google response: %w", err)
	}
	page := Page{Items: make([]Result, 0, len(gr.Items))}
	for _, it := range gr.Items {
		page.Items = append(page.Items, Result{Title: it.Title, URL: it.Link, Snippet: it.Snippet})
	}
	if len(gr.Queries.NextPage) > 0 {
		page.NextStart = gr.Queries.NextPage[0].StartIndex
	}
	return page, nil
}
