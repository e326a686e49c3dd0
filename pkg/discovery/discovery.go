// Package discovery turns an enriched record into a deduplicated set of candidate
// profile URLs using a structured site-restricted search and free-text web search.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codeGROOVE-dev/personamatch/pkg/linkedin"
	"github.com/codeGROOVE-dev/personamatch/pkg/metrics"
	"github.com/codeGROOVE-dev/personamatch/pkg/persona"
	"github.com/codeGROOVE-dev/personamatch/pkg/search"
)

// MaxPages caps structured-search pagination regardless of maxResults.
const MaxPages = 10

// Discoverer finds candidate profile URLs for an enriched record.
// Either port may be nil, in which case that strategy contributes nothing.
type Discoverer struct {
	pages  search.PageSearcher
	web    search.Searcher
	logger *slog.Logger
}

// Option configures a Discoverer.
type Option func(*Discoverer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Discoverer) { d.logger = logger }
}

// New creates a Discoverer.
func New(pages search.PageSearcher, web search.Searcher, opts ...Option) *Discoverer {
	d := &Discoverer{pages: pages, web: web, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// StructuredQuery builds the site-restricted query: name, first company as an exact phrase, site filter.
func StructuredQuery(rec persona.EnrichedRecord) string {
	name := rec.Name()
	if name == "" {
		return ""
	}
	parts := []string{name}
	if len(rec.CompanyNames) > 0 {
		parts = append(parts, fmt.Sprintf("%q", rec.CompanyNames[0]))
	}
	return strings.Join(append(parts, linkedin.SiteRestriction), " ")
}

// FreeTextQueries returns the free-text query families in issue order.
func FreeTextQueries(rec persona.EnrichedRecord) []string {
	name := rec.Name()
	if name == "" {
		return nil
	}
	queries := []string{"profile of " + name}
	for _, company := range rec.CompanyNames {
		queries = append(queries, fmt.Sprintf("profile of %s at %s", name, company))
	}
	for _, link := range rec.Original.SocialProfiles {
		if link = strings.TrimSpace(link); link == "" || linkedin.IsIdentityHost(link) {
			continue
		}
		queries = append(queries, fmt.Sprintf("profile of %s based on %s", name, link))
	}
	return queries
}

// Structured paginates the structured-search port until maxResults unique profile
// URLs are collected, the provider reports no further pages, or MaxPages is reached.
// A failing page ends pagination and contributes nothing.
func (d *Discoverer) Structured(ctx context.Context, rec persona.EnrichedRecord, maxResults int) []string {
	query := StructuredQuery(rec)
	if query == "" || d.pages == nil || maxResults <= 0 {
		return nil
	}

	var urls []string
	seen := make(map[string]bool)
	start := search.StartIndex(1)
	for page := 1; page <= MaxPages && len(urls) < maxResults; page++ {
		if ctx.Err() != nil {
			break
		}
		p, err := d.pages.SearchPage(ctx, query, start, search.PageSize)
		if err != nil {
			metrics.SearchQueriesTotal.WithLabelValues("structured", "error").Inc()
			d.logger.WarnContext(ctx, "structured search failed", "query", query, "page", page, "error", fmt.Errorf("%w: %w", persona.ErrDiscovery, err))
			break
		}
		metrics.SearchQueriesTotal.WithLabelValues("structured", "ok").Inc()
		for _, item := range p.Items {
			if !linkedin.IsProfileURL(item.URL) {
				continue
			}
			u := linkedin.Canonical(item.URL)
			if seen[u] {
				continue
			}
			seen[u] = true
			urls = append(urls, u)
			if len(urls) >= maxResults {
				break
			}
		}
		if !p.HasNext() {
			break
		}
		start = p.NextStart
	}
	d.logger.DebugContext(ctx, "structured search complete", "query", query, "urls", len(urls))
	return urls
}

// FreeText runs every free-text query and keeps identity-host URLs that are not
// organization pages. A failing query is logged and contributes nothing.
func (d *Discoverer) FreeText(ctx context.Context, rec persona.EnrichedRecord, maxResults int) []string {
	if d.web == nil {
		return nil
	}
	var urls []string
	seen := make(map[string]bool)
	for _, q := range FreeTextQueries(rec) {
		if ctx.Err() != nil {
			break
		}
		results, err := d.web.Search(ctx, q, maxResults)
		if err != nil {
			metrics.SearchQueriesTotal.WithLabelValues("free_text", "error").Inc()
			d.logger.WarnContext(ctx, "free-text search failed", "query", q, "error", fmt.Errorf("%w: %w", persona.ErrDiscovery, err))
			continue
		}
		metrics.SearchQueriesTotal.WithLabelValues("free_text", "ok").Inc()
		for _, r := range results {
			if !linkedin.IsIdentityHost(r.URL) || linkedin.IsOrganizationURL(r.URL) {
				continue
			}
			u := linkedin.Canonical(r.URL)
			if !seen[u] {
				seen[u] = true
				urls = append(urls, u)
			}
		}
	}
	return urls
}

// Discover unions both strategies, deduplicating by URL with query parameters stripped.
// A record without a name yields an empty list and no network calls.
func (d *Discoverer) Discover(ctx context.Context, rec persona.EnrichedRecord, maxResults int) []string {
	if rec.Name() == "" {
		return []string{}
	}
	out := Union(d.Structured(ctx, rec, maxResults), d.FreeText(ctx, rec, maxResults))
	metrics.CandidatesDiscovered.Observe(float64(len(out)))
	d.logger.InfoContext(ctx, "discovery complete", "name", rec.Name(), "candidates", len(out))
	return out
}

// Union merges URL lists in order, dropping repeats after canonicalisation.
func Union(lists ...[]string) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, u := range list {
			u = linkedin.Canonical(u)
			if u == "" || seen[u] {
				continue
			}
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}
