// Package acquire fetches candidate profile documents and parses them into records.
package acquire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/personamatch/pkg/httpcache"
	"github.com/codeGROOVE-dev/personamatch/pkg/linkedin"
	"github.com/codeGROOVE-dev/personamatch/pkg/metrics"
	"github.com/codeGROOVE-dev/personamatch/pkg/persona"
)

// DefaultDelay is the quiet period between successive document fetches.
const DefaultDelay = 3 * time.Second

// UserAgents is the link-preview crawler cycle used for document requests.
var UserAgents = []string{
	"Slackbot-LinkExpanding 1.0 (+https://api.slack.com/robots)",
	"LinkedInBot/1.0",
	"Twitterbot/1.0",
	"facebookexternalhit/1.1",
	"WhatsApp/2.0",
	"Googlebot/2.1 (+http://www.google.com/bot.html)",
}

// Parser turns a fetched document into a candidate record.
type Parser func(body []byte, pageURL string) (persona.CandidateRecord, error)

// Session owns the mutable state of one acquisition run: the user-agent cursor
// and the pacer. Sessions are not shared between resolution runs.
type Session struct {
	client *http.Client
	cache  httpcache.Cacher
	pacer  *httpcache.Pacer
	parse  Parser
	logger *slog.Logger
	policy httpcache.RetryPolicy
	delay  time.Duration
	sleep  func(context.Context, time.Duration) error

	mu     sync.Mutex
	cursor int
}

// Option configures a Session.
type Option func(*Session)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *Session) { s.client = hc }
}

// WithCache caches fetched documents. Cache hits are not paced.
func WithCache(cache httpcache.Cacher) Option {
	return func(s *Session) { s.cache = cache }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithRetryPolicy replaces httpcache.DocumentPolicy.
func WithRetryPolicy(p httpcache.RetryPolicy) Option {
	return func(s *Session) { s.policy = p }
}

// WithDelay sets the quiet period between fetches.
func WithDelay(d time.Duration) Option {
	return func(s *Session) { s.delay = d }
}

// WithSleep replaces the pacing sleep. Intended for tests.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(s *Session) { s.sleep = fn }
}

// WithParser replaces linkedin.Parse.
func WithParser(p Parser) Option {
	return func(s *Session) { s.parse = p }
}

// NewSession creates an acquisition session.
func NewSession(opts ...Option) *Session {
	s := &Session{
		policy: httpcache.DocumentPolicy(),
		delay:  DefaultDelay,
		parse:  linkedin.Parse,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: 30 * time.Second}
	}
	if s.cache == nil {
		s.cache = httpcache.NewNull()
	}
	s.pacer = httpcache.NewPacer(s.delay, s.logger)
	if s.sleep != nil {
		s.pacer.SetSleep(s.sleep)
	}
	return s
}

// NextUserAgent returns the next user agent in the cycle. The cursor advances
// across attempts and URLs for the lifetime of the session.
func (s *Session) NextUserAgent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ua := UserAgents[s.cursor%len(UserAgents)]
	s.cursor++
	return ua
}

// FetchDocument retrieves one document under the session's retry policy and pacing.
func (s *Session) FetchDocument(ctx context.Context, pageURL string) ([]byte, error) {
	return s.cache.GetSet(ctx, "doc:"+httpcache.URLToKey(pageURL), func(ctx context.Context) ([]byte, error) {
		if err := s.pacer.Wait(ctx); err != nil {
			return nil, err
		}
		defer s.pacer.Done()

		return httpcache.Fetch(ctx, s.client, s.policy, func(attempt uint) (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
			if err != nil {
				return nil, err
			}
			ua := s.NextUserAgent()
			req.Header.Set("User-Agent", ua)
			req.Header.Set("Accept", "text/html,application/xhtml+xml")
			req.Header.Set("Accept-Language", "en-US,en;q=0.9")
			s.logger.DebugContext(ctx, "fetching document", "url", pageURL, "attempt", attempt+1, "user_agent", ua)
			return req, nil
		}, s.logger)
	}, s.cache.TTL())
}

// Acquire fetches and parses urls in order. URLs that cannot be fetched, cannot be
// parsed, or yield no fields at all are skipped; the result preserves input order.
func (s *Session) Acquire(ctx context.Context, urls []string) []persona.CandidateRecord {
	out := []persona.CandidateRecord{}
	for i, u := range urls {
		if ctx.Err() != nil {
			s.logger.WarnContext(ctx, "acquisition cancelled", "remaining", len(urls)-i, "error", ctx.Err())
			break
		}
		rec, err := s.acquireOne(ctx, u)
		if err != nil {
			metrics.DocumentsFetched.WithLabelValues(status(err)).Inc()
			s.logger.WarnContext(ctx, "skipping candidate", "url", u, "error", err)
			continue
		}
		metrics.DocumentsFetched.WithLabelValues("ok").Inc()
		out = append(out, rec)
	}
	s.logger.InfoContext(ctx, "acquisition complete", "requested", len(urls), "acquired", len(out))
	return out
}

func (s *Session) acquireOne(ctx context.Context, u string) (persona.CandidateRecord, error) {
	body, err := s.FetchDocument(ctx, u)
	if err != nil {
		return persona.CandidateRecord{}, fmt.Errorf("%w: fetch %s: %w", persona.ErrAcquisition, u, err)
	}
	rec, err := s.parse(body, u)
	if err != nil {
		return persona.CandidateRecord{}, fmt.Errorf("%w: parse %s: %w", persona.ErrAcquisition, u, err)
	}
	if rec.Empty() {
		return persona.CandidateRecord{}, fmt.Errorf("%w: %s", persona.ErrNoDocument, u)
	}
	if rec.URL == "" {
		rec.URL = u
	}
	return rec, nil
}

func status(err error) string {
	switch {
	case errors.Is(err, persona.ErrNoDocument):
		return "empty"
	case errors.Is(err, linkedin.ErrProfileNotFound):
		return "not_found"
	}
	if _, ok := httpcache.StatusCode(err); ok {
		return "http_error"
	}
	return "error"
}

// SaveJSON writes records to path as a pretty-printed UTF-8 JSON array.
func SaveJSON(path string, records []persona.CandidateRecord) error {
	if records == nil {
		records = []persona.CandidateRecord{}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(records); err != nil {
		f.Close() //nolint:errcheck,gosec // already failing
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
