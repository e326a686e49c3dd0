package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/codeGROOVE-dev/personamatch/pkg/persona"
)

type resolverFunc func(ctx context.Context, seed persona.SeedRecord) (persona.MatchResult, error)

func (f resolverFunc) Resolve(ctx context.Context, seed persona.SeedRecord) (persona.MatchResult, error) {
	return f(ctx, seed)
}

func newTestServer(r Resolver, opts ...Option) *Server {
	return New(r, append([]Option{WithLogger(slog.New(slog.DiscardHandler))}, opts...)...)
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/persona", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPersonaMatch(t *testing.T) {
	var got persona.SeedRecord
	s := newTestServer(resolverFunc(func(_ context.Context, seed persona.SeedRecord) (persona.MatchResult, error) {
		got = seed
		return persona.MatchResult{
			MatchedURL: "https://www.linkedin.com/in/ericdoty",
			Confidence: 0.82,
			AllScores:  []persona.ScoreComponents{{OverallConfidence: 0.82}},
		}, nil
	}))

	rec := post(t, s.Handler(), `{"persona": {"name": "Eric Doty (Superpath)", "intro": "Content @ Dock", "social_profile": ["https://twitter.com/ericdoty"]}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	want := persona.SeedRecord{
		Name:           "Eric Doty (Superpath)",
		Intro:          "Content @ Dock",
		SocialProfiles: []string{"https://twitter.com/ericdoty"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("seed mismatch (-want +got):\n%s", diff)
	}

	var body struct {
		Message string `json:"message"`
		Result  struct {
			MatchedURL *string `json:"matchedUrl"`
			Confidence float64 `json:"confidence"`
			AllScores  []any   `json:"allScores"`
		} `json:"Result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Message != "Status 200!" {
		t.Errorf("message = %q", body.Message)
	}
	if body.Result.MatchedURL == nil || *body.Result.MatchedURL != "https://www.linkedin.com/in/ericdoty" {
		t.Errorf("matchedUrl = %v", body.Result.MatchedURL)
	}
	if body.Result.Confidence != 0.82 || len(body.Result.AllScores) != 1 {
		t.Errorf("Result = %+v", body.Result)
	}
}

func TestPersonaNoMatchIsOK(t *testing.T) {
	s := newTestServer(resolverFunc(func(context.Context, persona.SeedRecord) (persona.MatchResult, error) {
		return persona.NoMatch(), nil
	}))

	rec := post(t, s.Handler(), `{"persona": {"name": "Nobody"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"matchedUrl":null`) {
		t.Errorf("body = %s, want null matchedUrl", rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `"confidence":0`) {
		t.Errorf("body = %s, want zero confidence", rec.Body)
	}
}

func TestPersonaErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"malformed json", `{"persona":`, nil, http.StatusBadRequest},
		{"missing persona", `{}`, nil, http.StatusBadRequest},
		{"missing name", `{"persona": {"intro": "x"}}`, nil, http.StatusBadRequest},
		{"extraction", `{"persona": {"name": "A"}}`, &persona.ExtractionError{Err: errors.New("bad json"), Raw: "nope"}, http.StatusUnprocessableEntity},
		{"configuration", `{"persona": {"name": "A"}}`, fmt.Errorf("%w: no searcher", persona.ErrConfiguration), http.StatusInternalServerError},
		{"cancelled", `{"persona": {"name": "A"}}`, fmt.Errorf("resolution interrupted: %w", context.Canceled), http.StatusServiceUnavailable},
		{"other", `{"persona": {"name": "A"}}`, errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			s := newTestServer(resolverFunc(func(context.Context, persona.SeedRecord) (persona.MatchResult, error) {
				called = true
				return persona.MatchResult{}, tt.err
			}))
			rec := post(t, s.Handler(), tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
			if tt.err == nil && called {
				t.Error("resolver called for an invalid request")
			}
		})
	}
}

func TestPersonaAcceptsNonURLLinks(t *testing.T) {
	var got persona.SeedRecord
	s := newTestServer(resolverFunc(func(_ context.Context, seed persona.SeedRecord) (persona.MatchResult, error) {
		got = seed
		return persona.NoMatch(), nil
	}))
	rec := post(t, s.Handler(), `{"persona": {"name": "A", "image": "not a url", "social_profile": ["@ada", ""]}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body)
	}
	if got.Image != "not a url" || len(got.SocialProfiles) != 2 {
		t.Errorf("seed = %+v, want links passed through", got)
	}
	if !strings.Contains(rec.Body.String(), `"matchedUrl":null`) {
		t.Errorf("body = %s, want null match", rec.Body)
	}
}

func TestPersonaConcurrencyBound(t *testing.T) {
	var inFlight, peak atomic.Int64
	s := newTestServer(resolverFunc(func(context.Context, persona.SeedRecord) (persona.MatchResult, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return persona.NoMatch(), nil
	}), WithMaxConcurrent(2))

	var wg sync.WaitGroup
	for range 6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rec := post(t, s.Handler(), `{"persona": {"name": "A"}}`); rec.Code != http.StatusOK {
				t.Errorf("status = %d", rec.Code)
			}
		}()
	}
	wg.Wait()

	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrent resolutions = %d, want <= 2", got)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(resolverFunc(func(context.Context, persona.SeedRecord) (persona.MatchResult, error) {
		return persona.NoMatch(), nil
	}))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("healthz = %d %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	if rec.Code != http.StatusOK {
		t.Errorf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Errorf("metrics body missing default collectors")
	}
}
