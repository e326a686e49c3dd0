package httpcache

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func noBackoff(p RetryPolicy) RetryPolicy {
	p.Backoff = func(uint, error) time.Duration { return 0 }
	return p
}

func getter(url string) func(uint) (*http.Request, error) {
	return func(uint) (*http.Request, error) {
		return http.NewRequestWithContext(context.Background(), http.MethodGet, url, http.NoBody)
	}
}

func TestFetchRetriesBlockedStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		if _, err := w.Write([]byte("ok")); err != nil {
			t.Logf("write: %v", err)
		}
	}))
	defer server.Close()

	body, err := Fetch(context.Background(), server.Client(), noBackoff(DocumentPolicy()), getter(server.URL), testLogger())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(body) != "ok" {
		t.Errorf("Fetch() = %q, want %q", body, "ok")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server calls = %d, want 3", got)
	}
}

func TestFetchStopsOnPermanentStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := Fetch(context.Background(), server.Client(), noBackoff(DocumentPolicy()), getter(server.URL), testLogger())
	if code, ok := StatusCode(err); !ok || code != http.StatusNotFound {
		t.Fatalf("Fetch() error = %v, want HTTP 404", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server calls = %d, want 1", got)
	}
}

func TestFetchExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := Fetch(context.Background(), server.Client(), noBackoff(DocumentPolicy()), getter(server.URL), testLogger())
	if code, ok := StatusCode(err); !ok || code != http.StatusServiceUnavailable {
		t.Fatalf("Fetch() error = %v, want HTTP 503", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server calls = %d, want 3", got)
	}
}

func TestFetchPassesAttemptNumber(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Attempt") != "2" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if _, err := w.Write([]byte("third time")); err != nil {
			t.Logf("write: %v", err)
		}
	}))
	defer server.Close()

	var seen []uint
	newReq := func(n uint) (*http.Request, error) {
		seen = append(seen, n)
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, http.NoBody)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-Attempt", string(rune('0'+n)))
		return req, nil
	}

	body, err := Fetch(context.Background(), server.Client(), noBackoff(DocumentPolicy()), newReq, testLogger())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(body) != "third time" {
		t.Errorf("Fetch() = %q", body)
	}
	if len(seen) != 3 || seen[0] != 0 || seen[2] != 2 {
		t.Errorf("attempts seen = %v, want [0 1 2]", seen)
	}
}

func TestDocumentPolicyBackoff(t *testing.T) {
	p := DocumentPolicy()
	blocked := &HTTPError{StatusCode: http.StatusForbidden}
	netErr := errors.New("connection reset")

	tests := []struct {
		name    string
		attempt uint
		err     error
		want    time.Duration
	}{
		{"blocked first", 1, blocked, 5 * time.Second},
		{"blocked second", 2, blocked, 10 * time.Second},
		{"network first", 1, netErr, 3 * time.Second},
		{"network second", 2, netErr, 6 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Backoff(tt.attempt, tt.err); got != tt.want {
				t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestDocumentPolicyRetryable(t *testing.T) {
	p := DocumentPolicy()
	tests := []struct {
		err  error
		want bool
	}{
		{&HTTPError{StatusCode: 403}, true},
		{&HTTPError{StatusCode: 429}, true},
		{&HTTPError{StatusCode: 503}, true},
		{&HTTPError{StatusCode: 404}, false},
		{&HTTPError{StatusCode: 500}, false},
		{errors.New("timeout"), true},
		{context.Canceled, false},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := p.Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestFetchURLCachesBody(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		if _, err := w.Write([]byte("payload")); err != nil {
			t.Logf("write: %v", err)
		}
	}))
	defer server.Close()

	cache, err := NewWithPath(time.Hour, t.TempDir())
	if err != nil {
		t.Fatalf("NewWithPath: %v", err)
	}
	defer cache.Close() //nolint:errcheck // test cleanup

	for range 2 {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, http.NoBody)
		if err != nil {
			t.Fatalf("NewRequest: %v", err)
		}
		body, err := FetchURL(context.Background(), cache, server.Client(), req, testLogger())
		if err != nil {
			t.Fatalf("FetchURL() error = %v", err)
		}
		if string(body) != "payload" {
			t.Errorf("FetchURL() = %q", body)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server calls = %d, want 1", got)
	}
}

func TestFetchURLCachesHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	cache, err := NewWithPath(time.Hour, t.TempDir())
	if err != nil {
		t.Fatalf("NewWithPath: %v", err)
	}
	defer cache.Close() //nolint:errcheck // test cleanup

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, http.NoBody)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	_, err = FetchURL(context.Background(), cache, server.Client(), req, testLogger())
	if code, ok := StatusCode(err); !ok || code != http.StatusNotFound {
		t.Errorf("FetchURL() error = %v, want cached HTTP 404", err)
	}
}

func TestURLToKey(t *testing.T) {
	a := URLToKey("https://example.com/a")
	if len(a) != 64 {
		t.Errorf("URLToKey length = %d, want 64", len(a))
	}
	if a == URLToKey("https://example.com/b") {
		t.Error("distinct URLs produced the same key")
	}
}

func TestPacer(t *testing.T) {
	p := NewPacer(3*time.Second, testLogger())
	var slept []time.Duration
	p.SetSleep(func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	})

	ctx := context.Background()
	if err := p.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(slept) != 0 {
		t.Fatalf("first Wait slept %v, want no pause", slept)
	}

	p.Done()
	if err := p.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(slept) != 1 {
		t.Fatalf("second Wait slept %d times, want 1", len(slept))
	}
	if slept[0] <= 2*time.Second || slept[0] > 3*time.Second {
		t.Errorf("pause = %v, want just under 3s", slept[0])
	}
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep() = %v, want context.Canceled", err)
	}
}
