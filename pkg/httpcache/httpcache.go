// Package httpcache provides cached, retrying HTTP fetches for search APIs, profile pages and images.
package httpcache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/codeGROOVE-dev/sfcache"
	"github.com/codeGROOVE-dev/sfcache/pkg/store/localfs"
	"github.com/codeGROOVE-dev/sfcache/pkg/store/null"

	"github.com/codeGROOVE-dev/personamatch/pkg/metrics"
)

// UserAgent is the browser User-Agent used for API and image requests.
const UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:146.0) Gecko/20100101 Firefox/146.0"

// Cacher allows external cache implementations for sharing across packages.
type Cacher interface {
	GetSet(ctx context.Context, key string, fetch func(context.Context) ([]byte, error), ttl ...time.Duration) ([]byte, error)
	TTL() time.Duration
}

// Cache wraps sfcache for HTTP response caching.
type Cache struct {
	*sfcache.TieredCache[string, []byte]

	ttl time.Duration
}

// New creates a new Cache with disk persistence at ~/.cache/personamatch.
func New(ttl time.Duration) (*Cache, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}
	return NewWithPath(ttl, filepath.Join(cacheDir, "personamatch"))
}

// NewNull creates a Cache with no persistence (all gets miss, all sets discard).
func NewNull() *Cache {
	tc, err := sfcache.NewTiered[string, []byte](null.New[string, []byte]())
	if err != nil {
		panic("sfcache.NewTiered with null store: " + err.Error())
	}
	return &Cache{TieredCache: tc, ttl: 0}
}

// NewWithPath creates a new Cache with disk persistence at the specified path.
func NewWithPath(ttl time.Duration, cachePath string) (*Cache, error) {
	if err := os.MkdirAll(cachePath, 0o750); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	persist, err := localfs.New[string, []byte]("personamatch", cachePath)
	if err != nil {
		return nil, fmt.Errorf("create persistence layer: %w", err)
	}

	tc, err := sfcache.NewTiered[string, []byte](persist, sfcache.TTL(ttl))
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}

	return &Cache{TieredCache: tc, ttl: ttl}, nil
}

// TTL returns the default TTL for cache entries.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// URLToKey converts a URL (or any string) to a cache key using SHA256.
func URLToKey(rawURL string) string {
	hash := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(hash[:])
}

// HTTPError represents a non-200 HTTP response.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d fetching %s", e.StatusCode, e.URL)
}

// StatusCode returns the HTTP status carried by err, if any.
func StatusCode(err error) (int, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode, true
	}
	return 0, false
}

// Cached failures are stored under these prefixes so a dead URL is not hammered
// until its entry expires.
const (
	httpErrPrefix = "ERROR:"
	netErrPrefix  = "NETERR:"
)

// FetchURL fetches req through cache with the transient retry policy.
// HTTP and network failures are cached too, as markers decoded back into errors.
func FetchURL(ctx context.Context, cache Cacher, client *http.Client, req *http.Request, logger *slog.Logger) ([]byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	once := func(uint) (*http.Request, error) { return req, nil }
	if cache == nil {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return Fetch(ctx, client, TransientPolicy(), once, logger)
	}

	target := req.URL.String()
	result := "hit"
	data, err := cache.GetSet(ctx, URLToKey(target), func(ctx context.Context) ([]byte, error) {
		result = "miss"
		body, err := Fetch(ctx, client, TransientPolicy(), once, logger)
		if err == nil {
			return body, nil
		}
		if code, ok := StatusCode(err); ok {
			return fmt.Appendf(nil, "%s%d", httpErrPrefix, code), nil
		}
		return []byte(netErrPrefix + err.Error()), nil
	}, cache.TTL())
	metrics.CacheLookups.WithLabelValues(result).Inc()
	logger.DebugContext(ctx, "cached fetch", "url", target, "result", result)
	if err != nil {
		return nil, err
	}

	if rest, ok := bytes.CutPrefix(data, []byte(httpErrPrefix)); ok {
		code, _ := strconv.Atoi(string(rest)) //nolint:errcheck // 0 on a corrupt marker
		return nil, &HTTPError{StatusCode: code, URL: target}
	}
	if rest, ok := bytes.CutPrefix(data, []byte(netErrPrefix)); ok {
		return nil, fmt.Errorf("cached network error: %s", rest)
	}
	return data, nil
}
