// Package avatar compares profile photos by the cosine similarity of image feature vectors.
package avatar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // GIF support
	_ "image/jpeg" // JPEG support
	_ "image/png"  // PNG support
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	_ "golang.org/x/image/webp" // WebP support

	"github.com/codeGROOVE-dev/personamatch/pkg/embed"
	"github.com/codeGROOVE-dev/personamatch/pkg/httpcache"
)

// ErrNoImage is returned when an image URL is empty or points at a placeholder avatar.
var ErrNoImage = errors.New("no usable image")

// Extractor maps a decoded image to a fixed-length feature vector.
type Extractor interface {
	Features(img image.Image) ([]float64, error)
}

// Comparer scores two image URLs. Feature vectors are cached by URL for the
// lifetime of the Comparer; each key is written at most once.
type Comparer struct {
	extractor Extractor
	cache     httpcache.Cacher
	client    *http.Client
	logger    *slog.Logger
	vectors   map[string][]float64
	mu        sync.Mutex
}

// Option configures a Comparer.
type Option func(*Comparer)

// WithCache sets the byte cache used for downloaded images.
func WithCache(c httpcache.Cacher) Option {
	return func(cmp *Comparer) { cmp.cache = c }
}

// WithHTTPClient sets the HTTP client used for downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(cmp *Comparer) { cmp.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(cmp *Comparer) { cmp.logger = l }
}

// NewComparer creates a Comparer around extractor.
func NewComparer(extractor Extractor, opts ...Option) *Comparer {
	c := &Comparer{
		extractor: extractor,
		client:    &http.Client{Timeout: 15 * time.Second},
		logger:    slog.Default(),
		vectors:   make(map[string][]float64),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cache == nil {
		c.cache = httpcache.NewNull()
	}
	return c
}

// Score returns the similarity of the images at url1 and url2 in [0, 1].
// Identical non-empty URLs score 1 without any download; a missing or placeholder
// URL scores 0 with ErrNoImage.
func (c *Comparer) Score(ctx context.Context, url1, url2 string) (float64, error) {
	url1, url2 = strings.TrimSpace(url1), strings.TrimSpace(url2)
	if url1 != "" && url1 == url2 {
		return 1, nil
	}
	if usable(url1) == "" || usable(url2) == "" {
		return 0, ErrNoImage
	}
	a, err := c.vector(ctx, url1)
	if err != nil {
		return 0, err
	}
	b, err := c.vector(ctx, url2)
	if err != nil {
		return 0, err
	}
	return embed.Clamp01(embed.Cosine(a, b)), nil
}

func usable(u string) string {
	if u == "" || isDefaultAvatar(u) {
		return ""
	}
	return u
}

func (c *Comparer) vector(ctx context.Context, rawURL string) ([]float64, error) {
	c.mu.Lock()
	v, ok := c.vectors[rawURL]
	c.mu.Unlock()
	if ok {
		return v, nil
	}

	img, err := c.download(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	v, err = c.extractor.Features(img)
	if err != nil {
		return nil, fmt.Errorf("extract features for %s: %w", rawURL, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.vectors[rawURL]; ok {
		return prev, nil
	}
	c.vectors[rawURL] = v
	return v, nil
}

func (c *Comparer) download(ctx context.Context, rawURL string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, DirectURL(rawURL), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build image request: %w", err)
	}
	req.Header.Set("User-Agent", httpcache.UserAgent)
	req.Header.Set("Accept", "image/webp,image/png,image/jpeg,image/gif,*/*")

	body, err := httpcache.FetchURL(ctx, c.cache, c.client, req, c.logger)
	if err != nil {
		c.logger.DebugContext(ctx, "image fetch failed", "url", rawURL, "error", err)
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		c.logger.DebugContext(ctx, "image decode failed", "url", rawURL, "error", err)
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

var driveFileID = regexp.MustCompile(`drive\.google\.com/file/d/([A-Za-z0-9_-]+)`)

// DirectURL rewrites Google Drive share links to their direct-download form.
func DirectURL(u string) string {
	if m := driveFileID.FindStringSubmatch(u); m != nil {
		return "https://drive.google.com/uc?export=download&id=" + m[1]
	}
	return u
}

// isDefaultAvatar returns true for URLs that are likely default/generated avatars.
// Gravatar's d= parameter is only a fallback, so the query string is ignored.
func isDefaultAvatar(url string) bool {
	path := strings.ToLower(url)
	if idx := strings.Index(path, "?"); idx != -1 {
		path = path[:idx]
	}
	return strings.Contains(path, "identicon") ||
		strings.Contains(path, "default") ||
		strings.Contains(path, "placeholder") ||
		strings.Contains(path, "ghost-person") ||
		strings.Contains(path, "blank-profile")
}
