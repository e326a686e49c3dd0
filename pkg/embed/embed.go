// Package embed maps free text to fixed-length vectors and compares them.
package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"github.com/codeGROOVE-dev/personamatch/pkg/httpcache"
)

// Epsilon is the smallest vector norm treated as non-zero.
const Epsilon = 1e-6

// ErrEmptyEmbedding is returned when a backend yields no vector.
var ErrEmptyEmbedding = errors.New("empty embedding")

// Embedder maps text to a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Func adapts a function to Embedder.
type Func func(ctx context.Context, text string) ([]float64, error)

// Embed calls f.
func (f Func) Embed(ctx context.Context, text string) ([]float64, error) { return f(ctx, text) }

// Cosine returns the cosine similarity of a and b.
// It is 0 when the lengths differ or either norm is below Epsilon.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	na, nb = math.Sqrt(na), math.Sqrt(nb)
	if na < Epsilon || nb < Epsilon {
		return 0
	}
	return dot / (na * nb)
}

// Clamp01 bounds v to [0, 1]. NaN becomes 0.
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Cached memoizes an Embedder through a byte cache, keyed by model and text.
type Cached struct {
	next  Embedder
	cache httpcache.Cacher
	model string
}

// NewCached wraps next. model namespaces the cache keys.
func NewCached(next Embedder, cache httpcache.Cacher, model string) *Cached {
	return &Cached{next: next, cache: cache, model: model}
}

// Embed implements Embedder.
func (c *Cached) Embed(ctx context.Context, text string) ([]float64, error) {
	if c.cache == nil {
		return c.next.Embed(ctx, text)
	}
	sum := sha256.Sum256([]byte(c.model + "|" + text))
	key := "embed:" + hex.EncodeToString(sum[:])
	data, err := c.cache.GetSet(ctx, key, func(ctx context.Context) ([]byte, error) {
		vec, err := c.next.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		return encode(vec), nil
	}, c.cache.TTL())
	if err != nil {
		return nil, err
	}
	return decode(data)
}

func encode(vec []float64) []byte {
	buf := make([]byte, 4+len(vec)*8)
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(vec))) //nolint:gosec // embedding dims fit in uint32
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[4+i*8:], math.Float64bits(v))
	}
	return buf
}

func decode(data []byte) ([]float64, error) {
	if len(data) < 4 {
		return nil, errors.New("cached embedding too small")
	}
	n := int(binary.LittleEndian.Uint32(data[:4]))
	data = data[4:]
	if len(data) != n*8 {
		return nil, fmt.Errorf("cached embedding length mismatch: %d values, %d bytes", n, len(data))
	}
	vec := make([]float64, n)
	for i := range vec {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return vec, nil
}

func widen(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
