package avatar

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func gradient(t *testing.T, reverse bool) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := range 48 {
		for x := range 64 {
			v := uint8(x * 4)
			if reverse {
				v = 255 - v
			}
			img.Set(x, y, color.RGBA{R: v, G: uint8(y * 5), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func imageServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	forward, backward := gradient(t, false), gradient(t, true)
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "image/png")
		var body []byte
		switch r.URL.Path {
		case "/a.png", "/a-copy.png":
			body = forward
		case "/b.png":
			body = backward
		default:
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if _, err := w.Write(body); err != nil {
			t.Logf("write: %v", err)
		}
	}))
}

func newTestComparer(client *http.Client) *Comparer {
	return NewComparer(HashExtractor{}, WithHTTPClient(client), WithLogger(slog.New(slog.DiscardHandler)))
}

type failTransport struct{}

func (failTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("network disabled")
}

func TestScoreShortCircuits(t *testing.T) {
	c := newTestComparer(&http.Client{Transport: failTransport{}})
	ctx := context.Background()

	tests := []struct {
		name    string
		a, b    string
		want    float64
		wantErr error
	}{
		{"identical unreachable", "https://img.example/x.jpg", "https://img.example/x.jpg", 1, nil},
		{"first missing", "", "https://img.example/x.jpg", 0, ErrNoImage},
		{"second missing", "https://img.example/x.jpg", "", 0, ErrNoImage},
		{"both missing", "", "", 0, ErrNoImage},
		{"placeholder", "https://static.example/ghost-person.png", "https://img.example/x.jpg", 0, ErrNoImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Score(ctx, tt.a, tt.b)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Score() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Score() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScoreSameContentDifferentURL(t *testing.T) {
	var calls atomic.Int32
	server := imageServer(t, &calls)
	defer server.Close()

	c := newTestComparer(server.Client())
	got, err := c.Score(context.Background(), server.URL+"/a.png", server.URL+"/a-copy.png")
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if math.Abs(got-1) > 1e-9 {
		t.Errorf("Score() = %v, want 1", got)
	}
}

func TestScoreDifferentImages(t *testing.T) {
	var calls atomic.Int32
	server := imageServer(t, &calls)
	defer server.Close()

	c := newTestComparer(server.Client())
	got, err := c.Score(context.Background(), server.URL+"/a.png", server.URL+"/b.png")
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if got < 0 || got >= 1 {
		t.Errorf("Score() = %v, want in [0, 1)", got)
	}
}

func TestComparerCachesPerURL(t *testing.T) {
	var calls atomic.Int32
	server := imageServer(t, &calls)
	defer server.Close()

	c := newTestComparer(server.Client())
	seed := server.URL + "/a.png"
	for _, other := range []string{"/b.png", "/a-copy.png", "/b.png"} {
		if _, err := c.Score(context.Background(), seed, server.URL+other); err != nil {
			t.Fatalf("Score() error = %v", err)
		}
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("downloads = %d, want 3 (one per distinct URL)", got)
	}
}

func TestScoreFetchFailure(t *testing.T) {
	var calls atomic.Int32
	server := imageServer(t, &calls)
	defer server.Close()

	c := newTestComparer(server.Client())
	got, err := c.Score(context.Background(), server.URL+"/a.png", server.URL+"/missing.png")
	if err == nil {
		t.Fatal("Score() error = nil, want fetch failure")
	}
	if got != 0 {
		t.Errorf("Score() = %v, want 0", got)
	}
}

func TestDirectURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://drive.google.com/file/d/1AbC_d-9/view?usp=sharing", "https://drive.google.com/uc?export=download&id=1AbC_d-9"},
		{"https://img.example/x.jpg", "https://img.example/x.jpg"},
	}
	for _, tt := range tests {
		if got := DirectURL(tt.in); got != tt.want {
			t.Errorf("DirectURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsDefaultAvatar(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://gravatar.com/avatar/abc?d=identicon", false},
		{"https://example.com/identicon/abc.png", true},
		{"https://github.com/avatar_default_image.png", true},
		{"https://static.licdn.com/aero-v1/sc/h/ghost-person.png", true},
		{"https://example.com/user/photo.jpg", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := isDefaultAvatar(tt.url); got != tt.want {
				t.Errorf("isDefaultAvatar(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestPreprocess(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 300, 200))
	for y := range 200 {
		for x := range 300 {
			img.Set(x, y, color.RGBA{R: 255, G: 0, B: 0, A: 255})
		}
	}
	out := Preprocess(img)
	plane := CropSize * CropSize
	if len(out) != 3*plane {
		t.Fatalf("len = %d, want %d", len(out), 3*plane)
	}
	wantR := (1 - imagenetMean[0]) / imagenetStd[0]
	wantG := (0 - imagenetMean[1]) / imagenetStd[1]
	center := plane/2 + CropSize/2
	if math.Abs(float64(out[center]-wantR)) > 1e-3 {
		t.Errorf("R = %v, want %v", out[center], wantR)
	}
	if math.Abs(float64(out[plane+center]-wantG)) > 1e-3 {
		t.Errorf("G = %v, want %v", out[plane+center], wantG)
	}
}

func TestGlobalAveragePool(t *testing.T) {
	got := GlobalAveragePool([]float32{1, 3, 10, 20}, 2)
	if len(got) != 2 || got[0] != 2 || got[1] != 15 {
		t.Errorf("GlobalAveragePool() = %v, want [2 15]", got)
	}
	if got := GlobalAveragePool(nil, 2); got != nil {
		t.Errorf("GlobalAveragePool(nil) = %v, want nil", got)
	}
}

func TestHashVector(t *testing.T) {
	v := HashVector(0b101)
	if v[0] != 1 || v[1] != -1 || v[2] != 1 || v[63] != -1 {
		t.Errorf("HashVector() = %v", v[:4])
	}
}
