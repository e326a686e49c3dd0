package htmlutil

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/net/html"
)

const doc = `<html><head>
<title>Eric Doty - Dock | LinkedIn</title>
<meta name="description" content="Content marketer">
<meta content="https://img.example/eric.jpg" property="og:image">
<script type="application/ld+json">{"@type":"Person","name":"Eric Doty"}</script>
</head><body>
<h1 class="top-card-layout__title  extra">  Eric   Doty </h1>
<section id="about-section" class="summary core"><p>Writes <b>things</b>.</p><script>var x;</script></section>
<ul><li class="item">one</li><li class="item other">two</li></ul>
<img alt="Eric Doty" data-delayed-url="https://img.example/delayed.jpg" src="https://img.example/src.jpg">
</body></html>`

func mustParse(t *testing.T) *html.Node {
	t.Helper()
	root, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return root
}

func TestMatchers(t *testing.T) {
	root := mustParse(t)
	tests := []struct {
		name string
		m    Matcher
		want string
	}{
		{"tag+class", All(Tag("h1"), HasClass("top-card-layout__title")), "Eric Doty"},
		{"class contains", ClassContains("SUMMARY"), "Writes things ."},
		{"id contains", IDContains("about"), "Writes things ."},
		{"attr", AttrEquals("class", "item other"), "two"},
		{"any of", AnyOf(ID("missing"), HasClass("item")), "one"},
		{"no match", ID("missing"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TextOf(root, tt.m); got != tt.want {
				t.Errorf("TextOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFindAll(t *testing.T) {
	root := mustParse(t)
	var got []string
	for _, n := range FindAll(root, HasClass("item")) {
		got = append(got, Text(n))
	}
	if diff := cmp.Diff([]string{"one", "two"}, got); diff != "" {
		t.Errorf("FindAll mismatch (-want +got):\n%s", diff)
	}
}

func TestChainFirstWins(t *testing.T) {
	root := mustParse(t)
	var calls []string
	track := func(name string, s Strategy[string]) Strategy[string] {
		return func(n *html.Node) (string, bool) {
			calls = append(calls, name)
			return s(n)
		}
	}
	c := Chain[string]{
		track("missing", TextStrategy(ID("nope"))),
		track("h1", TextStrategy(Tag("h1"))),
		track("never", TextStrategy(Tag("title"))),
	}
	got, ok := c.First(root)
	if !ok || got != "Eric Doty" {
		t.Errorf("First() = %q, %v; want %q, true", got, ok, "Eric Doty")
	}
	if diff := cmp.Diff([]string{"missing", "h1"}, calls); diff != "" {
		t.Errorf("strategies consulted (-want +got):\n%s", diff)
	}
}

func TestChainOr(t *testing.T) {
	root := mustParse(t)
	c := Chain[string]{TextStrategy(ID("nope"))}
	if got := c.Or(root, "fallback"); got != "fallback" {
		t.Errorf("Or() = %q, want fallback", got)
	}
}

func TestAttrStrategyPrefersFirstKey(t *testing.T) {
	root := mustParse(t)
	s := AttrStrategy(AttrEquals("alt", "Eric Doty"), "data-delayed-url", "src")
	got, ok := s(root)
	if !ok || got != "https://img.example/delayed.jpg" {
		t.Errorf("AttrStrategy() = %q, %v", got, ok)
	}
}

func TestTitle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"title tag", doc, "Eric Doty - Dock | LinkedIn"},
		{"entities and whitespace", "<title>\n  Tom &amp; Jerry\n</title>", "Tom & Jerry"},
		{"og fallback", `<title> </title><meta property="og:title" content="Eric Doty">`, "Eric Doty"},
		{"none", "<p>hi</p>", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Title(tt.in); got != tt.want {
				t.Errorf("Title() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsSocialPlatformURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://twitter.com/ericdoty", true},
		{"https://www.linkedin.com/in/ericdoty", true},
		{"https://mobile.twitter.com/ericdoty", true},
		{"https://hachyderm.io/@eric", true},
		{"https://dock.us", false},
		{"https://notx.com/page", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := IsSocialPlatformURL(tt.url); got != tt.want {
				t.Errorf("IsSocialPlatformURL(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestIsImageURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://avatars.slack-edge.com/2020/abc_original.jpg", true},
		{"https://example.com/photo.PNG?size=2", true},
		{"https://dock.us/about", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := IsImageURL(tt.url); got != tt.want {
				t.Errorf("IsImageURL(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestNormalizeForDedup(t *testing.T) {
	if got := NormalizeForDedup("https://www.Dock.us/"); got != "dock.us" {
		t.Errorf("NormalizeForDedup() = %q", got)
	}
}
