package linkedin

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/codeGROOVE-dev/personamatch/pkg/htmlutil"
	"github.com/codeGROOVE-dev/personamatch/pkg/persona"
)

// ErrProfileNotFound is returned for LinkedIn error and unavailable-profile pages.
var ErrProfileNotFound = errors.New("profile not found")

var (
	tag      = htmlutil.Tag
	all      = htmlutil.All
	anyOf    = htmlutil.AnyOf
	classHas = htmlutil.ClassContains
	textOf   = htmlutil.TextStrategy
)

// tags matches any of the named elements.
func tags(names ...string) htmlutil.Matcher {
	ms := make([]htmlutil.Matcher, len(names))
	for i, n := range names {
		ms[i] = tag(n)
	}
	return anyOf(ms...)
}

// classAny matches elements with a class token containing any of subs.
func classAny(subs ...string) htmlutil.Matcher {
	ms := make([]htmlutil.Matcher, len(subs))
	for i, s := range subs {
		ms[i] = classHas(s)
	}
	return anyOf(ms...)
}

func not(m htmlutil.Matcher) htmlutil.Matcher {
	return func(n *html.Node) bool { return n.Type == html.ElementNode && !m(n) }
}

func hasAttr(key string) htmlutil.Matcher {
	return func(n *html.Node) bool { return htmlutil.Attr(n, key) != "" }
}

var titleErrorPatterns = []string{"page not found", "404", "member not found", "profile not found"}

var bodyErrorPatterns = []string{
	"this profile is not available",
	"account has been restricted",
	"page doesn't exist",
	"member you are trying to view",
}

// notFound detects error pages before any field extraction is attempted.
func notFound(content string) error {
	title := strings.ToLower(htmlutil.Title(content))
	for _, p := range titleErrorPatterns {
		if strings.Contains(title, p) {
			return fmt.Errorf("%w (error in title: %q)", ErrProfileNotFound, p)
		}
	}
	lower := strings.ToLower(content)
	for _, p := range bodyErrorPatterns {
		if strings.Contains(lower, p) {
			return fmt.Errorf("%w (error page detected: %q)", ErrProfileNotFound, p)
		}
	}
	return nil
}

// Parse extracts a candidate record from a public profile page. Fields that no
// strategy finds are left empty. The returned record may be Empty; callers discard those.
func Parse(body []byte, pageURL string) (persona.CandidateRecord, error) {
	if err := notFound(string(body)); err != nil {
		return persona.CandidateRecord{}, err
	}
	root, err := htmlutil.Parse(body)
	if err != nil {
		return persona.CandidateRecord{}, err
	}
	ld, hasLD := jsonLDPerson(root)

	rec := persona.CandidateRecord{
		URL:  canonicalURL(root, pageURL),
		Name: nameChain(ld, hasLD).Or(root, ""),
	}
	rec.Image = imageChain(rec.Name, ld, hasLD).Or(root, "")
	rec.Headline = headlineChain(ld, hasLD).Or(root, "")
	rec.About = aboutChain(ld, hasLD).Or(root, "")
	rec.Experience = experience(root)
	rec.Education = education(root)
	rec.Skills = skills(root, rec.About)
	rec.Languages = languages(root)
	rec.Highlights = highlights(root)
	rec.Recommendations = recommendations(root)

	var ldEmployers []string
	if hasLD {
		ldEmployers = ld.employers()
	}
	return Summarize(rec, ldEmployers), nil
}

func canonicalURL(root *html.Node, pageURL string) string {
	if href := htmlutil.Attr(htmlutil.Find(root, all(tag("link"), htmlutil.AttrEquals("rel", "canonical"))), "href"); href != "" {
		return Canonical(href)
	}
	return Canonical(pageURL)
}

func fromLD(ok bool, f func() string) htmlutil.Strategy[string] {
	return func(*html.Node) (string, bool) {
		if !ok {
			return "", false
		}
		s := strings.TrimSpace(f())
		return s, s != ""
	}
}

// metaContent yields the content of <meta property|name=key>.
func metaContent(key string) htmlutil.Strategy[string] {
	return htmlutil.AttrStrategy(all(tag("meta"), anyOf(htmlutil.AttrEquals("property", key), htmlutil.AttrEquals("name", key))), "content")
}

// titleName takes the leading "Name" from a "Name - Company | LinkedIn" page title.
func titleName(root *html.Node) (string, bool) {
	title := htmlutil.TextOf(root, tag("title"))
	if !strings.Contains(title, "LinkedIn") {
		return "", false
	}
	for _, sep := range []string{" - ", " – ", " | "} {
		if i := strings.Index(title, sep); i > 0 {
			return strings.TrimSpace(title[:i]), true
		}
	}
	return "", false
}

func nameChain(ld ldPerson, hasLD bool) htmlutil.Chain[string] {
	return htmlutil.Chain[string]{
		textOf(all(tag("h1"), classHas("top-card-layout__title"))),
		fromLD(hasLD, func() string { return ld.Name }),
		titleName,
	}
}

func imageChain(name string, ld ldPerson, hasLD bool) htmlutil.Chain[string] {
	var c htmlutil.Chain[string]
	if name != "" {
		c = append(c, htmlutil.AttrStrategy(all(tag("img"), htmlutil.AttrEquals("alt", name)), "data-delayed-url", "src"))
	}
	return append(c,
		htmlutil.AttrStrategy(all(tag("img"), classHas("profile-photo-edit__preview")), "data-delayed-url", "src"),
		htmlutil.AttrStrategy(all(tag("img"), classHas("pv-top-card-profile-picture__image")), "data-delayed-url", "src"),
		fromLD(hasLD, ld.image),
		metaContent("og:image"),
	)
}

func headlineChain(ld ldPerson, hasLD bool) htmlutil.Chain[string] {
	return htmlutil.Chain[string]{
		textOf(all(tag("h2"), classHas("top-card-layout__headline"))),
		textOf(all(tag("div"), htmlutil.HasClass("text-body-medium"))),
		fromLD(hasLD, ld.jobTitle),
	}
}

var seeMore = regexp.MustCompile(`(?i)\s*(…|\.\.\.)?\s*see more$`)

// aboutText reads the text block inside an about section, falling back to the section itself.
func aboutText(section *html.Node) string {
	container := htmlutil.Chain[*html.Node]{
		htmlutil.NodeStrategy(all(tag("div"), classAny("inline-show-more-text", "core-section-container__content", "pv-shared-text-with-see-more"))),
		htmlutil.NodeStrategy(tag("p")),
	}.Or(section, section)
	return strings.TrimSpace(seeMore.ReplaceAllString(htmlutil.Text(container), ""))
}

func sectionText(m htmlutil.Matcher) htmlutil.Strategy[string] {
	return func(root *html.Node) (string, bool) {
		n := htmlutil.Find(root, m)
		if n == nil {
			return "", false
		}
		s := aboutText(n)
		return s, s != ""
	}
}

// aboutHeading finds an h2 reading "About" and uses its enclosing section.
func aboutHeading(root *html.Node) (string, bool) {
	for _, h := range htmlutil.FindAll(root, tag("h2")) {
		if !strings.Contains(htmlutil.Text(h), "About") {
			continue
		}
		for p := h.Parent; p != nil; p = p.Parent {
			if p.Type == html.ElementNode && (p.Data == "section" || p.Data == "div") {
				if s := aboutText(p); s != "" && s != "About" {
					return strings.TrimSpace(strings.TrimPrefix(s, "About")), true
				}
				break
			}
		}
	}
	return "", false
}

func aboutChain(ld ldPerson, hasLD bool) htmlutil.Chain[string] {
	return htmlutil.Chain[string]{
		sectionText(all(tag("section"), classHas("summary"))),
		sectionText(all(tag("section"), htmlutil.ID("about"))),
		sectionText(all(tag("div"), classHas("pv-about-section"))),
		aboutHeading,
		fromLD(hasLD, func() string { return ld.Description }),
	}
}
