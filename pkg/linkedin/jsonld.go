package linkedin

import (
	"encoding/json"
	"strings"

	"golang.org/x/net/html"

	"github.com/codeGROOVE-dev/personamatch/pkg/htmlutil"
)

// ldPerson is the subset of a schema.org Person LinkedIn embeds in public pages.
type ldPerson struct {
	Name        string          `json:"name"`
	Image       json.RawMessage `json:"image"`
	Description string          `json:"description"`
	JobTitle    json.RawMessage `json:"jobTitle"`
	WorksFor    json.RawMessage `json:"worksFor"`
	URL         string          `json:"url"`
}

type ldOrg struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type ldDoc struct {
	Type       string            `json:"@type"`
	MainEntity json.RawMessage   `json:"mainEntity"`
	Graph      []json.RawMessage `json:"@graph"`
}

// jsonLDPerson finds the Person object in the page's JSON-LD blocks:
// a top-level Person, ProfilePage.mainEntity, or a Person inside @graph.
func jsonLDPerson(root *html.Node) (ldPerson, bool) {
	for _, n := range htmlutil.FindAll(root, htmlutil.All(htmlutil.Tag("script"), htmlutil.AttrEquals("type", "application/ld+json"))) {
		if n.FirstChild == nil {
			continue
		}
		if p, ok := personFrom([]byte(n.FirstChild.Data)); ok {
			return p, true
		}
	}
	return ldPerson{}, false
}

func personFrom(raw []byte) (ldPerson, bool) {
	var doc ldDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ldPerson{}, false
	}
	switch {
	case doc.Type == "Person":
		var p ldPerson
		if json.Unmarshal(raw, &p) == nil {
			return p, true
		}
	case doc.Type == "ProfilePage" && len(doc.MainEntity) > 0:
		return personFrom(doc.MainEntity)
	}
	for _, item := range doc.Graph {
		if p, ok := personFrom(item); ok {
			return p, true
		}
	}
	return ldPerson{}, false
}

func (p ldPerson) image() string {
	if len(p.Image) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(p.Image, &s) == nil {
		return s
	}
	var obj struct {
		ContentURL string `json:"contentUrl"`
		URL        string `json:"url"`
	}
	if json.Unmarshal(p.Image, &obj) == nil {
		if obj.ContentURL != "" {
			return obj.ContentURL
		}
		return obj.URL
	}
	return ""
}

func (p ldPerson) jobTitle() string {
	var s string
	if json.Unmarshal(p.JobTitle, &s) == nil {
		return s
	}
	var list []string
	if json.Unmarshal(p.JobTitle, &list) == nil && len(list) > 0 {
		return list[0]
	}
	return ""
}

// employers returns worksFor names, which may be a single object or a list.
func (p ldPerson) employers() []string {
	if len(p.WorksFor) == 0 {
		return nil
	}
	var orgs []ldOrg
	if json.Unmarshal(p.WorksFor, &orgs) != nil {
		var one ldOrg
		if json.Unmarshal(p.WorksFor, &one) != nil {
			return nil
		}
		orgs = []ldOrg{one}
	}
	var names []string
	for _, o := range orgs {
		if name := strings.TrimSpace(o.Name); name != "" {
			names = append(names, name)
		}
	}
	return names
}
