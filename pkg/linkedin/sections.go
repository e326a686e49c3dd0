package linkedin

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/codeGROOVE-dev/personamatch/pkg/htmlutil"
	"github.com/codeGROOVE-dev/personamatch/pkg/persona"
)

// firstSection returns the first node matched by any of ms, tried in order.
func firstSection(root *html.Node, ms ...htmlutil.Matcher) *html.Node {
	c := make(htmlutil.Chain[*html.Node], len(ms))
	for i, m := range ms {
		c[i] = htmlutil.NodeStrategy(m)
	}
	n, _ := c.First(root)
	return n
}

// items returns the first non-empty FindAll result among ms.
func items(section *html.Node, ms ...htmlutil.Matcher) []*html.Node {
	for _, m := range ms {
		if found := htmlutil.FindAll(section, m); len(found) > 0 {
			return found
		}
	}
	return nil
}

func dataSection(name string) htmlutil.Matcher {
	return all(tag("section"), htmlutil.AttrEquals("data-section", name))
}

func experience(root *html.Node) []persona.Experience {
	section := firstSection(root,
		dataSection("experience"),
		all(tag("div"), htmlutil.ID("experience-section")),
		all(tag("div"), htmlutil.ID("experience")),
		all(tag("section"), classHas("experience")),
	)
	if section == nil {
		return nil
	}
	var out []persona.Experience
	for _, item := range items(section,
		all(tag("li"), classAny("experience-item", "result-card", "list-style-none")),
		all(tag("div"), classHas("pv-entity__position-group-pager")),
	) {
		e := persona.Experience{
			Title:    htmlutil.TextOf(item, all(tags("h3", "span"), classAny("result-card__title", "item__title", "t-bold"))),
			Company:  htmlutil.TextOf(item, all(tags("span", "h4"), classAny("result-card__subtitle", "item__subtitle", "job-details"))),
			Date:     htmlutil.TextOf(item, all(tag("span"), classAny("date-range", "duration"))),
			Location: htmlutil.TextOf(item, all(tag("span"), classAny("location", "job-result-card__location"))),
		}
		// "Dock · Full-time"
		if company, _, ok := strings.Cut(e.Company, "·"); ok {
			e.Company = strings.TrimSpace(company)
		}
		if e.Title != "" || e.Company != "" {
			out = append(out, e)
		}
	}
	return out
}

func education(root *html.Node) []persona.Education {
	section := firstSection(root,
		dataSection("educationsDetails"),
		all(tag("div"), htmlutil.ID("education-section")),
		all(tag("div"), htmlutil.ID("education")),
		all(tag("section"), classHas("education")),
	)
	if section == nil {
		return nil
	}
	var out []persona.Education
	for _, item := range items(section,
		all(tag("li"), classAny("education__list-item", "result-card")),
		all(tag("div"), classHas("pv-entity__school-details")),
	) {
		e := persona.Education{
			Institution: htmlutil.TextOf(item, all(tags("h3", "span"), classAny("result-card__title", "item__title", "school-name"))),
			Period:      htmlutil.TextOf(item, all(tag("span"), classAny("date-range", "education-date"))),
			Description: htmlutil.TextOf(item, all(tag("div"), classAny("show-more-less-text", "description"))),
		}
		// "Bachelor of Arts, English"
		degree := htmlutil.TextOf(item, all(tags("span", "p"), classAny("result-card__subtitle", "item__subtitle", "degree-name")))
		if d, field, ok := strings.Cut(degree, ","); ok {
			e.Degree, e.FieldOfStudy = strings.TrimSpace(d), strings.TrimSpace(strings.Split(field, ",")[0])
		} else {
			e.Degree = degree
		}
		if e.Institution != "" {
			out = append(out, e)
		}
	}
	return out
}

var (
	endorsementSuffix = regexp.MustCompile(`(?i)\s*\d+\s*(endorsements?|recommendations?)$`)
	seeAllSkills      = regexp.MustCompile(`(?i)^see all \d+ skills$`)
	skillsInSection   = regexp.MustCompile(`(?i)(?:Skills|Expertise)\s*:?\s*([\w\s,\-\+\#\.\(\)]+?)(?:$|Endorsed|Show|Education|Experience)`)
	skillsInAbout     = regexp.MustCompile(`(?i)(?:Skills|Expertise|Specialties)(?:\s*:|\s+include)?\s*([\w\s,\-\+\#\.\(\)]+?)(?:$|\.|\n|Experience|Education)`)
	skillDelimiters   = regexp.MustCompile(`[,•|&]|\sand\s|\n`)
)

// setBuilder collects strings, deduplicating case-insensitively in first-seen order.
type setBuilder struct {
	seen map[string]bool
	out  []string
}

func (b *setBuilder) add(s string) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || len(s) >= 100 {
		return
	}
	k := strings.ToLower(s)
	if b.seen == nil {
		b.seen = make(map[string]bool)
	}
	if b.seen[k] {
		return
	}
	b.seen[k] = true
	b.out = append(b.out, s)
}

func cleanSkill(s string) string {
	s = endorsementSuffix.ReplaceAllString(strings.TrimSpace(s), "")
	return seeAllSkills.ReplaceAllString(strings.TrimSpace(s), "")
}

func splitSkills(b *setBuilder, text string) {
	for _, s := range skillDelimiters.Split(text, -1) {
		b.add(s)
	}
}

func skills(root *html.Node, about string) []string {
	var b setBuilder
	section := firstSection(root,
		dataSection("skills"),
		all(tag("section"), htmlutil.IDContains("skills")),
		all(tag("section"), classHas("skills")),
		all(tag("div"), htmlutil.IDContains("skills")),
		all(tag("div"), classHas("skills")),
	)
	if section != nil {
		for _, el := range items(section,
			all(tags("li", "div", "span"), classHas("skill")),
			all(tags("h3", "h4", "p", "span"), classAny("skill-name", "skill-card__name", "pv-skill-category-entity__name-text")),
		) {
			b.add(cleanSkill(htmlutil.Text(el)))
		}
		if len(b.out) == 0 {
			if m := skillsInSection.FindStringSubmatch(htmlutil.Text(section)); m != nil {
				splitSkills(&b, m[1])
			}
		}
	}
	if len(b.out) == 0 && about != "" {
		if m := skillsInAbout.FindStringSubmatch(about); m != nil {
			splitSkills(&b, m[1])
		}
	}
	return b.out
}

func languages(root *html.Node) []persona.Language {
	section := firstSection(root,
		all(tag("section"), classHas("languages")),
		all(tag("div"), htmlutil.ID("languages")),
	)
	if section == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []persona.Language
	for _, item := range htmlutil.FindAll(section, all(tags("li", "div"), classAny("pv-language-entity", "list-item"))) {
		name := htmlutil.TextOf(item, all(tags("h3", "span"), hasAttr("class"), not(classHas("pv-entity__description"))))
		prof := htmlutil.TextOf(item, all(tags("h4", "span", "p"), classAny("pv-entity__description", "proficiency")))
		if name == "" || len(name) >= 50 || seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true
		if strings.EqualFold(prof, name) {
			prof = ""
		}
		out = append(out, persona.Language{Language: name, Proficiency: prof})
	}
	return out
}

func usefulHighlight(s string) bool {
	return len(s) > 10 && !strings.Contains(s, "Message") && !strings.Contains(s, "Connect")
}

var sentenceBreak = regexp.MustCompile(`\.\s+`)

func highlights(root *html.Node) []string {
	section := firstSection(root,
		all(tag("section"), classHas("highlights")),
		all(tag("div"), htmlutil.ID("highlights")),
		all(tag("div"), classHas("highlights")),
	)
	if section == nil {
		return nil
	}
	var out []string
	for _, item := range htmlutil.FindAll(section, all(tags("li", "div"), classAny("highlight", "pv-highlight-entity"))) {
		if s := htmlutil.Text(item); usefulHighlight(s) {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		for _, s := range sentenceBreak.Split(htmlutil.Text(section), -1) {
			if s = strings.TrimSpace(s); usefulHighlight(s) {
				out = append(out, s)
			}
		}
	}
	return out
}

var recommendationCount = regexp.MustCompile(`(?i)received\s*\((\d+)\)|(\d+)\s+(?:people have recommended|recommendations?)`)

func recommendations(root *html.Node) int {
	section := firstSection(root,
		all(tag("section"), classHas("recommendations")),
		all(tag("div"), htmlutil.ID("recommendation")),
	)
	if section == nil {
		return 0
	}
	if n, err := strconv.Atoi(htmlutil.TextOf(section, all(tag("span"), classHas("count")))); err == nil {
		return n
	}
	m := recommendationCount.FindStringSubmatch(htmlutil.Text(section))
	if m == nil {
		return 0
	}
	s := m[1]
	if s == "" {
		s = m[2]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
