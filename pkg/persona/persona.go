// Package persona defines the typed records that flow through a resolution run:
// seed → enriched → candidate → score → match.
package persona

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// SeedRecord is the sparse identity fragment supplied by the caller.
// The pipeline treats it as read-only.
//
//nolint:govet // fieldalignment: intentional layout for readability
type SeedRecord struct {
	Name            string   `json:"name"                       yaml:"name"`
	Image           string   `json:"image,omitempty"            yaml:"image"`
	Intro           string   `json:"intro,omitempty"            yaml:"intro"`
	Timezone        string   `json:"timezone,omitempty"         yaml:"timezone"`
	CompanyIndustry string   `json:"company_industry,omitempty" yaml:"company_industry"`
	CompanySize     string   `json:"company_size,omitempty"     yaml:"company_size"`
	SocialProfiles  []string `json:"social_profile,omitempty"   yaml:"social_profile"`
}

// Clone returns a deep copy of the seed.
func (s SeedRecord) Clone() SeedRecord {
	s.SocialProfiles = slices.Clone(s.SocialProfiles)
	return s
}

// EnrichedRecord is a seed plus the fields inferred by the enricher.
// Original always holds the seed it was derived from.
//
//nolint:govet // fieldalignment: intentional layout for readability
type EnrichedRecord struct {
	CleanedName  string     `json:"name"`
	CompanyNames []string   `json:"company_names"`
	ExtraLinks   []string   `json:"links"`
	Intro        string     `json:"intro,omitempty"`
	Original     SeedRecord `json:"original_keys"`
}

// NewEnriched derives an enriched record from seed. The narrative starts as the seed intro.
func NewEnriched(seed SeedRecord, cleanedName string, companies, links []string) EnrichedRecord {
	return EnrichedRecord{
		CleanedName:  strings.TrimSpace(cleanedName),
		CompanyNames: compact(companies),
		ExtraLinks:   compact(links),
		Intro:        seed.Intro,
		Original:     seed.Clone(),
	}
}

// Name returns the cleaned name, falling back to the seed name.
func (e EnrichedRecord) Name() string {
	if e.CleanedName != "" {
		return e.CleanedName
	}
	return strings.TrimSpace(e.Original.Name)
}

// WithNarrative returns a copy whose narrative field is replaced. The receiver is unchanged.
func (e EnrichedRecord) WithNarrative(intro string) EnrichedRecord {
	out := e
	out.CompanyNames = slices.Clone(e.CompanyNames)
	out.ExtraLinks = slices.Clone(e.ExtraLinks)
	out.Original = e.Original.Clone()
	out.Intro = intro
	return out
}

// Experience is one position held.
type Experience struct {
	Title    string `json:"title,omitempty"`
	Company  string `json:"company,omitempty"`
	Date     string `json:"date,omitempty"`
	Location string `json:"location,omitempty"`
}

// Education is one educational entry.
type Education struct {
	Institution  string `json:"institution,omitempty"`
	Degree       string `json:"degree,omitempty"`
	FieldOfStudy string `json:"fieldOfStudy,omitempty"`
	Period       string `json:"period,omitempty"`
	Description  string `json:"description,omitempty"`
}

// Language is a spoken language and its proficiency.
type Language struct {
	Language    string `json:"language"`
	Proficiency string `json:"proficiency,omitempty"`
}

// CandidateRecord is a structured profile harvested from one source URL.
//
//nolint:govet // fieldalignment: intentional layout for readability
type CandidateRecord struct {
	URL       string `json:"url"`
	Name      string `json:"name"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Image     string `json:"image,omitempty"`
	Headline  string `json:"headline,omitempty"`
	About     string `json:"about,omitempty"`

	CurrentTitle   string   `json:"currentTitle,omitempty"`
	CurrentCompany string   `json:"currentCompany,omitempty"`
	Workspaces     []string `json:"workspaces,omitempty"` // distinct employers, first-seen order

	Experience      []Experience `json:"experience,omitempty"`
	Education       []Education  `json:"education,omitempty"`
	Skills          []string     `json:"skills,omitempty"`
	Languages       []Language   `json:"languages,omitempty"`
	Highlights      []string     `json:"highlights,omitempty"`
	Recommendations int          `json:"recommendationsReceived,omitempty"`
}

// Validate reports whether the record can be scored. Name is the only mandatory field.
func (c *CandidateRecord) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("candidate %s: %w", c.URL, ErrMissingName)
	}
	return nil
}

// Empty reports whether no field at all was extracted.
func (c *CandidateRecord) Empty() bool {
	return c.Name == "" && c.Image == "" && c.Headline == "" && c.About == "" &&
		len(c.Experience) == 0 && len(c.Education) == 0 && len(c.Skills) == 0 &&
		len(c.Languages) == 0 && len(c.Highlights) == 0
}

// Signal names a scoring component.
type Signal string

// Signals fused into a confidence score.
const (
	SignalImage Signal = "image"
	SignalText  Signal = "text"
	SignalJudge Signal = "judge"
)

// ScoreComponents is the evidence bundle for one (seed, candidate) pair.
//
//nolint:govet // fieldalignment: intentional layout for readability
type ScoreComponents struct {
	URL               string             `json:"url"`
	ImageScore        float64            `json:"imageScore"`
	TextScore         float64            `json:"textScore"`
	JudgeScore        float64            `json:"judgeScore"`
	JudgeRationale    string             `json:"judgeRationale,omitempty"`
	OverallConfidence float64            `json:"overallConfidence"`
	WeightsUsed       map[Signal]float64 `json:"weightsUsed"`
	TotalWeight       float64            `json:"totalWeight"`
	Excluded          map[Signal]string  `json:"excluded,omitempty"` // signals treated as not defined
	Summary           string             `json:"summary"`
}

// MatchResult is the terminal output of one resolution run.
// An empty MatchedURL means no match was found.
type MatchResult struct {
	MatchedURL string            `json:"matchedUrl"`
	Confidence float64           `json:"confidence"`
	AllScores  []ScoreComponents `json:"allScores"`
}

// NoMatch is the deterministic result for a run that produced no usable candidates.
func NoMatch() MatchResult {
	return MatchResult{AllScores: []ScoreComponents{}}
}

// Found reports whether a candidate was selected.
func (m MatchResult) Found() bool { return m.MatchedURL != "" }

// MarshalJSON encodes an empty MatchedURL as null. HTML escaping is left to
// the outer encoder so URLs with query strings survive SetEscapeHTML(false).
func (m MatchResult) MarshalJSON() ([]byte, error) {
	var u *string
	if m.MatchedURL != "" {
		u = &m.MatchedURL
	}
	scores := m.AllScores
	if scores == nil {
		scores = []ScoreComponents{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(struct {
		MatchedURL *string           `json:"matchedUrl"`
		Confidence float64           `json:"confidence"`
		AllScores  []ScoreComponents `json:"allScores"`
	}{u, m.Confidence, scores}); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
