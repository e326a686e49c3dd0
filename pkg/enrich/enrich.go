// Package enrich turns a seed record into an enriched record: a cleaned name,
// company names and extra links from a text transform, plus a narrative
// augmented with web search titles.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codeGROOVE-dev/personamatch/pkg/htmlutil"
	"github.com/codeGROOVE-dev/personamatch/pkg/llm"
	"github.com/codeGROOVE-dev/personamatch/pkg/persona"
	"github.com/codeGROOVE-dev/personamatch/pkg/search"
)

// TitlesPerQuery is how many result titles each narrative query contributes.
const TitlesPerQuery = 3

// Enricher runs the extraction transform and narrative searches.
type Enricher struct {
	transform   llm.Chatter
	searcher    search.Searcher
	logger      *slog.Logger
	dedupTitles bool
	lenient     bool
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Enricher) { e.logger = logger }
}

// WithDedupTitles drops narrative titles already seen in an earlier query.
// Off by default: repeated titles are kept.
func WithDedupTitles(on bool) Option {
	return func(e *Enricher) { e.dedupTitles = on }
}

// WithLenientJSON accepts fenced or slightly malformed transform output.
func WithLenientJSON(on bool) Option {
	return func(e *Enricher) { e.lenient = on }
}

// New creates an Enricher. searcher may be nil, in which case the narrative is
// never augmented.
func New(transform llm.Chatter, searcher search.Searcher, opts ...Option) *Enricher {
	e := &Enricher{transform: transform, searcher: searcher, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// extraction is the transform's reply. original_keys is echoed back but the
// seed held by the caller stays authoritative.
type extraction struct {
	Name         looseString     `json:"name"`
	CompanyNames stringList      `json:"company_names"`
	Links        stringList      `json:"links"`
	OriginalKeys json.RawMessage `json:"original_keys"`
}

// looseString accepts any JSON value; non-strings decode as "".
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	str, _ := v.(string)
	*s = looseString(str)
	return nil
}

// stringList accepts a list, a bare string (one item) or null. Non-string
// list entries are skipped.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case string:
		*l = stringList{t}
	case []any:
		out := make(stringList, 0, len(t))
		for _, item := range t {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		*l = out
	default:
		*l = nil
	}
	return nil
}

// extractionSchema documents the reply shape for the prompt.
type extractionSchema struct {
	Name         string             `json:"name"          jsonschema:"description=Cleaned full name"`
	CompanyNames []string           `json:"company_names" jsonschema:"description=Every company mentioned; null when none"`
	Links        []string           `json:"links"         jsonschema:"description=Additional links excluding social profiles and the image; null when none"`
	OriginalKeys persona.SeedRecord `json:"original_keys" jsonschema:"description=The input object copied verbatim"`
}

const promptTemplate = `You are a data extractor. Given this JSON object:

%s

Perform the following tasks:

1. Extract the full, clean name from the "name" field (e.g., handle cases like "RohanM" -> "Rohan M", or "Eric Doty (Superpath)" -> "Eric Doty").
2. Extract all company names mentioned in the "intro" or anywhere in the input. Include all of them in a list.
3. Extract any additional links from the input (e.g. the company's link), but exclude the ones in the "social_profile" list and the "image".

Return a single minified JSON object only, no other captions at all, with exactly these four keys, "original_keys" being a verbatim copy of the input:

{"name":"<Cleaned Full Name>","company_names":[<companies>],"links":[<links>],"original_keys":<input object>}

If no companies or extra links are found, use null for those fields. The reply must conform to this JSON Schema:

%s`

// Prompt renders the extraction instruction for seed.
func Prompt(seed persona.SeedRecord) (string, error) {
	raw, err := json.Marshal(seed)
	if err != nil {
		return "", fmt.Errorf("encode seed: %w", err)
	}
	return fmt.Sprintf(promptTemplate, raw, llm.Schema(extractionSchema{})), nil
}

// Enrich derives an EnrichedRecord from seed. An unparsable transform reply
// yields a *persona.ExtractionError; no retry is attempted here.
func (e *Enricher) Enrich(ctx context.Context, seed persona.SeedRecord) (persona.EnrichedRecord, error) {
	prompt, err := Prompt(seed)
	if err != nil {
		return persona.EnrichedRecord{}, &persona.ExtractionError{Err: err}
	}

	raw, err := llm.Complete(ctx, e.transform, prompt)
	if err != nil {
		return persona.EnrichedRecord{}, &persona.ExtractionError{Err: fmt.Errorf("transform: %w", err)}
	}

	var ex extraction
	if err := llm.DecodeJSON(raw, &ex, e.lenient); err != nil {
		e.logger.WarnContext(ctx, "transform returned non-JSON content", "name", seed.Name, "error", err)
		return persona.EnrichedRecord{}, &persona.ExtractionError{Err: err, Raw: raw}
	}

	rec := persona.NewEnriched(seed, string(ex.Name), ex.CompanyNames, filterLinks(ex.Links, seed))
	e.logger.DebugContext(ctx, "enriched seed",
		"name", rec.Name(), "companies", rec.CompanyNames, "links", len(rec.ExtraLinks))
	return rec, nil
}

// filterLinks drops social profile links, image links, repeats and the seed
// image that the transform failed to exclude.
func filterLinks(links []string, seed persona.SeedRecord) []string {
	out := make([]string, 0, len(links))
	seen := map[string]bool{htmlutil.NormalizeForDedup(seed.Image): true}
	for _, l := range links {
		l = strings.TrimSpace(l)
		key := htmlutil.NormalizeForDedup(l)
		if l == "" || seen[key] || htmlutil.IsSocialPlatformURL(l) || htmlutil.IsImageURL(l) {
			continue
		}
		seen[key] = true
		out = append(out, l)
	}
	return out
}

// NarrativeQueries lists the searches AugmentNarrative issues, in issue order:
// two phrasings per social profile link, then one per company.
func NarrativeQueries(rec persona.EnrichedRecord) []string {
	name := rec.Name()
	if name == "" {
		return nil
	}
	var queries []string
	for _, link := range rec.Original.SocialProfiles {
		if link = strings.TrimSpace(link); link == "" {
			continue
		}
		queries = append(queries,
			fmt.Sprintf("who is %s according to %s", name, link),
			fmt.Sprintf("what does %s do according to %s", name, link))
	}
	for _, company := range rec.CompanyNames {
		queries = append(queries, name+" "+company)
	}
	return queries
}

// AugmentNarrative returns a copy of rec whose Intro is the seed intro followed by
// one bullet per search result title. rec is not modified. A failed search is
// logged and contributes nothing.
func (e *Enricher) AugmentNarrative(ctx context.Context, rec persona.EnrichedRecord) persona.EnrichedRecord {
	if e.searcher == nil {
		return rec.WithNarrative(rec.Original.Intro)
	}

	seen := make(map[string]bool)
	var bullets []string
	for _, q := range NarrativeQueries(rec) {
		results, err := e.searcher.Search(ctx, q, TitlesPerQuery)
		if err != nil {
			e.logger.WarnContext(ctx, "narrative search failed", "query", q, "error", err)
			continue
		}
		for i, r := range results {
			if i == TitlesPerQuery {
				break
			}
			title := strings.TrimSpace(r.Title)
			if title == "" {
				continue
			}
			if e.dedupTitles {
				k := strings.ToLower(title)
				if seen[k] {
					continue
				}
				seen[k] = true
			}
			bullets = append(bullets, "- "+title)
		}
	}
	return rec.WithNarrative(Narrative(rec.Original.Intro, bullets))
}

// Narrative joins the seed intro and the bullet lines.
func Narrative(intro string, bullets []string) string {
	intro = strings.TrimSpace(intro)
	if len(bullets) == 0 {
		return intro
	}
	if intro == "" {
		return strings.Join(bullets, "\n")
	}
	return intro + "\n" + strings.Join(bullets, "\n")
}
