package enrich

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/codeGROOVE-dev/personamatch/pkg/llm"
	"github.com/codeGROOVE-dev/personamatch/pkg/persona"
	"github.com/codeGROOVE-dev/personamatch/pkg/search"
)

var quiet = WithLogger(slog.New(slog.DiscardHandler))

func ericSeed() persona.SeedRecord {
	return persona.SeedRecord{
		Name:           "Eric Doty (Superpath)",
		Image:          "https://avatars.slack-edge.com/eric.jpg",
		Intro:          "Content @ Dock",
		Timezone:       "America/Los_Angeles",
		SocialProfiles: []string{"https://twitter.com/ericdoty"},
	}
}

func reply(s string) llm.Chatter {
	return llm.ChatFunc(func(context.Context, []llm.Message) (string, error) { return s, nil })
}

func TestEnrich(t *testing.T) {
	seed := ericSeed()
	var prompt string
	transform := llm.ChatFunc(func(_ context.Context, msgs []llm.Message) (string, error) {
		prompt = msgs[0].Content
		return `{"name":"Eric Doty","company_names":["Dock","Superpath"],` +
			`"links":["https://dock.us","https://twitter.com/ericdoty","https://avatars.slack-edge.com/eric.jpg"],` +
			`"original_keys":{"name":"Eric Doty (Superpath)"}}`, nil
	})

	got, err := New(transform, nil, quiet).Enrich(context.Background(), seed)
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	want := persona.EnrichedRecord{
		CleanedName:  "Eric Doty",
		CompanyNames: []string{"Dock", "Superpath"},
		ExtraLinks:   []string{"https://dock.us"},
		Intro:        "Content @ Dock",
		Original:     seed,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Enrich() mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(prompt, `"name":"Eric Doty (Superpath)"`) {
		t.Errorf("prompt does not embed the seed: %s", prompt)
	}
	for _, key := range []string{"company_names", "original_keys"} {
		if !strings.Contains(prompt, key) {
			t.Errorf("prompt missing %q", key)
		}
	}
}

func TestEnrichNullFields(t *testing.T) {
	got, err := New(reply(`{"name":"","company_names":null,"links":null,"original_keys":{}}`), nil, quiet).
		Enrich(context.Background(), persona.SeedRecord{Name: "RohanM"})
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if got.Name() != "RohanM" {
		t.Errorf("Name() = %q, want seed fallback", got.Name())
	}
	if len(got.CompanyNames) != 0 || len(got.ExtraLinks) != 0 {
		t.Errorf("expected no companies or links, got %+v", got)
	}
}

func TestEnrichLooseFieldTypes(t *testing.T) {
	tests := []struct {
		name          string
		reply         string
		wantName      string
		wantCompanies []string
	}{
		{
			"bare string company",
			`{"name":"Eric Doty","company_names":"Dock","links":null,"original_keys":{}}`,
			"Eric Doty", []string{"Dock"},
		},
		{
			"non-string list entries",
			`{"name":"Eric Doty","company_names":["Dock",7,null,{"x":1}],"links":[true],"original_keys":{}}`,
			"Eric Doty", []string{"Dock"},
		},
		{
			"numeric name and object companies",
			`{"name":42,"company_names":{"a":"Dock"},"links":"","original_keys":null}`,
			"Eric Doty (Superpath)", nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New(reply(tt.reply), nil, quiet).Enrich(context.Background(), ericSeed())
			if err != nil {
				t.Fatalf("Enrich() error = %v", err)
			}
			if got.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", got.Name(), tt.wantName)
			}
			if len(got.CompanyNames) != len(tt.wantCompanies) {
				t.Fatalf("CompanyNames = %v, want %v", got.CompanyNames, tt.wantCompanies)
			}
			for i := range tt.wantCompanies {
				if got.CompanyNames[i] != tt.wantCompanies[i] {
					t.Errorf("CompanyNames = %v, want %v", got.CompanyNames, tt.wantCompanies)
				}
			}
			if len(got.ExtraLinks) != 0 {
				t.Errorf("ExtraLinks = %v, want none", got.ExtraLinks)
			}
		})
	}
}

func TestEnrichExtractionError(t *testing.T) {
	tests := []struct {
		name      string
		transform llm.Chatter
		wantRaw   string
	}{
		{"non-json", reply("Sure! Here is the JSON you asked for"), "Sure! Here is the JSON you asked for"},
		{"transform failure", llm.ChatFunc(func(context.Context, []llm.Message) (string, error) {
			return "", errors.New("rate limited")
		}), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.transform, nil, quiet).Enrich(context.Background(), ericSeed())
			if !errors.Is(err, persona.ErrExtraction) {
				t.Fatalf("Enrich() error = %v, want ErrExtraction", err)
			}
			var ee *persona.ExtractionError
			if !errors.As(err, &ee) {
				t.Fatalf("Enrich() error = %T, want *persona.ExtractionError", err)
			}
			if ee.Raw != tt.wantRaw {
				t.Errorf("ExtractionError.Raw = %q, want %q", ee.Raw, tt.wantRaw)
			}
		})
	}
}

func TestEnrichLenientAcceptsFences(t *testing.T) {
	transform := reply("```json\n{\"name\":\"Eric Doty\",\"company_names\":[\"Dock\"],\"links\":null,\"original_keys\":{}}\n```")
	got, err := New(transform, nil, quiet, WithLenientJSON(true)).Enrich(context.Background(), ericSeed())
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if got.CleanedName != "Eric Doty" {
		t.Errorf("CleanedName = %q", got.CleanedName)
	}
}

func TestNarrativeQueries(t *testing.T) {
	rec := persona.NewEnriched(ericSeed(), "Eric Doty", []string{"Dock", "Superpath"}, nil)
	want := []string{
		"who is Eric Doty according to https://twitter.com/ericdoty",
		"what does Eric Doty do according to https://twitter.com/ericdoty",
		"Eric Doty Dock",
		"Eric Doty Superpath",
	}
	if diff := cmp.Diff(want, NarrativeQueries(rec)); diff != "" {
		t.Errorf("NarrativeQueries() mismatch (-want +got):\n%s", diff)
	}
	if got := NarrativeQueries(persona.EnrichedRecord{}); got != nil {
		t.Errorf("NarrativeQueries(no name) = %v, want nil", got)
	}
}

func fakeSearch(byQuery map[string][]string, failing string) search.Searcher {
	return search.Func(func(_ context.Context, q string, _ int) ([]search.Result, error) {
		if q == failing {
			return nil, errors.New("provider down")
		}
		var out []search.Result
		for _, title := range byQuery[q] {
			out = append(out, search.Result{Title: title})
		}
		return out, nil
	})
}

func TestAugmentNarrative(t *testing.T) {
	rec := persona.NewEnriched(ericSeed(), "Eric Doty", []string{"Dock"}, nil)
	s := fakeSearch(map[string][]string{
		"who is Eric Doty according to https://twitter.com/ericdoty":       {"Eric Doty (@ericdoty) / X", "Eric Doty - Dock", "three", "four"},
		"what does Eric Doty do according to https://twitter.com/ericdoty": {"Eric Doty - Dock"},
	}, "Eric Doty Dock")

	got := New(reply(""), s, quiet).AugmentNarrative(context.Background(), rec)
	want := "Content @ Dock\n- Eric Doty (@ericdoty) / X\n- Eric Doty - Dock\n- three\n- Eric Doty - Dock"
	if got.Intro != want {
		t.Errorf("Intro = %q, want %q", got.Intro, want)
	}
	if rec.Intro != "Content @ Dock" {
		t.Errorf("input record was modified: %q", rec.Intro)
	}
	if diff := cmp.Diff(rec.Original, got.Original); diff != "" {
		t.Errorf("Original changed (-want +got):\n%s", diff)
	}
}

func TestAugmentNarrativeDedup(t *testing.T) {
	rec := persona.NewEnriched(ericSeed(), "Eric Doty", nil, nil)
	s := fakeSearch(map[string][]string{
		"who is Eric Doty according to https://twitter.com/ericdoty":       {"Eric Doty - Dock"},
		"what does Eric Doty do according to https://twitter.com/ericdoty": {"eric doty - dock", "Other"},
	}, "")

	got := New(reply(""), s, quiet, WithDedupTitles(true)).AugmentNarrative(context.Background(), rec)
	if want := "Content @ Dock\n- Eric Doty - Dock\n- Other"; got.Intro != want {
		t.Errorf("Intro = %q, want %q", got.Intro, want)
	}
}

func TestNarrative(t *testing.T) {
	tests := []struct {
		intro   string
		bullets []string
		want    string
	}{
		{"Content @ Dock", nil, "Content @ Dock"},
		{"", []string{"- a"}, "- a"},
		{" x ", []string{"- a", "- b"}, "x\n- a\n- b"},
	}
	for _, tt := range tests {
		if got := Narrative(tt.intro, tt.bullets); got != tt.want {
			t.Errorf("Narrative(%q, %v) = %q, want %q", tt.intro, tt.bullets, got, tt.want)
		}
	}
}

func TestFilterLinks(t *testing.T) {
	seed := persona.SeedRecord{Image: "https://cdn.example.com/me.jpg"}
	got := filterLinks([]string{
		" https://dock.us ",
		"https://www.dock.us/",
		"http://cdn.example.com/me.jpg",
		"https://example.com/banner.PNG",
		"https://github.com/ericdoty",
		"https://mastodon.example/@eric",
		"",
		"https://ericdoty.com/blog",
	}, seed)
	want := []string{"https://dock.us", "https://ericdoty.com/blog"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("filterLinks() mismatch (-want +got):\n%s", diff)
	}
}
