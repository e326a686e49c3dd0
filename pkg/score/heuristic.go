package score

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/codeGROOVE-dev/personamatch/pkg/persona"
)

// HeuristicJudge scores name, employer, location and bio agreement without a
// language model. It never fails.
type HeuristicJudge struct{}

// Judge implements Judge.
func (HeuristicJudge) Judge(_ context.Context, seed persona.EnrichedRecord, cand persona.CandidateRecord) (Verdict, error) {
	name := scoreName(seed.Name(), cand.Name)
	org := scoreOrganizationMatch(seed.CompanyNames, cand)
	loc := scoreLocation(timezoneCity(seed.Original.Timezone), candidateLocation(cand))
	bio := scoreBioOverlap(seed.Intro, cand.Headline+" "+cand.About)

	s := 0.5*name + 0.2*org + 0.15*loc + 0.15*bio
	reason := fmt.Sprintf("name %.2f, employer %.2f, location %.2f, bio %.2f", name, org, loc, bio)
	return normalize(Verdict{Score: s, Reason: reason}), nil
}

func scoreName(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}

	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	if a == b {
		return 1.0
	}

	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.7
	}

	wordsA := strings.Fields(a)
	wordsB := strings.Fields(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	var overlap int
	var firstNameMatch bool
	for i, wa := range wordsA {
		for j, wb := range wordsB {
			if wa == wb || strings.Contains(wa, wb) || strings.Contains(wb, wa) {
				overlap++
				if i == 0 && j == 0 {
					firstNameMatch = true
				}
				break
			}
		}
	}
	if overlap == 0 {
		return 0
	}

	score := float64(overlap) / float64(max(len(wordsA), len(wordsB)))
	// A shared surname alone is weak evidence.
	if !firstNameMatch && overlap == 1 {
		score *= 0.2
	}
	return score
}

func scoreLocation(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}

	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	if a == b {
		return 1.0
	}

	// "new york" vs "new york, ny"
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.8
	}

	split := func(r rune) bool { return r == ',' || r == ' ' }
	wordsA := strings.FieldsFunc(a, split)
	wordsB := strings.FieldsFunc(b, split)

	var overlap int
	for _, wa := range wordsA {
		if len(wa) < 2 {
			continue
		}
		if slices.Contains(wordsB, wa) {
			overlap++
		}
	}
	if overlap == 0 {
		return 0
	}
	return float64(overlap) / float64(max(len(wordsA), len(wordsB)))
}

func scoreBioOverlap(a, b string) float64 {
	wordsA := significantWords(a)
	wordsB := significantWords(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	var overlap int
	for _, wa := range wordsA {
		if slices.Contains(wordsB, wa) {
			overlap++
		}
	}
	if overlap < 2 {
		return 0
	}
	return float64(overlap) / float64(max(len(wordsA), len(wordsB)))
}

var commonWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "as": true, "is": true, "was": true,
	"are": true, "been": true, "be": true, "have": true, "has": true, "had": true,
	"do": true, "does": true, "did": true, "will": true, "would": true, "could": true,
	"should": true, "may": true, "might": true, "must": true, "can": true,
	"i": true, "me": true, "my": true, "we": true, "our": true, "you": true, "your": true,
	"he": true, "she": true, "it": true, "they": true, "them": true, "their": true,
	"this": true, "that": true, "these": true, "those": true,
}

// significantWords lowercases s and drops punctuation, short words and stop words.
func significantWords(s string) []string {
	var words []string
	for w := range strings.FieldsSeq(strings.ToLower(s)) {
		w = strings.Trim(w, ".,!?;:\"'()[]{}|/\\@-")
		if len(w) >= 3 && !commonWords[w] && !slices.Contains(words, w) {
			words = append(words, w)
		}
	}
	return words
}

// scoreOrganizationMatch returns 1 when any seed company appears among the
// candidate's employers or in its headline.
func scoreOrganizationMatch(companies []string, cand persona.CandidateRecord) float64 {
	haystack := strings.ToLower(strings.Join(append([]string{cand.Headline, cand.CurrentCompany}, cand.Workspaces...), " | "))
	for _, c := range companies {
		c = strings.ToLower(strings.TrimSpace(c))
		if len(c) >= 2 && strings.Contains(haystack, c) {
			return 1
		}
	}
	return 0
}

// timezoneCity turns "America/New_York" into "new york".
func timezoneCity(tz string) string {
	if i := strings.LastIndexByte(tz, '/'); i >= 0 {
		tz = tz[i+1:]
	}
	return strings.ReplaceAll(tz, "_", " ")
}

func candidateLocation(cand persona.CandidateRecord) string {
	for _, e := range cand.Experience {
		if e.Location != "" {
			return e.Location
		}
	}
	return ""
}
