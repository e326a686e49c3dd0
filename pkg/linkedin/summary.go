package linkedin

import (
	"strings"

	"github.com/codeGROOVE-dev/personamatch/pkg/persona"
)

// Summarize merges a derived identity summary into rec: first/last name, distinct
// employers in first-seen order, and the current title and company. Values parsed
// from the document are never overwritten.
func Summarize(rec persona.CandidateRecord, ldEmployers []string) persona.CandidateRecord {
	first, last := SplitName(rec.Name)
	if rec.FirstName == "" {
		rec.FirstName = first
	}
	if rec.LastName == "" {
		rec.LastName = last
	}

	if len(rec.Workspaces) == 0 {
		seen := make(map[string]bool)
		add := func(name string) {
			k := strings.ToLower(strings.TrimSpace(name))
			if k == "" || seen[k] {
				return
			}
			seen[k] = true
			rec.Workspaces = append(rec.Workspaces, strings.TrimSpace(name))
		}
		for _, e := range rec.Experience {
			add(e.Company)
		}
		if len(rec.Workspaces) == 0 {
			for _, name := range ldEmployers {
				add(name)
			}
		}
	}

	if len(rec.Experience) > 0 {
		if rec.CurrentTitle == "" {
			rec.CurrentTitle = rec.Experience[0].Title
		}
		if rec.CurrentCompany == "" {
			rec.CurrentCompany = rec.Experience[0].Company
		}
	}
	if rec.CurrentCompany == "" {
		rec.CurrentCompany = parseCompanyFromHeadline(rec.Headline)
	}
	if rec.CurrentCompany == "" && len(rec.Workspaces) > 0 {
		rec.CurrentCompany = rec.Workspaces[0]
	}
	return rec
}

// SplitName splits a full name on the first space.
func SplitName(name string) (first, last string) {
	first, last, _ = strings.Cut(strings.Join(strings.Fields(name), " "), " ")
	return first, last
}

func parseCompanyFromHeadline(headline string) string {
	var company string

	// "Position at Company", "Position @ Company", "Engineering @Akuity"
	if idx := strings.Index(headline, " at "); idx != -1 {
		company = headline[idx+4:]
	} else if idx := strings.Index(headline, " @ "); idx != -1 {
		company = headline[idx+3:]
	} else if idx := strings.Index(headline, "@"); idx != -1 {
		company = headline[idx+1:]
	} else {
		// Comma lists like "P2P, Rust, FP" are skills, not "Title, Company".
		return ""
	}

	company = strings.TrimSpace(company)
	if idx := strings.IndexAny(company, ",;|"); idx != -1 {
		company = strings.TrimSpace(company[:idx])
	}
	return company
}
