// Package linkedin holds the identity-profile rules for LinkedIn: which URLs are
// member profiles, how to canonicalise them, and how to parse a public profile page.
package linkedin

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/codeGROOVE-dev/personamatch/pkg/htmlutil"
)

// Domain is the identity-profile host.
const Domain = "linkedin.com"

// SiteRestriction limits a search to member profiles.
const SiteRestriction = "site:linkedin.com/in/"

// organizationPaths mark pages that belong to something other than a member.
var organizationPaths = []string{
	"/company/", "/school/", "/showcase/", "/jobs/", "/posts/", "/pulse/", "/groups/", "/events/",
}

var profilePath = regexp.MustCompile(`/in/([^/?#]+)`)

// Match reports whether the URL sits under a LinkedIn /in/ path.
func Match(urlStr string) bool {
	return strings.Contains(strings.ToLower(urlStr), "linkedin.com/in/")
}

// IsIdentityHost reports whether u is served from a LinkedIn host (any country subdomain).
func IsIdentityHost(u string) bool {
	host := htmlutil.Host(u)
	return host == Domain || strings.HasSuffix(host, "."+Domain)
}

// IsOrganizationURL reports whether u points at a company, school or other non-member page.
func IsOrganizationURL(u string) bool {
	lower := strings.ToLower(u)
	for _, p := range organizationPaths {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// IsProfileURL reports whether u is a member profile: linkedin.com/in/<handle>,
// not a bare /in/ listing and not an organization page.
func IsProfileURL(u string) bool {
	if !Match(u) || IsOrganizationURL(u) {
		return false
	}
	lower := strings.ToLower(StripQuery(u))
	if strings.HasSuffix(lower, "/in/") {
		return false
	}
	return PublicID(u) != ""
}

// StripQuery removes the query string and fragment.
func StripQuery(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}

// Canonical strips the query and reduces profile sub-pages
// (/in/x/details/experience, /in/x/recent-activity) to /in/x.
func Canonical(u string) string {
	u = StripQuery(strings.TrimSpace(u))
	loc := profilePath.FindStringIndex(u)
	if loc == nil {
		return u
	}
	return u[:loc[1]]
}

// PublicID returns the profile handle, URL-decoded.
func PublicID(urlStr string) string {
	m := profilePath.FindStringSubmatch(urlStr)
	if len(m) < 2 {
		return ""
	}
	slug := m[1]
	if strings.Contains(slug, "%") {
		if decoded, err := url.PathUnescape(slug); err == nil {
			return decoded
		}
	}
	return slug
}
