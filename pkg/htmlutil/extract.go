// Package htmlutil provides DOM queries and URL helpers for profile harvesting.
package htmlutil

import (
	"html"
	"regexp"
	"strings"
)

var (
	titlePattern   = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	ogTitlePattern = regexp.MustCompile(`(?i)<meta[^>]+property=["']og:title["'][^>]+content=["']([^"']+)["']`)
)

// Title returns the document <title> of raw HTML, falling back to og:title.
// It works on pages too broken for the DOM parser to be worth running.
func Title(htmlContent string) string {
	if m := titlePattern.FindStringSubmatch(htmlContent); len(m) > 1 {
		if t := CollapseSpace(html.UnescapeString(m[1])); t != "" {
			return t
		}
	}
	if m := ogTitlePattern.FindStringSubmatch(htmlContent); len(m) > 1 {
		return CollapseSpace(html.UnescapeString(m[1]))
	}
	return ""
}

// CollapseSpace trims s and folds runs of whitespace into one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
