package htmlutil

import (
	"net/url"
	"path"
	"strings"
)

var socialPlatforms = []string{
	"twitter.com", "x.com", "linkedin.com", "instagram.com", "facebook.com",
	"youtube.com", "twitch.tv", "tiktok.com", "github.com", "vk.com",
	"bsky.app", "fosstodon.org", "hachyderm.io", "mastodon.social", "mastodon.online",
	"discord.com", "discordapp.com", "medium.com", "reddit.com", "substack.com",
	"weibo.com", "zhihu.com", "bilibili.com", "keybase.io", "t.me",
	"threads.net", "dribbble.com", "behance.net", "angel.co", "wellfound.com",
	"crunchbase.com", "calendly.com", "cal.com",
}

// IsSocialPlatformURL reports whether u points at a known social or profile platform.
func IsSocialPlatformURL(u string) bool {
	host := Host(u)
	if host == "" {
		return false
	}
	for _, p := range socialPlatforms {
		if host == p || strings.HasSuffix(host, "."+p) {
			return true
		}
	}
	// Mastodon-style /@username paths.
	return strings.Contains(u, "/@")
}

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".svg": true, ".bmp": true,
}

// IsImageURL reports whether u looks like a direct link to an image file.
func IsImageURL(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	return imageExts[strings.ToLower(path.Ext(parsed.Path))]
}

// Host returns the lower-cased host of u without a leading "www.", or "".
func Host(u string) string {
	if !strings.Contains(u, "://") {
		u = "https://" + u
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
}

// NormalizeForDedup reduces a URL to a scheme-less, lower-case form for equality checks.
func NormalizeForDedup(u string) string {
	u = strings.TrimSuffix(u, "/")
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	u = strings.TrimPrefix(u, "www.")
	return strings.ToLower(u)
}
