package reddit

import (
	"net/url"
	"regexp"
	"strings"
)

// WebBase is the public site root used for canonical thread URLs.
const WebBase = "https://www.reddit.com"

// threadPattern matches absolute, scheme-less and path-only thread links.
var threadPattern = regexp.MustCompile(`(?i)(?:(?:(?:https?:)?//)?(?:[a-z]{1,4}\.)?reddit\.com)?/r/([a-z0-9_]{2,21})/comments/([a-z0-9]{2,12})\b`)

// ParseThread extracts the subreddit and thread id from any link that has
// the thread shape.
func ParseThread(raw string) (subreddit, id string, ok bool) {
	m := threadPattern.FindStringSubmatch(unescape(raw))
	if m == nil {
		return "", "", false
	}
	return m[1], strings.ToLower(m[2]), true
}

// ThreadURL builds the canonical absolute URL of a thread. Subreddit names
// and ids are case-insensitive, so both are lower-cased.
func ThreadURL(subreddit, id string) string {
	return WebBase + "/r/" + strings.ToLower(subreddit) + "/comments/" + strings.ToLower(id) + "/"
}

// CanonicalThreadURL rewrites raw into canonical form: absolute, on the www
// host, with slug, query and fragment removed.
func CanonicalThreadURL(raw string) (string, bool) {
	sub, id, ok := ParseThread(raw)
	if !ok {
		return "", false
	}
	return ThreadURL(sub, id), true
}

// ExtractThreadURLs finds every thread link in text and returns them
// canonicalized, deduplicated, in order of first appearance.
func ExtractThreadURLs(text string) []string {
	matches := threadPattern.FindAllStringSubmatch(unescape(text), -1)
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		u := ThreadURL(m[1], m[2])
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

func unescape(raw string) string {
	if !strings.Contains(raw, "%2F") && !strings.Contains(raw, "%2f") {
		return raw
	}
	if decoded, err := url.QueryUnescape(raw); err == nil {
		return decoded
	}
	return raw
}
