// Package domains decides which URLs count as time-wasting sites. A URL is
// tracked when it contains one of the configured substrings, compared
// without regard to case.
package domains

import "strings"

// Default is the built-in list of tracked domain substrings.
var Default = []string{
	"youtube.com",
	"instagram.com",
	"twitter.com",
	"x.com",
	"tiktok.com",
	"reddit.com",
}

// Matcher decides whether a URL belongs to a tracked domain.
type Matcher struct {
	substrings []string
}

// NewMatcher creates a matcher for the given domain substrings. Entries are
// lower-cased and de-duplicated; blank entries are ignored.
func NewMatcher(list []string) *Matcher {
	seen := make(map[string]struct{}, len(list))
	substrings := make([]string, 0, len(list))
	for _, d := range list {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		substrings = append(substrings, d)
	}
	return &Matcher{substrings: substrings}
}

// Match returns the first tracked substring contained in url. The URL is
// lower-cased first, so "WWW.YouTube.COM" matches "youtube.com".
func (m *Matcher) Match(url string) (string, bool) {
	if url == "" {
		return "", false
	}
	lower := strings.ToLower(url)
	for _, d := range m.substrings {
		if strings.Contains(lower, d) {
			return d, true
		}
	}
	return "", false
}

// Tracked reports whether url contains any tracked substring.
func (m *Matcher) Tracked(url string) bool {
	_, ok := m.Match(url)
	return ok
}

// Domains returns a copy of the configured substrings.
func (m *Matcher) Domains() []string {
	out := make([]string, len(m.substrings))
	copy(out, m.substrings)
	return out
}
