// Package pattern compiles wildcard URL patterns into match predicates.
//
// Patterns use glob syntax: `*` matches any run of characters, `?` matches a
// single character, everything else is literal. Matches are anchored to the
// whole URL. Hostnames are compared www-insensitively in both directions, so
// a pattern written for example.com matches www.example.com and vice versa.
package pattern

import (
	"net/url"
	"strings"

	"github.com/gobwas/glob"
)

// Matcher is a compiled URL pattern. The zero value never matches.
type Matcher struct {
	raw string
	g   glob.Glob
}

// Compile translates a wildcard pattern into a Matcher. A malformed pattern
// yields a Matcher that fails closed: Test always returns false.
func Compile(p string) Matcher {
	normalized := normalizePattern(p)
	g, err := glob.Compile(normalized)
	if err != nil {
		return Matcher{raw: p}
	}
	return Matcher{raw: p, g: g}
}

// Valid reports whether the pattern compiled successfully.
func (m Matcher) Valid() bool {
	return m.g != nil
}

// Pattern returns the original pattern text.
func (m Matcher) Pattern() string {
	return m.raw
}

// Test reports whether the URL matches the pattern. Malformed patterns and
// unparseable URLs never match.
func (m Matcher) Test(rawURL string) bool {
	if m.g == nil {
		return false
	}
	candidate, ok := normalizeURL(rawURL)
	if !ok {
		return false
	}
	return m.g.Match(candidate)
}

// NormalizeHost lowercases a hostname and strips a leading "www." so that
// both variants of a site share rules and settings.
func NormalizeHost(host string) string {
	host = strings.ToLower(host)
	return strings.TrimPrefix(host, "www.")
}

// normalizePattern strips "www." from the pattern's authority segment and
// lowercases it, leaving the rest of the pattern untouched.
func normalizePattern(p string) string {
	prefix := ""
	rest := p
	if idx := strings.Index(p, "://"); idx >= 0 {
		prefix = p[:idx+3]
		rest = p[idx+3:]
	}
	authority := rest
	tail := ""
	if idx := strings.IndexAny(rest, "/?#"); idx >= 0 {
		authority = rest[:idx]
		tail = rest[idx:]
	}
	return prefix + NormalizeHost(authority) + tail
}

// normalizeURL rewrites the URL with a normalized hostname for matching.
func normalizeURL(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", false
	}
	host := NormalizeHost(u.Hostname())
	if port := u.Port(); port != "" {
		host += ":" + port
	}
	var b strings.Builder
	if u.Scheme != "" {
		b.WriteString(u.Scheme)
		b.WriteString("://")
	}
	b.WriteString(host)
	b.WriteString(u.EscapedPath())
	if u.RawQuery != "" {
		b.WriteString("?")
		b.WriteString(u.RawQuery)
	}
	return b.String(), true
}
