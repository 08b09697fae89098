package pattern

import "testing"

func TestWildcardMatching(t *testing.T) {
	cases := []struct {
		name    string
		pattern string
		url     string
		want    bool
	}{
		{"star spans path", "https://chat.zalo.me/*", "https://chat.zalo.me/chat", true},
		{"star spans nested path", "https://chat.zalo.me/*", "https://chat.zalo.me/a/b?c=d", true},
		{"anchored start", "https://chat.zalo.me/*", "http://chat.zalo.me/chat", false},
		{"different host", "https://chat.zalo.me/*", "https://mail.zalo.me/chat", false},
		{"question single char", "https://example.com/page?.html", "https://example.com/page1.html", true},
		{"question not two chars", "https://example.com/page?.html", "https://example.com/page12.html", false},
		{"dot is literal", "https://example.com/*", "https://exampleXcom/", false},
		{"exact match no wildcard", "https://example.com/login", "https://example.com/login", true},
		{"anchored end", "https://example.com/login", "https://example.com/login/extra", false},
	}
	for _, tc := range cases {
		m := Compile(tc.pattern)
		if got := m.Test(tc.url); got != tc.want {
			t.Fatalf("%s: Compile(%q).Test(%q) = %v, want %v", tc.name, tc.pattern, tc.url, got, tc.want)
		}
	}
}

func TestHostnameSymmetry(t *testing.T) {
	// A rule written either way matches both host variants.
	for _, p := range []string{"https://example.com/*", "https://www.example.com/*"} {
		m := Compile(p)
		for _, u := range []string{"https://example.com/path", "https://www.example.com/path"} {
			if !m.Test(u) {
				t.Fatalf("Compile(%q).Test(%q) = false, want true", p, u)
			}
		}
	}
}

func TestMalformedPatternFailsClosed(t *testing.T) {
	m := Compile("https://example.com/[unclosed")
	if m.Valid() {
		t.Fatalf("expected malformed pattern to be invalid")
	}
	if m.Test("https://example.com/[unclosed") {
		t.Fatalf("expected malformed pattern to never match")
	}
}

func TestMalformedURLNeverMatches(t *testing.T) {
	m := Compile("*")
	if m.Test("://not-a-url") {
		t.Fatalf("expected unparseable URL to never match")
	}
	if m.Test("relative/path") {
		t.Fatalf("expected URL without host to never match")
	}
}

func TestZeroMatcherNeverMatches(t *testing.T) {
	var m Matcher
	if m.Test("https://example.com/") {
		t.Fatalf("expected zero matcher to fail closed")
	}
}

func TestNormalizeHost(t *testing.T) {
	if got := NormalizeHost("WWW.Example.COM"); got != "example.com" {
		t.Fatalf("NormalizeHost = %q, want %q", got, "example.com")
	}
	if got := NormalizeHost("example.com"); got != "example.com" {
		t.Fatalf("NormalizeHost = %q, want %q", got, "example.com")
	}
}
