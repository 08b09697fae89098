package rules

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMergeCollapsesDuplicates(t *testing.T) {
	list := []Rule{
		{URLPattern: "https://a.com/*", Selectors: []string{".x", ".y"}, Enabled: false, Origin: OriginUser},
		{URLPattern: "https://b.com/*", Selectors: []string{".z"}, Enabled: true, Origin: OriginUser},
		// Duplicate of the first: same pattern, same selector set in a
		// different order.
		{URLPattern: "https://a.com/*", Selectors: []string{".y", ".x"}, Enabled: true, Origin: OriginDefault},
	}
	merged := Merge(list)
	if len(merged) != 2 {
		t.Fatalf("expected 2 rules after merge, got %d", len(merged))
	}
	if merged[0].URLPattern != "https://a.com/*" {
		t.Fatalf("expected first occurrence to keep its position, got %q", merged[0].URLPattern)
	}
	if !merged[0].Enabled {
		t.Fatalf("expected merged rule to be enabled when any duplicate was")
	}
	if merged[0].Origin != OriginDefault {
		t.Fatalf("expected default origin to win the merge, got %q", merged[0].Origin)
	}
}

func TestSelectFiltersByURL(t *testing.T) {
	list := []Rule{
		{URLPattern: "https://chat.zalo.me/*", Selectors: []string{".message-text"}, Enabled: true},
		{URLPattern: "https://other.example/*", Selectors: []string{".secret"}, Enabled: true},
		{URLPattern: "https://chat.zalo.me/*", Selectors: []string{".avatar"}, Enabled: false},
	}
	regions := []Region{
		{URLPattern: "https://chat.zalo.me/*", X: 10, Y: 20, Width: 100, Height: 50},
		{URLPattern: "https://other.example/*", X: 0, Y: 0, Width: 5, Height: 5},
	}
	ws := Select(list, regions, "https://chat.zalo.me/chat", DefaultSiteSettings())
	wantRules := []Rule{list[0]}
	if diff := cmp.Diff(wantRules, ws.Rules); diff != "" {
		t.Fatalf("unexpected rule selection (-want +got):\n%s", diff)
	}
	wantRegions := []Region{regions[0]}
	if diff := cmp.Diff(wantRegions, ws.Regions); diff != "" {
		t.Fatalf("unexpected region selection (-want +got):\n%s", diff)
	}
}

func TestSelectExcludesUnusableRules(t *testing.T) {
	list := []Rule{
		{URLPattern: "https://a.com/*", Selectors: nil, Enabled: true},
		{URLPattern: "https://a.com/*", Selectors: []string{""}, Enabled: true},
		{URLPattern: "https://a.com/*", Selectors: []string{".ok", "  "}, Enabled: true},
		{URLPattern: "https://a.com/[bad", Selectors: []string{".ok"}, Enabled: true},
	}
	ws := Select(list, nil, "https://a.com/page", DefaultSiteSettings())
	if len(ws.Rules) != 0 {
		t.Fatalf("expected all unusable rules excluded, got %d", len(ws.Rules))
	}
}

func TestSelectHonorsDisabledGroups(t *testing.T) {
	list := []Rule{
		{URLPattern: "https://a.com/*", Selectors: []string{".x"}, Enabled: true},
	}
	site := DefaultSiteSettings()
	site.DisabledGroups = map[string]bool{"https://a.com/*": true}
	ws := Select(list, nil, "https://a.com/page", site)
	if len(ws.Rules) != 0 {
		t.Fatalf("expected rule group toggled off for the site to be excluded")
	}
}

func TestSelectPreservesOrder(t *testing.T) {
	list := []Rule{
		{URLPattern: "https://a.com/*", Selectors: []string{".first"}, Enabled: true},
		{URLPattern: "https://a.com/*", Selectors: []string{".second"}, Enabled: true},
		{URLPattern: "https://a.com/*", Selectors: []string{".third"}, Enabled: true},
	}
	ws := Select(list, nil, "https://a.com/", DefaultSiteSettings())
	if len(ws.Rules) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(ws.Rules))
	}
	for i, want := range []string{".first", ".second", ".third"} {
		if ws.Rules[i].Selectors[0] != want {
			t.Fatalf("rule %d out of order: got %q, want %q", i, ws.Rules[i].Selectors[0], want)
		}
	}
}

func TestSettingsFor(t *testing.T) {
	settings := map[string]SiteSettings{
		"example.com": {BlurIntensity: 50, HoverToUnblur: false, Enabled: true},
	}
	got := SettingsFor(settings, "www.example.com")
	if got.BlurIntensity != MaxBlurIntensity {
		t.Fatalf("expected intensity clamped to %d, got %d", MaxBlurIntensity, got.BlurIntensity)
	}
	if got.HoverToUnblur {
		t.Fatalf("expected stored hoverToUnblur to apply to the www variant")
	}
	fallback := SettingsFor(settings, "unknown.example")
	if diff := cmp.Diff(DefaultSiteSettings(), fallback); diff != "" {
		t.Fatalf("unexpected fallback settings (-want +got):\n%s", diff)
	}
}
