// Package rules defines the user-authored redaction records and selects the
// working set that applies to a page.
package rules

import (
	"sort"
	"strings"

	"github.com/h-vien/hidey/internal/pattern"
)

// Origin distinguishes built-in rules from user-authored ones so that
// deletion and restore logic never has to re-derive it.
type Origin string

const (
	OriginDefault Origin = "default"
	OriginUser    Origin = "user"
)

// Rule scopes an ordered list of CSS selectors to a URL pattern.
type Rule struct {
	URLPattern string
	Selectors  []string
	Enabled    bool
	Origin     Origin
}

// Identity returns the rule's identity key: the URL pattern plus the
// selector set, order-insensitive. Two rules with the same identity are
// duplicates and are merged rather than doubled.
func (r Rule) Identity() string {
	selectors := make([]string, 0, len(r.Selectors))
	for _, s := range r.Selectors {
		selectors = append(selectors, strings.TrimSpace(s))
	}
	sort.Strings(selectors)
	return r.URLPattern + "\x00" + strings.Join(selectors, "\x00")
}

// Region scopes a rectangular redaction area to a URL pattern. Coordinates
// are relative to the resolved container's top-left, or to the page root
// when no container resolves. A region's identity is its index in the
// region sequence.
type Region struct {
	URLPattern        string
	X                 float64
	Y                 float64
	Width             float64
	Height            float64
	ContainerSelector string
}

// Blur intensity bounds enforced on site settings.
const (
	MinBlurIntensity     = 2
	MaxBlurIntensity     = 20
	DefaultBlurIntensity = 8
)

// SiteSettings holds per-site behavior, keyed by normalized hostname.
type SiteSettings struct {
	BlurIntensity  int
	HoverToUnblur  bool
	Enabled        bool
	DisabledGroups map[string]bool
}

// DefaultSiteSettings returns the settings applied to a site the user has
// never configured.
func DefaultSiteSettings() SiteSettings {
	return SiteSettings{
		BlurIntensity: DefaultBlurIntensity,
		HoverToUnblur: true,
		Enabled:       true,
	}
}

// ClampIntensity forces a blur intensity into the supported range.
func ClampIntensity(v int) int {
	if v < MinBlurIntensity {
		return MinBlurIntensity
	}
	if v > MaxBlurIntensity {
		return MaxBlurIntensity
	}
	return v
}

// SettingsFor resolves the settings for a hostname, falling back to defaults.
// The host is normalized so example.com and www.example.com share settings.
func SettingsFor(settings map[string]SiteSettings, host string) SiteSettings {
	if s, ok := settings[pattern.NormalizeHost(host)]; ok {
		s.BlurIntensity = ClampIntensity(s.BlurIntensity)
		return s
	}
	return DefaultSiteSettings()
}

// Merge collapses duplicate rules (same identity) into one, preserving the
// position of the first occurrence. A merged rule is enabled if any of its
// duplicates was, and keeps the default origin if any duplicate carried it.
func Merge(list []Rule) []Rule {
	out := make([]Rule, 0, len(list))
	index := make(map[string]int, len(list))
	for _, r := range list {
		key := r.Identity()
		if i, ok := index[key]; ok {
			if r.Enabled {
				out[i].Enabled = true
			}
			if r.Origin == OriginDefault {
				out[i].Origin = OriginDefault
			}
			continue
		}
		index[key] = len(out)
		out = append(out, r)
	}
	return out
}

// WorkingSet is the subset of rules and regions active for one URL.
type WorkingSet struct {
	Rules   []Rule
	Regions []Region
}

// Select computes the working set for a URL, preserving the original
// relative order of rules and regions. Disabled rules, rules whose group is
// toggled off for the site, rules with no selectors or with an empty
// selector, and rules whose pattern fails to compile are all excluded
// entirely.
func Select(list []Rule, regions []Region, url string, site SiteSettings) WorkingSet {
	var ws WorkingSet
	for _, r := range list {
		if !r.Enabled || !usableSelectors(r.Selectors) {
			continue
		}
		if site.DisabledGroups[r.URLPattern] {
			continue
		}
		if pattern.Compile(r.URLPattern).Test(url) {
			ws.Rules = append(ws.Rules, r)
		}
	}
	for _, g := range regions {
		if pattern.Compile(g.URLPattern).Test(url) {
			ws.Regions = append(ws.Regions, g)
		}
	}
	return ws
}

// usableSelectors reports whether the rule carries matching work at all: a
// rule with zero selectors or any empty-string selector is excluded rather
// than treated as a no-op.
func usableSelectors(selectors []string) bool {
	if len(selectors) == 0 {
		return false
	}
	for _, s := range selectors {
		if strings.TrimSpace(s) == "" {
			return false
		}
	}
	return true
}
