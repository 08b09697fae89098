package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/h-vien/hidey/internal/rules"
)

const sampleYAML = `
globalEnabled: true
rules:
  - url: "*://chat.example.com/*"
    selectors: [".message-text", ".sender-name"]
    origin: default
  - url: "*://mail.example.com/*"
    selectors: [".subject"]
    enabled: false
regions:
  - url: "*://chat.example.com/*"
    x: 10
    y: 20
    width: 300
    height: 40
    container: ".sidebar"
sites:
  chat.example.com:
    blurIntensity: 12
    hoverToUnblur: false
  mail.example.com:
    enabled: false
    disabledGroups: ["*://mail.example.com/*"]
`

func TestParseDefaultsAndConversion(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !cfg.GlobalEnabled {
		t.Fatalf("expected global enabled")
	}

	wantRules := []rules.Rule{
		{
			URLPattern: "*://chat.example.com/*",
			Selectors:  []string{".message-text", ".sender-name"},
			Enabled:    true,
			Origin:     rules.OriginDefault,
		},
		{
			URLPattern: "*://mail.example.com/*",
			Selectors:  []string{".subject"},
			Enabled:    false,
			Origin:     rules.OriginUser,
		},
	}
	if diff := cmp.Diff(wantRules, cfg.Rules); diff != "" {
		t.Fatalf("rules mismatch (-want +got):\n%s", diff)
	}

	if len(cfg.Regions) != 1 || cfg.Regions[0].ContainerSelector != ".sidebar" {
		t.Fatalf("regions mismatch: %+v", cfg.Regions)
	}

	chat := cfg.Sites["chat.example.com"]
	if chat.BlurIntensity != 12 || chat.HoverToUnblur || !chat.Enabled {
		t.Fatalf("chat site settings mismatch: %+v", chat)
	}
	mail := cfg.Sites["mail.example.com"]
	if mail.Enabled || !mail.DisabledGroups["*://mail.example.com/*"] {
		t.Fatalf("mail site settings mismatch: %+v", mail)
	}
	if mail.BlurIntensity != rules.DefaultBlurIntensity || !mail.HoverToUnblur {
		t.Fatalf("expected omitted site keys to take defaults: %+v", mail)
	}
}

func TestParseNormalizesSiteHosts(t *testing.T) {
	cfg, err := Parse([]byte("sites:\n  www.chat.example.com:\n    enabled: false\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok := cfg.Sites["www.chat.example.com"]; ok {
		t.Fatalf("site key stored raw: %+v", cfg.Sites)
	}
	s, ok := cfg.Sites["chat.example.com"]
	if !ok || s.Enabled {
		t.Fatalf("www-keyed site entry not normalized: %+v", cfg.Sites)
	}
	// Both host variants resolve to the stored entry.
	for _, host := range []string{"chat.example.com", "www.chat.example.com"} {
		if got := rules.SettingsFor(cfg.Sites, host); got.Enabled {
			t.Fatalf("settings for %s ignored the site entry: %+v", host, got)
		}
	}
}

func TestParseClampsIntensity(t *testing.T) {
	cfg, err := Parse([]byte("sites:\n  a.com:\n    blurIntensity: 99\n  b.com:\n    blurIntensity: 0\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := cfg.Sites["a.com"].BlurIntensity; got != rules.MaxBlurIntensity {
		t.Fatalf("intensity 99 clamped to %d, want %d", got, rules.MaxBlurIntensity)
	}
	if got := cfg.Sites["b.com"].BlurIntensity; got != rules.MinBlurIntensity {
		t.Fatalf("intensity 0 clamped to %d, want %d", got, rules.MinBlurIntensity)
	}
}

func TestParseMergesDuplicateRules(t *testing.T) {
	cfg, err := Parse([]byte(`
rules:
  - url: "*://a.com/*"
    selectors: [".x", ".y"]
    enabled: false
  - url: "*://a.com/*"
    selectors: [".y", ".x"]
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cfg.Rules) != 1 {
		t.Fatalf("expected duplicates merged, got %d rules", len(cfg.Rules))
	}
	if !cfg.Rules[0].Enabled {
		t.Fatalf("expected merged rule enabled when any duplicate was")
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing rule url", "rules:\n  - selectors: [\".x\"]\n"},
		{"unknown origin", "rules:\n  - url: \"*://a.com/*\"\n    origin: wizard\n"},
		{"missing region url", "regions:\n  - x: 1\n    width: 10\n    height: 10\n"},
		{"zero region size", "regions:\n  - url: \"*://a.com/*\"\n    width: 0\n    height: 10\n"},
		{"bad yaml", "rules: [\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.yaml)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Fatalf("round trip mismatch (-saved +loaded):\n%s", diff)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
