// Package config loads and saves the YAML rules file.
package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/h-vien/hidey/internal/pattern"
	"github.com/h-vien/hidey/internal/rules"
)

// Config is the validated runtime form of the rules file.
type Config struct {
	GlobalEnabled bool
	Rules         []rules.Rule
	Regions       []rules.Region
	Sites         map[string]rules.SiteSettings
}

// file mirrors the YAML schema. Booleans that default to true are pointers
// so an omitted key is distinguishable from an explicit false.
type file struct {
	GlobalEnabled *bool               `yaml:"globalEnabled"`
	Rules         []fileRule          `yaml:"rules"`
	Regions       []fileRegion        `yaml:"regions"`
	Sites         map[string]fileSite `yaml:"sites"`
}

type fileRule struct {
	URL       string   `yaml:"url"`
	Selectors []string `yaml:"selectors"`
	Enabled   *bool    `yaml:"enabled"`
	Origin    string   `yaml:"origin"`
}

type fileRegion struct {
	URL       string  `yaml:"url"`
	X         float64 `yaml:"x"`
	Y         float64 `yaml:"y"`
	Width     float64 `yaml:"width"`
	Height    float64 `yaml:"height"`
	Container string  `yaml:"container,omitempty"`
}

type fileSite struct {
	BlurIntensity  *int     `yaml:"blurIntensity"`
	HoverToUnblur  *bool    `yaml:"hoverToUnblur"`
	Enabled        *bool    `yaml:"enabled"`
	DisabledGroups []string `yaml:"disabledGroups,omitempty"`
}

// Load reads, parses, and validates a rules file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read rules file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates YAML rules data.
func Parse(data []byte) (Config, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	if err := f.validate(); err != nil {
		return Config{}, err
	}
	return f.toConfig(), nil
}

// Save writes a config back to disk in the file schema.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(fromConfig(cfg))
	if err != nil {
		return fmt.Errorf("encode rules file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write rules file: %w", err)
	}
	return nil
}

func (f *file) validate() error {
	for i, r := range f.Rules {
		if r.URL == "" {
			return fmt.Errorf("rules[%d]: url is required", i)
		}
		if r.Origin != "" && r.Origin != string(rules.OriginDefault) && r.Origin != string(rules.OriginUser) {
			return fmt.Errorf("rules[%d]: unknown origin %q", i, r.Origin)
		}
	}
	for i, g := range f.Regions {
		if g.URL == "" {
			return fmt.Errorf("regions[%d]: url is required", i)
		}
		if g.Width <= 0 || g.Height <= 0 {
			return fmt.Errorf("regions[%d]: width and height must be positive", i)
		}
	}
	return nil
}

func (f *file) toConfig() Config {
	cfg := Config{
		GlobalEnabled: boolOr(f.GlobalEnabled, true),
		Sites:         make(map[string]rules.SiteSettings, len(f.Sites)),
	}
	for _, fr := range f.Rules {
		origin := rules.Origin(fr.Origin)
		if origin == "" {
			origin = rules.OriginUser
		}
		cfg.Rules = append(cfg.Rules, rules.Rule{
			URLPattern: fr.URL,
			Selectors:  append([]string(nil), fr.Selectors...),
			Enabled:    boolOr(fr.Enabled, true),
			Origin:     origin,
		})
	}
	cfg.Rules = rules.Merge(cfg.Rules)
	for _, fg := range f.Regions {
		cfg.Regions = append(cfg.Regions, rules.Region{
			URLPattern:        fg.URL,
			X:                 fg.X,
			Y:                 fg.Y,
			Width:             fg.Width,
			Height:            fg.Height,
			ContainerSelector: fg.Container,
		})
	}
	for host, fs := range f.Sites {
		s := rules.DefaultSiteSettings()
		if fs.BlurIntensity != nil {
			s.BlurIntensity = rules.ClampIntensity(*fs.BlurIntensity)
		}
		s.HoverToUnblur = boolOr(fs.HoverToUnblur, s.HoverToUnblur)
		s.Enabled = boolOr(fs.Enabled, s.Enabled)
		if len(fs.DisabledGroups) > 0 {
			s.DisabledGroups = make(map[string]bool, len(fs.DisabledGroups))
			for _, g := range fs.DisabledGroups {
				s.DisabledGroups[g] = true
			}
		}
		// Settings are keyed by normalized hostname, so a www.-keyed file
		// entry lands on the same key lookups use.
		cfg.Sites[pattern.NormalizeHost(host)] = s
	}
	return cfg
}

func fromConfig(cfg Config) file {
	f := file{GlobalEnabled: &cfg.GlobalEnabled}
	for _, r := range cfg.Rules {
		enabled := r.Enabled
		f.Rules = append(f.Rules, fileRule{
			URL:       r.URLPattern,
			Selectors: append([]string(nil), r.Selectors...),
			Enabled:   &enabled,
			Origin:    string(r.Origin),
		})
	}
	for _, g := range cfg.Regions {
		f.Regions = append(f.Regions, fileRegion{
			URL:       g.URLPattern,
			X:         g.X,
			Y:         g.Y,
			Width:     g.Width,
			Height:    g.Height,
			Container: g.ContainerSelector,
		})
	}
	if len(cfg.Sites) > 0 {
		f.Sites = make(map[string]fileSite, len(cfg.Sites))
		for host, s := range cfg.Sites {
			intensity := s.BlurIntensity
			hover := s.HoverToUnblur
			enabled := s.Enabled
			fs := fileSite{
				BlurIntensity: &intensity,
				HoverToUnblur: &hover,
				Enabled:       &enabled,
			}
			for g := range s.DisabledGroups {
				fs.DisabledGroups = append(fs.DisabledGroups, g)
			}
			sort.Strings(fs.DisabledGroups)
			f.Sites[host] = fs
		}
	}
	return f
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
