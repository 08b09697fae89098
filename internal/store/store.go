// Package store persists the rules file and watches it for edits.
package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/h-vien/hidey/internal/config"
	"github.com/h-vien/hidey/internal/rules"
	"github.com/h-vien/hidey/internal/util"
)

// debounceWindow coalesces bursts of filesystem events from editors that
// write files in several steps.
const debounceWindow = 250 * time.Millisecond

// Store owns a rules file on disk. Mutating methods perform a serialized
// read-modify-write cycle so concurrent callers cannot lose updates.
type Store struct {
	path string
	log  *util.Logger

	mu sync.Mutex
}

func New(path string, logger *util.Logger) *Store {
	return &Store{path: path, log: logger}
}

// Path returns the rules file location.
func (s *Store) Path() string { return s.path }

// Load reads and validates the rules file.
func (s *Store) Load() (config.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return config.Load(s.path)
}

// Save replaces the rules file.
func (s *Store) Save(cfg config.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return config.Save(s.path, cfg)
}

// AddRule appends a user rule, deduplicating by rule identity.
func (s *Store) AddRule(r rules.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, err := config.Load(s.path)
	if err != nil {
		return err
	}
	cfg.Rules = rules.Merge(append(cfg.Rules, r))
	return config.Save(s.path, cfg)
}

// AddRegion appends a region. Identical regions may repeat; a region's
// identity is its position.
func (s *Store) AddRegion(region rules.Region) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, err := config.Load(s.path)
	if err != nil {
		return err
	}
	cfg.Regions = append(cfg.Regions, region)
	return config.Save(s.path, cfg)
}

// DeleteRegion removes the first stored region equal to the given one.
// Deleting a region that is not stored is a no-op.
func (s *Store) DeleteRegion(region rules.Region) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, err := config.Load(s.path)
	if err != nil {
		return err
	}
	for i, g := range cfg.Regions {
		if g == region {
			cfg.Regions = append(cfg.Regions[:i], cfg.Regions[i+1:]...)
			return config.Save(s.path, cfg)
		}
	}
	return nil
}

// RemoveSelector strips a selector from every rule scoped to the URL
// pattern. Rules left with no selectors are dropped entirely.
func (s *Store) RemoveSelector(urlPattern, selector string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, err := config.Load(s.path)
	if err != nil {
		return err
	}
	changed := false
	kept := cfg.Rules[:0]
	for _, r := range cfg.Rules {
		if r.URLPattern == urlPattern {
			selectors := r.Selectors[:0]
			for _, sel := range r.Selectors {
				if sel == selector {
					changed = true
					continue
				}
				selectors = append(selectors, sel)
			}
			r.Selectors = selectors
			if len(r.Selectors) == 0 {
				continue
			}
		}
		kept = append(kept, r)
	}
	cfg.Rules = kept
	if !changed {
		return nil
	}
	return config.Save(s.path, cfg)
}

// Watch blocks until the context is done, invoking onChange with a freshly
// loaded config each time the rules file settles after an edit. Invalid
// intermediate states are logged and skipped; the previous config stays
// active.
func (s *Store) Watch(ctx context.Context, onChange func(config.Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory rather than the file: editors commonly replace
	// the file, which would drop a file-level watch.
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(s.path)

	var debounce *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if debounce != nil {
				if !debounce.Stop() {
					<-fire
				}
			}
			debounce = time.NewTimer(debounceWindow)
			fire = debounce.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warnf("rules watcher: %v", err)
		case <-fire:
			debounce = nil
			fire = nil
			cfg, err := s.Load()
			if err != nil {
				s.log.Warnf("rules reload skipped: %v", err)
				continue
			}
			s.log.Infof("rules file reloaded: %d rules, %d regions", len(cfg.Rules), len(cfg.Regions))
			onChange(cfg)
		}
	}
}
