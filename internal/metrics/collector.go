// Package metrics collects in-memory counters for the redaction engine.
package metrics

import (
	"sync"
	"time"
)

// Collector accumulates engine activity counters. All methods are safe for
// concurrent use. A nil Collector discards everything.
type Collector struct {
	mu sync.Mutex

	reconcilePasses  int
	elementsRedacted int
	elementsRestored int
	skippedSelectors int
	skippedPatterns  int
	overlaysActive   int
	orphanOverlays   int
	lastReconcile    time.Time
}

// Snapshot is a point-in-time copy of the collector's counters.
type Snapshot struct {
	ReconcilePasses  int       `json:"reconcilePasses"`
	ElementsRedacted int       `json:"elementsRedacted"`
	ElementsRestored int       `json:"elementsRestored"`
	SkippedSelectors int       `json:"skippedSelectors"`
	SkippedPatterns  int       `json:"skippedPatterns"`
	OverlaysActive   int       `json:"overlaysActive"`
	OrphanOverlays   int       `json:"orphanOverlays"`
	LastReconcile    time.Time `json:"lastReconcile"`
}

func NewCollector() *Collector {
	return &Collector{}
}

// RecordPass notes a completed reconcile pass.
func (c *Collector) RecordPass(at time.Time) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reconcilePasses++
	c.lastReconcile = at
}

// AddRedacted counts newly redacted elements.
func (c *Collector) AddRedacted(n int) {
	if c == nil || n == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.elementsRedacted += n
}

// AddRestored counts elements returned to their original appearance.
func (c *Collector) AddRestored(n int) {
	if c == nil || n == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.elementsRestored += n
}

// RecordSkippedSelector counts a selector dropped because it failed to parse.
func (c *Collector) RecordSkippedSelector() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skippedSelectors++
}

// RecordSkippedPattern counts a URL pattern dropped because it failed to
// compile.
func (c *Collector) RecordSkippedPattern() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skippedPatterns++
}

// SetOverlays records the current overlay population. Orphans are overlays
// whose container selector no longer resolves.
func (c *Collector) SetOverlays(active, orphans int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.overlaysActive = active
	c.orphanOverlays = orphans
}

// Snapshot returns a copy of the current counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		ReconcilePasses:  c.reconcilePasses,
		ElementsRedacted: c.elementsRedacted,
		ElementsRestored: c.elementsRestored,
		SkippedSelectors: c.skippedSelectors,
		SkippedPatterns:  c.skippedPatterns,
		OverlaysActive:   c.overlaysActive,
		OrphanOverlays:   c.orphanOverlays,
		LastReconcile:    c.lastReconcile,
	}
}
