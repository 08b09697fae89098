package metrics

import (
	"testing"
	"time"
)

func TestCollectorCounters(t *testing.T) {
	c := NewCollector()
	at := time.Unix(1700000000, 0)
	c.RecordPass(at)
	c.RecordPass(at.Add(time.Second))
	c.AddRedacted(3)
	c.AddRestored(1)
	c.RecordSkippedSelector()
	c.RecordSkippedPattern()
	c.SetOverlays(2, 1)

	got := c.Snapshot()
	if got.ReconcilePasses != 2 {
		t.Fatalf("passes = %d, want 2", got.ReconcilePasses)
	}
	if got.ElementsRedacted != 3 || got.ElementsRestored != 1 {
		t.Fatalf("element counters = %d/%d, want 3/1", got.ElementsRedacted, got.ElementsRestored)
	}
	if got.SkippedSelectors != 1 || got.SkippedPatterns != 1 {
		t.Fatalf("skip counters = %d/%d, want 1/1", got.SkippedSelectors, got.SkippedPatterns)
	}
	if got.OverlaysActive != 2 || got.OrphanOverlays != 1 {
		t.Fatalf("overlay gauges = %d/%d, want 2/1", got.OverlaysActive, got.OrphanOverlays)
	}
	if !got.LastReconcile.Equal(at.Add(time.Second)) {
		t.Fatalf("last reconcile = %v", got.LastReconcile)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.RecordPass(time.Now())
	c.AddRedacted(1)
	c.AddRestored(1)
	c.RecordSkippedSelector()
	c.RecordSkippedPattern()
	c.SetOverlays(1, 1)
	if got := c.Snapshot(); got != (Snapshot{}) {
		t.Fatalf("nil collector returned %+v", got)
	}
}
