package engine

import (
	"time"

	"golang.org/x/net/html"
)

// pendingTarget is a node waiting for its redaction to be applied by the
// batch pacer.
type pendingTarget struct {
	node        *html.Node
	rulePattern string
	selector    string
}

type batchWork struct {
	timer Timer
	slice []pendingTarget
	gen   int
}

// scheduleBatchesLocked splits fresh matches into slices and spreads them
// across frames. Every slice is applied asynchronously, so a huge match
// set never stalls the pass that produced it. Slices carry the generation
// of their pass; a newer pass supersedes them wholesale.
func (e *Engine) scheduleBatchesLocked(fresh []pendingTarget) {
	if len(fresh) == 0 {
		return
	}
	gen := e.generation
	for i := 0; i*e.batchSize < len(fresh); i++ {
		start := i * e.batchSize
		end := start + e.batchSize
		if end > len(fresh) {
			end = len(fresh)
		}
		slice := fresh[start:end]
		delay := time.Duration(i) * e.frameInterval
		timer := e.clock.AfterFunc(delay, func() { e.applySlice(slice, gen) })
		e.pending = append(e.pending, batchWork{timer: timer, slice: slice, gen: gen})
	}
}

func (e *Engine) applySlice(slice []pendingTarget, gen int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.applySliceLocked(slice, gen)
}

// applySliceLocked redacts a slice's nodes, skipping anything that was
// redacted meanwhile, detached, or superseded by a newer pass.
func (e *Engine) applySliceLocked(slice []pendingTarget, gen int) {
	if e.torn || gen != e.generation {
		return
	}
	for _, p := range slice {
		if _, ok := e.elements[p.node]; ok {
			continue
		}
		if !e.doc.IsAttached(p.node) {
			continue
		}
		e.redactLocked(p.node, p.rulePattern, p.selector)
	}
}

func (e *Engine) cancelBatchesLocked() {
	for _, w := range e.pending {
		w.timer.Stop()
	}
	e.pending = nil
}

// Flush applies all pending batch slices immediately. One-shot callers use
// it to settle the document without waiting out the frame pacing.
func (e *Engine) Flush() {
	e.mu.Lock()
	defer e.mu.Unlock()
	work := e.pending
	e.pending = nil
	for _, w := range work {
		w.timer.Stop()
		e.applySliceLocked(w.slice, w.gen)
	}
}
