package engine

import (
	"golang.org/x/net/html"

	"github.com/h-vien/hidey/internal/bus"
	"github.com/h-vien/hidey/internal/dom"
)

// redactLocked moves an element into the redacted state: snapshot the
// inline filter, stamp the marker, apply the blur, and hook the pointer
// listeners. The marker goes on first so every later write is filtered as
// self-inflicted.
func (e *Engine) redactLocked(n *html.Node, rulePattern, selector string) {
	saved := e.doc.StyleProperty(n, filterProp)
	st := &elementState{
		node:        n,
		rulePattern: rulePattern,
		selector:    selector,
		savedFilter: saved,
		hadFilter:   saved != "",
	}
	e.doc.SetAttr(n, MarkerAttr, "true")
	e.setFilter(n, blurValue(e.site.BlurIntensity))
	st.listeners = []*dom.Listener{
		e.doc.AddListener(n, dom.PointerEnter, func(*dom.Event) { e.pointerEntered(n) }),
		e.doc.AddListener(n, dom.PointerLeave, func(*dom.Event) { e.pointerLeft(n) }),
		e.doc.AddListener(n, dom.Click, func(ev *dom.Event) { e.elementClicked(n, ev) }),
	}
	e.elements[n] = st
	e.metrics.AddRedacted(1)
}

// restoreElementLocked undoes a redaction completely. The inline filter is
// restored while the marker is still present, so the observer attributes
// the write to the engine, and only then is the marker removed.
func (e *Engine) restoreElementLocked(st *elementState) {
	if st.hadFilter {
		e.setFilter(st.node, st.savedFilter)
	} else {
		e.setFilter(st.node, "")
	}
	e.doc.RemoveAttr(st.node, MarkerAttr)
	e.dropExpectation(st.node)
	for _, l := range st.listeners {
		e.doc.RemoveListener(l)
	}
	delete(e.elements, st.node)
	e.metrics.AddRestored(1)
}

// assertElementLocked forces a tracked element's filter back to what the
// current settings call for. This is how intensity changes propagate and
// how page overwrites of the inline style get repaired.
func (e *Engine) assertElementLocked(st *elementState) {
	if st.hovered && !e.site.HoverToUnblur {
		st.hovered = false
	}
	want := blurValue(e.site.BlurIntensity)
	if st.hovered {
		want = st.savedFilter
	}
	if e.doc.StyleProperty(st.node, filterProp) != want {
		e.setFilter(st.node, want)
	}
}

// pointerEntered reveals a redacted element while hovered. The setting is
// read at event time, so toggling hover-to-unblur applies to the very next
// hover without a reconcile.
func (e *Engine) pointerEntered(n *html.Node) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.elements[n]
	if !ok || e.torn {
		return
	}
	st.hovered = true
	if !e.site.HoverToUnblur {
		return
	}
	if st.hadFilter {
		e.setFilter(n, st.savedFilter)
	} else {
		e.setFilter(n, "")
	}
}

// pointerLeft re-applies the blur at the intensity in effect now, which
// may differ from the intensity at reveal time.
func (e *Engine) pointerLeft(n *html.Node) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.elements[n]
	if !ok || e.torn {
		return
	}
	st.hovered = false
	e.setFilter(n, blurValue(e.site.BlurIntensity))
}

// elementClicked publishes an unblur request when delete mode is active.
// Outside delete mode clicks pass through untouched.
func (e *Engine) elementClicked(n *html.Node, ev *dom.Event) {
	e.mu.Lock()
	st, ok := e.elements[n]
	if !ok || !e.deleteMode {
		e.mu.Unlock()
		return
	}
	req := bus.UnblurRequest{URLPattern: st.rulePattern, Selector: st.selector}
	e.mu.Unlock()

	ev.StopPropagation()
	ev.PreventDefault()
	e.bus.Publish(bus.TopicUnblurRequest, req)
}
