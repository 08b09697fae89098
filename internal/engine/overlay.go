package engine

import (
	"strconv"

	"golang.org/x/net/html"

	"github.com/h-vien/hidey/internal/bus"
	"github.com/h-vien/hidey/internal/dom"
	"github.com/h-vien/hidey/internal/layout"
	"github.com/h-vien/hidey/internal/rules"
)

// overlayState tracks one region's overlay node. Overlays are keyed by
// region position in the working set and reused across passes; only a
// changed region definition or a removed region touches the node itself.
type overlayState struct {
	region    rules.Region
	node      *html.Node
	listeners []*dom.Listener
	orphan    bool
	hovered   bool
}

// syncOverlaysLocked reconciles the overlay population against the working
// set's regions, then repositions everything.
func (e *Engine) syncOverlaysLocked() {
	regions := e.working.Regions
	for len(e.overlays) > len(regions) {
		last := len(e.overlays) - 1
		e.removeOverlayLocked(e.overlays[last])
		e.overlays = e.overlays[:last]
	}
	for i, region := range regions {
		if i < len(e.overlays) {
			e.overlays[i].region = region
			continue
		}
		e.overlays = append(e.overlays, e.createOverlayLocked(region, i))
	}
	e.repositionOverlaysLocked()
}

func (e *Engine) createOverlayLocked(region rules.Region, index int) *overlayState {
	n := e.doc.CreateElement("div")
	// The overlay attribute goes on before anything else so every record
	// involving this node is filtered as self-inflicted.
	e.doc.SetAttr(n, OverlayAttr, strconv.Itoa(index))
	e.doc.SetStyleProperty(n, "position", "fixed")
	e.doc.SetStyleProperty(n, "backdrop-filter", blurValue(e.site.BlurIntensity))
	e.doc.AppendChild(e.doc.Body(), n)

	st := &overlayState{region: region, node: n}
	st.listeners = []*dom.Listener{
		e.doc.AddListener(n, dom.PointerEnter, func(*dom.Event) { e.overlayPointerEntered(st) }),
		e.doc.AddListener(n, dom.PointerLeave, func(*dom.Event) { e.overlayPointerLeft(st) }),
		e.doc.AddListener(n, dom.Click, func(ev *dom.Event) { e.overlayClicked(st, ev) }),
	}
	return st
}

// overlayPointerEntered lifts the backdrop blur while the pointer is over
// the region, the same reveal redacted elements get. The setting is read
// at event time.
func (e *Engine) overlayPointerEntered(st *overlayState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.torn {
		return
	}
	st.hovered = true
	if !e.site.HoverToUnblur {
		return
	}
	e.doc.RemoveStyleProperty(st.node, "backdrop-filter")
}

// overlayPointerLeft restores the blur at the intensity in effect now.
func (e *Engine) overlayPointerLeft(st *overlayState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.torn {
		return
	}
	st.hovered = false
	e.doc.SetStyleProperty(st.node, "backdrop-filter", blurValue(e.site.BlurIntensity))
}

func (e *Engine) removeOverlayLocked(st *overlayState) {
	for _, l := range st.listeners {
		e.doc.RemoveListener(l)
	}
	e.doc.ClearNodeRect(st.node)
	e.doc.RemoveNode(st.node)
}

// repositionOverlaysLocked re-resolves every overlay's geometry against the
// current viewport and container positions.
func (e *Engine) repositionOverlaysLocked() {
	orphans := 0
	for _, st := range e.overlays {
		e.positionOverlayLocked(st)
		if st.orphan {
			orphans++
		}
	}
	e.metrics.SetOverlays(len(e.overlays), orphans)
}

// positionOverlayLocked computes the overlay's viewport rect. Containerless
// regions anchor to the viewport origin and so never move with scroll.
// Container-relative regions follow the container's current position; when
// the container does not resolve, the region falls back to the root anchor
// until it comes back. Containers are re-resolved on every pass.
func (e *Engine) positionOverlayLocked(st *overlayState) {
	region := st.region
	rect := layout.Rect{X: region.X, Y: region.Y, Width: region.Width, Height: region.Height}
	if region.ContainerSelector != "" {
		base, ok := e.resolveContainerLocked(region.ContainerSelector)
		if ok {
			rect.X += base.X
			rect.Y += base.Y
			st.orphan = false
		} else {
			if !st.orphan {
				e.log.Debugf("overlay container %q unresolved, anchoring to root", region.ContainerSelector)
			}
			st.orphan = true
		}
	}
	if st.hovered && !e.site.HoverToUnblur {
		st.hovered = false
	}
	if st.hovered {
		e.doc.RemoveStyleProperty(st.node, "backdrop-filter")
	} else {
		e.doc.SetStyleProperty(st.node, "backdrop-filter", blurValue(e.site.BlurIntensity))
	}
	// Overlays only intercept pointer input when a click means something
	// (hover-reveal forwarding or delete mode); otherwise hit-testing is
	// off and clicks reach the page directly.
	if e.deleteMode || e.site.HoverToUnblur {
		e.doc.RemoveStyleProperty(st.node, "pointer-events")
	} else {
		e.doc.SetStyleProperty(st.node, "pointer-events", "none")
	}
	e.doc.SetFixedNodeRect(st.node, rect)
}

func (e *Engine) resolveContainerLocked(selector string) (layout.Point, bool) {
	sel, err := e.compiledSelectorLocked(selector)
	if err != nil {
		e.metrics.RecordSkippedSelector()
		return layout.Point{}, false
	}
	matches := e.doc.Query(sel)
	if len(matches) == 0 {
		return layout.Point{}, false
	}
	rect, ok := e.doc.BoundingRect(matches[0])
	if !ok {
		return layout.Point{}, false
	}
	return rect.Origin(), true
}

func (e *Engine) removeAllOverlaysLocked() {
	for _, st := range e.overlays {
		e.removeOverlayLocked(st)
	}
	e.overlays = nil
	e.metrics.SetOverlays(0, 0)
}

// overlayClicked handles a click landing on an overlay. In delete mode it
// publishes a region delete request. Otherwise the click passes through:
// the overlay briefly stops intercepting, the element underneath is
// sampled, and an equivalent click is synthesized on it.
func (e *Engine) overlayClicked(st *overlayState, ev *dom.Event) {
	e.mu.Lock()
	if e.torn {
		e.mu.Unlock()
		return
	}
	if e.deleteMode {
		req := bus.RegionDeleteRequest{Region: st.region}
		e.mu.Unlock()
		ev.StopPropagation()
		ev.PreventDefault()
		e.bus.Publish(bus.TopicRegionDelete, req)
		return
	}
	ev.StopPropagation()
	e.doc.SetStyleProperty(st.node, "pointer-events", "none")
	under := e.doc.ElementFromPoint(ev.X, ev.Y)
	e.doc.RemoveStyleProperty(st.node, "pointer-events")
	e.mu.Unlock()

	if under == nil {
		return
	}
	e.doc.DispatchEventOn(under, &dom.Event{
		Type:      dom.Click,
		X:         ev.X,
		Y:         ev.Y,
		Button:    ev.Button,
		Modifiers: ev.Modifiers,
	})
}
