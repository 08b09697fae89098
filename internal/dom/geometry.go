package dom

import (
	"golang.org/x/net/html"

	"github.com/h-vien/hidey/internal/layout"
)

// Viewport returns the current viewport rect: X/Y are the scroll offsets,
// Width/Height the visible size.
func (d *Document) Viewport() layout.Rect {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.viewport
}

// SetViewport replaces the viewport rect and notifies viewport observers.
func (d *Document) SetViewport(v layout.Rect) {
	d.mu.Lock()
	d.viewport = v
	d.mu.Unlock()
	d.notifyViewport()
}

// ScrollTo sets the scroll offsets and notifies viewport observers.
func (d *Document) ScrollTo(x, y float64) {
	d.mu.Lock()
	d.viewport.X = x
	d.viewport.Y = y
	d.mu.Unlock()
	d.notifyViewport()
}

// ScrollBy adjusts the scroll offsets and notifies viewport observers.
func (d *Document) ScrollBy(dx, dy float64) {
	d.mu.Lock()
	d.viewport.X += dx
	d.viewport.Y += dy
	d.mu.Unlock()
	d.notifyViewport()
}

// SetNodeRect assigns page-relative geometry to a node. Geometry changes
// are layout, not DOM mutations, so they fire no mutation records.
func (d *Document) SetNodeRect(n *html.Node, r layout.Rect) {
	d.mu.Lock()
	d.geometry[n] = nodeGeometry{rect: r}
	d.mu.Unlock()
}

// SetFixedNodeRect assigns viewport-relative geometry to a fixed-positioned
// node, which does not move with scroll.
func (d *Document) SetFixedNodeRect(n *html.Node, r layout.Rect) {
	d.mu.Lock()
	d.geometry[n] = nodeGeometry{rect: r, fixed: true}
	d.mu.Unlock()
}

// ClearNodeRect drops a node's geometry.
func (d *Document) ClearNodeRect(n *html.Node) {
	d.mu.Lock()
	delete(d.geometry, n)
	d.mu.Unlock()
}

// BoundingRect returns the node's viewport-relative rect, like
// getBoundingClientRect. The second result is false when the node has no
// geometry.
func (d *Document) BoundingRect(n *html.Node) (layout.Rect, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.boundingRectLocked(n)
}

func (d *Document) boundingRectLocked(n *html.Node) (layout.Rect, bool) {
	g, ok := d.geometry[n]
	if !ok {
		return layout.Rect{}, false
	}
	if g.fixed {
		return g.rect, true
	}
	return g.rect.Offset(-d.viewport.X, -d.viewport.Y), true
}

// PageRect returns the node's page-relative rect. For fixed nodes this is
// the viewport rect translated by the current scroll offsets.
func (d *Document) PageRect(n *html.Node) (layout.Rect, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.geometry[n]
	if !ok {
		return layout.Rect{}, false
	}
	if g.fixed {
		return g.rect.Offset(d.viewport.X, d.viewport.Y), true
	}
	return g.rect, true
}

// ElementFromPoint returns the topmost attached element whose rect contains
// the viewport-relative point, honoring `pointer-events: none` and
// `display: none`. It returns nil when no element is hit.
func (d *Document) ElementFromPoint(x, y float64) *html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.elementFromPointLocked(x, y)
}

// elementFromPointLocked walks the tree in document order; the last hit
// wins, matching paint order for the flat overlay stacking the engine uses
// (overlays are appended last to body).
func (d *Document) elementFromPointLocked(x, y float64) *html.Node {
	p := layout.Point{X: x, Y: y}
	var hit *html.Node
	walkElements(d.root, func(n *html.Node) bool {
		if d.styleLocked(n, "display") == "none" || d.styleLocked(n, "pointer-events") == "none" {
			return true
		}
		if r, ok := d.boundingRectLocked(n); ok && r.Contains(p) {
			hit = n
		}
		return true
	})
	return hit
}

func (d *Document) styleLocked(n *html.Node, prop string) string {
	raw, _ := attrLocked(n, styleAttr)
	for _, p := range parseStyle(raw) {
		if p.name == prop {
			return p.value
		}
	}
	return ""
}
