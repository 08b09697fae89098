package dom

import "golang.org/x/net/html"

// EventType names a pointer event kind.
type EventType string

const (
	PointerEnter EventType = "pointerenter"
	PointerLeave EventType = "pointerleave"
	Click        EventType = "click"
)

// Modifiers captures the keyboard modifier state of a pointer event.
type Modifiers struct {
	Ctrl  bool
	Shift bool
	Alt   bool
	Meta  bool
}

// Event is a dispatched pointer event.
type Event struct {
	Type          EventType
	Target        *html.Node
	RelatedTarget *html.Node
	X             float64
	Y             float64
	Button        int
	Modifiers     Modifiers

	stopped          bool
	defaultPrevented bool
}

// StopPropagation halts delivery to ancestor listeners.
func (e *Event) StopPropagation() { e.stopped = true }

// PreventDefault marks the event's default behavior as suppressed.
func (e *Event) PreventDefault() { e.defaultPrevented = true }

// DefaultPrevented reports whether PreventDefault was called.
func (e *Event) DefaultPrevented() bool { return e.defaultPrevented }

// Listener is a registered event handler; remove it with RemoveListener.
type Listener struct {
	id   int
	node *html.Node
	typ  EventType
	fn   func(*Event)
}

// AddListener registers a handler for an event type on a node.
func (d *Document) AddListener(n *html.Node, typ EventType, fn func(*Event)) *Listener {
	d.mu.Lock()
	defer d.mu.Unlock()
	l := &Listener{id: d.nextListenerID, node: n, typ: typ, fn: fn}
	d.nextListenerID++
	byType := d.listeners[n]
	if byType == nil {
		byType = make(map[EventType][]*Listener)
		d.listeners[n] = byType
	}
	byType[typ] = append(byType[typ], l)
	return l
}

// RemoveListener unregisters a handler. Removing twice is a no-op.
func (d *Document) RemoveListener(l *Listener) {
	if l == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	byType := d.listeners[l.node]
	if byType == nil {
		return
	}
	list := byType[l.typ]
	for i, existing := range list {
		if existing.id == l.id {
			byType[l.typ] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(byType[l.typ]) == 0 {
		delete(byType, l.typ)
	}
	if len(byType) == 0 {
		delete(d.listeners, l.node)
	}
}

// ListenerCount reports how many handlers are registered on a node, across
// all event types.
func (d *Document) ListenerCount(n *html.Node) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	total := 0
	for _, list := range d.listeners[n] {
		total += len(list)
	}
	return total
}

// PointerMove moves the pointer to a viewport-relative position and fires
// enter/leave events. Enter and leave fire only when the pointer crosses a
// subtree boundary: moving from an element to one of its descendants fires
// neither on the ancestor.
func (d *Document) PointerMove(x, y float64) {
	d.mu.Lock()
	target := d.elementFromPointLocked(x, y)
	newChain := d.pathToLocked(target)
	oldChain := d.hoverChain
	d.hoverChain = newChain

	inNew := make(map[*html.Node]bool, len(newChain))
	for _, n := range newChain {
		inNew[n] = true
	}
	inOld := make(map[*html.Node]bool, len(oldChain))
	for _, n := range oldChain {
		inOld[n] = true
	}

	type delivery struct {
		fn func(*Event)
		ev *Event
	}
	var deliveries []delivery
	// Leaves fire deepest-first, enters shallowest-first, as in the DOM.
	for i := len(oldChain) - 1; i >= 0; i-- {
		n := oldChain[i]
		if inNew[n] {
			continue
		}
		for _, l := range d.listeners[n][PointerLeave] {
			deliveries = append(deliveries, delivery{fn: l.fn, ev: &Event{
				Type: PointerLeave, Target: n, RelatedTarget: target, X: x, Y: y,
			}})
		}
	}
	for _, n := range newChain {
		if inOld[n] {
			continue
		}
		var related *html.Node
		if len(oldChain) > 0 {
			related = oldChain[len(oldChain)-1]
		}
		for _, l := range d.listeners[n][PointerEnter] {
			deliveries = append(deliveries, delivery{fn: l.fn, ev: &Event{
				Type: PointerEnter, Target: n, RelatedTarget: related, X: x, Y: y,
			}})
		}
	}
	d.mu.Unlock()

	for _, del := range deliveries {
		del.fn(del.ev)
	}
}

// DispatchClick hit-tests the point and dispatches a click to the target
// and its ancestors. It returns the event, or nil when nothing was hit.
func (d *Document) DispatchClick(x, y float64, button int, mods Modifiers) *Event {
	d.mu.Lock()
	target := d.elementFromPointLocked(x, y)
	d.mu.Unlock()
	if target == nil {
		return nil
	}
	ev := &Event{Type: Click, Target: target, X: x, Y: y, Button: button, Modifiers: mods}
	d.DispatchEventOn(target, ev)
	return ev
}

// DispatchEventOn delivers an event to a specific node and then to its
// ancestors until propagation stops. The engine uses it to synthesize an
// equivalent click on the element sampled beneath a hidden overlay.
func (d *Document) DispatchEventOn(target *html.Node, ev *Event) {
	ev.Target = target
	for n := target; n != nil; n = n.Parent {
		d.mu.Lock()
		list := append([]*Listener(nil), d.listeners[n][ev.Type]...)
		d.mu.Unlock()
		for _, l := range list {
			l.fn(ev)
			if ev.stopped {
				return
			}
		}
	}
}

// pathToLocked returns the chain of attached element ancestors from the
// root down to the target, inclusive.
func (d *Document) pathToLocked(target *html.Node) []*html.Node {
	if target == nil || !d.isAttachedLocked(target) {
		return nil
	}
	var chain []*html.Node
	for n := target; n != nil; n = n.Parent {
		if n.Type == html.ElementNode {
			chain = append(chain, n)
		}
	}
	// Reverse to root-first order.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// pruneHoverLocked truncates the hover chain at a node that left the tree.
func (d *Document) pruneHoverLocked(n *html.Node) {
	for i, cur := range d.hoverChain {
		if cur == n {
			d.hoverChain = d.hoverChain[:i]
			return
		}
	}
}
