// Package dom provides a headless mutable HTML document for the redaction
// engine: selector queries, inline style manipulation, mutation and viewport
// observers with cancellation handles, per-node geometry, hit testing, and
// pointer event dispatch with enter/leave subtree semantics.
//
// The document is the engine's owned model of the external page tree. Host
// page activity is modeled by mutating the document through this API, which
// fires observer callbacks the same way a MutationObserver would.
package dom

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/h-vien/hidey/internal/layout"
)

// Document is a mutable HTML tree with observers, geometry, and listeners.
// All methods are safe for concurrent use; observer and listener callbacks
// are invoked without the document lock held.
type Document struct {
	mu   sync.Mutex
	root *html.Node
	body *html.Node

	viewport layout.Rect

	geometry map[*html.Node]nodeGeometry

	nextObserverID int
	observers      map[int]func([]MutationRecord)
	viewportObs    map[int]func()

	nextListenerID int
	listeners      map[*html.Node]map[EventType][]*Listener

	hoverChain []*html.Node
}

type nodeGeometry struct {
	rect  layout.Rect
	fixed bool
}

// Parse builds a document from HTML source.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	d := &Document{
		root:        root,
		geometry:    make(map[*html.Node]nodeGeometry),
		observers:   make(map[int]func([]MutationRecord)),
		viewportObs: make(map[int]func()),
		listeners:   make(map[*html.Node]map[EventType][]*Listener),
	}
	d.body = findElement(root, "body")
	if d.body == nil {
		d.body = root
	}
	return d, nil
}

// ParseString builds a document from an HTML string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Render serializes the document back to HTML.
func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return html.Render(w, d.root)
}

// Root returns the document root node.
func (d *Document) Root() *html.Node {
	return d.root
}

// Body returns the body element, or the root if the tree has none.
func (d *Document) Body() *html.Node {
	return d.body
}

// CreateElement returns a detached element node with the given tag.
func (d *Document) CreateElement(tag string) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: tag}
}

// AppendChild attaches child as the last child of parent and notifies
// mutation observers.
func (d *Document) AppendChild(parent, child *html.Node) {
	d.mu.Lock()
	parent.AppendChild(child)
	d.mu.Unlock()
	d.notify(MutationRecord{
		Type:   MutationChildList,
		Target: parent,
		Added:  []*html.Node{child},
	})
}

// RemoveNode detaches a node from its parent and notifies mutation
// observers. Detaching a node that is already detached is a no-op.
func (d *Document) RemoveNode(n *html.Node) {
	d.mu.Lock()
	parent := n.Parent
	if parent != nil {
		parent.RemoveChild(n)
		d.pruneHoverLocked(n)
	}
	d.mu.Unlock()
	if parent == nil {
		return
	}
	d.notify(MutationRecord{
		Type:    MutationChildList,
		Target:  parent,
		Removed: []*html.Node{n},
	})
}

// IsAttached reports whether the node is reachable from the document root.
func (d *Document) IsAttached(n *html.Node) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.isAttachedLocked(n)
}

func (d *Document) isAttachedLocked(n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == d.root {
			return true
		}
	}
	return false
}

// Attr returns the value of an attribute and whether it is present.
func (d *Document) Attr(n *html.Node, name string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return attrLocked(n, name)
}

// HasAttr reports whether the attribute is present.
func (d *Document) HasAttr(n *html.Node, name string) bool {
	_, ok := d.Attr(n, name)
	return ok
}

// SetAttr sets an attribute value and notifies mutation observers.
func (d *Document) SetAttr(n *html.Node, name, value string) {
	d.mu.Lock()
	setAttrLocked(n, name, value)
	d.mu.Unlock()
	d.notify(MutationRecord{Type: MutationAttributes, Target: n, AttrName: name})
}

// RemoveAttr removes an attribute and notifies mutation observers if it was
// present.
func (d *Document) RemoveAttr(n *html.Node, name string) {
	d.mu.Lock()
	removed := removeAttrLocked(n, name)
	d.mu.Unlock()
	if !removed {
		return
	}
	d.notify(MutationRecord{Type: MutationAttributes, Target: n, AttrName: name})
}

func attrLocked(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func setAttrLocked(n *html.Node, name, value string) {
	for i := range n.Attr {
		if n.Attr[i].Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

func removeAttrLocked(n *html.Node, name string) bool {
	for i := range n.Attr {
		if n.Attr[i].Key == name {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return true
		}
	}
	return false
}

// findElement returns the first element with the given tag in tree order.
func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// walkElements visits every element node in tree order until fn returns
// false.
func walkElements(n *html.Node, fn func(*html.Node) bool) bool {
	if n.Type == html.ElementNode {
		if !fn(n) {
			return false
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walkElements(c, fn) {
			return false
		}
	}
	return true
}
