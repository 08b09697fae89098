package dom

import (
	"fmt"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Selector is a compiled CSS selector group.
type Selector struct {
	raw   string
	group cascadia.SelectorGroup
}

// CompileSelector parses a CSS selector. Malformed selectors return an
// error so callers can skip them individually.
func CompileSelector(s string) (Selector, error) {
	group, err := cascadia.ParseGroup(s)
	if err != nil {
		return Selector{}, fmt.Errorf("compile selector %q: %w", s, err)
	}
	return Selector{raw: s, group: group}, nil
}

// String returns the original selector text.
func (s Selector) String() string {
	return s.raw
}

// Query returns all elements matching the selector in document order.
func (d *Document) Query(sel Selector) []*html.Node {
	return d.QueryFrom(d.root, sel)
}

// QueryFrom returns matching elements within a subtree in document order.
func (d *Document) QueryFrom(root *html.Node, sel Selector) []*html.Node {
	if sel.group == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*html.Node
	walkElements(root, func(n *html.Node) bool {
		if sel.group.Match(n) {
			out = append(out, n)
		}
		return true
	})
	return out
}
