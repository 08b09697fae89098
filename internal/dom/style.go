package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// styleAttr is the inline style attribute manipulated by the engine.
const styleAttr = "style"

type styleProperty struct {
	name  string
	value string
}

// StyleProperty returns the value of an inline style property, or "" when
// unset.
func (d *Document) StyleProperty(n *html.Node, prop string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	raw, _ := attrLocked(n, styleAttr)
	for _, p := range parseStyle(raw) {
		if p.name == prop {
			return p.value
		}
	}
	return ""
}

// SetStyleProperty sets an inline style property, preserving the order of
// any other declarations, and notifies mutation observers with a style
// attribute record.
func (d *Document) SetStyleProperty(n *html.Node, prop, value string) {
	d.mu.Lock()
	raw, _ := attrLocked(n, styleAttr)
	props := parseStyle(raw)
	found := false
	for i := range props {
		if props[i].name == prop {
			props[i].value = value
			found = true
			break
		}
	}
	if !found {
		props = append(props, styleProperty{name: prop, value: value})
	}
	setAttrLocked(n, styleAttr, serializeStyle(props))
	d.mu.Unlock()
	d.notify(MutationRecord{Type: MutationAttributes, Target: n, AttrName: styleAttr})
}

// RemoveStyleProperty clears an inline style property. When no declarations
// remain the style attribute itself is removed.
func (d *Document) RemoveStyleProperty(n *html.Node, prop string) {
	d.mu.Lock()
	raw, ok := attrLocked(n, styleAttr)
	if !ok {
		d.mu.Unlock()
		return
	}
	props := parseStyle(raw)
	kept := props[:0]
	removed := false
	for _, p := range props {
		if p.name == prop {
			removed = true
			continue
		}
		kept = append(kept, p)
	}
	if removed {
		if len(kept) == 0 {
			removeAttrLocked(n, styleAttr)
		} else {
			setAttrLocked(n, styleAttr, serializeStyle(kept))
		}
	}
	d.mu.Unlock()
	if removed {
		d.notify(MutationRecord{Type: MutationAttributes, Target: n, AttrName: styleAttr})
	}
}

func parseStyle(raw string) []styleProperty {
	if raw == "" {
		return nil
	}
	var props []styleProperty
	for _, decl := range strings.Split(raw, ";") {
		decl = strings.TrimSpace(decl)
		if decl == "" {
			continue
		}
		name, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if name == "" {
			continue
		}
		props = append(props, styleProperty{name: name, value: value})
	}
	return props
}

func serializeStyle(props []styleProperty) string {
	parts := make([]string, 0, len(props))
	for _, p := range props {
		parts = append(parts, p.name+": "+p.value)
	}
	return strings.Join(parts, "; ")
}
