package dom

import (
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/h-vien/hidey/internal/layout"
)

const chatPage = `<html><head></head><body>
<div id="app">
  <div class="message-text">one</div>
  <div class="message-text">two</div>
  <div class="sidebar"><span class="name">alice</span></div>
</div>
</body></html>`

func parseFixture(t *testing.T, src string) *Document {
	t.Helper()
	d, err := ParseString(src)
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return d
}

func mustSelector(t *testing.T, s string) Selector {
	t.Helper()
	sel, err := CompileSelector(s)
	if err != nil {
		t.Fatalf("compile selector %q: %v", s, err)
	}
	return sel
}

func TestQueryReturnsDocumentOrder(t *testing.T) {
	d := parseFixture(t, chatPage)
	nodes := d.Query(mustSelector(t, ".message-text"))
	if len(nodes) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(nodes))
	}
	if got := nodes[0].FirstChild.Data; got != "one" {
		t.Fatalf("expected first match in document order, got %q", got)
	}
}

func TestCompileSelectorRejectsMalformed(t *testing.T) {
	if _, err := CompileSelector("div[unclosed"); err == nil {
		t.Fatalf("expected error for malformed selector")
	}
}

func TestStylePropertyRoundTrip(t *testing.T) {
	d := parseFixture(t, chatPage)
	n := d.Query(mustSelector(t, ".message-text"))[0]

	d.SetStyleProperty(n, "filter", "blur(8px)")
	d.SetStyleProperty(n, "color", "red")
	if got := d.StyleProperty(n, "filter"); got != "blur(8px)" {
		t.Fatalf("filter = %q, want blur(8px)", got)
	}

	d.SetStyleProperty(n, "filter", "blur(15px)")
	if got := d.StyleProperty(n, "filter"); got != "blur(15px)" {
		t.Fatalf("filter after update = %q, want blur(15px)", got)
	}
	if got := d.StyleProperty(n, "color"); got != "red" {
		t.Fatalf("unrelated property lost: color = %q", got)
	}

	d.RemoveStyleProperty(n, "filter")
	if got := d.StyleProperty(n, "filter"); got != "" {
		t.Fatalf("filter after removal = %q, want empty", got)
	}
	d.RemoveStyleProperty(n, "color")
	if _, ok := d.Attr(n, "style"); ok {
		t.Fatalf("expected style attribute removed when no declarations remain")
	}
}

func TestMutationObserverAndCancel(t *testing.T) {
	d := parseFixture(t, chatPage)
	var records []MutationRecord
	cancel := d.Observe(func(recs []MutationRecord) {
		records = append(records, recs...)
	})

	parent := d.Query(mustSelector(t, "#app"))[0]
	child := d.CreateElement("div")
	d.AppendChild(parent, child)
	if len(records) != 1 || records[0].Type != MutationChildList {
		t.Fatalf("expected one childlist record, got %+v", records)
	}
	if len(records[0].Added) != 1 || records[0].Added[0] != child {
		t.Fatalf("expected added node in record")
	}

	d.SetAttr(child, "class", "message-text")
	if len(records) != 2 || records[1].Type != MutationAttributes || records[1].AttrName != "class" {
		t.Fatalf("expected attribute record, got %+v", records[1])
	}

	cancel()
	d.RemoveNode(child)
	if len(records) != 2 {
		t.Fatalf("expected no records after cancel, got %d", len(records))
	}
	if d.IsAttached(child) {
		t.Fatalf("expected removed node to be detached")
	}
}

func TestGeometryScrollAndFixed(t *testing.T) {
	d := parseFixture(t, chatPage)
	content := d.Query(mustSelector(t, ".message-text"))[0]
	overlay := d.CreateElement("div")
	d.AppendChild(d.Body(), overlay)

	d.SetViewport(layout.Rect{Width: 1280, Height: 720})
	d.SetNodeRect(content, layout.Rect{X: 100, Y: 300, Width: 200, Height: 40})
	d.SetFixedNodeRect(overlay, layout.Rect{X: 10, Y: 20, Width: 100, Height: 50})

	d.ScrollBy(0, 200)

	if r, _ := d.BoundingRect(content); r.Y != 100 {
		t.Fatalf("content viewport top = %v, want 100 after scrolling 200", r.Y)
	}
	if r, _ := d.BoundingRect(overlay); r.Y != 20 {
		t.Fatalf("fixed overlay viewport top = %v, want unchanged 20", r.Y)
	}
	if r, _ := d.PageRect(overlay); r.Y != 220 {
		t.Fatalf("fixed overlay page top = %v, want 220 after scrolling 200", r.Y)
	}
}

func TestViewportObserver(t *testing.T) {
	d := parseFixture(t, chatPage)
	fired := 0
	cancel := d.ObserveViewport(func() { fired++ })
	d.ScrollBy(0, 10)
	d.SetViewport(layout.Rect{Width: 800, Height: 600})
	if fired != 2 {
		t.Fatalf("expected 2 viewport notifications, got %d", fired)
	}
	cancel()
	d.ScrollBy(0, 10)
	if fired != 2 {
		t.Fatalf("expected no notifications after cancel, got %d", fired)
	}
}

func TestElementFromPointTopmostAndPointerEvents(t *testing.T) {
	d := parseFixture(t, chatPage)
	content := d.Query(mustSelector(t, ".message-text"))[0]
	overlay := d.CreateElement("div")
	d.AppendChild(d.Body(), overlay)

	d.SetNodeRect(content, layout.Rect{X: 0, Y: 0, Width: 100, Height: 100})
	d.SetFixedNodeRect(overlay, layout.Rect{X: 0, Y: 0, Width: 100, Height: 100})

	if got := d.ElementFromPoint(50, 50); got != overlay {
		t.Fatalf("expected overlay (appended last) to be topmost")
	}

	d.SetStyleProperty(overlay, "pointer-events", "none")
	if got := d.ElementFromPoint(50, 50); got != content {
		t.Fatalf("expected pointer-events:none overlay to be transparent to hit testing")
	}

	d.RemoveStyleProperty(overlay, "pointer-events")
	d.SetStyleProperty(overlay, "display", "none")
	if got := d.ElementFromPoint(50, 50); got != content {
		t.Fatalf("expected hidden overlay to be skipped")
	}
}

func TestPointerEnterLeaveSubtreeSemantics(t *testing.T) {
	d := parseFixture(t, chatPage)
	sidebar := d.Query(mustSelector(t, ".sidebar"))[0]
	name := d.Query(mustSelector(t, ".name"))[0]

	d.SetNodeRect(sidebar, layout.Rect{X: 0, Y: 0, Width: 100, Height: 100})
	d.SetNodeRect(name, layout.Rect{X: 10, Y: 10, Width: 50, Height: 20})

	var events []string
	d.AddListener(sidebar, PointerEnter, func(*Event) { events = append(events, "enter") })
	d.AddListener(sidebar, PointerLeave, func(*Event) { events = append(events, "leave") })

	d.PointerMove(5, 50)  // into sidebar
	d.PointerMove(20, 15) // into descendant: no leave on sidebar
	d.PointerMove(5, 50)  // back to sidebar itself: no enter
	d.PointerMove(500, 500)

	want := "enter,leave"
	if got := strings.Join(events, ","); got != want {
		t.Fatalf("event sequence = %q, want %q", got, want)
	}
}

func TestClickPropagationAndStop(t *testing.T) {
	d := parseFixture(t, chatPage)
	app := d.Query(mustSelector(t, "#app"))[0]
	name := d.Query(mustSelector(t, ".name"))[0]
	d.SetNodeRect(name, layout.Rect{X: 0, Y: 0, Width: 50, Height: 20})

	var order []string
	d.AddListener(name, Click, func(*Event) { order = append(order, "name") })
	d.AddListener(app, Click, func(*Event) { order = append(order, "app") })

	ev := d.DispatchClick(10, 10, 1, Modifiers{Shift: true})
	if ev == nil || ev.Target != name {
		t.Fatalf("expected click to target the innermost element")
	}
	if ev.Button != 1 || !ev.Modifiers.Shift {
		t.Fatalf("event lost button or modifier state: %+v", ev)
	}
	if strings.Join(order, ",") != "name,app" {
		t.Fatalf("expected propagation to ancestors, got %v", order)
	}

	order = nil
	stopper := d.AddListener(name, Click, func(ev *Event) { ev.StopPropagation() })
	d.DispatchClick(10, 10, 0, Modifiers{})
	if strings.Join(order, ",") != "name" {
		t.Fatalf("expected propagation stopped at target, got %v", order)
	}

	d.RemoveListener(stopper)
	if d.ListenerCount(name) != 1 {
		t.Fatalf("expected one remaining listener, got %d", d.ListenerCount(name))
	}
}

func TestRenderRoundTrip(t *testing.T) {
	d := parseFixture(t, chatPage)
	n := d.Query(mustSelector(t, ".message-text"))[0]
	d.SetAttr(n, "data-x", "1")
	var b strings.Builder
	if err := d.Render(&b); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := b.String()
	if !strings.Contains(out, `data-x="1"`) {
		t.Fatalf("expected rendered output to carry the attribute, got %q", out)
	}
	if _, err := html.Parse(strings.NewReader(out)); err != nil {
		t.Fatalf("rendered output does not reparse: %v", err)
	}
}
