package dom

import "golang.org/x/net/html"

// MutationType distinguishes tree-shape mutations from attribute mutations.
type MutationType int

const (
	MutationChildList MutationType = iota
	MutationAttributes
)

// MutationRecord describes one observed document mutation.
type MutationRecord struct {
	Type     MutationType
	Target   *html.Node
	AttrName string
	Added    []*html.Node
	Removed  []*html.Node
}

// Observe registers a mutation observer and returns its cancellation
// handle. Observers run synchronously after each mutation, without the
// document lock held, so they may call back into the document.
func (d *Document) Observe(fn func([]MutationRecord)) (cancel func()) {
	d.mu.Lock()
	id := d.nextObserverID
	d.nextObserverID++
	d.observers[id] = fn
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		delete(d.observers, id)
		d.mu.Unlock()
	}
}

// ObserveViewport registers a scroll/resize observer with a cancellation
// handle.
func (d *Document) ObserveViewport(fn func()) (cancel func()) {
	d.mu.Lock()
	id := d.nextObserverID
	d.nextObserverID++
	d.viewportObs[id] = fn
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		delete(d.viewportObs, id)
		d.mu.Unlock()
	}
}

func (d *Document) notify(records ...MutationRecord) {
	d.mu.Lock()
	fns := make([]func([]MutationRecord), 0, len(d.observers))
	for _, fn := range d.observers {
		fns = append(fns, fn)
	}
	d.mu.Unlock()
	for _, fn := range fns {
		fn(records)
	}
}

func (d *Document) notifyViewport() {
	d.mu.Lock()
	fns := make([]func(), 0, len(d.viewportObs))
	for _, fn := range d.viewportObs {
		fns = append(fns, fn)
	}
	d.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
