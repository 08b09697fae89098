// Package bus is a synchronous in-process publish/subscribe channel between
// the redaction engine and the collaborators that own rule storage.
package bus

import (
	"sync"

	"github.com/h-vien/hidey/internal/rules"
)

// Topic names a message stream.
type Topic string

const (
	// TopicUnblurRequest carries UnblurRequest payloads: the user clicked a
	// redacted element in delete mode.
	TopicUnblurRequest Topic = "unblur-request"
	// TopicRegionDelete carries RegionDeleteRequest payloads: the user
	// clicked a region overlay in delete mode.
	TopicRegionDelete Topic = "region-delete"
	// TopicElementPicked carries ElementPicked payloads from the picker.
	TopicElementPicked Topic = "element-picked"
	// TopicRegionCreated carries RegionCreated payloads from the region
	// drawing tool.
	TopicRegionCreated Topic = "region-created"
)

// UnblurRequest asks the store to remove a selector from the rules that
// apply to a URL pattern.
type UnblurRequest struct {
	URLPattern string
	Selector   string
}

// RegionDeleteRequest asks the store to delete a stored region.
type RegionDeleteRequest struct {
	Region rules.Region
}

// ElementPicked reports a selector derived from a user-picked element.
type ElementPicked struct {
	URLPattern string
	Selector   string
}

// RegionCreated reports a freshly drawn region.
type RegionCreated struct {
	Region rules.Region
}

// Bus fans messages out to subscribers. Delivery is synchronous: Publish
// returns after every subscriber has run.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[Topic]map[int]func(any)
}

func New() *Bus {
	return &Bus{subs: make(map[Topic]map[int]func(any))}
}

// Subscribe registers a handler for a topic and returns its cancellation
// handle.
func (b *Bus) Subscribe(topic Topic, fn func(any)) (cancel func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	byID := b.subs[topic]
	if byID == nil {
		byID = make(map[int]func(any))
		b.subs[topic] = byID
	}
	byID[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.subs[topic], id)
		b.mu.Unlock()
	}
}

// Publish delivers a payload to every subscriber of the topic. The bus lock
// is not held during delivery, so handlers may publish or subscribe.
func (b *Bus) Publish(topic Topic, payload any) {
	b.mu.Lock()
	fns := make([]func(any), 0, len(b.subs[topic]))
	for _, fn := range b.subs[topic] {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(payload)
	}
}
