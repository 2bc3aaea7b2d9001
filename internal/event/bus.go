// Package event provides an in-process pub/sub bus, built on watermill's
// gochannel transport, for background notifications that carry no ordering
// guarantee relative to the turn stream.
package event

import (
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Type identifies a bus event.
type Type string

const (
	// SessionCreated fires after a session row is implicitly created.
	SessionCreated Type = "session.created"
	// SessionUpdated fires after background title refinement lands.
	SessionUpdated Type = "session.updated"
	// MessageCreated fires after a message pair is persisted.
	MessageCreated Type = "message.created"
)

// Event is one published notification.
type Event struct {
	Type Type `json:"type"`
	Data any  `json:"data"`
}

// Subscriber receives events. Async delivery: a subscriber must be safe to
// call from any goroutine.
type Subscriber func(event Event)

type entry struct {
	id uint64
	fn Subscriber
}

// Bus fans events out to subscribers. The watermill pubsub underneath is the
// transport seam for a future distributed backend; dispatch stays direct-call
// so payloads keep their Go types.
type Bus struct {
	mu sync.RWMutex

	pubsub *gochannel.GoChannel

	byType map[Type][]entry
	all    []entry

	nextID uint64
	closed bool
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: 100,
				Persistent:          false,
			},
			watermill.NopLogger{},
		),
		byType: make(map[Type][]entry),
	}
}

// Subscribe registers fn for one event type and returns its unsubscribe
// function.
func (b *Bus) Subscribe(t Type, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	id := atomic.AddUint64(&b.nextID, 1)
	b.byType[t] = append(b.byType[t], entry{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.byType[t]
		for i, e := range subs {
			if e.id == id {
				b.byType[t] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
}

// SubscribeAll registers fn for every event type and returns its unsubscribe
// function.
func (b *Bus) SubscribeAll(fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	id := atomic.AddUint64(&b.nextID, 1)
	b.all = append(b.all, entry{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, e := range b.all {
			if e.id == id {
				b.all = append(b.all[:i], b.all[i+1:]...)
				break
			}
		}
	}
}

func (b *Bus) snapshot(t Type) []Subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil
	}
	subs := make([]Subscriber, 0, len(b.byType[t])+len(b.all))
	for _, e := range b.byType[t] {
		subs = append(subs, e.fn)
	}
	for _, e := range b.all {
		subs = append(subs, e.fn)
	}
	return subs
}

// Publish delivers the event to every subscriber, each on its own goroutine
// so a slow subscriber never stalls the publisher.
func (b *Bus) Publish(event Event) {
	for _, fn := range b.snapshot(event.Type) {
		go fn(event)
	}
}

// PublishSync delivers the event to every subscriber on the calling
// goroutine before returning.
func (b *Bus) PublishSync(event Event) {
	for _, fn := range b.snapshot(event.Type) {
		fn(event)
	}
}

// Close drops all subscribers and shuts down the transport. Further
// publishes are no-ops.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.byType = make(map[Type][]entry)
	b.all = nil
	b.mu.Unlock()

	return b.pubsub.Close()
}
