package window

import (
	"sync"
	"sync/atomic"

	"crossfeed/internal/models"
)

// Bus is the WindowUpdated event subscription registry. Subscribers
// register a filter closure that matches the (exchange, symbol) pairs
// they care about, as spec.md §4.4 describes for the chart assembler;
// add/remove are backed by a concurrent map for lock-free iteration.
type Bus struct {
	subs sync.Map // int64 -> func(models.SymbolKey)
	next int64
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers handler to be called for every WindowUpdated
// event. It returns an unsubscribe function. handler must not block for
// longer than a microbatch's worth of work; heavy work belongs on a
// worker pool the handler enqueues to.
func (b *Bus) Subscribe(handler func(models.SymbolKey)) (unsubscribe func()) {
	id := atomic.AddInt64(&b.next, 1)
	b.subs.Store(id, handler)
	return func() { b.subs.Delete(id) }
}

// Publish raises WindowUpdated(key) to every current subscriber, in the
// caller's goroutine. Subscribers observe events for a given key in
// append order because Store.Append only calls Publish after releasing
// the window lock for that append.
func (b *Bus) Publish(key models.SymbolKey) {
	b.subs.Range(func(_, value interface{}) bool {
		handler := value.(func(models.SymbolKey))
		handler(key)
		return true
	})
}
