package auth

import (
	"sync"

	"github.com/inventaris/inventory-state/internal/core/ports"
)

// Broadcaster fans session events out to subscribers. Publish calls are
// serialized so every subscriber sees events one at a time, in order.
type Broadcaster struct {
	mu   sync.Mutex
	next int
	subs map[int]func(ports.SessionEvent)

	deliver sync.Mutex
}

// Subscribe registers fn and returns its unsubscribe func.
func (b *Broadcaster) Subscribe(fn func(ports.SessionEvent)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[int]func(ports.SessionEvent))
	}
	id := b.next
	b.next++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish delivers ev to every current subscriber.
func (b *Broadcaster) Publish(ev ports.SessionEvent) {
	b.deliver.Lock()
	defer b.deliver.Unlock()

	b.mu.Lock()
	fns := make([]func(ports.SessionEvent), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
