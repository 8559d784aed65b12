package store

import "sync"

// notifier fans change notifications out to subscribers. Subscribers are
// called synchronously after the store has released its own lock, so they may
// read from the store but should not block.
type notifier struct {
	mu   sync.Mutex
	next int
	subs map[int]func()
}

// Subscribe registers fn to be called after every observable state change.
// The returned func removes the subscription.
func (n *notifier) Subscribe(fn func()) (unsubscribe func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs == nil {
		n.subs = make(map[int]func())
	}
	id := n.next
	n.next++
	n.subs[id] = fn
	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

func (n *notifier) notify() {
	n.mu.Lock()
	fns := make([]func(), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
