package store

import "context"

// Mutation is the handle of one optimistic mutation. The local change is
// already visible when the handle is returned; Wait blocks until the
// background reconciliation has settled.
type Mutation[T any] struct {
	optimistic T
	done       chan struct{}
	result     T
	err        error
}

func newMutation[T any](optimistic T) *Mutation[T] {
	return &Mutation[T]{optimistic: optimistic, done: make(chan struct{})}
}

// Optimistic returns the value applied locally before any network activity.
// For deletes it is the removed record.
func (m *Mutation[T]) Optimistic() T { return m.optimistic }

// Done is closed once the mutation has been confirmed or reverted.
func (m *Mutation[T]) Done() <-chan struct{} { return m.done }

// Wait blocks until settlement and returns the server's record (the removed
// record for deletes) or the sync error that caused the revert.
func (m *Mutation[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-m.done:
		return m.result, m.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Err returns the sync error once settled; nil while pending or when confirmed.
func (m *Mutation[T]) Err() error {
	select {
	case <-m.done:
		return m.err
	default:
		return nil
	}
}

func (m *Mutation[T]) settle(result T, err error) {
	m.result = result
	m.err = err
	close(m.done)
}
