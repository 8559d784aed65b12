package ports

import (
	"context"
	"errors"
	"time"
)

// ErrQueueClosed is returned by Enqueue after the queue has been shut down.
var ErrQueueClosed = errors.New("mutation queue closed")

// MutationQueue runs background reconciliation jobs. Jobs sharing a key run
// one at a time in enqueue order; jobs with different keys carry no ordering
// guarantee relative to each other.
type MutationQueue interface {
	Enqueue(key string, job func(ctx context.Context)) error
}

// Mutation outcomes reported to a MutationObserver.
const (
	OutcomeConfirmed = "confirmed"
	OutcomeReverted  = "reverted"
)

// MutationObserver receives one call per settled optimistic mutation.
type MutationObserver interface {
	ObserveMutation(entity, op, outcome string, d time.Duration)
}

// NopObserver discards observations.
type NopObserver struct{}

func (NopObserver) ObserveMutation(string, string, string, time.Duration) {}
