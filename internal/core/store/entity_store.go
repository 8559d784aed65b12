package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/inventaris/inventory-state/internal/core/domain"
	"github.com/inventaris/inventory-state/internal/core/ports"
	"github.com/inventaris/inventory-state/internal/pkg/validate"
)

// entityStore owns one ordered collection and implements the optimistic
// mutation protocol shared by rooms and assets:
//
//	local apply (synchronous) -> background sync (queued per id) -> confirm | revert
//
// The collection never holds two records with the same key.
type entityStore[K comparable, T any] struct {
	entity string
	keyOf  func(T) K
	isTemp func(K) bool
	queue  ports.MutationQueue
	obs    ports.MutationObserver
	log    zerolog.Logger

	mu      sync.RWMutex
	items   []T
	loading bool
	errMsg  string
	epoch   uint64 // bumped by reset; settlements from an older epoch are dropped

	notifier
	inflight sync.WaitGroup
	pending  atomic.Int64
}

func newEntityStore[K comparable, T any](
	entity string,
	keyOf func(T) K,
	isTemp func(K) bool,
	queue ports.MutationQueue,
	obs ports.MutationObserver,
	log zerolog.Logger,
) *entityStore[K, T] {
	if obs == nil {
		obs = ports.NopObserver{}
	}
	return &entityStore[K, T]{
		entity: entity,
		keyOf:  keyOf,
		isTemp: isTemp,
		queue:  queue,
		obs:    obs,
		log:    log.With().Str("entity", entity).Logger(),
	}
}

// ---------------------------------------------------------------------------
// Read handles
// ---------------------------------------------------------------------------

// Items returns a copy of the collection, newest first.
func (s *entityStore[K, T]) Items() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of records currently visible.
func (s *entityStore[K, T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Loading reports whether a FetchAll is in progress.
func (s *entityStore[K, T]) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Error returns the last user-facing error message, or "".
func (s *entityStore[K, T]) Error() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}

// ClearError resets the error message.
func (s *entityStore[K, T]) ClearError() {
	s.mu.Lock()
	s.errMsg = ""
	s.mu.Unlock()
	s.notify()
}

// Pending returns the number of mutations that have not settled yet.
func (s *entityStore[K, T]) Pending() int {
	return int(s.pending.Load())
}

// Settle blocks until every outstanding mutation has been confirmed or reverted.
func (s *entityStore[K, T]) Settle(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// reset empties the collection. Pending mutations still settle, but find
// nothing to confirm or revert.
func (s *entityStore[K, T]) reset() {
	s.mu.Lock()
	s.items = nil
	s.errMsg = ""
	s.epoch++
	s.mu.Unlock()
	s.notify()
}

func (s *entityStore[K, T]) get(id K) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.items[i], true
	}
	var zero T
	return zero, false
}

// ---------------------------------------------------------------------------
// Fetch
// ---------------------------------------------------------------------------

// fetch replaces the collection with a fresh snapshot. On failure the previous
// collection is kept and the error message is set.
func (s *entityStore[K, T]) fetch(ctx context.Context, load func(context.Context) ([]T, error), failMsg string) error {
	s.mu.Lock()
	s.loading = true
	s.errMsg = ""
	s.mu.Unlock()
	s.notify()

	items, err := load(ctx)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.errMsg = userMessage(err, failMsg)
	} else {
		s.items = dedupe(items, s.keyOf)
	}
	s.mu.Unlock()
	s.notify()

	if err != nil {
		s.log.Error().Err(err).Msg("fetch failed")
		return fmt.Errorf("fetch %s: %w", s.entity, err)
	}
	s.log.Debug().Int("count", len(items)).Msg("collection refreshed")
	return nil
}

// ---------------------------------------------------------------------------
// Optimistic mutations
// ---------------------------------------------------------------------------

// create inserts tmp at the head and reconciles it through send.
func (s *entityStore[K, T]) create(tmp T, send func(context.Context) (*T, error), failMsg string) *Mutation[T] {
	tempID := s.keyOf(tmp)

	s.mu.Lock()
	s.items = append([]T{tmp}, s.items...)
	s.mu.Unlock()
	s.notify()

	m := newMutation(tmp)
	s.reconcile(tempID, "create", m, failMsg, send,
		func(confirmed T) {
			i := s.indexLocked(tempID)
			if i < 0 {
				return
			}
			if j := s.indexLocked(s.keyOf(confirmed)); j >= 0 {
				// already brought in by a concurrent fetch
				s.items[j] = confirmed
				s.removeAtLocked(i)
				return
			}
			s.items[i] = confirmed
		},
		func() {
			if i := s.indexLocked(tempID); i >= 0 {
				s.removeAtLocked(i)
			}
		},
	)
	return m
}

// update replaces the record with apply(snapshot) and reconciles it through send.
func (s *entityStore[K, T]) update(id K, apply func(T) T, send func(context.Context) (*T, error), failMsg string, notFound error) (*Mutation[T], error) {
	if s.isTemp(id) {
		return nil, errPending(id)
	}

	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return nil, notFound
	}
	original := s.items[i]
	optimistic := apply(original)
	s.items[i] = optimistic
	s.mu.Unlock()
	s.notify()

	m := newMutation(optimistic)
	s.reconcile(id, "update", m, failMsg, send,
		func(confirmed T) {
			if j := s.indexLocked(id); j >= 0 {
				s.items[j] = confirmed
			}
		},
		func() {
			if j := s.indexLocked(id); j >= 0 {
				s.items[j] = original
			}
		},
	)
	return m, nil
}

// remove drops the record and reconciles the delete through send.
func (s *entityStore[K, T]) remove(id K, send func(context.Context) error, failMsg string, notFound error) (*Mutation[T], error) {
	if s.isTemp(id) {
		return nil, errPending(id)
	}

	s.mu.Lock()
	index := s.indexLocked(id)
	if index < 0 {
		s.mu.Unlock()
		return nil, notFound
	}
	original := s.items[index]
	s.removeAtLocked(index)
	s.mu.Unlock()
	s.notify()

	m := newMutation(original)
	s.reconcile(id, "delete", m, failMsg,
		func(ctx context.Context) (*T, error) {
			if err := send(ctx); err != nil {
				return nil, err
			}
			return &original, nil
		},
		func(T) {},
		func() {
			if s.indexLocked(id) >= 0 {
				return
			}
			pos := min(index, len(s.items))
			s.items = append(s.items, original)
			copy(s.items[pos+1:], s.items[pos:])
			s.items[pos] = original
		},
	)
	return m, nil
}

// reconcile queues send keyed by id. confirm and revert run with s.mu held.
func (s *entityStore[K, T]) reconcile(
	id K,
	op string,
	m *Mutation[T],
	failMsg string,
	send func(context.Context) (*T, error),
	confirm func(T),
	revert func(),
) {
	s.inflight.Add(1)
	s.pending.Add(1)
	start := time.Now()
	s.mu.RLock()
	epoch := s.epoch
	s.mu.RUnlock()

	settle := func(confirmed *T, err error) {
		defer s.inflight.Done()
		defer s.pending.Add(-1)

		outcome := ports.OutcomeConfirmed
		s.mu.Lock()
		current := s.epoch == epoch
		if err != nil || confirmed == nil {
			if err == nil {
				err = fmt.Errorf("%s %s: empty response", s.entity, op)
			}
			outcome = ports.OutcomeReverted
			if current {
				revert()
				s.errMsg = failMsg
			}
		} else if current {
			confirm(*confirmed)
		}
		s.mu.Unlock()
		s.notify()

		elapsed := time.Since(start)
		s.obs.ObserveMutation(s.entity, op, outcome, elapsed)
		if err != nil {
			s.log.Error().Err(err).Str("op", op).Interface("id", id).Msg("optimistic mutation reverted")
			var zero T
			m.settle(zero, err)
			return
		}
		s.log.Debug().Str("op", op).Interface("id", id).Dur("elapsed", elapsed).Msg("optimistic mutation confirmed")
		m.settle(*confirmed, nil)
	}

	job := func(ctx context.Context) {
		var (
			confirmed *T
			err       error
		)
		defer func() {
			if r := recover(); r != nil {
				confirmed, err = nil, fmt.Errorf("%s %s: panic: %v", s.entity, op, r)
			}
			settle(confirmed, err)
		}()
		confirmed, err = send(ctx)
	}
	if err := s.queue.Enqueue(fmt.Sprintf("%s:%v", s.entity, id), job); err != nil {
		settle(nil, err)
	}
}

// ---------------------------------------------------------------------------
// Helpers (callers hold s.mu)
// ---------------------------------------------------------------------------

func (s *entityStore[K, T]) indexLocked(id K) int {
	for i := range s.items {
		if s.keyOf(s.items[i]) == id {
			return i
		}
	}
	return -1
}

func (s *entityStore[K, T]) removeAtLocked(i int) {
	s.items = append(s.items[:i:i], s.items[i+1:]...)
}

// dedupe keeps the first record for every key.
func dedupe[K comparable, T any](items []T, keyOf func(T) K) []T {
	seen := make(map[K]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, it := range items {
		k := keyOf(it)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}
	return out
}

func errPending(id any) error {
	return fmt.Errorf("%w: %v", domain.ErrPendingConfirmation, id)
}

// userMessage picks the message shown to the user: the backend's own text
// when it supplied one, the field list for validation errors, else fallback.
func userMessage(err error, fallback string) string {
	var be *ports.BackendError
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	var ve *validate.Error
	if errors.As(err, &ve) {
		return strings.Join(ve.Fields, "; ")
	}
	return fallback
}
