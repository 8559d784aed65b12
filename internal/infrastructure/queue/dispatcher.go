package queue

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/inventaris/inventory-state/internal/core/ports"
)

const (
	defaultWorkers = 8
	channelBuffer  = 256
)

type job struct {
	key string
	run func(ctx context.Context)
}

// Dispatcher routes reconciliation jobs to a fixed set of workers using
// consistent hashing on the record key, guaranteeing per-record ordering.
type Dispatcher struct {
	workers []chan job
	log     zerolog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

var _ ports.MutationQueue = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan job, numWorkers),
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan job, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Jobs receive ctx's values but not its
// cancellation: a dispatched mutation always reaches the backend. Close bounds
// the drain.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Enqueue sends a job to the worker responsible for key. The call is
// non-blocking up to channelBuffer capacity.
func (d *Dispatcher) Enqueue(key string, run func(ctx context.Context)) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ports.ErrQueueClosed
	}
	d.workers[d.shardIndex(key)] <- job{key: key, run: run}
	return nil
}

// Close stops accepting jobs and waits until the queued ones have run.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, ch := range d.workers {
		close(ch)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// shardIndex maps a key deterministically to a worker index.
func (d *Dispatcher) shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan job) {
	defer d.wg.Done()
	for j := range ch {
		d.run(ctx, id, j)
	}
}

func (d *Dispatcher) run(ctx context.Context, id int, j job) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().
				Interface("panic", r).
				Str("key", j.key).
				Int("worker_id", id).
				Msg("reconciliation job panicked")
		}
	}()
	j.run(ctx)
}
