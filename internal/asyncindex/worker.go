// Package asyncindex implements the background worker that installs
// embeddings into the vector index off the write path: durability is
// acknowledged on WAL append, searchability follows after a bounded
// delay once the worker drains the queue.
package asyncindex

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrClosed is returned by Enqueue once the worker has been closed.
var ErrClosed = errors.New("asyncindex: closed")

// Job is one pending vector-index installation.
type Job struct {
	NodeID uint64
	Vector []float32
}

// Install is called by the worker, on its own goroutine, for every
// dequeued job, in enqueue order. It must not block on anything the
// caller's writer lease also depends on.
type Install func(job Job) error

// Worker absorbs vector-index installations off the write path. It runs
// a single background goroutine coordinated with errgroup.Group, the
// same coordinated-shutdown mechanism the caching store uses for its
// parallel block fetches, applied here to a single long-lived worker
// instead of a fan-out. Enqueue blocks when the bounded channel is full
// rather than dropping work — the engine never silently loses an
// indexing request.
type Worker struct {
	install Install
	jobs    chan Job

	mu   sync.Mutex
	idle chan struct{} // closed while the worker has nothing pending

	// closeMu serializes sending on jobs against closing it: Enqueue
	// holds the read side for the duration of its send, Close takes the
	// write side before calling close(jobs). Since close(closed) wakes
	// any Enqueue blocked on the send, Close's Lock can never deadlock
	// waiting on a send that will never complete.
	closeMu sync.RWMutex

	group  *errgroup.Group
	cancel context.CancelFunc

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

// New starts a worker with the given queue capacity, calling install for
// every job in the order it was enqueued. capacity must be positive.
func New(capacity int, install Install) *Worker {
	if capacity <= 0 {
		capacity = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	g, _ := errgroup.WithContext(ctx)

	w := &Worker{
		install: install,
		jobs:    make(chan Job, capacity),
		idle:    make(chan struct{}),
		group:   g,
		cancel:  cancel,
		closed:  make(chan struct{}),
	}
	close(w.idle) // starts idle

	g.Go(func() error {
		w.run()
		return nil
	})
	return w
}

func (w *Worker) run() {
	for job := range w.jobs {
		err := w.install(job)
		if err != nil {
			w.mu.Lock()
			if w.closeErr == nil {
				w.closeErr = err
			}
			w.mu.Unlock()
		}
		w.markIdleIfDrained()
	}
}

func (w *Worker) markIdleIfDrained() {
	if len(w.jobs) > 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.idle:
		// already idle
	default:
		close(w.idle)
	}
}

// Enqueue submits a job, blocking until there is room in the queue. It
// returns ErrClosed if the worker has been closed.
func (w *Worker) Enqueue(job Job) error {
	select {
	case <-w.closed:
		return ErrClosed
	default:
	}

	w.closeMu.RLock()
	defer w.closeMu.RUnlock()

	select {
	case <-w.closed:
		return ErrClosed
	default:
	}

	w.mu.Lock()
	select {
	case <-w.idle:
		w.idle = make(chan struct{})
	default:
	}
	w.mu.Unlock()

	select {
	case w.jobs <- job:
		return nil
	case <-w.closed:
		return ErrClosed
	}
}

// Flush blocks until the queue is empty and the worker is idle. Tests
// and shutdown paths use it for deterministic visibility of
// asynchronously indexed embeddings.
func (w *Worker) Flush() error {
	w.mu.Lock()
	idle := w.idle
	w.mu.Unlock()
	<-idle
	w.mu.Lock()
	err := w.closeErr
	w.mu.Unlock()
	return err
}

// Close stops accepting new jobs, waits for the queue to drain, and
// shuts down the worker goroutine. It is safe to call more than once.
func (w *Worker) Close() error {
	w.closeOnce.Do(func() {
		close(w.closed) // wakes any Enqueue blocked on a full channel
		w.closeMu.Lock()
		close(w.jobs)
		w.closeMu.Unlock()
		_ = w.group.Wait()
		w.cancel()
	})
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeErr
}
