// ABOUTME: Fire-and-forget Sink wrapper that writes on a background goroutine
// ABOUTME: Latest value per key wins; failures are logged, Flush/Close drain the queue

package kv

import (
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mauromedda/canvas-history-go/internal/log"
)

// Async defers writes to next. Only the newest pending value per key is written.
// Reads see queued values, then values being written, then next, so a Get
// after Set is always consistent.
type Async struct {
	next Sink

	mu       sync.Mutex
	idle     *sync.Cond
	pending  map[string]string
	inflight map[string]string // batch being written, nil when idle
	closed   bool
	errs     []error

	wake chan struct{}
	stop chan struct{}
	g    errgroup.Group
}

// NewAsync starts the background writer over next.
func NewAsync(next Sink) *Async {
	a := &Async{
		next:    next,
		pending: make(map[string]string),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
	a.idle = sync.NewCond(&a.mu)
	a.g.Go(func() error {
		a.loop()
		return nil
	})
	return a
}

// Get returns a queued or in-flight value when one exists, otherwise reads through.
func (a *Async) Get(key string) (string, bool, error) {
	a.mu.Lock()
	v, ok := a.pending[key]
	if !ok {
		v, ok = a.inflight[key]
	}
	a.mu.Unlock()
	if ok {
		return v, true, nil
	}
	return a.next.Get(key)
}

// Set queues value for key and returns immediately.
func (a *Async) Set(key, value string) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	a.pending[key] = value
	a.mu.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
	}
	return nil
}

// Flush blocks until every queued write has been attempted.
func (a *Async) Flush() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for len(a.pending) > 0 || a.inflight != nil {
		a.idle.Wait()
	}
}

// Close drains the queue, stops the writer and returns accumulated write errors.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	close(a.stop)
	_ = a.g.Wait()
	a.drain()

	a.mu.Lock()
	defer a.mu.Unlock()
	return errors.Join(a.errs...)
}

func (a *Async) loop() {
	for {
		select {
		case <-a.stop:
			return
		case <-a.wake:
			a.drain()
		}
	}
}

func (a *Async) drain() {
	a.mu.Lock()
	batch := a.pending
	a.pending = make(map[string]string)
	a.inflight = batch
	a.mu.Unlock()

	var failed []error
	for k, v := range batch {
		if err := a.next.Set(k, v); err != nil {
			log.Warn("kv: async write of %s failed: %v", k, err)
			failed = append(failed, err)
		}
	}

	a.mu.Lock()
	a.inflight = nil
	a.errs = append(a.errs, failed...)
	a.idle.Broadcast()
	a.mu.Unlock()
}
