// ABOUTME: Time-windowed coalescing of rapid pushes into one pending state
// ABOUTME: A cancellable deferred commit finalizes the pending state after a quiet period

package history

import (
	"time"
)

// canCoalesceLocked reports whether a push at now folds into the pending state.
// The pending state must still be the current pointer. Must hold mu.
func (e *Engine[T]) canCoalesceLocked(now time.Time) bool {
	if e.pending == 0 || e.window <= 0 || e.pending != e.current {
		return false
	}
	if _, ok := e.states[e.pending]; !ok {
		return false
	}
	return e.window == infiniteWindow || now.Sub(e.lastPush) < e.window
}

// coalesceLocked updates the pending state in place. Must hold mu.
func (e *Engine[T]) coalesceLocked(now time.Time, data T, cfg pushConfig) (State[T], error) {
	stored, packed, size, err := e.encodeData(data)
	if err != nil {
		return State[T]{}, err
	}
	ent := e.states[e.pending]
	ent.state.Data = stored
	ent.packed = packed
	ent.state.Timestamp = now
	meta := cfg.metadata
	meta.MemoryUsage = size
	meta.Compressed = packed != nil
	ent.state.Metadata = meta
	if cfg.description != "" {
		ent.state.Description = cfg.description
	}
	if ent.thumbs > 0 {
		// The old preview no longer matches the payload.
		ent.state.Thumbnail = ""
		e.queueThumbLocked(ent, data)
	}

	e.lastPush = now
	e.scheduleCommitLocked()

	pub := e.publicState(ent, data)
	e.emitLocked(StateUpdated[T]{State: pub})
	e.dirty = true
	return pub, nil
}

// scheduleCommitLocked (re)arms the deferred commit for the pending state. Must hold mu.
func (e *Engine[T]) scheduleCommitLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.timerGen++
	if e.window <= 0 || e.window == infiniteWindow {
		return
	}
	gen := e.timerGen
	e.timer = e.opts.Clock.AfterFunc(e.window, func() {
		e.onCommitTimer(gen)
	})
}

func (e *Engine[T]) onCommitTimer(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	// A newer push or an explicit commit superseded this timer.
	if gen != e.timerGen {
		return
	}
	e.timer = nil
	e.pending = 0
}

// commitPendingLocked finalizes the pending state and cancels its timer. Must hold mu.
func (e *Engine[T]) commitPendingLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.timerGen++
	e.pending = 0
}

// Pending returns the id of the state still open for coalescing, or 0.
func (e *Engine[T]) Pending() StateID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending
}

// Commit finalizes the pending state immediately.
func (e *Engine[T]) Commit() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commitPendingLocked()
}

// Batch runs fn with an unbounded coalesce window so that every push inside
// fn collapses into a single state, which is then renamed to name and committed.
// The original window is restored even if fn fails or panics.
func (e *Engine[T]) Batch(name string, fn func() error) error {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return ErrDisposed
	}
	e.commitPendingLocked()
	saved := e.window
	e.window = infiniteWindow
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.window = saved
		if ent, ok := e.states[e.pending]; ok && name != "" {
			ent.state.Name = name
			e.dirty = true
		}
		e.commitPendingLocked()
		e.mu.Unlock()
		e.finish()
	}()

	return fn()
}
