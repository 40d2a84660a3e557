// ABOUTME: Pointer navigation along the active chain: undo, redo and direct jumps
// ABOUTME: Boundaries and unknown ids report false instead of failing

package history

import "slices"

// Undo moves the current pointer one step back and returns the now-current state.
func (e *Engine[T]) Undo() (State[T], bool) {
	e.mu.Lock()
	defer e.finish()
	defer e.mu.Unlock()

	if e.disposed {
		return State[T]{}, false
	}
	e.commitPendingLocked()
	chain := e.branches[e.active].StateIDs
	idx := slices.Index(chain, e.current)
	if idx <= 0 {
		return State[T]{}, false
	}
	e.current = chain[idx-1]
	st := e.materializeLocked(e.states[e.current])
	e.emitLocked(Undone[T]{State: st})
	e.dirty = true
	return st, true
}

// Redo moves the current pointer one step forward and returns the now-current state.
func (e *Engine[T]) Redo() (State[T], bool) {
	e.mu.Lock()
	defer e.finish()
	defer e.mu.Unlock()

	if e.disposed {
		return State[T]{}, false
	}
	e.commitPendingLocked()
	chain := e.branches[e.active].StateIDs
	idx := slices.Index(chain, e.current)
	if idx < 0 || idx >= len(chain)-1 {
		return State[T]{}, false
	}
	e.current = chain[idx+1]
	st := e.materializeLocked(e.states[e.current])
	e.emitLocked(Redone[T]{State: st})
	e.dirty = true
	return st, true
}

// GoToState jumps to any known state, activating a branch that holds it when
// it is not on the active chain.
func (e *Engine[T]) GoToState(id StateID) (State[T], bool) {
	e.mu.Lock()
	defer e.finish()
	defer e.mu.Unlock()

	ent, ok := e.states[id]
	if !ok || e.disposed {
		return State[T]{}, false
	}
	br := e.branchContainingLocked(id)
	if br == nil {
		return State[T]{}, false
	}
	e.commitPendingLocked()
	if br.ID != e.active {
		e.activateLocked(br)
	}
	e.current = id
	e.dirty = true
	return e.materializeLocked(ent), true
}

// CanUndo reports whether Undo would move the pointer.
func (e *Engine[T]) CanUndo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Index(e.branches[e.active].StateIDs, e.current) > 0
}

// CanRedo reports whether Redo would move the pointer.
func (e *Engine[T]) CanRedo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	chain := e.branches[e.active].StateIDs
	idx := slices.Index(chain, e.current)
	return idx >= 0 && idx < len(chain)-1
}
