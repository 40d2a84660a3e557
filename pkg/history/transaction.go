// ABOUTME: Transactions group pushes so they can be rolled back as a unit
// ABOUTME: Rollback removes exactly the recorded states and restores the starting pointer

package history

import (
	"slices"

	"github.com/mauromedda/canvas-history-go/internal/log"
)

// Transaction records the states pushed through it.
//
// Transactions must not interleave with unrelated pushes. Forking inside a
// transaction is unsupported: Rollback strips the transaction's states and
// re-activates the starting branch, but the forked branch itself remains.
type Transaction[T any] struct {
	e            *Engine[T]
	name         string
	startCurrent StateID
	startBranch  BranchID
	ids          []StateID
	closed       bool
}

// Transaction begins a transaction. Any pending coalesced state is committed
// first so that rollback never touches states from before the transaction.
func (e *Engine[T]) Transaction(name string) *Transaction[T] {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commitPendingLocked()
	return &Transaction[T]{
		e:            e,
		name:         name,
		startCurrent: e.current,
		startBranch:  e.active,
	}
}

// Name returns the transaction label.
func (tx *Transaction[T]) Name() string { return tx.name }

// Len returns how many states the transaction has added.
func (tx *Transaction[T]) Len() int { return len(tx.ids) }

// Push behaves like Engine.Push and records the new state id.
func (tx *Transaction[T]) Push(name string, data T, opts ...PushOption) (State[T], error) {
	if tx.closed {
		return State[T]{}, ErrTransactionClosed
	}
	st, added, err := tx.e.push(name, data, opts)
	if err != nil {
		return st, err
	}
	if added && !slices.Contains(tx.ids, st.ID) {
		tx.ids = append(tx.ids, st.ID)
	}
	return st, nil
}

// Commit closes the transaction and returns the number of states it added.
// The states are already recorded, so nothing else changes.
func (tx *Transaction[T]) Commit() (int, error) {
	if tx.closed {
		return 0, ErrTransactionClosed
	}
	tx.closed = true
	return len(tx.ids), nil
}

// Rollback removes the transaction's states newest first and restores the
// current pointer to where it was when the transaction began.
func (tx *Transaction[T]) Rollback() error {
	if tx.closed {
		return ErrTransactionClosed
	}
	tx.closed = true

	e := tx.e
	e.mu.Lock()
	defer e.finish()
	defer e.mu.Unlock()

	if e.disposed {
		return ErrDisposed
	}
	e.commitPendingLocked()

	for i := len(tx.ids) - 1; i >= 0; i-- {
		id := tx.ids[i]
		for _, bid := range e.branchOrder {
			br := e.branches[bid]
			if idx := slices.Index(br.StateIDs, id); idx >= 0 {
				br.StateIDs = slices.Delete(slices.Clone(br.StateIDs), idx, idx+1)
				e.dropLocked(bid, id, ReasonRolledBack)
			}
		}
	}

	if e.active != tx.startBranch {
		log.Warn("history: transaction %q forked branch %s; leaving it in place", tx.name, e.active)
		if br, ok := e.branches[tx.startBranch]; ok {
			e.activateLocked(br)
		}
	}

	if _, ok := e.states[tx.startCurrent]; ok || tx.startCurrent == 0 {
		e.current = tx.startCurrent
	} else {
		e.current = e.branches[e.active].Tip()
	}
	e.dirty = true
	return nil
}
