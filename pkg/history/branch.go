// ABOUTME: Branch graph: forking chains from a fork point and switching the active branch
// ABOUTME: A fork copies the origin chain up to and including the fork point

package history

import (
	"fmt"
	"slices"
)

// CreateBranch forks a new branch from the given state (default: the current
// pointer), activates it and moves the current pointer to the fork point.
func (e *Engine[T]) CreateBranch(name string, from ...StateID) (Branch, error) {
	e.mu.Lock()
	defer e.finish()
	defer e.mu.Unlock()

	if e.disposed {
		return Branch{}, ErrDisposed
	}
	if !e.opts.Branching {
		return Branch{}, ErrBranchingDisabled
	}
	e.commitPendingLocked()

	fork := e.current
	if len(from) > 0 {
		fork = from[0]
	}
	if fork != 0 {
		if _, ok := e.states[fork]; !ok {
			return Branch{}, fmt.Errorf("forking from %d: %w", fork, ErrStateNotFound)
		}
		if e.branchContainingLocked(fork) == nil {
			return Branch{}, fmt.Errorf("forking from %d: not on any branch: %w", fork, ErrStateNotFound)
		}
	}

	br := e.forkLocked(name, fork)
	e.dirty = true
	return br.clone(), nil
}

// SwitchBranch activates the branch and moves the current pointer to its tip.
// It reports false for an unknown branch id.
func (e *Engine[T]) SwitchBranch(id BranchID) (Branch, bool) {
	e.mu.Lock()
	defer e.finish()
	defer e.mu.Unlock()

	br, ok := e.branches[id]
	if !ok || e.disposed {
		return Branch{}, false
	}
	e.commitPendingLocked()
	e.activateLocked(br)
	e.current = br.Tip()
	e.dirty = true
	return br.clone(), true
}

// forkLocked creates and activates a branch whose chain is the origin chain
// truncated at fork. An empty name gets a generated one. Must hold mu.
func (e *Engine[T]) forkLocked(name string, fork StateID) *Branch {
	var ids []StateID
	if fork != 0 {
		origin := e.branchContainingLocked(fork)
		idx := slices.Index(origin.StateIDs, fork)
		ids = slices.Clone(origin.StateIDs[:idx+1])
	}
	if name == "" {
		name = fmt.Sprintf("Branch %d", len(e.branchOrder)+1)
	}

	br := &Branch{
		ID:            BranchID(e.opts.NewBranchID()),
		Name:          name,
		ParentStateID: fork,
		CreatedAt:     e.opts.Clock.Now(),
		StateIDs:      ids,
	}
	e.branches[br.ID] = br
	e.branchOrder = append(e.branchOrder, br.ID)

	prev := e.branches[e.active]
	prev.Active = false
	br.Active = true
	e.active = br.ID
	e.current = fork

	e.emitLocked(BranchCreated{Branch: br.clone()})
	return br
}

// activateLocked makes br the active branch, emitting BranchSwitched. Must hold mu.
func (e *Engine[T]) activateLocked(br *Branch) {
	prev := e.active
	if prevBr, ok := e.branches[prev]; ok {
		prevBr.Active = false
	}
	br.Active = true
	e.active = br.ID
	e.emitLocked(BranchSwitched{From: prev, To: br.ID})
}

// branchContainingLocked finds a branch whose chain holds id, preferring the
// active branch and then the state's own branch. Must hold mu.
func (e *Engine[T]) branchContainingLocked(id StateID) *Branch {
	if br := e.branches[e.active]; slices.Contains(br.StateIDs, id) {
		return br
	}
	if ent, ok := e.states[id]; ok {
		if br, ok := e.branches[ent.state.BranchID]; ok && slices.Contains(br.StateIDs, id) {
			return br
		}
	}
	for _, bid := range e.branchOrder {
		if br := e.branches[bid]; slices.Contains(br.StateIDs, id) {
			return br
		}
	}
	return nil
}

// referencedLocked reports whether any branch chain still holds id. Must hold mu.
func (e *Engine[T]) referencedLocked(id StateID) bool {
	for _, br := range e.branches {
		if slices.Contains(br.StateIDs, id) {
			return true
		}
	}
	return false
}

// truncateAfterCurrentLocked discards every state forward of the current
// pointer on the active branch (linear history). Must hold mu.
func (e *Engine[T]) truncateAfterCurrentLocked() {
	br := e.branches[e.active]
	idx := slices.Index(br.StateIDs, e.current)
	if idx < 0 || idx == len(br.StateIDs)-1 {
		return
	}
	removed := slices.Clone(br.StateIDs[idx+1:])
	br.StateIDs = slices.Clone(br.StateIDs[:idx+1])
	for _, id := range removed {
		e.dropLocked(br.ID, id, ReasonTruncated)
	}
}

// dropLocked records that id left branch bid and deletes it from the store
// once no chain references it. The caller has already detached id. Must hold mu.
func (e *Engine[T]) dropLocked(bid BranchID, id StateID, reason RemoveReason) {
	deleted := false
	if !e.referencedLocked(id) {
		delete(e.states, id)
		deleted = true
		if e.pending == id {
			e.commitPendingLocked()
		}
	}
	e.emitLocked(StateRemoved{ID: id, BranchID: bid, Reason: reason, Deleted: deleted})
}
