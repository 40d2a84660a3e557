// ABOUTME: Retention policy bounding the active chain by state count and memory
// ABOUTME: Evicts oldest entries first; never evicts the current pointer or the last state

package history

// enforceRetentionLocked trims the front of the active chain. Must hold mu.
func (e *Engine[T]) enforceRetentionLocked() {
	br := e.branches[e.active]

	if limit := e.opts.MaxStates; limit > 0 {
		for len(br.StateIDs) > limit && br.StateIDs[0] != e.current {
			e.evictFrontLocked(br)
		}
	}

	if budget := e.opts.MaxMemory; budget > 0 {
		total := e.chainMemoryLocked(br)
		for total > budget && len(br.StateIDs) > 1 && br.StateIDs[0] != e.current {
			if ent, ok := e.states[br.StateIDs[0]]; ok {
				total -= ent.state.Metadata.MemoryUsage
			}
			e.evictFrontLocked(br)
		}
	}
}

func (e *Engine[T]) evictFrontLocked(br *Branch) {
	id := br.StateIDs[0]
	br.StateIDs = br.StateIDs[1:]
	e.dropLocked(br.ID, id, ReasonEvicted)
}

// chainMemoryLocked sums recorded MemoryUsage over a chain. Must hold mu.
func (e *Engine[T]) chainMemoryLocked(br *Branch) int64 {
	var total int64
	for _, id := range br.StateIDs {
		if ent, ok := e.states[id]; ok {
			total += ent.state.Metadata.MemoryUsage
		}
	}
	return total
}
