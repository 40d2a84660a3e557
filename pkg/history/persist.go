// ABOUTME: Persistence of the full engine state as one checksummed record in a kv.Sink
// ABOUTME: Load rebuilds the arena and branch graph and validates every reference

package history

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/mailru/easyjson"

	"github.com/mauromedda/canvas-history-go/internal/log"
	"github.com/mauromedda/canvas-history-go/pkg/compress"
)

// encodeRecordLocked serializes the whole engine. Must hold mu.
func (e *Engine[T]) encodeRecordLocked() (string, error) {
	rec := record{
		Version:        recordVersion,
		Codec:          e.opts.Codec.Name(),
		CurrentStateID: uint64(e.current),
		ActiveBranchID: string(e.active),
		NextStateID:    uint64(e.nextID),
	}

	ids := make([]StateID, 0, len(e.states))
	for id := range e.states {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	rec.States = make([]stateRecord, 0, len(ids))
	for _, id := range ids {
		ent := e.states[id]
		st := ent.state
		sr := stateRecord{
			ID:          uint64(st.ID),
			ParentID:    uint64(st.ParentID),
			BranchID:    string(st.BranchID),
			Timestamp:   st.Timestamp,
			Name:        st.Name,
			Description: st.Description,
			Thumbnail:   st.Thumbnail,
			Metadata: metadataRecord{
				Tool:        st.Metadata.Tool,
				LayerID:     st.Metadata.LayerID,
				MemoryUsage: st.Metadata.MemoryUsage,
				Compressed:  ent.packed != nil,
				Attrs:       st.Metadata.Attrs,
			},
		}
		if ent.packed != nil {
			sr.Packed = ent.packed
		} else {
			raw, err := json.Marshal(st.Data)
			if err != nil {
				return "", fmt.Errorf("encoding state %d: %w", id, err)
			}
			sr.Data = raw
		}
		rec.States = append(rec.States, sr)
	}

	rec.Branches = make([]branchRecord, 0, len(e.branchOrder))
	for _, bid := range e.branchOrder {
		br := e.branches[bid]
		stateIDs := make([]uint64, len(br.StateIDs))
		for i, id := range br.StateIDs {
			stateIDs[i] = uint64(id)
		}
		rec.Branches = append(rec.Branches, branchRecord{
			ID:            string(br.ID),
			Name:          br.Name,
			ParentStateID: uint64(br.ParentStateID),
			CreatedAt:     br.CreatedAt,
			StateIDs:      stateIDs,
			Active:        br.ID == e.active,
		})
	}

	raw, err := easyjson.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encoding record: %w", err)
	}
	return string(raw), nil
}

// Save writes the full engine state to the sink immediately, regardless of
// Options.Persistent.
func (e *Engine[T]) Save() error {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return ErrDisposed
	}
	sink, key := e.opts.Sink, e.opts.StorageKey
	if sink == nil {
		e.mu.Unlock()
		return ErrNoSink
	}
	payload, err := e.encodeRecordLocked()
	e.mu.Unlock()
	if err != nil {
		return err
	}
	if err := sink.Set(key, payload); err != nil {
		return fmt.Errorf("writing %q: %w", key, err)
	}
	e.mu.Lock()
	e.held = false
	e.mu.Unlock()
	return nil
}

// Load replaces the engine contents with the record stored in the sink.
// It reports false with a nil error when no record exists. On error the
// engine is left unchanged.
func (e *Engine[T]) Load() (bool, error) {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return false, ErrDisposed
	}
	sink, key := e.opts.Sink, e.opts.StorageKey
	e.mu.Unlock()
	if sink == nil {
		return false, ErrNoSink
	}

	raw, ok, err := sink.Get(key)
	if err != nil {
		return false, fmt.Errorf("reading %q: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	var rec record
	if err := easyjson.Unmarshal([]byte(raw), &rec); err != nil {
		return false, fmt.Errorf("decoding %q: %w", key, err)
	}
	if rec.Version != recordVersion {
		return false, fmt.Errorf("decoding %q: unsupported record version %d", key, rec.Version)
	}

	e.mu.Lock()
	defer e.finish()
	defer e.mu.Unlock()

	states, branches, order, cur, err := e.rebuild(&rec)
	if err != nil {
		return false, fmt.Errorf("restoring %q: %w", key, err)
	}

	e.commitPendingLocked()
	e.states = states
	e.branches = branches
	e.branchOrder = order
	e.active = BranchID(rec.ActiveBranchID)
	e.current = cur
	e.pushCount = len(states)
	next := StateID(rec.NextStateID)
	for id := range states {
		next = max(next, id)
	}
	e.nextID = max(e.nextID, next)
	for _, br := range branches {
		br.Active = br.ID == e.active
	}

	e.emitLocked(Restored{CurrentStateID: e.current, ActiveBranchID: e.active, States: len(states)})
	// The sink already holds exactly this state.
	e.dirty = false
	e.held = false
	return true, nil
}

// rebuild turns a decoded record into a store, a branch graph and the current
// pointer. Must hold mu.
func (e *Engine[T]) rebuild(rec *record) (map[StateID]*entry[T], map[BranchID]*Branch, []BranchID, StateID, error) {
	codec := e.opts.Codec
	if rec.Codec != codec.Name() {
		c, err := compress.ByName(rec.Codec)
		if err != nil {
			return nil, nil, nil, 0, err
		}
		codec = c
	}

	states := make(map[StateID]*entry[T], len(rec.States))
	for _, sr := range rec.States {
		id := StateID(sr.ID)
		if id == 0 {
			return nil, nil, nil, 0, fmt.Errorf("state with zero id")
		}
		if _, dup := states[id]; dup {
			return nil, nil, nil, 0, fmt.Errorf("duplicate state %d", id)
		}
		ent := &entry[T]{state: State[T]{
			ID:          id,
			ParentID:    StateID(sr.ParentID),
			BranchID:    BranchID(sr.BranchID),
			Timestamp:   sr.Timestamp,
			Name:        sr.Name,
			Description: sr.Description,
			Thumbnail:   sr.Thumbnail,
			Metadata: Metadata{
				Tool:        sr.Metadata.Tool,
				LayerID:     sr.Metadata.LayerID,
				MemoryUsage: sr.Metadata.MemoryUsage,
				Compressed:  sr.Metadata.Compressed,
				Attrs:       sr.Metadata.Attrs,
			},
		}}
		if sr.Metadata.Compressed {
			if err := e.adoptPacked(ent, sr.Packed, codec); err != nil {
				return nil, nil, nil, 0, fmt.Errorf("state %d: %w", id, err)
			}
		} else if len(sr.Data) > 0 {
			if err := json.Unmarshal(sr.Data, &ent.state.Data); err != nil {
				return nil, nil, nil, 0, fmt.Errorf("decoding state %d: %w", id, err)
			}
		}
		states[id] = ent
	}

	branches := make(map[BranchID]*Branch, len(rec.Branches))
	order := make([]BranchID, 0, len(rec.Branches))
	for _, brec := range rec.Branches {
		bid := BranchID(brec.ID)
		if _, dup := branches[bid]; dup {
			return nil, nil, nil, 0, fmt.Errorf("duplicate branch %q", bid)
		}
		br := &Branch{
			ID:            bid,
			Name:          brec.Name,
			ParentStateID: StateID(brec.ParentStateID),
			CreatedAt:     brec.CreatedAt,
			StateIDs:      make([]StateID, 0, len(brec.StateIDs)),
		}
		for _, raw := range brec.StateIDs {
			id := StateID(raw)
			if _, ok := states[id]; !ok {
				return nil, nil, nil, 0, fmt.Errorf("branch %q references unknown state %d", bid, id)
			}
			br.StateIDs = append(br.StateIDs, id)
		}
		branches[bid] = br
		order = append(order, bid)
	}

	active, ok := branches[BranchID(rec.ActiveBranchID)]
	if !ok {
		return nil, nil, nil, 0, fmt.Errorf("unknown active branch %q", rec.ActiveBranchID)
	}
	cur := StateID(rec.CurrentStateID)
	switch {
	case cur == 0 && len(active.StateIDs) > 0:
		// A non-empty chain always has a current state; resume at its tip.
		cur = active.Tip()
		log.Warn("history: record has no current state on branch %q; using tip %d", active.ID, cur)
	case cur != 0 && !slices.Contains(active.StateIDs, cur):
		return nil, nil, nil, 0, fmt.Errorf("current state %d is not on the active branch", cur)
	}
	return states, branches, order, cur, nil
}

// adoptPacked installs a payload packed with codec into ent. Payloads from a
// codec other than the engine's are unpacked and stored the way this engine
// stores new pushes. Must hold mu.
func (e *Engine[T]) adoptPacked(ent *entry[T], packed []byte, codec compress.Codec) error {
	if codec.Name() == e.opts.Codec.Name() {
		ent.packed = packed
		if ent.packed == nil {
			ent.packed = []byte{}
		}
		ent.state.Metadata.Compressed = true
		return nil
	}

	raw, err := codec.Decompress(packed)
	if err != nil {
		return fmt.Errorf("unpacking %s payload: %w", codec.Name(), err)
	}
	var data T
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("decoding %s payload: %w", codec.Name(), err)
	}
	stored, repacked, size, err := e.encodeData(data)
	if err != nil {
		return err
	}
	ent.state.Data = stored
	ent.packed = repacked
	ent.state.Metadata.MemoryUsage = size
	ent.state.Metadata.Compressed = repacked != nil
	return nil
}
