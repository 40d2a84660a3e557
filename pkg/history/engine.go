// ABOUTME: Engine owns the state arena, branch graph, current pointer and listeners
// ABOUTME: Push records snapshots; side effects (events, thumbnails, persistence) run after unlock

package history

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/mauromedda/canvas-history-go/internal/eventbus"
	"github.com/mauromedda/canvas-history-go/internal/log"
	"github.com/mauromedda/canvas-history-go/pkg/clock"
	"github.com/mauromedda/canvas-history-go/pkg/thumbnail"
)

// entry is a stored state. When packed is non-nil the payload lives there and
// state.Data is the zero value.
type entry[T any] struct {
	state  State[T]
	packed []byte
	// thumbs counts thumbnail jobs queued for this state; 0 means it never
	// gets one. Only the newest job may write its handle.
	thumbs uint64
}

type thumbJob[T any] struct {
	id   StateID
	seq  uint64
	data T
}

// Engine is a branching undo/redo history over snapshots of type T.
//
// The engine expects a single logical caller. Its mutex only protects against
// the coalesce timer, which fires on another goroutine with the real clock.
type Engine[T any] struct {
	mu   sync.Mutex
	opts Options

	states      map[StateID]*entry[T]
	branches    map[BranchID]*Branch
	branchOrder []BranchID
	active      BranchID
	current     StateID
	nextID      StateID
	pushCount   int

	window   time.Duration
	pending  StateID
	lastPush time.Time
	timer    clock.Timer
	timerGen uint64

	bus       *eventbus.Bus[Event[T]]
	thumb     thumbnail.Generator[T]
	outbox    []Event[T]
	thumbJobs []thumbJob[T]
	dirty     bool
	disposed  bool
	// held stops automatic flushes after a failed load so the unreadable
	// record is not overwritten. Save, Clear and a successful Load release it.
	held bool
}

// New creates an engine. When opts.Persistent is set and a Sink is configured,
// any stored record is loaded. On a load failure the engine starts empty and
// does not write to the sink until Save or Clear is called.
func New[T any](opts Options) *Engine[T] {
	opts.fillDefaults()
	e := &Engine[T]{
		opts:   opts,
		window: opts.CoalesceWindow,
		bus:    eventbus.New[Event[T]](),
		thumb:  thumbnail.None[T](),
	}
	e.resetLocked()

	if opts.Persistent {
		if opts.Sink == nil {
			log.Warn("history: persistence requested without a sink; running in memory")
		} else if _, err := e.Load(); err != nil {
			log.Warn("history: loading %q failed, starting empty with autosave paused until Save or Clear: %v", opts.StorageKey, err)
			e.held = true
		}
	}
	return e
}

// resetLocked installs an empty store with a fresh main branch. Must hold mu.
func (e *Engine[T]) resetLocked() {
	e.states = make(map[StateID]*entry[T])
	e.branches = map[BranchID]*Branch{
		MainBranch: {
			ID:        MainBranch,
			Name:      "Main",
			CreatedAt: e.opts.Clock.Now(),
			Active:    true,
		},
	}
	e.branchOrder = []BranchID{MainBranch}
	e.active = MainBranch
	e.current = 0
	e.pushCount = 0
}

// finish publishes buffered events, runs thumbnail jobs and flushes persistence.
// It must be called without holding mu.
func (e *Engine[T]) finish() {
	e.mu.Lock()
	jobs := e.thumbJobs
	e.thumbJobs = nil
	gen := e.thumb
	e.mu.Unlock()

	for _, j := range jobs {
		handle, err := gen(j.data)
		if err != nil {
			log.Warn("history: thumbnail for state %d failed: %v", j.id, err)
			continue
		}
		e.mu.Lock()
		if ent, ok := e.states[j.id]; ok && ent.thumbs == j.seq && handle != "" {
			ent.state.Thumbnail = handle
			e.dirty = true
		}
		e.mu.Unlock()
	}

	e.mu.Lock()
	events := e.outbox
	e.outbox = nil
	var payload string
	var err error
	save := e.dirty && e.persistentLocked()
	if save {
		payload, err = e.encodeRecordLocked()
	}
	e.dirty = false
	sink, key := e.opts.Sink, e.opts.StorageKey
	e.mu.Unlock()

	if save {
		if err == nil {
			err = sink.Set(key, payload)
		}
		if err != nil {
			log.Warn("history: persisting %q failed: %v", key, err)
		}
	}

	for _, ev := range events {
		e.bus.Publish(ev)
	}
}

func (e *Engine[T]) persistentLocked() bool {
	return e.opts.Persistent && e.opts.Sink != nil && !e.disposed && !e.held
}

func (e *Engine[T]) emitLocked(ev Event[T]) {
	e.outbox = append(e.outbox, ev)
}

// Subscribe registers a listener for every engine event and returns its
// unsubscribe function. Listeners run after the operation completes, in
// registration order, and may call back into the engine.
func (e *Engine[T]) Subscribe(fn func(Event[T])) func() {
	return e.bus.Subscribe(fn)
}

// SetThumbnailer replaces the preview generator. Nil restores the no-op placeholder.
func (e *Engine[T]) SetThumbnailer(gen thumbnail.Generator[T]) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen == nil {
		gen = thumbnail.None[T]()
	}
	e.thumb = gen
}

// Push records data as the next state of the active branch, or coalesces it
// into the pending state when it arrives within the coalesce window.
func (e *Engine[T]) Push(name string, data T, opts ...PushOption) (State[T], error) {
	st, _, err := e.push(name, data, opts)
	return st, err
}

func (e *Engine[T]) push(name string, data T, opts []PushOption) (State[T], bool, error) {
	e.mu.Lock()
	defer e.finish()
	defer e.mu.Unlock()

	if e.disposed {
		return State[T]{}, false, ErrDisposed
	}
	var cfg pushConfig
	for _, o := range opts {
		o(&cfg)
	}
	now := e.opts.Clock.Now()

	if e.canCoalesceLocked(now) {
		st, err := e.coalesceLocked(now, data, cfg)
		return st, false, err
	}
	e.commitPendingLocked()

	stored, packed, size, err := e.encodeData(data)
	if err != nil {
		return State[T]{}, false, err
	}

	br := e.branches[e.active]
	if e.current != 0 && e.current != br.Tip() {
		if e.opts.Branching {
			br = e.forkLocked("", e.current)
		} else {
			e.truncateAfterCurrentLocked()
		}
	}

	e.nextID++
	meta := cfg.metadata
	meta.MemoryUsage = size
	meta.Compressed = packed != nil
	ent := &entry[T]{
		state: State[T]{
			ID:          e.nextID,
			Data:        stored,
			ParentID:    e.current,
			BranchID:    br.ID,
			Timestamp:   now,
			Name:        name,
			Description: cfg.description,
			Metadata:    meta,
		},
		packed: packed,
	}
	e.states[ent.state.ID] = ent
	br.StateIDs = append(br.StateIDs, ent.state.ID)
	e.current = ent.state.ID
	e.pushCount++

	if n := e.opts.SnapshotInterval; n > 0 && e.pushCount%n == 0 {
		e.queueThumbLocked(ent, data)
	}

	pub := e.publicState(ent, data)
	e.emitLocked(StateAdded[T]{State: pub})
	e.enforceRetentionLocked()

	if e.window > 0 {
		e.pending = ent.state.ID
		e.lastPush = now
		e.scheduleCommitLocked()
	}
	e.dirty = true
	return pub, true, nil
}

// queueThumbLocked schedules a thumbnail of data for ent. Must hold mu.
func (e *Engine[T]) queueThumbLocked(ent *entry[T], data T) {
	ent.thumbs++
	e.thumbJobs = append(e.thumbJobs, thumbJob[T]{id: ent.state.ID, seq: ent.thumbs, data: data})
}

// publicState copies an entry for callers, substituting the known payload.
func (e *Engine[T]) publicState(ent *entry[T], data T) State[T] {
	st := ent.state
	st.Data = data
	st.Metadata = st.Metadata.clone()
	return st
}

// materializeLocked copies an entry for callers, decoding packed payloads.
func (e *Engine[T]) materializeLocked(ent *entry[T]) State[T] {
	st := ent.state
	st.Metadata = st.Metadata.clone()
	if ent.packed != nil {
		data, err := e.decodeData(ent.packed)
		if err != nil {
			log.Error("history: decoding state %d: %v", st.ID, err)
		}
		st.Data = data
	}
	return st
}

// Current returns the state under the current pointer.
func (e *Engine[T]) Current() (State[T], bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := e.states[e.current]
	if !ok {
		return State[T]{}, false
	}
	return e.materializeLocked(ent), true
}

// CurrentID returns the current pointer, or 0 when the active chain is empty.
func (e *Engine[T]) CurrentID() StateID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// State returns the stored state with the given id.
func (e *Engine[T]) State(id StateID) (State[T], bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := e.states[id]
	if !ok {
		return State[T]{}, false
	}
	return e.materializeLocked(ent), true
}

// States returns the active branch chain, oldest first.
func (e *Engine[T]) States() []State[T] {
	e.mu.Lock()
	defer e.mu.Unlock()
	br := e.branches[e.active]
	out := make([]State[T], 0, len(br.StateIDs))
	for _, id := range br.StateIDs {
		if ent, ok := e.states[id]; ok {
			out = append(out, e.materializeLocked(ent))
		}
	}
	return out
}

// AllStates returns every stored state ordered by id.
func (e *Engine[T]) AllStates() []State[T] {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]StateID, 0, len(e.states))
	for id := range e.states {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]State[T], 0, len(ids))
	for _, id := range ids {
		out = append(out, e.materializeLocked(e.states[id]))
	}
	return out
}

// Branches returns every branch in creation order.
func (e *Engine[T]) Branches() []Branch {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Branch, 0, len(e.branchOrder))
	for _, id := range e.branchOrder {
		out = append(out, e.branches[id].clone())
	}
	return out
}

// ActiveBranch returns the active branch.
func (e *Engine[T]) ActiveBranch() Branch {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.branches[e.active].clone()
}

// Stats summarizes the store and branch graph.
func (e *Engine[T]) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Stats{
		States:       len(e.states),
		Branches:     len(e.branches),
		ActiveStates: len(e.branches[e.active].StateIDs),
		ActiveMemory: e.chainMemoryLocked(e.branches[e.active]),
	}
	for _, ent := range e.states {
		s.TotalMemory += ent.state.Metadata.MemoryUsage
	}
	return s
}

// Clear drops every state and branch and starts over with an empty main branch.
// State ids keep increasing so ids are never reused.
func (e *Engine[T]) Clear() {
	e.mu.Lock()
	defer e.finish()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}
	e.commitPendingLocked()
	e.resetLocked()
	e.emitLocked(Cleared{})
	e.held = false
	e.dirty = true
}

// Dispose cancels any pending timer and releases listeners and stored state.
// The engine rejects further mutations.
func (e *Engine[T]) Dispose() {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return
	}
	e.commitPendingLocked()
	e.disposed = true
	e.resetLocked()
	e.outbox = nil
	e.thumbJobs = nil
	e.mu.Unlock()

	e.bus.Clear()
}

func (e *Engine[T]) String() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fmt.Sprintf("history.Engine{states: %d, branches: %d, active: %s, current: %d}",
		len(e.states), len(e.branches), e.active, e.current)
}
