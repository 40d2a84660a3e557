// ABOUTME: Core history types: states, branches, metadata, options and errors
// ABOUTME: States live in an id-keyed arena; branches hold ordered id chains into it

// Package history implements a branching undo/redo engine for editor
// documents. Snapshots are opaque values of type T recorded by Push and
// navigated with Undo, Redo and GoToState along the active branch.
package history

import (
	"errors"
	"maps"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/mauromedda/canvas-history-go/pkg/clock"
	"github.com/mauromedda/canvas-history-go/pkg/compress"
	"github.com/mauromedda/canvas-history-go/pkg/kv"
)

var (
	// ErrBranchingDisabled is returned by CreateBranch when Options.Branching is false.
	ErrBranchingDisabled = errors.New("history: branching is disabled")
	// ErrStateNotFound is returned when an operation names an unknown state id.
	ErrStateNotFound = errors.New("history: state not found")
	// ErrTransactionClosed is returned when a committed or rolled back transaction is reused.
	ErrTransactionClosed = errors.New("history: transaction already closed")
	// ErrDisposed is returned by mutating operations after Dispose.
	ErrDisposed = errors.New("history: engine disposed")
	// ErrChecksumMismatch is returned by Load when a stored record fails verification.
	ErrChecksumMismatch = errors.New("history: record checksum mismatch")
	// ErrNoSink is returned by Save and Load when no Sink is configured.
	ErrNoSink = errors.New("history: no sink configured")
)

// StateID identifies a recorded state. Zero means "none".
type StateID uint64

// BranchID identifies a branch.
type BranchID string

// MainBranch is the id of the root branch every engine starts with.
const MainBranch BranchID = "main"

// infiniteWindow disables coalesce commits until an explicit Commit.
const infiniteWindow = time.Duration(math.MaxInt64)

// Metadata holds free-form attributes of a recorded edit.
// MemoryUsage and Compressed are maintained by the engine.
type Metadata struct {
	Tool        string
	LayerID     string
	MemoryUsage int64
	Compressed  bool
	Attrs       map[string]string
}

func (m Metadata) clone() Metadata {
	m.Attrs = maps.Clone(m.Attrs)
	return m
}

// State is a single recorded snapshot.
type State[T any] struct {
	ID          StateID
	Data        T
	ParentID    StateID
	BranchID    BranchID
	Timestamp   time.Time
	Name        string
	Description string
	Metadata    Metadata
	Thumbnail   string
}

// Branch is a named, ordered chain of state ids.
type Branch struct {
	ID            BranchID
	Name          string
	ParentStateID StateID
	CreatedAt     time.Time
	StateIDs      []StateID
	Active        bool
}

func (b *Branch) clone() Branch {
	c := *b
	c.StateIDs = slices.Clone(b.StateIDs)
	return c
}

// Tip returns the last state id of the chain, or 0 when empty.
func (b Branch) Tip() StateID {
	if len(b.StateIDs) == 0 {
		return 0
	}
	return b.StateIDs[len(b.StateIDs)-1]
}

// Options configures an Engine.
type Options struct {
	// MaxStates bounds the active branch chain length. 0 means unlimited.
	MaxStates int
	// SnapshotInterval requests a thumbnail every N-th recorded state. 0 disables.
	SnapshotInterval int
	// Compression stores payloads encoded through Codec.
	Compression bool
	// Branching forks a new branch on push after undo instead of discarding the future.
	Branching bool
	// CoalesceWindow merges pushes closer together than this. 0 disables coalescing.
	CoalesceWindow time.Duration
	// MaxMemory bounds the summed MemoryUsage of the active chain in bytes. 0 means unlimited.
	MaxMemory int64
	// Persistent flushes the full engine state to Sink after every mutation.
	Persistent bool
	// StorageKey is the Sink key the record is stored under.
	StorageKey string

	// Clock drives timestamps and coalesce timers. Defaults to clock.Real.
	Clock clock.Clock
	// Codec compresses payloads when Compression is set. Defaults to compress.Identity.
	Codec compress.Codec
	// Sink receives persisted records.
	Sink kv.Sink
	// NewBranchID generates ids for forked branches. Defaults to UUIDv7.
	NewBranchID func() string
}

// DefaultOptions returns the editor defaults.
func DefaultOptions() Options {
	return Options{
		MaxStates:        100,
		SnapshotInterval: 10,
		Branching:        true,
		CoalesceWindow:   300 * time.Millisecond,
		MaxMemory:        50 << 20,
		StorageKey:       "canvas-history",
	}
}

func (o *Options) fillDefaults() {
	if o.Clock == nil {
		o.Clock = clock.Real{}
	}
	if o.Codec == nil {
		o.Codec = compress.Identity{}
	}
	if o.NewBranchID == nil {
		o.NewBranchID = func() string { return uuid.Must(uuid.NewV7()).String() }
	}
	if o.StorageKey == "" {
		o.StorageKey = "canvas-history"
	}
	if o.CoalesceWindow < 0 {
		o.CoalesceWindow = 0
	}
}

// Stats summarizes engine contents.
type Stats struct {
	States       int
	Branches     int
	ActiveStates int
	// ActiveMemory sums MemoryUsage over the active chain.
	ActiveMemory int64
	// TotalMemory sums MemoryUsage over every stored state.
	TotalMemory int64
}

// PushOption customises a single Push.
type PushOption func(*pushConfig)

type pushConfig struct {
	description string
	metadata    Metadata
}

// WithDescription attaches a longer human-readable description.
func WithDescription(desc string) PushOption {
	return func(c *pushConfig) { c.description = desc }
}

// WithMetadata attaches edit attributes such as tool and layer.
func WithMetadata(m Metadata) PushOption {
	return func(c *pushConfig) { c.metadata = m.clone() }
}
