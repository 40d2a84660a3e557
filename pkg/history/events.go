// ABOUTME: Event variants emitted by the history engine as a sealed interface
// ABOUTME: Each variant carries its own payload; listeners dispatch with a type switch

package history

// EventKind tags an event variant.
type EventKind int

const (
	KindStateAdded EventKind = iota + 1
	KindStateUpdated
	KindStateRemoved
	KindUndo
	KindRedo
	KindBranchCreated
	KindBranchSwitched
	KindCleared
	KindRestored
)

func (k EventKind) String() string {
	switch k {
	case KindStateAdded:
		return "stateAdded"
	case KindStateUpdated:
		return "stateUpdated"
	case KindStateRemoved:
		return "stateRemoved"
	case KindUndo:
		return "undo"
	case KindRedo:
		return "redo"
	case KindBranchCreated:
		return "branchCreated"
	case KindBranchSwitched:
		return "branchSwitched"
	case KindCleared:
		return "cleared"
	case KindRestored:
		return "restored"
	default:
		return "unknown"
	}
}

// Event is implemented by every event variant.
type Event[T any] interface {
	Kind() EventKind
	isEvent()
}

// RemoveReason explains why a state left a branch chain.
type RemoveReason string

const (
	ReasonEvicted    RemoveReason = "evicted"
	ReasonTruncated  RemoveReason = "truncated"
	ReasonRolledBack RemoveReason = "rolled_back"
)

// StateAdded is emitted when a push records a new state.
type StateAdded[T any] struct{ State State[T] }

// StateUpdated is emitted when a push coalesces into the pending state.
type StateUpdated[T any] struct{ State State[T] }

// StateRemoved is emitted when a state leaves a branch chain.
// Deleted reports whether the state was also dropped from the store.
type StateRemoved struct {
	ID       StateID
	BranchID BranchID
	Reason   RemoveReason
	Deleted  bool
}

// Undone is emitted after a successful Undo with the now-current state.
type Undone[T any] struct{ State State[T] }

// Redone is emitted after a successful Redo with the now-current state.
type Redone[T any] struct{ State State[T] }

// BranchCreated is emitted when a branch is forked, explicitly or by Push.
type BranchCreated struct{ Branch Branch }

// BranchSwitched is emitted when the active branch changes.
type BranchSwitched struct{ From, To BranchID }

// Cleared is emitted by Clear.
type Cleared struct{}

// Restored is emitted after Load rebuilt the engine from a stored record.
type Restored struct {
	CurrentStateID StateID
	ActiveBranchID BranchID
	States         int
}

func (StateAdded[T]) Kind() EventKind   { return KindStateAdded }
func (StateUpdated[T]) Kind() EventKind { return KindStateUpdated }
func (StateRemoved) Kind() EventKind    { return KindStateRemoved }
func (Undone[T]) Kind() EventKind       { return KindUndo }
func (Redone[T]) Kind() EventKind       { return KindRedo }
func (BranchCreated) Kind() EventKind   { return KindBranchCreated }
func (BranchSwitched) Kind() EventKind  { return KindBranchSwitched }
func (Cleared) Kind() EventKind         { return KindCleared }
func (Restored) Kind() EventKind        { return KindRestored }

func (StateAdded[T]) isEvent()   {}
func (StateUpdated[T]) isEvent() {}
func (StateRemoved) isEvent()    {}
func (Undone[T]) isEvent()       {}
func (Redone[T]) isEvent()       {}
func (BranchCreated) isEvent()   {}
func (BranchSwitched) isEvent()  {}
func (Cleared) isEvent()         {}
func (Restored) isEvent()        {}
