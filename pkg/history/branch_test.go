// ABOUTME: Tests for forking on push, explicit branches, switching and linear truncation
// ABOUTME: Branch ids come from a deterministic counter (b1, b2, ...)

package history

import (
	"errors"
	"slices"
	"testing"
)

func pushN(t *testing.T, e *Engine[int], n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		mustPush(t, e, "edit", i)
	}
}

func TestBranch_ForkOnPushAfterUndo(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine[int](t, nil)
	var created []Branch
	e.Subscribe(func(ev Event[int]) {
		if bc, ok := ev.(BranchCreated); ok {
			created = append(created, bc.Branch)
		}
	})

	pushN(t, e, 5)
	e.Undo()
	e.Undo()
	st := mustPush(t, e, "alt", 6)

	if got, want := chainIDs(e), []StateID{1, 2, 3, 6}; !slices.Equal(got, want) {
		t.Fatalf("active chain = %v, want %v", got, want)
	}
	if st.ParentID != 3 || st.BranchID != "b1" {
		t.Errorf("forked state = %+v", st)
	}
	if len(created) != 1 || created[0].ParentStateID != 3 || created[0].Name != "Branch 2" {
		t.Errorf("BranchCreated = %+v", created)
	}
	if e.CanRedo() {
		t.Error("fresh fork should have no redo")
	}

	br, ok := e.SwitchBranch(MainBranch)
	if !ok {
		t.Fatal("SwitchBranch(main) failed")
	}
	if got, want := br.StateIDs, []StateID{1, 2, 3, 4, 5}; !slices.Equal(got, want) {
		t.Errorf("main chain = %v, want %v", got, want)
	}
	if e.CurrentID() != 5 {
		t.Errorf("CurrentID = %d, want 5", e.CurrentID())
	}

	active := 0
	for _, b := range e.Branches() {
		if b.Active {
			active++
		}
	}
	if active != 1 {
		t.Errorf("%d active branches, want 1", active)
	}
}

func TestBranch_LinearTruncation(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine[int](t, func(o *Options) { o.Branching = false })
	var removed []StateRemoved
	e.Subscribe(func(ev Event[int]) {
		if r, ok := ev.(StateRemoved); ok {
			removed = append(removed, r)
		}
	})

	pushN(t, e, 3)
	e.Undo()
	e.Undo()
	mustPush(t, e, "replace", 4)

	if got, want := chainIDs(e), []StateID{1, 4}; !slices.Equal(got, want) {
		t.Fatalf("chain = %v, want %v", got, want)
	}
	if _, ok := e.State(2); ok {
		t.Error("truncated state 2 still stored")
	}
	if len(removed) != 2 {
		t.Fatalf("removed events = %d, want 2", len(removed))
	}
	for _, r := range removed {
		if r.Reason != ReasonTruncated || !r.Deleted {
			t.Errorf("removed = %+v", r)
		}
	}
	if len(e.Branches()) != 1 {
		t.Errorf("branches = %d, want 1", len(e.Branches()))
	}
}

func TestBranch_CreateExplicit(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine[int](t, nil)
	pushN(t, e, 3)

	br, err := e.CreateBranch("experiment", 2)
	if err != nil {
		t.Fatal(err)
	}
	if br.Name != "experiment" || !br.Active || br.ParentStateID != 2 {
		t.Errorf("branch = %+v", br)
	}
	if got, want := br.StateIDs, []StateID{1, 2}; !slices.Equal(got, want) {
		t.Errorf("chain = %v, want %v", got, want)
	}
	if e.CurrentID() != 2 {
		t.Errorf("CurrentID = %d, want 2", e.CurrentID())
	}

	st := mustPush(t, e, "try", 9)
	if st.BranchID != br.ID || st.ParentID != 2 {
		t.Errorf("state on new branch = %+v", st)
	}
	if got := len(e.Branches()); got != 2 {
		t.Errorf("pushing at the tip of a fresh branch forked again: %d branches", got)
	}
}

func TestBranch_CreateFromCurrentDefault(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine[int](t, nil)
	pushN(t, e, 2)
	br, err := e.CreateBranch("")
	if err != nil {
		t.Fatal(err)
	}
	if br.ParentStateID != 2 || br.Name != "Branch 2" {
		t.Errorf("branch = %+v", br)
	}
}

func TestBranch_CreateErrors(t *testing.T) {
	t.Parallel()

	linear, _ := newTestEngine[int](t, func(o *Options) { o.Branching = false })
	if _, err := linear.CreateBranch("x"); !errors.Is(err, ErrBranchingDisabled) {
		t.Errorf("err = %v, want ErrBranchingDisabled", err)
	}

	e, _ := newTestEngine[int](t, nil)
	pushN(t, e, 1)
	if _, err := e.CreateBranch("x", 42); !errors.Is(err, ErrStateNotFound) {
		t.Errorf("err = %v, want ErrStateNotFound", err)
	}
	if got := len(e.Branches()); got != 1 {
		t.Errorf("failed CreateBranch left %d branches", got)
	}
}

func TestBranch_SwitchUnknown(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine[int](t, nil)
	pushN(t, e, 1)
	if _, ok := e.SwitchBranch("nope"); ok {
		t.Error("SwitchBranch(nope) succeeded")
	}
	if e.ActiveBranch().ID != MainBranch {
		t.Error("active branch changed")
	}
}

func TestBranch_SwitchEmitsEvent(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine[int](t, nil)
	pushN(t, e, 2)
	e.Undo()
	mustPush(t, e, "alt", 3)

	var switched []BranchSwitched
	e.Subscribe(func(ev Event[int]) {
		if s, ok := ev.(BranchSwitched); ok {
			switched = append(switched, s)
		}
	})
	e.SwitchBranch(MainBranch)

	if len(switched) != 1 || switched[0].From != "b1" || switched[0].To != MainBranch {
		t.Errorf("switched = %+v", switched)
	}
}
