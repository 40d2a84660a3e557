// ABOUTME: Tests for time-windowed coalescing, the deferred commit and Batch
// ABOUTME: The fake clock fires commit timers synchronously inside Advance

package history

import (
	"errors"
	"slices"
	"testing"
	"time"
)

func withWindow(d time.Duration) func(*Options) {
	return func(o *Options) { o.CoalesceWindow = d }
}

func TestCoalesce_WithinWindow(t *testing.T) {
	t.Parallel()

	e, clk := newTestEngine[int](t, withWindow(300*time.Millisecond))
	var kinds []EventKind
	e.Subscribe(func(ev Event[int]) { kinds = append(kinds, ev.Kind()) })

	first := mustPush(t, e, "stroke", 1)
	clk.Advance(50 * time.Millisecond)
	second := mustPush(t, e, "stroke more", 2)

	if second.ID != first.ID {
		t.Fatalf("coalesced push got id %d, want %d", second.ID, first.ID)
	}
	states := e.States()
	if len(states) != 1 {
		t.Fatalf("states = %d, want 1", len(states))
	}
	if states[0].Data != 2 || states[0].Name != "stroke" {
		t.Errorf("state = %+v, want data 2 named stroke", states[0])
	}
	if !states[0].Timestamp.Equal(epoch.Add(50 * time.Millisecond)) {
		t.Errorf("Timestamp = %v", states[0].Timestamp)
	}
	if want := []EventKind{KindStateAdded, KindStateUpdated}; !slices.Equal(kinds, want) {
		t.Errorf("events = %v, want %v", kinds, want)
	}
}

func TestCoalesce_RefreshesThumbnail(t *testing.T) {
	t.Parallel()

	e, clk := newTestEngine[string](t, func(o *Options) {
		o.CoalesceWindow = 300 * time.Millisecond
		o.SnapshotInterval = 1
	})
	var rendered []string
	e.SetThumbnailer(func(d string) (string, error) {
		rendered = append(rendered, d)
		return "thumb:" + d, nil
	})

	first := mustPush(t, e, "stroke", "a")
	clk.Advance(10 * time.Millisecond)
	mustPush(t, e, "stroke more", "b")

	st, _ := e.State(first.ID)
	if st.Thumbnail != "thumb:b" {
		t.Errorf("Thumbnail = %q, want %q", st.Thumbnail, "thumb:b")
	}
	if want := []string{"a", "b"}; !slices.Equal(rendered, want) {
		t.Errorf("rendered = %v, want %v", rendered, want)
	}
}

func TestCoalesce_TimerCommits(t *testing.T) {
	t.Parallel()

	e, clk := newTestEngine[int](t, withWindow(300*time.Millisecond))
	first := mustPush(t, e, "a", 1)
	if e.Pending() != first.ID {
		t.Fatalf("Pending = %d, want %d", e.Pending(), first.ID)
	}
	clk.Advance(200 * time.Millisecond)
	mustPush(t, e, "a", 2)

	// The second push re-armed the timer, so it is not due yet.
	clk.Advance(200 * time.Millisecond)
	if e.Pending() != first.ID {
		t.Fatalf("Pending = %d after re-arm, want %d", e.Pending(), first.ID)
	}
	clk.Advance(100 * time.Millisecond)
	if e.Pending() != 0 {
		t.Fatalf("Pending = %d after window, want 0", e.Pending())
	}
	if clk.Pending() != 0 {
		t.Errorf("timers left = %d", clk.Pending())
	}

	mustPush(t, e, "b", 3)
	if got := len(e.States()); got != 2 {
		t.Errorf("states = %d, want 2", got)
	}
}

func TestCoalesce_ExplicitCommit(t *testing.T) {
	t.Parallel()

	e, clk := newTestEngine[int](t, withWindow(time.Second))
	mustPush(t, e, "a", 1)
	e.Commit()
	if clk.Pending() != 0 {
		t.Errorf("Commit left %d timers armed", clk.Pending())
	}
	mustPush(t, e, "b", 2)
	if got := len(e.States()); got != 2 {
		t.Errorf("states = %d, want 2", got)
	}
}

func TestCoalesce_NavigationCommits(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine[int](t, withWindow(time.Second))
	mustPush(t, e, "a", 1)
	e.Commit()
	mustPush(t, e, "b", 2)
	e.Undo()
	e.Redo()
	mustPush(t, e, "c", 3)

	if got := chainIDs(e); len(got) != 3 {
		t.Errorf("chain = %v, want 3 states", got)
	}
}

func TestBatch_CollapsesPushes(t *testing.T) {
	t.Parallel()

	e, clk := newTestEngine[int](t, withWindow(300*time.Millisecond))
	mustPush(t, e, "before", 0)
	clk.Advance(time.Second)

	err := e.Batch("drag", func() error {
		for i := 1; i <= 5; i++ {
			mustPush(t, e, "move", i)
			clk.Advance(time.Second)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	states := e.States()
	if len(states) != 2 {
		t.Fatalf("states = %d, want 2", len(states))
	}
	if states[1].Name != "drag" || states[1].Data != 5 {
		t.Errorf("batched state = %+v", states[1])
	}
	if e.Pending() != 0 {
		t.Errorf("Pending = %d after Batch", e.Pending())
	}

	mustPush(t, e, "after", 6)
	if got := len(e.States()); got != 3 {
		t.Errorf("states = %d, want 3", got)
	}
}

func TestBatch_ErrorRestoresWindow(t *testing.T) {
	t.Parallel()

	e, clk := newTestEngine[int](t, withWindow(300*time.Millisecond))
	boom := errors.New("boom")
	err := e.Batch("drag", func() error {
		mustPush(t, e, "move", 1)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	mustPush(t, e, "a", 2)
	clk.Advance(400 * time.Millisecond)
	mustPush(t, e, "b", 3)
	if got := len(e.States()); got != 3 {
		t.Errorf("states = %d, want 3", got)
	}
}
