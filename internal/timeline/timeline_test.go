// ABOUTME: Tests for chain, branch and markdown rendering plus width helpers
// ABOUTME: Rendering runs with Color off so output is plain text

package timeline

import (
	"strings"
	"testing"
	"time"

	"github.com/mauromedda/canvas-history-go/pkg/history"
)

func sampleStates() []history.State[int] {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	names := []string{"Draw rectangle", "Fill color", "Draw circle"}
	out := make([]history.State[int], len(names))
	for i, n := range names {
		out[i] = history.State[int]{
			ID:        history.StateID(i + 1),
			Name:      n,
			BranchID:  history.MainBranch,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}
	}
	return out
}

func TestLog_MarksCurrent(t *testing.T) {
	t.Parallel()

	out := Log(sampleStates(), 2, Options{Width: 60})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[0], "Draw circle") {
		t.Errorf("newest state should come first: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "* 2  Fill color") {
		t.Errorf("current line = %q", lines[1])
	}
	if strings.HasPrefix(lines[0], "*") || strings.HasPrefix(lines[2], "*") {
		t.Errorf("only the current state is marked:\n%s", out)
	}
}

func TestLog_LimitAndEmpty(t *testing.T) {
	t.Parallel()

	out := Log(sampleStates(), 3, Options{Limit: 2})
	if !strings.Contains(out, "… 1 older") {
		t.Errorf("missing elision line:\n%s", out)
	}
	if got := Log[int](nil, 0, Options{}); got != "(no history)\n" {
		t.Errorf("empty = %q", got)
	}
}

func TestLog_TruncatesLongNames(t *testing.T) {
	t.Parallel()

	states := sampleStates()
	states[0].Name = strings.Repeat("very long name ", 10)
	out := Log(states, 1, Options{Width: 40})
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if w := visibleWidth(line); w > 40 {
			t.Errorf("line width %d > 40: %q", w, line)
		}
	}
	if !strings.Contains(out, "…") {
		t.Error("long name not elided")
	}
}

func TestBranches(t *testing.T) {
	t.Parallel()

	branches := []history.Branch{
		{ID: history.MainBranch, Name: "Main", StateIDs: []history.StateID{1, 2, 3}},
		{ID: "b1", Name: "Branch 2", ParentStateID: 2, StateIDs: []history.StateID{1, 2, 4}, Active: true},
	}
	out := Branches(branches, Options{})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[1], "* b1") || !strings.Contains(lines[1], "from 2") || !strings.Contains(lines[1], "tip 4") {
		t.Errorf("active branch line = %q", lines[1])
	}
	if strings.Contains(lines[0], "from") {
		t.Errorf("root branch has no fork point: %q", lines[0])
	}
}

func TestMarkdown(t *testing.T) {
	t.Parallel()

	st := history.State[int]{
		ID:          7,
		ParentID:    6,
		BranchID:    history.MainBranch,
		Name:        "Layer #2",
		Description: "moved up",
		Metadata:    history.Metadata{Tool: "move", MemoryUsage: 12, Compressed: true},
	}
	md := Markdown(st, `{"x": 1}`)
	for _, want := range []string{`# Layer \#2`, "moved up", "| id | 7 |", "| tool | move |", "| compressed | yes |", "```json\n{\"x\": 1}\n```"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestWidthHelpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"ascii width", visibleWidth("hello"), 5},
		{"wide width", visibleWidth("日本"), 4},
		{"zwj cluster", visibleWidth("a👩‍👩‍👧b"), 4},
		{"truncate wide", truncate("日本語テキスト", 7), "日本語…"},
		{"truncate fits", truncate("short", 10), "short"},
		{"truncate zero", truncate("abc", 0), ""},
		{"pad", pad("ab", 4), "ab  "},
		{"pad cut", pad("abcdef", 4), "abc…"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}
