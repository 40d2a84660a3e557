// ABOUTME: Text rendering of history chains, branch lists and state details
// ABOUTME: Plain output for pipes and tests; lipgloss styling for terminals

package timeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mauromedda/canvas-history-go/pkg/history"
)

var (
	currentStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2")) // green
	futureStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))            // grey
	idStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))            // cyan
	branchStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))            // magenta
)

// Options controls rendering.
type Options struct {
	// Width is the total line width. 0 uses 80.
	Width int
	// Color enables lipgloss styling.
	Color bool
	// Limit caps the number of rows. 0 shows all.
	Limit int
}

func (o Options) width() int {
	if o.Width <= 0 {
		return 80
	}
	return o.Width
}

func (o Options) style(s lipgloss.Style, text string) string {
	if !o.Color {
		return text
	}
	return s.Render(text)
}

const timeLayout = "15:04:05"

// Log renders a chain newest first. States after current are marked as redo
// candidates; the current state gets a "*" marker.
func Log[T any](states []history.State[T], current history.StateID, opts Options) string {
	if len(states) == 0 {
		return "(no history)\n"
	}

	idW := 0
	for _, st := range states {
		idW = max(idW, len(fmt.Sprint(st.ID)))
	}
	// marker, id, two gaps, name, gap, time
	nameW := max(opts.width()-2-idW-2-2-len(timeLayout), 8)

	curIdx := -1
	for i, st := range states {
		if st.ID == current {
			curIdx = i
		}
	}

	var b strings.Builder
	rows := 0
	for i := len(states) - 1; i >= 0; i-- {
		if opts.Limit > 0 && rows == opts.Limit {
			fmt.Fprintf(&b, "  … %d older\n", i+1)
			break
		}
		st := states[i]
		marker := "  "
		if st.ID == current {
			marker = "* "
		}
		id := fmt.Sprintf("%*d", idW, st.ID)
		rest := "  " + pad(st.Name, nameW) + "  " + st.Timestamp.Local().Format(timeLayout)
		var line string
		switch {
		case st.ID == current:
			line = opts.style(currentStyle, marker+id+rest)
		case curIdx >= 0 && i > curIdx:
			line = opts.style(futureStyle, marker+id+rest)
		default:
			line = marker + opts.style(idStyle, id) + rest
		}
		b.WriteString(strings.TrimRight(line, " "))
		b.WriteByte('\n')
		rows++
	}
	return b.String()
}

// Branches renders one line per branch in the given order.
func Branches(branches []history.Branch, opts Options) string {
	if len(branches) == 0 {
		return "(no branches)\n"
	}
	idW := 0
	for _, br := range branches {
		idW = max(idW, visibleWidth(string(br.ID)))
	}
	idW = min(idW, 36)

	var b strings.Builder
	for _, br := range branches {
		marker := "  "
		if br.Active {
			marker = "* "
		}
		line := fmt.Sprintf("%s%s  %s  %3d states", marker,
			opts.style(branchStyle, pad(string(br.ID), idW)),
			pad(br.Name, 16), len(br.StateIDs))
		if tip := br.Tip(); tip != 0 {
			line += fmt.Sprintf("  tip %d", tip)
		}
		if br.ParentStateID != 0 {
			line += fmt.Sprintf("  from %d", br.ParentStateID)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// Markdown describes a single state as a markdown document. payload is the
// pre-formatted snapshot body, shown in a fenced block when non-empty.
func Markdown[T any](st history.State[T], payload string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", escapeHeading(st.Name))
	if st.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", st.Description)
	}
	fmt.Fprintf(&b, "| field | value |\n|---|---|\n")
	fmt.Fprintf(&b, "| id | %d |\n", st.ID)
	fmt.Fprintf(&b, "| parent | %d |\n", st.ParentID)
	fmt.Fprintf(&b, "| branch | `%s` |\n", st.BranchID)
	fmt.Fprintf(&b, "| recorded | %s |\n", st.Timestamp.Local().Format(time.DateTime))
	fmt.Fprintf(&b, "| size | %d bytes |\n", st.Metadata.MemoryUsage)
	if st.Metadata.Compressed {
		b.WriteString("| compressed | yes |\n")
	}
	if st.Metadata.Tool != "" {
		fmt.Fprintf(&b, "| tool | %s |\n", st.Metadata.Tool)
	}
	if st.Metadata.LayerID != "" {
		fmt.Fprintf(&b, "| layer | %s |\n", st.Metadata.LayerID)
	}
	if st.Thumbnail != "" {
		b.WriteString("| thumbnail | yes |\n")
	}
	if payload != "" {
		fmt.Fprintf(&b, "\n```json\n%s\n```\n", strings.TrimRight(payload, "\n"))
	}
	return b.String()
}

func escapeHeading(s string) string {
	if s == "" {
		return "(unnamed)"
	}
	return strings.ReplaceAll(s, "#", `\#`)
}
