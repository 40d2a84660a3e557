// ABOUTME: Line diffs between two snapshot renderings via diffmatchpatch line mode
// ABOUTME: Colorize styles unified output with lipgloss for terminals

package diff

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Op is the kind of a diff line.
type Op int

const (
	Equal Op = iota
	Delete
	Insert
)

// Line is one line of an edit script.
type Line struct {
	Op   Op
	Text string
}

// Lines returns the edit script turning before into after. Deletions come
// before insertions within a changed region.
func Lines(before, after string) []Line {
	dmp := diffmatchpatch.New()
	// Line mode hashes whole lines, so both sides must end in a newline or a
	// trailing line would never compare equal to its counterpart.
	chars1, chars2, lineArray := dmp.DiffLinesToChars(withNewline(before), withNewline(after))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(chars1, chars2, false), lineArray)

	var out []Line
	for _, d := range diffs {
		op := Equal
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			op = Delete
		case diffmatchpatch.DiffInsert:
			op = Insert
		}
		for _, text := range splitLines(d.Text) {
			out = append(out, Line{op, text})
		}
	}
	return out
}

func withNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

// Unified renders a unified diff with the given number of context lines.
// Identical inputs produce "".
func Unified(fromLabel, toLabel, before, after string, context int) string {
	lines := Lines(before, after)

	// Line numbers (1-based) each op starts at in the old and new text.
	oldNo := make([]int, len(lines)+1)
	newNo := make([]int, len(lines)+1)
	oldNo[0], newNo[0] = 1, 1
	changed := false
	for k, l := range lines {
		oldNo[k+1], newNo[k+1] = oldNo[k], newNo[k]
		if l.Op != Insert {
			oldNo[k+1]++
		}
		if l.Op != Delete {
			newNo[k+1]++
		}
		if l.Op != Equal {
			changed = true
		}
	}
	if !changed {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- %s\n+++ %s\n", fromLabel, toLabel)

	lastEnd := 0
	for i := 0; i < len(lines); {
		for i < len(lines) && lines[i].Op == Equal {
			i++
		}
		if i == len(lines) {
			break
		}
		start := max(i-context, lastEnd)
		end := i
		for end < len(lines) {
			if lines[end].Op != Equal {
				end++
				continue
			}
			run := end
			for run < len(lines) && lines[run].Op == Equal {
				run++
			}
			if run == len(lines) || run-end > 2*context {
				end = min(end+context, len(lines))
				break
			}
			end = run
		}

		oldCount := oldNo[end] - oldNo[start]
		newCount := newNo[end] - newNo[start]
		oldStart, newStart := oldNo[start], newNo[start]
		if oldCount == 0 {
			oldStart--
		}
		if newCount == 0 {
			newStart--
		}
		fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n", oldStart, oldCount, newStart, newCount)
		for _, l := range lines[start:end] {
			switch l.Op {
			case Equal:
				b.WriteByte(' ')
			case Delete:
				b.WriteByte('-')
			case Insert:
				b.WriteByte('+')
			}
			b.WriteString(l.Text)
			b.WriteByte('\n')
		}
		lastEnd = end
		i = end
	}
	return b.String()
}

var (
	addedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2")) // green
	removedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")) // red
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6")) // cyan
	hunkStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("5")) // magenta
)

// Colorize styles each line of a unified diff.
func Colorize(unified string) string {
	if unified == "" {
		return ""
	}
	lines := strings.Split(strings.TrimSuffix(unified, "\n"), "\n")
	var b strings.Builder
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---"):
			b.WriteString(headerStyle.Render(line))
		case strings.HasPrefix(line, "@@"):
			b.WriteString(hunkStyle.Render(line))
		case strings.HasPrefix(line, "+"):
			b.WriteString(addedStyle.Render(line))
		case strings.HasPrefix(line, "-"):
			b.WriteString(removedStyle.Render(line))
		default:
			b.WriteString(line)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
