// ABOUTME: Bubble Tea model for interactively walking and navigating a history engine
// ABOUTME: Keys drive undo, redo, jumps to a selected state and branch cycling

package browse

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mauromedda/canvas-history-go/internal/timeline"
	"github.com/mauromedda/canvas-history-go/pkg/history"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

const helpText = "u undo · r redo · ↑/↓ select · enter jump · b branch · q quit"

// Model is a tea.Model over a live engine. The engine is shared, so the
// model keeps value semantics only for its own view state.
type Model[T any] struct {
	engine   *history.Engine[T]
	cursor   int
	width    int
	height   int
	color    bool
	status   string
	quitting bool
}

// New creates a browser positioned on the current state.
func New[T any](e *history.Engine[T], color bool) Model[T] {
	m := Model[T]{engine: e, color: color, width: 80}
	m.syncCursor()
	return m
}

// Run starts a full-screen program and blocks until the user quits.
func Run[T any](e *history.Engine[T], color bool) error {
	_, err := tea.NewProgram(New(e, color), tea.WithAltScreen()).Run()
	return err
}

// Init returns nil; no commands needed at startup.
func (m Model[T]) Init() tea.Cmd {
	return nil
}

// Update handles key and window-size messages.
func (m Model[T]) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "u", "left":
			if st, ok := m.engine.Undo(); ok {
				m.status = fmt.Sprintf("undo → %d %s", st.ID, st.Name)
			} else {
				m.status = "nothing to undo"
			}
			m.syncCursor()
		case "r", "right":
			if st, ok := m.engine.Redo(); ok {
				m.status = fmt.Sprintf("redo → %d %s", st.ID, st.Name)
			} else {
				m.status = "nothing to redo"
			}
			m.syncCursor()
		case "up", "k":
			m.cursor = max(m.cursor-1, 0)
		case "down", "j":
			m.cursor = min(m.cursor+1, max(len(m.engine.States())-1, 0))
		case "enter":
			m.jump()
		case "b":
			m.nextBranch()
		}
	}
	return m, nil
}

// jump moves the current pointer to the state under the cursor.
func (m *Model[T]) jump() {
	rows := m.rows()
	if m.cursor >= len(rows) {
		return
	}
	if st, ok := m.engine.GoToState(rows[m.cursor].ID); ok {
		m.status = fmt.Sprintf("jumped to %d %s", st.ID, st.Name)
	}
	m.syncCursor()
}

// nextBranch activates the branch after the active one in creation order.
func (m *Model[T]) nextBranch() {
	branches := m.engine.Branches()
	if len(branches) < 2 {
		m.status = "no other branch"
		return
	}
	next := 0
	for i, br := range branches {
		if br.Active {
			next = (i + 1) % len(branches)
		}
	}
	if br, ok := m.engine.SwitchBranch(branches[next].ID); ok {
		m.status = fmt.Sprintf("switched to %s", br.Name)
	}
	m.syncCursor()
}

// rows returns the active chain newest first, matching timeline.Log order.
func (m Model[T]) rows() []history.State[T] {
	states := m.engine.States()
	for i, j := 0, len(states)-1; i < j; i, j = i+1, j-1 {
		states[i], states[j] = states[j], states[i]
	}
	return states
}

func (m *Model[T]) syncCursor() {
	cur := m.engine.CurrentID()
	for i, st := range m.rows() {
		if st.ID == cur {
			m.cursor = i
			return
		}
	}
	m.cursor = 0
}

// Cursor returns the selected row index (0 is the newest state).
func (m Model[T]) Cursor() int { return m.cursor }

// Status returns the last action message.
func (m Model[T]) Status() string { return m.status }

// View renders the header, the active chain with the cursor, and help.
func (m Model[T]) View() string {
	if m.quitting {
		return ""
	}
	style := func(s lipgloss.Style, text string) string {
		if !m.color {
			return text
		}
		return s.Render(text)
	}

	br := m.engine.ActiveBranch()
	var b strings.Builder
	b.WriteString(style(headerStyle, fmt.Sprintf("branch %s (%s) · %d states", br.Name, br.ID, len(br.StateIDs))))
	b.WriteString("\n\n")

	log := timeline.Log(m.engine.States(), m.engine.CurrentID(), timeline.Options{Width: max(m.width-2, 20), Color: m.color})
	for i, line := range strings.Split(strings.TrimRight(log, "\n"), "\n") {
		if i == m.cursor {
			b.WriteString("> ")
		} else {
			b.WriteString("  ")
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	b.WriteByte('\n')
	if m.status != "" {
		b.WriteString(m.status)
		b.WriteByte('\n')
	}
	b.WriteString(style(helpStyle, helpText))
	return b.String()
}
