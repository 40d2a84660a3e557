// ABOUTME: Terminal profile for histctl output: colour, width and a fixed background
// ABOUTME: Pins lipgloss to a dark background at init so no terminal query is sent

package termfix

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// DefaultWidth is used when the output is not a terminal or reports no size.
const DefaultWidth = 80

// This package must not import bubbletea: importing it with _ ahead of the
// browser keeps this init first, before any OSC 11 reply can reach its input.
func init() {
	lipgloss.SetHasDarkBackground(true)
}

// Profile describes how timeline output should be rendered on a writer.
type Profile struct {
	Color bool
	Width int
}

// Detect inspects out. Colour needs a terminal and is off when noColor is
// set or NO_COLOR is present in the environment.
func Detect(out io.Writer, noColor bool) Profile {
	p := Profile{Width: DefaultWidth}
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return p
	}
	_, envOff := os.LookupEnv("NO_COLOR")
	p.Color = !noColor && !envOff
	if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
		p.Width = w
	}
	return p
}
