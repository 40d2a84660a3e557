// ABOUTME: Grapheme-aware display width, truncation and padding for timeline columns
// ABOUTME: Wide East Asian characters and emoji count as two cells

package timeline

import (
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

// visibleWidth returns the cell width of s, walking grapheme clusters.
func visibleWidth(s string) int {
	w := 0
	state := -1
	for len(s) > 0 {
		var cluster string
		cluster, s, _, state = uniseg.FirstGraphemeClusterInString(s, state)
		w += clusterWidth(cluster)
	}
	return w
}

func clusterWidth(cluster string) int {
	if cluster == "" {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(cluster)
	return runewidth.RuneWidth(r)
}

// truncate shortens s to at most max cells, ending in "…" when cut.
// Grapheme clusters are never split.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if visibleWidth(s) <= max {
		return s
	}
	var b strings.Builder
	w := 0
	state := -1
	for len(s) > 0 {
		var cluster string
		cluster, s, _, state = uniseg.FirstGraphemeClusterInString(s, state)
		cw := clusterWidth(cluster)
		if w+cw > max-1 {
			break
		}
		b.WriteString(cluster)
		w += cw
	}
	b.WriteString("…")
	return b.String()
}

// pad fits s into exactly n cells.
func pad(s string, n int) string {
	s = truncate(s, n)
	if gap := n - visibleWidth(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}
