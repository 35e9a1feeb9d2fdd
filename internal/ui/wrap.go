// Package ui implements the terminal panes: the conversation list, the
// virtualized scrollback viewport, the input editor and the cooperative
// main loop tying them to the backend registry.
package ui

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Wrap splits text into physical lines of at most width display cells,
// word-unaware: it breaks on every embedded newline and on width
// overflow until the remainder is empty.
func Wrap(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}
	var out []string
	for _, line := range strings.Split(text, "\n") {
		for {
			if runewidth.StringWidth(line) <= width {
				out = append(out, line)
				break
			}
			cut := runewidth.Truncate(line, width, "")
			if cut == "" {
				// A single glyph wider than the pane still
				// consumes one physical line.
				r := []rune(line)
				cut = string(r[0])
			}
			out = append(out, cut)
			line = line[len(cut):]
			if line == "" {
				break
			}
		}
	}
	return out
}
