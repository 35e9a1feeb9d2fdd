package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
)

// Screen is the subset of the terminal toolkit the panes draw through.
// tcell.Screen satisfies it; tests substitute a fake.
type Screen interface {
	Size() (int, int)
	SetContent(x, y int, primary rune, combining []rune, style tcell.Style)
}

// StyledLine is one physical line with its rendering style.
type StyledLine struct {
	Text  string
	Style tcell.Style
}

// Pad is a virtual line buffer larger than its visible on-screen region.
// The visible window is moved over the buffer to keep a target row in
// view.
type Pad struct {
	x, y, w, h int

	lines  []StyledLine
	offset int
}

// NewPad creates a pad over the given screen region.
func NewPad(x, y, w, h int) *Pad {
	return &Pad{x: x, y: y, w: w, h: h}
}

// Resize moves and resizes the pad's visible region.
func (p *Pad) Resize(x, y, w, h int) {
	p.x, p.y, p.w, p.h = x, y, w, h
	p.clampOffset()
}

// Size returns the visible region's dimensions.
func (p *Pad) Size() (int, int) {
	return p.w, p.h
}

// SetLines replaces the pad content.
func (p *Pad) SetLines(lines []StyledLine) {
	p.lines = lines
	p.clampOffset()
}

// ScrollTo moves the visible window so the given buffer row is in view.
func (p *Pad) ScrollTo(row int) {
	if row < p.offset {
		p.offset = row
	} else if row >= p.offset+p.h {
		p.offset = row - p.h + 1
	}
	p.clampOffset()
}

// ScrollToEnd pins the window to the bottom of the buffer.
func (p *Pad) ScrollToEnd() {
	p.offset = len(p.lines) - p.h
	p.clampOffset()
}

func (p *Pad) clampOffset() {
	if p.offset > len(p.lines)-p.h {
		p.offset = len(p.lines) - p.h
	}
	if p.offset < 0 {
		p.offset = 0
	}
}

// Draw writes the visible window into the screen region, padding short
// lines with spaces.
func (p *Pad) Draw(s Screen) {
	for row := 0; row < p.h; row++ {
		var line StyledLine
		if i := p.offset + row; i < len(p.lines) {
			line = p.lines[i]
		}
		drawText(s, p.x, p.y+row, p.w, line.Text, line.Style)
	}
}

// drawText renders text at (x, y), clipped and padded to width cells.
func drawText(s Screen, x, y, width int, text string, style tcell.Style) {
	col := 0
	for _, r := range text {
		w := runewidth.RuneWidth(r)
		if col+w > width {
			break
		}
		s.SetContent(x+col, y, r, nil, style)
		col += w
	}
	for ; col < width; col++ {
		s.SetContent(x+col, y, ' ', nil, style)
	}
}
