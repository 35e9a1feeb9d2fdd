package ui

import (
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"
)

// fakeScreen records cell writes for assertions.
type fakeScreen struct {
	w, h  int
	cells map[[2]int]rune
}

func newFakeScreen(w, h int) *fakeScreen {
	return &fakeScreen{w: w, h: h, cells: make(map[[2]int]rune)}
}

func (f *fakeScreen) Size() (int, int) { return f.w, f.h }

func (f *fakeScreen) SetContent(x, y int, primary rune, _ []rune, _ tcell.Style) {
	f.cells[[2]int{x, y}] = primary
}

func (f *fakeScreen) row(y, x0, w int) string {
	var b strings.Builder
	for x := x0; x < x0+w; x++ {
		r, ok := f.cells[[2]int{x, y}]
		if !ok {
			r = 0
		}
		b.WriteRune(r)
	}
	return strings.TrimRight(b.String(), " \x00")
}

func TestPadDraw(t *testing.T) {
	s := newFakeScreen(20, 5)
	p := NewPad(2, 1, 10, 2)
	p.SetLines([]StyledLine{
		{Text: "first"},
		{Text: "second"},
		{Text: "third"},
	})

	p.Draw(s)
	if got := s.row(1, 2, 10); got != "first" {
		t.Errorf("row 1 = %q, want %q", got, "first")
	}
	if got := s.row(2, 2, 10); got != "second" {
		t.Errorf("row 2 = %q, want %q", got, "second")
	}
}

func TestPadScrollTo(t *testing.T) {
	s := newFakeScreen(20, 5)
	p := NewPad(0, 0, 10, 2)
	p.SetLines([]StyledLine{
		{Text: "a"}, {Text: "b"}, {Text: "c"}, {Text: "d"},
	})

	p.ScrollTo(3)
	p.Draw(s)
	if got := s.row(0, 0, 10); got != "c" {
		t.Errorf("top row = %q, want %q", got, "c")
	}

	p.ScrollTo(0)
	p.Draw(s)
	if got := s.row(0, 0, 10); got != "a" {
		t.Errorf("top row = %q, want %q", got, "a")
	}
}

func TestPadScrollToEnd(t *testing.T) {
	s := newFakeScreen(20, 5)
	p := NewPad(0, 0, 10, 2)
	p.SetLines([]StyledLine{
		{Text: "a"}, {Text: "b"}, {Text: "c"},
	})
	p.ScrollToEnd()
	p.Draw(s)
	if got := s.row(1, 0, 10); got != "c" {
		t.Errorf("bottom row = %q, want %q", got, "c")
	}
}

func TestPadClipsLongLines(t *testing.T) {
	s := newFakeScreen(20, 5)
	p := NewPad(0, 0, 4, 1)
	p.SetLines([]StyledLine{{Text: "overlong"}})
	p.Draw(s)
	if got := s.row(0, 0, 4); got != "over" {
		t.Errorf("clipped row = %q, want %q", got, "over")
	}
	if _, ok := s.cells[[2]int{4, 0}]; ok {
		t.Error("wrote past pad width")
	}
}

func TestPadPadsShortRegion(t *testing.T) {
	s := newFakeScreen(20, 5)
	p := NewPad(0, 0, 5, 3)
	p.SetLines([]StyledLine{{Text: "one"}})
	p.Draw(s)
	// Empty buffer rows still paint spaces over stale content.
	for y := 1; y < 3; y++ {
		for x := 0; x < 5; x++ {
			if s.cells[[2]int{x, y}] != ' ' {
				t.Fatalf("cell (%d,%d) = %q, want space", x, y, s.cells[[2]int{x, y}])
			}
		}
	}
}
