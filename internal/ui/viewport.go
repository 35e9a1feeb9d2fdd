package ui

import (
	"strings"

	"github.com/nuqql/nuqql/internal/history"
)

// tailMode is the begin sentinel pinning the viewport to the newest
// messages; begin is then recomputed on every render from the log length
// and the viewport height.
const tailMode = -1

// Line is one physical line of a rendered log entry.
type Line struct {
	Text     string
	MsgIndex int
	Own      bool
	IsRead   bool
	Event    bool
}

// lineCache memoizes, per column width, how many physical lines each log
// entry occupies, so paging does not re-wrap the entire history on every
// keystroke. A width change invalidates the cache.
type lineCache struct {
	width  int
	counts map[int]int
}

func newLineCache() *lineCache {
	return &lineCache{counts: make(map[int]int)}
}

func (c *lineCache) count(log []*history.Message, i, width int) int {
	if width != c.width {
		c.width = width
		c.counts = make(map[int]int)
	}
	if n, ok := c.counts[i]; ok {
		return n
	}
	n := len(Wrap(formatMsg(log[i]), width))
	c.counts[i] = n
	return n
}

// Viewport is the virtualized scrollback engine over a conversation's
// log. It renders entries log[begin:] and never needs the whole log
// materialized.
type Viewport struct {
	width  int
	height int

	// begin is the index of the first rendered log entry, or tailMode.
	begin int
	// cursor is a physical line index into the rendered lines.
	cursor int

	cache *lineCache
}

// NewViewport creates a tail-mode viewport.
func NewViewport(width, height int) *Viewport {
	return &Viewport{
		width:  width,
		height: height,
		begin:  tailMode,
		cache:  newLineCache(),
	}
}

// Resize updates the viewport geometry and resets it to tail mode. The
// wrap cache invalidates itself on the width change.
func (v *Viewport) Resize(width, height int) {
	v.width = width
	v.height = height
	v.begin = tailMode
}

// Width returns the current column width.
func (v *Viewport) Width() int { return v.width }

// ToTail pins the viewport back to the newest messages.
func (v *Viewport) ToTail() {
	v.begin = tailMode
}

// Reset rebinds the viewport to a different log: the wrap cache holds
// per-entry line counts of the old log, so it must be dropped along with
// the scroll position.
func (v *Viewport) Reset() {
	v.begin = tailMode
	v.cursor = 0
	v.cache = newLineCache()
}

// Cursor returns the physical line index of the cursor within the
// rendered lines.
func (v *Viewport) Cursor() int { return v.cursor }

// formatMsg renders one log entry to its display text.
func formatMsg(m *history.Message) string {
	ts := m.Time.Format("15:04:05")
	if m.Sender == history.EventSender {
		return ts + " " + m.Text
	}
	return ts + " " + m.Sender + ": " + m.Text
}

// resolveBegin computes the first rendered entry. In tail mode it walks
// backward from the log end accumulating cached line counts until the
// viewport height is covered.
func (v *Viewport) resolveBegin(log []*history.Message) int {
	if v.begin != tailMode {
		if v.begin >= len(log) {
			return maxInt(0, len(log)-1)
		}
		return v.begin
	}
	lines := 0
	begin := len(log)
	for begin > 0 && lines < v.height {
		lines += v.cache.count(log, begin-1, v.width)
		begin--
	}
	return begin
}

// Render wraps entries log[begin:] top to bottom into physical lines and
// marks every rendered entry read. The caller styles lines by (own,
// is_read) and positions the visible window around the cursor.
func (v *Viewport) Render(log []*history.Message) []Line {
	if len(log) == 0 {
		v.cursor = 0
		return nil
	}
	begin := v.resolveBegin(log)

	var out []Line
	for i := begin; i < len(log); i++ {
		m := log[i]
		wasRead := m.IsRead
		for _, text := range Wrap(formatMsg(m), v.width) {
			out = append(out, Line{
				Text:     text,
				MsgIndex: i,
				Own:      m.Own,
				IsRead:   wasRead,
				Event:    m.Kind != history.KindNormal,
			})
		}
		m.IsRead = true
	}

	if v.begin == tailMode {
		v.cursor = len(out) - 1
	} else if v.cursor >= len(out) {
		v.cursor = len(out) - 1
	}
	return out
}

// CursorUp moves the cursor up one physical line, revealing one more log
// entry when it crosses the top of the rendered region. The new cursor
// row is the last physical line of the newly revealed entry.
func (v *Viewport) CursorUp(log []*history.Message) {
	v.leaveTail(log)
	if v.cursor > 0 {
		v.cursor--
		return
	}
	if v.begin > 0 {
		v.begin--
		v.cursor = v.cache.count(log, v.begin, v.width) - 1
	}
}

// CursorDown moves the cursor down one physical line; all entries below
// the current one are already rendered, so it only stops at the log end.
func (v *Viewport) CursorDown(log []*history.Message) {
	v.leaveTail(log)
	if v.cursor < v.renderedLines(log)-1 {
		v.cursor++
	}
}

// PageUp moves the cursor up by one viewport height.
func (v *Viewport) PageUp(log []*history.Message) {
	for i := 0; i < v.height; i++ {
		v.CursorUp(log)
	}
}

// PageDown moves the cursor down by one viewport height, returning to
// tail mode when the end is reached.
func (v *Viewport) PageDown(log []*history.Message) {
	for i := 0; i < v.height; i++ {
		v.CursorDown(log)
	}
	if v.cursor >= v.renderedLines(log)-1 {
		v.begin = tailMode
	}
}

// Top jumps to the very first log entry.
func (v *Viewport) Top(log []*history.Message) {
	if len(log) == 0 {
		return
	}
	v.begin = 0
	v.cursor = 0
}

// Bottom returns to tail mode.
func (v *Viewport) Bottom(log []*history.Message) {
	v.begin = tailMode
	v.cursor = v.renderedLines(log) - 1
}

// leaveTail freezes the current tail position so cursor movement has a
// fixed begin to work against.
func (v *Viewport) leaveTail(log []*history.Message) {
	if v.begin == tailMode {
		v.begin = v.resolveBegin(log)
		v.cursor = v.renderedLines(log) - 1
	}
}

// renderedLines returns the physical line count of log[begin:] from the
// cache.
func (v *Viewport) renderedLines(log []*history.Message) int {
	begin := v.resolveBegin(log)
	n := 0
	for i := begin; i < len(log); i++ {
		n += v.cache.count(log, i, v.width)
	}
	return n
}

// Search scans physical lines outward from the cursor for a substring
// match, extending the view backward when the scan hits the top of the
// rendered region. It does not wrap past the start or end of the log; a
// failed search leaves the cursor at the boundary it reached. Returns
// true on a match.
func (v *Viewport) Search(log []*history.Message, query string, forward bool) bool {
	if query == "" || len(log) == 0 {
		return false
	}
	v.leaveTail(log)

	if forward {
		total := v.renderedLines(log)
		for row := v.cursor + 1; row < total; row++ {
			if v.lineMatches(log, row, query) {
				v.cursor = row
				return true
			}
		}
		v.cursor = total - 1
		return false
	}

	row := v.cursor - 1
	for {
		for ; row >= 0; row-- {
			if v.lineMatches(log, row, query) {
				v.cursor = row
				return true
			}
		}
		if v.begin == 0 {
			v.cursor = 0
			return false
		}
		// Extend the view by one entry and keep scanning inside it.
		v.begin--
		n := v.cache.count(log, v.begin, v.width)
		v.cursor += n
		row = n - 1
	}
}

// lineMatches re-derives the physical line at row and tests it for the
// query substring.
func (v *Viewport) lineMatches(log []*history.Message, row int, query string) bool {
	begin := v.resolveBegin(log)
	for i := begin; i < len(log); i++ {
		n := v.cache.count(log, i, v.width)
		if row < n {
			lines := Wrap(formatMsg(log[i]), v.width)
			return strings.Contains(lines[row], query)
		}
		row -= n
	}
	return false
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
