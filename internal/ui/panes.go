package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/nuqql/nuqql/internal/config"
	"github.com/nuqql/nuqql/internal/conv"
)

// Theme maps config color names to tcell styles.
type Theme struct {
	List     tcell.Style
	ListSel  tcell.Style
	LogOwn   tcell.Style
	LogPeer  tcell.Style
	LogNew   tcell.Style
	LogEvent tcell.Style
	Border   tcell.Style
	Input    tcell.Style
}

// NewTheme builds a theme from the configured colors.
func NewTheme(c config.Colors) *Theme {
	fg := tcell.GetColor(c.ListFg)
	bg := tcell.GetColor(c.ListBg)
	base := tcell.StyleDefault.Foreground(fg).Background(bg)
	return &Theme{
		List:     base,
		ListSel:  base.Reverse(true),
		LogOwn:   tcell.StyleDefault.Foreground(tcell.GetColor(c.LogOwnFg)).Background(bg),
		LogPeer:  tcell.StyleDefault.Foreground(tcell.GetColor(c.LogPeerFg)).Background(bg),
		LogNew:   tcell.StyleDefault.Foreground(tcell.GetColor(c.LogNewFg)).Background(bg).Bold(true),
		LogEvent: base.Dim(true),
		Border:   tcell.StyleDefault.Foreground(tcell.GetColor(c.BorderFg)).Background(bg),
		Input:    base,
	}
}

// ListPane renders the sorted conversation list and owns the list cursor
// and the filter string.
type ListPane struct {
	pad   *Pad
	list  *conv.List
	theme *Theme

	cursor  int
	filter  string
	visible []*conv.Conversation
}

// NewListPane creates the conversation list pane.
func NewListPane(list *conv.List, theme *Theme, x, y, w, h int) *ListPane {
	return &ListPane{pad: NewPad(x, y, w, h), list: list, theme: theme}
}

// Resize moves the pane's screen region.
func (p *ListPane) Resize(x, y, w, h int) {
	p.pad.Resize(x, y, w, h)
}

// Render redraws the list into its pad.
func (p *ListPane) Render(s Screen) {
	p.visible = p.list.Sorted()
	if p.cursor >= len(p.visible) {
		p.cursor = len(p.visible) - 1
	}
	if p.cursor < 0 {
		p.cursor = 0
	}

	lines := make([]StyledLine, 0, len(p.visible))
	for i, c := range p.visible {
		text := statusIndicator(c) + " " + c.DisplayName()
		if c.Notifications > 0 {
			text = fmt.Sprintf("%s [%d]", text, c.Notifications)
		}
		style := p.theme.List
		if i == p.cursor {
			style = p.theme.ListSel
		}
		lines = append(lines, StyledLine{Text: text, Style: style})
	}
	p.pad.SetLines(lines)
	p.pad.ScrollTo(p.cursor)
	p.pad.Draw(s)
}

func statusIndicator(c *conv.Conversation) string {
	peer := c.Peer()
	if peer == nil {
		return "*"
	}
	switch peer.Status {
	case "on":
		return "+"
	case "afk":
		return "~"
	case "grp":
		return "#"
	case "grp_invite":
		return "!"
	case "off":
		return "-"
	}
	return "?"
}

// MoveCursor moves the selection by delta rows.
func (p *ListPane) MoveCursor(delta int) {
	p.cursor += delta
	if p.cursor < 0 {
		p.cursor = 0
	}
	if n := len(p.visible); p.cursor >= n && n > 0 {
		p.cursor = n - 1
	}
}

// Selected returns the conversation under the cursor, or nil.
func (p *ListPane) Selected() *conv.Conversation {
	if p.cursor < 0 || p.cursor >= len(p.visible) {
		return nil
	}
	return p.visible[p.cursor]
}

// SelectConversation moves the cursor onto the given conversation.
func (p *ListPane) SelectConversation(c *conv.Conversation) {
	for i, o := range p.visible {
		if o == c {
			p.cursor = i
			return
		}
	}
}

// Filter returns the active filter string.
func (p *ListPane) Filter() string {
	return p.filter
}

// SetFilter updates the filter and jumps the cursor to the nearest
// matching row.
func (p *ListPane) SetFilter(filter string) {
	p.filter = filter
	if filter == "" {
		return
	}
	var matches []int
	for i, c := range p.visible {
		if MatchesFilter(c.DisplayName(), filter) {
			matches = append(matches, i)
		}
	}
	if m := NearestMatch(matches, p.cursor); m >= 0 {
		p.cursor = m
	}
}

// LogPane renders the active conversation's scrollback viewport.
type LogPane struct {
	pad   *Pad
	vp    *Viewport
	theme *Theme
	conv  *conv.Conversation
}

// NewLogPane creates the scrollback pane.
func NewLogPane(theme *Theme, x, y, w, h int) *LogPane {
	return &LogPane{
		pad:   NewPad(x, y, w, h),
		vp:    NewViewport(w, h),
		theme: theme,
	}
}

// Resize moves the pane's screen region and resets the viewport to tail
// mode.
func (p *LogPane) Resize(x, y, w, h int) {
	p.pad.Resize(x, y, w, h)
	p.vp.Resize(w, h)
}

// Viewport exposes the pane's scrollback engine for navigation.
func (p *LogPane) Viewport() *Viewport {
	return p.vp
}

// SetConversation binds the pane to a conversation, dropping the
// viewport's cached wrap state for the previous one.
func (p *LogPane) SetConversation(c *conv.Conversation) {
	p.conv = c
	p.vp.Reset()
}

// Conversation returns the bound conversation, or nil.
func (p *LogPane) Conversation() *conv.Conversation {
	return p.conv
}

// Render redraws the scrollback. Rendered entries become read; the
// lastread marker follows the newest rendered message.
func (p *LogPane) Render(s Screen) {
	if p.conv == nil {
		p.pad.SetLines(nil)
		p.pad.Draw(s)
		return
	}
	lines := p.vp.Render(p.conv.Log)
	styled := make([]StyledLine, len(lines))
	for i, ln := range lines {
		styled[i] = StyledLine{Text: ln.Text, Style: p.style(ln)}
	}
	p.pad.SetLines(styled)
	p.pad.ScrollTo(p.vp.Cursor())
	p.pad.Draw(s)

	p.conv.ClearNotifications()
	p.conv.UpdateLastRead()
}

func (p *LogPane) style(ln Line) tcell.Style {
	switch {
	case ln.Event:
		return p.theme.LogEvent
	case ln.Own:
		return p.theme.LogOwn
	case !ln.IsRead:
		return p.theme.LogNew
	default:
		return p.theme.LogPeer
	}
}

// InputPane is the message composition line editor with a recall history
// of sent inputs.
type InputPane struct {
	pad   *Pad
	theme *Theme

	prompt string
	buf    []rune
	cursor int

	history []string
	histIdx int
}

// NewInputPane creates the input pane.
func NewInputPane(theme *Theme, x, y, w, h int) *InputPane {
	return &InputPane{pad: NewPad(x, y, w, h), theme: theme}
}

// Resize moves the pane's screen region.
func (p *InputPane) Resize(x, y, w, h int) {
	p.pad.Resize(x, y, w, h)
}

// SetPrompt switches the pane into a prompted mode (search, filter).
func (p *InputPane) SetPrompt(prompt string) {
	p.prompt = prompt
}

// Text returns the current input.
func (p *InputPane) Text() string {
	return string(p.buf)
}

// Clear resets the editor and the history recall position.
func (p *InputPane) Clear() {
	p.buf = nil
	p.cursor = 0
	p.prompt = ""
	p.histIdx = len(p.history)
}

// Remember appends a sent input to the recall history and resets the
// recall position to the newest entry.
func (p *InputPane) Remember(text string) {
	p.history = append(p.history, text)
	p.histIdx = len(p.history)
}

// HistPrev replaces the input with the previous history entry.
func (p *InputPane) HistPrev() {
	if p.histIdx == 0 {
		return
	}
	p.histIdx--
	p.buf = []rune(p.history[p.histIdx])
	p.cursor = len(p.buf)
}

// HistNext replaces the input with the next history entry, or clears it
// past the newest one.
func (p *InputPane) HistNext() {
	if p.histIdx >= len(p.history) {
		return
	}
	p.histIdx++
	if p.histIdx == len(p.history) {
		p.buf = nil
	} else {
		p.buf = []rune(p.history[p.histIdx])
	}
	p.cursor = len(p.buf)
}

// Insert inserts a rune at the cursor.
func (p *InputPane) Insert(r rune) {
	p.buf = append(p.buf[:p.cursor], append([]rune{r}, p.buf[p.cursor:]...)...)
	p.cursor++
}

// Backspace deletes the rune before the cursor.
func (p *InputPane) Backspace() {
	if p.cursor == 0 {
		return
	}
	p.buf = append(p.buf[:p.cursor-1], p.buf[p.cursor:]...)
	p.cursor--
}

// Delete removes the rune under the cursor.
func (p *InputPane) Delete() {
	if p.cursor >= len(p.buf) {
		return
	}
	p.buf = append(p.buf[:p.cursor], p.buf[p.cursor+1:]...)
}

// Left and Right move the edit cursor.
func (p *InputPane) Left() {
	if p.cursor > 0 {
		p.cursor--
	}
}

func (p *InputPane) Right() {
	if p.cursor < len(p.buf) {
		p.cursor++
	}
}

// Render redraws the editor, wrapping the input over the pane's rows.
func (p *InputPane) Render(s Screen) {
	w, _ := p.pad.Size()
	text := p.prompt + string(p.buf)
	wrapped := Wrap(text, w)
	lines := make([]StyledLine, len(wrapped))
	for i, ln := range wrapped {
		lines[i] = StyledLine{Text: ln, Style: p.theme.Input}
	}
	p.pad.SetLines(lines)
	p.pad.ScrollToEnd()
	p.pad.Draw(s)
}
