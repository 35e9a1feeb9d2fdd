package ui

import (
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
	"go.uber.org/zap"

	"github.com/nuqql/nuqql/internal/bus"
	"github.com/nuqql/nuqql/internal/config"
	"github.com/nuqql/nuqql/internal/conv"
	"github.com/nuqql/nuqql/internal/route"
)

// pollInterval bounds the wait for terminal input so backend sockets
// keep being polled while the user is idle.
const pollInterval = 100 * time.Millisecond

// QuitSignal lets the command layer request loop termination without a
// reference to the UI. The loop checks it once per tick.
type QuitSignal struct {
	requested bool
}

func (q *QuitSignal) Request() {
	q.requested = true
}

func (q *QuitSignal) Requested() bool {
	return q.requested
}

// Input modes of the main loop.
const (
	modeNormal = iota
	modeFilter
	modeSearch
)

// UI owns the terminal screen and runs the cooperative main loop. All
// model mutation happens on this loop; the only other goroutines are
// tcell's event reader and the backend output drains.
type UI struct {
	cfg    *config.Config
	theme  *Theme
	km     *Keymap
	list   *conv.List
	router *route.Router
	quit   *QuitSignal
	logger *zap.Logger

	screen  tcell.Screen
	events  <-chan bus.Event
	unsub   func()
	listRaw chan tcell.Event
	stop    chan struct{}

	listPane  *ListPane
	logPane   *LogPane
	inputPane *InputPane

	active *conv.Conversation
	zoomed bool
	mode   int

	searchFwd  bool
	lastSearch string

	dirtyList bool
	dirtyLog  bool
	dirtyAll  bool
}

// New creates the UI over an already-wired model layer.
func New(cfg *config.Config, list *conv.List, router *route.Router, b *bus.Bus,
	quit *QuitSignal, logger *zap.Logger) *UI {
	events, unsub := b.Subscribe("ui.", 64)
	return &UI{
		cfg:    cfg,
		theme:  NewTheme(cfg.Colors),
		km:     NewKeymap(cfg.Keys),
		list:   list,
		router: router,
		quit:   quit,
		logger: logger,
		events: events,
		unsub:  unsub,
	}
}

// SetScreen injects a screen, bypassing terminal detection. Used by
// tests with tcell's simulation screen.
func (u *UI) SetScreen(s tcell.Screen) {
	u.screen = s
}

// Run initializes the terminal and drives the main loop until quit.
func (u *UI) Run() error {
	if u.screen == nil {
		s, err := tcell.NewScreen()
		if err != nil {
			return err
		}
		u.screen = s
	}
	if err := u.screen.Init(); err != nil {
		return err
	}
	defer u.screen.Fini()
	defer u.unsub()

	w, h := u.screen.Size()
	u.logger.Info("terminal ready", zap.Int("width", w), zap.Int("height", h))

	u.listPane = NewListPane(u.list, u.theme, 0, 0, 1, 1)
	u.logPane = NewLogPane(u.theme, 0, 0, 1, 1)
	u.inputPane = NewInputPane(u.theme, 0, 0, 1, 1)
	u.layout()
	u.dirtyAll = true

	u.listRaw = make(chan tcell.Event, 16)
	u.stop = make(chan struct{})
	go u.screen.ChannelEvents(u.listRaw, u.stop)
	defer close(u.stop)

	for !u.quit.Requested() {
		u.Tick(time.Now())
	}
	return nil
}

// Tick runs one iteration of the main loop: wait for input with a
// bounded timeout, poll the backends, apply at most one key, drain
// redraw signals, redraw.
func (u *UI) Tick(now time.Time) {
	var ev tcell.Event
	select {
	case ev = <-u.listRaw:
	case <-time.After(pollInterval):
	}

	u.router.Poll(now)

	switch e := ev.(type) {
	case *tcell.EventResize:
		u.screen.Sync()
		u.layout()
		u.dirtyAll = true
	case *tcell.EventKey:
		u.handleKey(e)
	}

	u.drainSignals()
	u.redraw()
}

// geometry computes the pane regions from the configured ratios. Zoom
// hands the whole screen to the log pane, leaving one input row below
// the separator.
func (u *UI) geometry() (listW, logH, convX, convW int) {
	w, h := u.screen.Size()
	listW = clamp(w*u.cfg.UI.ListRatio/100, 1, w-2)
	logH = clamp(h*u.cfg.UI.LogRatio/100, 1, h-2)
	convX, convW = listW+1, w-listW-1
	if u.zoomed {
		convX, convW = 0, w
		logH = h - 2
	}
	return listW, logH, convX, convW
}

func (u *UI) layout() {
	_, h := u.screen.Size()
	listW, logH, convX, convW := u.geometry()

	u.listPane.Resize(0, 0, listW, h)
	u.logPane.Resize(convX, 0, convW, logH)
	u.inputPane.Resize(convX, logH+1, convW, h-logH-1)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// drainSignals empties the redraw bus into the dirty flags.
func (u *UI) drainSignals() {
	for {
		select {
		case ev := <-u.events:
			switch ev.Kind {
			case bus.KindListChanged:
				u.dirtyList = true
			case bus.KindLogChanged:
				// Notification counters live in the list too.
				u.dirtyList = true
				if c, ok := ev.Payload.(*conv.Conversation); ok && c == u.active {
					u.dirtyLog = true
				}
			}
		default:
			return
		}
	}
}

func (u *UI) redraw() {
	if !u.dirtyAll && !u.dirtyList && !u.dirtyLog {
		return
	}
	if u.dirtyAll {
		u.screen.Clear()
		u.drawBorders()
		u.dirtyList = true
		u.dirtyLog = true
	}
	if u.dirtyList && !u.zoomed {
		u.listPane.Render(u.screen)
	}
	if u.dirtyLog || u.dirtyAll {
		u.logPane.Render(u.screen)
		u.inputPane.Render(u.screen)
	}
	u.screen.Show()
	u.dirtyAll, u.dirtyList, u.dirtyLog = false, false, false
}

func (u *UI) drawBorders() {
	w, h := u.screen.Size()
	listW, logH, convX, _ := u.geometry()
	if !u.zoomed {
		for y := 0; y < h; y++ {
			u.screen.SetContent(listW, y, '│', nil, u.theme.Border)
		}
	}
	for x := convX; x < w; x++ {
		u.screen.SetContent(x, logH, '─', nil, u.theme.Border)
	}

	if u.cfg.UI.ShowTitles && u.active != nil {
		title := " " + u.active.DisplayName() + " "
		col := convX + 1
		for _, r := range title {
			rw := runewidth.RuneWidth(r)
			if col+rw > w {
				break
			}
			u.screen.SetContent(col, logH, r, nil, u.theme.Border)
			col += rw
		}
	}
}

func (u *UI) handleKey(ev *tcell.EventKey) {
	switch u.mode {
	case modeFilter:
		u.handleFilterKey(ev)
	case modeSearch:
		u.handleSearchKey(ev)
	default:
		u.handleNormalKey(ev)
	}
}

func (u *UI) handleNormalKey(ev *tcell.EventKey) {
	action := u.km.Lookup(ev)
	switch action {
	case ActionQuit:
		u.quit.Request()
		return
	case ActionNextConv:
		u.open(u.list.Next(u.active))
		return
	case ActionPrevConv:
		u.open(u.list.Prev(u.active))
		return
	case ActionNextNew:
		if c := u.list.NextNew(); c != nil {
			u.open(c)
		}
		return
	case ActionZoom:
		u.zoomed = !u.zoomed
		u.layout()
		u.dirtyAll = true
		return
	}
	if u.active == nil {
		u.handleListKey(ev, action)
	} else {
		u.handleConvKey(ev, action)
	}
}

func (u *UI) handleListKey(ev *tcell.EventKey, action string) {
	_, h := u.screen.Size()
	switch action {
	case ActionCursorUp:
		u.listPane.MoveCursor(-1)
	case ActionCursorDown:
		u.listPane.MoveCursor(1)
	case ActionPageUp:
		u.listPane.MoveCursor(-h)
	case ActionPageDown:
		u.listPane.MoveCursor(h)
	case ActionTop:
		u.listPane.MoveCursor(-1 << 30)
	case ActionBottom:
		u.listPane.MoveCursor(1 << 30)
	case ActionSend:
		u.open(u.listPane.Selected())
	case ActionFilter:
		u.mode = modeFilter
		u.inputPane.Clear()
		u.inputPane.SetPrompt("filter: ")
	case ActionAbort:
		u.listPane.SetFilter("")
	default:
		return
	}
	u.dirtyList = true
	u.dirtyLog = true
}

func (u *UI) handleConvKey(ev *tcell.EventKey, action string) {
	vp := u.logPane.Viewport()
	log := u.active.Log
	switch action {
	case ActionCursorUp:
		vp.CursorUp(log)
	case ActionCursorDown:
		vp.CursorDown(log)
	case ActionPageUp:
		vp.PageUp(log)
	case ActionPageDown:
		vp.PageDown(log)
	case ActionTop:
		vp.Top(log)
	case ActionBottom:
		vp.Bottom(log)
	case ActionSearchFwd, ActionSearchBwd:
		u.mode = modeSearch
		u.searchFwd = action == ActionSearchFwd
		u.inputPane.Clear()
		u.inputPane.SetPrompt("search: ")
	case ActionSend:
		if text := u.inputPane.Text(); text != "" {
			u.active.SendMsg(text)
			u.inputPane.Remember(text)
		}
		u.inputPane.Clear()
		vp.ToTail()
	case ActionHistPrev:
		u.inputPane.HistPrev()
	case ActionHistNext:
		u.inputPane.HistNext()
	case ActionAbort:
		u.close()
	default:
		u.editKey(ev)
	}
	u.dirtyLog = true
}

// editKey routes unbound keys into the input line editor.
func (u *UI) editKey(ev *tcell.EventKey) {
	switch ev.Key() {
	case tcell.KeyRune:
		u.inputPane.Insert(ev.Rune())
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		u.inputPane.Backspace()
	case tcell.KeyDelete:
		u.inputPane.Delete()
	case tcell.KeyLeft:
		u.inputPane.Left()
	case tcell.KeyRight:
		u.inputPane.Right()
	}
}

func (u *UI) handleFilterKey(ev *tcell.EventKey) {
	switch u.km.Lookup(ev) {
	case ActionSend:
		u.mode = modeNormal
		c := u.listPane.Selected()
		u.listPane.SetFilter("")
		u.inputPane.Clear()
		u.open(c)
	case ActionAbort:
		u.mode = modeNormal
		u.listPane.SetFilter("")
		u.inputPane.Clear()
	default:
		u.editKey(ev)
		u.listPane.SetFilter(u.inputPane.Text())
	}
	u.dirtyList = true
	u.dirtyLog = true
}

func (u *UI) handleSearchKey(ev *tcell.EventKey) {
	switch u.km.Lookup(ev) {
	case ActionSend:
		u.mode = modeNormal
		query := u.inputPane.Text()
		if query == "" {
			query = u.lastSearch
		}
		u.inputPane.Clear()
		if query != "" {
			u.lastSearch = query
			u.logPane.Viewport().Search(u.active.Log, query, u.searchFwd)
		}
	case ActionAbort:
		u.mode = modeNormal
		u.inputPane.Clear()
	default:
		u.editKey(ev)
	}
	u.dirtyLog = true
}

// open activates a conversation: bumps its recency, clears its
// notifications and pins the scrollback to the tail. A nil argument is
// ignored.
func (u *UI) open(c *conv.Conversation) {
	if c == nil {
		return
	}
	if u.active != nil {
		u.close()
	}
	u.active = c
	c.Touch()
	c.ClearNotifications()
	u.logPane.SetConversation(c)
	u.listPane.SelectConversation(c)
	u.inputPane.Clear()
	// Full redraw so the title row picks up the new conversation.
	u.dirtyAll = true
}

// close deactivates the current conversation and returns focus to the
// list.
func (u *UI) close() {
	if u.active == nil {
		return
	}
	u.active = nil
	u.zoomed = false
	u.logPane.SetConversation(nil)
	u.inputPane.Clear()
	u.layout()
	u.dirtyAll = true
}
