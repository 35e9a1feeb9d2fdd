package ui

import (
	"strings"

	"github.com/gdamore/tcell/v2"
)

// Action names bindable in the config file.
const (
	ActionQuit       = "quit"
	ActionNextConv   = "next_conversation"
	ActionPrevConv   = "prev_conversation"
	ActionNextNew    = "next_new"
	ActionZoom       = "zoom"
	ActionSearchFwd  = "search_forward"
	ActionSearchBwd  = "search_backward"
	ActionCursorUp   = "cursor_up"
	ActionCursorDown = "cursor_down"
	ActionPageUp     = "page_up"
	ActionPageDown   = "page_down"
	ActionTop        = "top"
	ActionBottom     = "bottom"
	ActionFilter     = "filter"
	ActionSend       = "send"
	ActionAbort      = "abort"
	ActionHistPrev   = "history_prev"
	ActionHistNext   = "history_next"
)

// binding identifies one key: either a special key or a rune with
// optional control modifier already folded into the key constant.
type binding struct {
	key tcell.Key
	ch  rune
}

func (b binding) matches(ev *tcell.EventKey) bool {
	if b.key != tcell.KeyRune {
		return ev.Key() == b.key
	}
	return ev.Key() == tcell.KeyRune && ev.Rune() == b.ch
}

// defaultBindings maps actions to their built-in keys.
var defaultBindings = map[string]binding{
	ActionQuit:       {key: tcell.KeyCtrlQ},
	ActionNextConv:   {key: tcell.KeyCtrlN},
	ActionPrevConv:   {key: tcell.KeyCtrlB},
	ActionNextNew:    {key: tcell.KeyCtrlV},
	ActionZoom:       {key: tcell.KeyF9},
	ActionSearchFwd:  {key: tcell.KeyCtrlS},
	ActionSearchBwd:  {key: tcell.KeyCtrlR},
	ActionCursorUp:   {key: tcell.KeyUp},
	ActionCursorDown: {key: tcell.KeyDown},
	ActionPageUp:     {key: tcell.KeyPgUp},
	ActionPageDown:   {key: tcell.KeyPgDn},
	ActionTop:        {key: tcell.KeyHome},
	ActionBottom:     {key: tcell.KeyEnd},
	ActionFilter:     {key: tcell.KeyRune, ch: '/'},
	ActionSend:       {key: tcell.KeyEnter},
	ActionAbort:      {key: tcell.KeyEscape},
	ActionHistPrev:   {key: tcell.KeyCtrlP},
	ActionHistNext:   {key: tcell.KeyCtrlO},
}

// keyNames maps config key names to tcell keys. Single characters bind
// as runes.
var keyNames = map[string]tcell.Key{
	"enter":     tcell.KeyEnter,
	"escape":    tcell.KeyEscape,
	"up":        tcell.KeyUp,
	"down":      tcell.KeyDown,
	"left":      tcell.KeyLeft,
	"right":     tcell.KeyRight,
	"home":      tcell.KeyHome,
	"end":       tcell.KeyEnd,
	"pgup":      tcell.KeyPgUp,
	"pgdn":      tcell.KeyPgDn,
	"tab":       tcell.KeyTab,
	"backspace": tcell.KeyBackspace2,
	"delete":    tcell.KeyDelete,
	"f1":        tcell.KeyF1,
	"f2":        tcell.KeyF2,
	"f3":        tcell.KeyF3,
	"f4":        tcell.KeyF4,
	"f5":        tcell.KeyF5,
	"f6":        tcell.KeyF6,
	"f7":        tcell.KeyF7,
	"f8":        tcell.KeyF8,
	"f9":        tcell.KeyF9,
	"f10":       tcell.KeyF10,
	"ctrl-a":    tcell.KeyCtrlA,
	"ctrl-b":    tcell.KeyCtrlB,
	"ctrl-e":    tcell.KeyCtrlE,
	"ctrl-n":    tcell.KeyCtrlN,
	"ctrl-o":    tcell.KeyCtrlO,
	"ctrl-p":    tcell.KeyCtrlP,
	"ctrl-q":    tcell.KeyCtrlQ,
	"ctrl-r":    tcell.KeyCtrlR,
	"ctrl-s":    tcell.KeyCtrlS,
	"ctrl-v":    tcell.KeyCtrlV,
	"ctrl-x":    tcell.KeyCtrlX,
}

// Keymap resolves key events to action names.
type Keymap struct {
	bindings map[string]binding
}

// NewKeymap builds a keymap from the defaults overridden by the
// configured action-to-key-name assignments. Unknown key names keep the
// default binding.
func NewKeymap(configured map[string]string) *Keymap {
	km := &Keymap{bindings: make(map[string]binding)}
	for action, b := range defaultBindings {
		km.bindings[action] = b
	}
	for action, name := range configured {
		if _, ok := km.bindings[action]; !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if key, ok := keyNames[name]; ok {
			km.bindings[action] = binding{key: key}
		} else if r := []rune(name); len(r) == 1 {
			km.bindings[action] = binding{key: tcell.KeyRune, ch: r[0]}
		}
	}
	return km
}

// Lookup returns the action bound to the event, or "".
func (km *Keymap) Lookup(ev *tcell.EventKey) string {
	for action, b := range km.bindings {
		if b.matches(ev) {
			return action
		}
	}
	return ""
}
