// Package conv implements the conversation model: the sorted, filterable
// collection of conversations, their statistics and notification state,
// and per-kind send behavior.
package conv

import (
	"strings"
	"time"

	"github.com/nuqql/nuqql/internal/backend"
	"github.com/nuqql/nuqql/internal/history"
	"github.com/nuqql/nuqql/internal/proto"
	"github.com/nuqql/nuqql/internal/roster"
)

// Kind is the closed set of conversation variants.
type Kind int

const (
	KindBuddy Kind = iota
	KindGroup
	KindBackend
	KindNuqql
	KindMain
)

// Stats holds the per-conversation usage statistics driving recency sort.
type Stats struct {
	LastUsed time.Time
	LastSend time.Time
	NumSend  int
}

// Conversation is the state unit for one ongoing exchange: with a buddy,
// a group, a backend's control channel, or nuqql itself.
type Conversation struct {
	Kind    Kind
	Name    string
	Backend *backend.Backend
	Account *roster.Account
	// Peers is empty or holds the single primary peer for Buddy and
	// Group kinds.
	Peers []*roster.Buddy
	// Temporary marks a group conversation created by a not yet
	// confirmed join.
	Temporary bool

	Notifications int
	Stats         Stats
	Log           []*history.Message

	// CommandFunc handles client-local commands typed into the nuqql
	// conversation. Wired by the application.
	CommandFunc func(string)

	store *history.Store
	list  *List
}

// NewBuddy creates a conversation with a roster buddy.
func NewBuddy(b *backend.Backend, acc *roster.Account, peer *roster.Buddy) *Conversation {
	return &Conversation{
		Kind:    KindBuddy,
		Name:    peer.Name,
		Backend: b,
		Account: acc,
		Peers:   []*roster.Buddy{peer},
	}
}

// NewGroup creates a group chat conversation. temporary marks a join that
// the backend has not yet confirmed.
func NewGroup(b *backend.Backend, acc *roster.Account, chat string, temporary bool) *Conversation {
	c := &Conversation{
		Kind:      KindGroup,
		Name:      chat,
		Backend:   b,
		Account:   acc,
		Temporary: temporary,
	}
	if peer := acc.Buddy(chat); peer != nil {
		c.Peers = []*roster.Buddy{peer}
	}
	return c
}

// NewBackend creates a backend's control conversation.
func NewBackend(b *backend.Backend) *Conversation {
	return &Conversation{Kind: KindBackend, Name: b.Name, Backend: b}
}

// NewNuqql creates the conversation with nuqql itself.
func NewNuqql(self *backend.Backend) *Conversation {
	return &Conversation{Kind: KindNuqql, Name: backend.SelfName, Backend: self}
}

// NewMain creates the main log conversation.
func NewMain() *Conversation {
	return &Conversation{Kind: KindMain, Name: "main"}
}

// DisplayName returns the name shown in the conversation list.
func (c *Conversation) DisplayName() string {
	switch c.Kind {
	case KindBuddy, KindGroup:
		if len(c.Peers) > 0 {
			return c.Peers[0].DisplayName()
		}
		return c.Name
	case KindBackend:
		return "{backend} " + c.Name
	case KindNuqql:
		return "{nuqql}"
	default:
		return "{main}"
	}
}

// Peer returns the primary peer, or nil.
func (c *Conversation) Peer() *roster.Buddy {
	if len(c.Peers) > 0 {
		return c.Peers[0]
	}
	return nil
}

// typeRank orders conversation kinds in the list: peers first, then
// backends, then nuqql/main.
func (c *Conversation) typeRank() int {
	switch c.Kind {
	case KindBuddy, KindGroup:
		return 0
	case KindBackend:
		return 1
	default:
		return 2
	}
}

// statusRank orders conversations by their primary peer's status.
func (c *Conversation) statusRank() int {
	p := c.Peer()
	if p == nil {
		return 0
	}
	switch p.Status {
	case "on":
		return 0
	case "afk":
		return 1
	case "grp":
		return 2
	case "grp_invite":
		return 3
	case "off":
		return 4
	}
	return 5
}

// offline reports whether the primary peer is known to be offline.
func (c *Conversation) offline() bool {
	p := c.Peer()
	return p != nil && p.Status == "off"
}

// Notify increments the notification counter and requests a list redraw.
func (c *Conversation) Notify() {
	c.Notifications++
	c.listChanged()
}

// ClearNotifications zeroes the notification counter.
func (c *Conversation) ClearNotifications() {
	if c.Notifications == 0 {
		return
	}
	c.Notifications = 0
	c.listChanged()
}

// persistent reports whether this conversation writes history to disk.
// Control conversations keep their log in memory only.
func (c *Conversation) persistent() bool {
	return c.Kind == KindBuddy || c.Kind == KindGroup
}

// Store lazily opens the conversation's history store.
func (c *Conversation) Store() (*history.Store, error) {
	if !c.persistent() {
		return nil, nil
	}
	if c.store == nil {
		s, err := history.NewStore(c.Backend.Name, c.Account.ID, c.Name)
		if err != nil {
			return nil, err
		}
		c.store = s
	}
	return c.store, nil
}

// LoadHistory replays persisted history into the in-memory log.
func (c *Conversation) LoadHistory() error {
	s, err := c.Store()
	if err != nil || s == nil {
		return err
	}
	msgs, err := s.Load()
	if err != nil {
		return err
	}
	c.Log = msgs
	for _, m := range msgs {
		if !m.IsRead {
			c.Notifications++
		}
	}
	if c.Notifications > 0 {
		c.listChanged()
	}
	return nil
}

// UpdateLastRead advances the on-disk lastread marker to the newest
// message of the log. Called after the scrollback has been shown to the
// user.
func (c *Conversation) UpdateLastRead() {
	s, err := c.Store()
	if err != nil || s == nil {
		return
	}
	for i := len(c.Log) - 1; i >= 0; i-- {
		if c.Log[i].Kind == history.KindNormal {
			_ = s.SetLastRead(c.Log[i])
			return
		}
	}
}

// AppendLog appends a message to the in-memory log and persists it.
// Unread messages raise a notification. Implements backend.ControlLog for
// control conversations.
func (c *Conversation) AppendLog(m *history.Message) {
	c.Log = append(c.Log, m)
	if m.Kind == history.KindNormal {
		if s, err := c.Store(); err == nil && s != nil {
			if err := s.Append(m); err != nil {
				// Persistence failures kill this conversation's
				// future logging only; surface them in the log.
				c.store = nil
				c.Log = append(c.Log, history.NewMessage(time.Now(), history.EventSender,
					"history write failed: "+err.Error(), false))
			}
		}
	}
	if !m.IsRead {
		c.Notify()
	}
	c.logChanged()
}

// LogMessage implements backend.ControlLog.
func (c *Conversation) LogMessage(m *history.Message) {
	c.AppendLog(m)
}

// SendMsg dispatches user input according to the conversation kind:
// messages to buddies and groups, raw commands to backends, client-local
// commands to nuqql. Group conversations intercept chat management
// commands.
func (c *Conversation) SendMsg(text string) {
	now := time.Now()
	switch c.Kind {
	case KindBuddy:
		c.logOwn(now, text)
		c.Backend.Send(proto.SendMsg(c.Account.ID, c.Name, text))
	case KindGroup:
		if c.sendGroupCommand(text) {
			return
		}
		c.logOwn(now, text)
		c.Backend.Send(proto.SendChatMsg(c.Account.ID, c.Name, text))
	case KindBackend:
		c.logOwn(now, text)
		if text == "help" {
			c.AppendLog(history.NewMessage(now, history.EventSender, backendHelp, false))
			return
		}
		// A chat join opens a tentative group conversation; it turns
		// permanent when the chat shows up in the backend's chat list,
		// or is torn down again on a join error.
		c.interceptChatJoin(text)
		// Raw command passthrough.
		c.Backend.Send(text)
	case KindNuqql:
		c.logOwn(now, text)
		if c.CommandFunc != nil {
			c.CommandFunc(text)
		}
	case KindMain:
		// The main conversation is a log, not a peer.
	}
}

// interceptChatJoin recognizes an "account <id> chat join <chat>" command
// typed into the control conversation and creates the temporary group
// conversation for it.
func (c *Conversation) interceptChatJoin(text string) {
	fields := strings.Fields(text)
	if len(fields) != 5 || fields[0] != "account" || fields[2] != "chat" || fields[3] != "join" {
		return
	}
	acc := c.Backend.AccountByID(fields[1])
	if acc == nil || c.list == nil {
		return
	}
	chat := fields[4]
	if c.list.Find(c.Backend, acc.ID, chat) != nil {
		return
	}
	g := NewGroup(c.Backend, acc, chat, true)
	c.list.Add(g)
	if err := g.LoadHistory(); err != nil {
		g.AppendLog(historyLoadError(err))
	}
}

// sendGroupCommand intercepts the literal group management commands and
// emits protocol chat commands instead of a text message. Returns true if
// text was such a command.
func (c *Conversation) sendGroupCommand(text string) bool {
	switch {
	case text == "/names":
		c.Backend.Send(proto.ChatUsers(c.Account.ID, c.Name))
	case text == "/part":
		c.Backend.Send(proto.ChatPart(c.Account.ID, c.Name))
	case text == "/join":
		c.Backend.Send(proto.ChatJoin(c.Account.ID, c.Name))
	case strings.HasPrefix(text, "/invite "):
		user := strings.TrimSpace(strings.TrimPrefix(text, "/invite "))
		if user != "" {
			c.Backend.Send(proto.ChatInvite(c.Account.ID, c.Name, user))
		}
	default:
		return false
	}
	return true
}

// logOwn records an own message and bumps the send statistics.
func (c *Conversation) logOwn(now time.Time, text string) {
	c.Stats.LastSend = now
	c.Stats.LastUsed = now
	c.Stats.NumSend++
	c.AppendLog(history.NewMessage(now, history.OwnSender, text, true))
}

// Touch marks the conversation as used now.
func (c *Conversation) Touch() {
	c.Stats.LastUsed = time.Now()
}

func (c *Conversation) listChanged() {
	if c.list != nil {
		c.list.SignalListChanged()
	}
}

func (c *Conversation) logChanged() {
	if c.list != nil {
		c.list.signalLogChanged(c)
	}
}

const backendHelp = `commands:
  account list                    list accounts
  account add <protocol> <user> <password>
  account <id> buddies            request buddy list
  account <id> collect 0          replay message backlog
  account <id> status get|set <status>
  account <id> chat join <chat>   join a group chat
  help                            this help`
