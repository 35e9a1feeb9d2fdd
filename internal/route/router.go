// Package route applies decoded backend events to the roster and the
// conversation model. It is the data-path half of the main loop: the UI
// owns keystrokes, the router owns everything arriving on sockets.
package route

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nuqql/nuqql/internal/backend"
	"github.com/nuqql/nuqql/internal/conv"
	"github.com/nuqql/nuqql/internal/history"
	"github.com/nuqql/nuqql/internal/proto"
	"github.com/nuqql/nuqql/internal/roster"
	"github.com/nuqql/nuqql/internal/status"
)

// Router decodes polled backend lines and mutates roster and
// conversation state accordingly.
type Router struct {
	registry *backend.Registry
	list     *conv.List
	nuqql    *conv.Conversation

	statusPath   string
	globalStatus string

	quit   func()
	logger *zap.Logger
}

// New creates a router. statusPath is the persisted global presence file;
// quit is invoked when the user issues the quit command.
func New(reg *backend.Registry, list *conv.List, nuqqlConv *conv.Conversation, statusPath string, quit func(), logger *zap.Logger) (*Router, error) {
	gs, err := status.Load(statusPath)
	if err != nil {
		return nil, fmt.Errorf("load global status: %w", err)
	}
	r := &Router{
		registry:     reg,
		list:         list,
		nuqql:        nuqqlConv,
		statusPath:   statusPath,
		globalStatus: gs,
		quit:         quit,
		logger:       logger,
	}
	nuqqlConv.CommandFunc = r.HandleNuqqlCommand
	return r, nil
}

// Poll reads at most one line per backend, applies the decoded events and
// runs the periodic buddy refresh.
func (r *Router) Poll(now time.Time) {
	for _, p := range r.registry.PollAll() {
		ev := proto.Decode(p.Backend.Name, p.Line)
		if ev == nil {
			continue
		}
		r.handle(p.Backend, ev)
	}
	r.registry.TickAll(now)
}

func (r *Router) handle(b *backend.Backend, ev proto.Event) {
	switch e := ev.(type) {
	case proto.Error:
		r.handleError(b, e)
	case proto.Info:
		b.LogControl("info: " + e.Text)
	case proto.Account:
		r.handleAccount(b, e)
	case proto.Status:
		b.LogControl(fmt.Sprintf("account %s status: %s", e.AccountID, e.Status))
	case proto.Buddy:
		r.handleBuddy(b, e)
	case proto.Message:
		r.handleMessage(b, e)
	case proto.ChatList:
		r.handleChatList(b, e)
	case proto.ChatUser:
		r.handleChatUser(b, e)
	case proto.ChatMsg:
		r.handleChatMsg(b, e)
	case proto.ParseError:
		b.LogControl(e.Text)
	}
}

func (r *Router) handleError(b *backend.Backend, e proto.Error) {
	b.LogControl("error: " + e.Text)
	// A join that failed before confirmation destroys the temporary
	// group conversation it belonged to.
	for _, c := range r.list.All() {
		if c.Kind == conv.KindGroup && c.Temporary && c.Backend == b &&
			strings.Contains(e.Text, c.Name) {
			r.list.Remove(c)
			return
		}
	}
}

// handleAccount creates a previously unseen account and immediately asks
// the backend for its buddy list and full message backlog. A configured
// global status is pushed to the new account.
func (r *Router) handleAccount(b *backend.Backend, e proto.Account) {
	if _, ok := b.Accounts[e.User]; ok {
		return
	}
	acc := roster.NewAccount(e.ID, e.Protocol, e.User)
	b.Accounts[e.User] = acc
	r.logger.Info("account added",
		zap.String("backend", b.Name),
		zap.String("id", e.ID),
		zap.String("user", e.User),
		zap.String("protocol", e.Protocol))

	b.Send(proto.Buddies(e.ID))
	b.Send(proto.Collect(e.ID))
	if r.globalStatus != "" {
		b.Send(proto.StatusSet(e.ID, r.globalStatus))
	}
}

func (r *Router) handleBuddy(b *backend.Backend, e proto.Buddy) {
	acc := b.AccountByID(e.AccountID)
	if acc == nil {
		return
	}
	if acc.UpdateBuddy(e.Name, e.Status, e.Alias) {
		r.list.SignalListChanged()
	}
	// Every roster entry gets a conversation in the list.
	r.list.FindOrCreate(b, acc, e.Name)
}

func (r *Router) handleMessage(b *backend.Backend, e proto.Message) {
	acc := b.AccountByID(e.AccountID)
	if acc == nil {
		b.LogControl(fmt.Sprintf("message for unknown account %s: %s", e.AccountID, e.Text))
		return
	}

	sender := conv.FixupSender(acc.Protocol, e.Sender)
	text := conv.FixupText(acc.Protocol, e.Text)

	// A message we sent from another client routes to its destination.
	own := sender == acc.User
	target := sender
	if own {
		target = conv.FixupSender(acc.Protocol, e.Dest)
	}

	c := r.list.FindOrCreate(b, acc, target)
	if c == nil {
		r.logUnrouted(b, sender, text)
		return
	}
	c.AppendLog(history.NewMessage(e.Time, sender, text, own))
}

func (r *Router) handleChatList(b *backend.Backend, e proto.ChatList) {
	acc := b.AccountByID(e.AccountID)
	if acc == nil {
		return
	}
	if acc.UpdateBuddy(e.Chat, "grp", e.Alias) {
		r.list.SignalListChanged()
	}
	// The chat showing up in the list confirms a pending join.
	if c := r.list.Find(b, acc.ID, e.Chat); c != nil && c.Temporary {
		c.Temporary = false
	}
}

func (r *Router) handleChatUser(b *backend.Backend, e proto.ChatUser) {
	acc := b.AccountByID(e.AccountID)
	if acc == nil {
		return
	}
	c := r.list.Find(b, acc.ID, e.Chat)
	if c == nil {
		return
	}
	m := history.NewMessage(time.Now(), history.EventSender,
		fmt.Sprintf("%s (%s) is %s", e.Nick, e.Alias, e.Status), false)
	m.IsRead = true
	c.AppendLog(m)
}

func (r *Router) handleChatMsg(b *backend.Backend, e proto.ChatMsg) {
	acc := b.AccountByID(e.AccountID)
	if acc == nil {
		return
	}
	c := r.list.Find(b, acc.ID, e.Chat)
	if c == nil {
		c = conv.NewGroup(b, acc, e.Chat, false)
		r.list.Add(c)
		if err := c.LoadHistory(); err != nil {
			r.logger.Warn("history load failed", zap.Error(err))
		}
	}
	sender := conv.FixupSender(acc.Protocol, e.Sender)
	own := sender == acc.User
	c.AppendLog(history.NewMessage(e.Time, sender, conv.FixupText(acc.Protocol, e.Text), own))
}

// logUnrouted records a message that matched no conversation and no
// roster entry against the backend's control conversation.
func (r *Router) logUnrouted(b *backend.Backend, sender, text string) {
	b.LogControl(fmt.Sprintf("unrouted message from %s: %s", sender, text))
}

// HandleNuqqlCommand executes a client-local command typed into the
// nuqql conversation.
func (r *Router) HandleNuqqlCommand(text string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return
	}
	switch fields[0] {
	case "global-status":
		r.handleGlobalStatus(fields[1:])
	case "backends":
		for _, b := range r.registry.All() {
			state := "stopped"
			if b.Connected() {
				state = "connected"
			} else if b.Self() {
				state = "self"
			}
			r.reply(fmt.Sprintf("%s: %s", b.Name, state))
		}
	case "stop":
		if len(fields) == 2 {
			r.stopBackend(fields[1])
		}
	case "start":
		if len(fields) == 2 {
			r.startBackend(fields[1])
		}
	case "quit":
		if r.quit != nil {
			r.quit()
		}
	case "help":
		r.reply(nuqqlHelp)
	default:
		r.reply("unknown command: " + fields[0] + " (try \"help\")")
	}
}

func (r *Router) handleGlobalStatus(args []string) {
	switch {
	case len(args) == 1 && args[0] == "get":
		gs := r.globalStatus
		if gs == "" {
			gs = "(not set)"
		}
		r.reply("global status: " + gs)
	case len(args) == 2 && args[0] == "set":
		r.globalStatus = args[1]
		if err := status.Save(r.statusPath, args[1]); err != nil {
			r.reply("saving global status failed: " + err.Error())
			return
		}
		for _, b := range r.registry.All() {
			for _, acc := range b.Accounts {
				b.Send(proto.StatusSet(acc.ID, args[1]))
			}
		}
		r.reply("global status set to " + args[1])
	default:
		r.reply("usage: global-status get | global-status set <status>")
	}
}

func (r *Router) stopBackend(name string) {
	b := r.registry.Get(name)
	if b == nil || b.Self() {
		r.reply("no such backend: " + name)
		return
	}
	b.Stop()
	r.list.RemoveBackend(b)
	r.reply("backend stopped: " + name)
}

func (r *Router) startBackend(name string) {
	b := r.registry.Get(name)
	if b == nil || b.Self() {
		r.reply("no such backend: " + name)
		return
	}
	if b.Connected() {
		r.reply("backend already running: " + name)
		return
	}
	if err := b.Start(); err != nil {
		r.reply("starting backend failed: " + err.Error())
		return
	}
	r.reply("backend started: " + name)
}

// reply logs a response into the nuqql conversation, already read.
func (r *Router) reply(text string) {
	m := history.NewMessage(time.Now(), history.EventSender, text, false)
	m.IsRead = true
	r.nuqql.AppendLog(m)
}

const nuqqlHelp = `commands:
  global-status get               show the global status
  global-status set <status>      set and push the global status
  backends                        list backends and their state
  stop <backend>                  stop a backend
  start <backend>                 start a stopped backend
  quit                            quit nuqql
  help                            this help`
