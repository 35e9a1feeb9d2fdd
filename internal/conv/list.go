package conv

import (
	"sort"
	"time"

	"github.com/nuqql/nuqql/internal/backend"
	"github.com/nuqql/nuqql/internal/bus"
	"github.com/nuqql/nuqql/internal/roster"
)

// List is the collection of active conversations. Insertion order is kept
// so that navigation tie-breaks are deterministic.
type List struct {
	convs []*Conversation

	// sortStat selects the statistic driving recency sort.
	sortStat string
	bus      *bus.Bus
}

// NewList creates an empty conversation list. sortStat is one of
// "last_send", "last_used" or "num_send".
func NewList(sortStat string, b *bus.Bus) *List {
	return &List{sortStat: sortStat, bus: b}
}

// Add appends a conversation and binds it to the list.
func (l *List) Add(c *Conversation) {
	c.list = l
	l.convs = append(l.convs, c)
	l.SignalListChanged()
}

// Remove drops a conversation from the list.
func (l *List) Remove(c *Conversation) {
	for i, o := range l.convs {
		if o == c {
			l.convs = append(l.convs[:i], l.convs[i+1:]...)
			l.SignalListChanged()
			return
		}
	}
}

// All returns the conversations in insertion order.
func (l *List) All() []*Conversation {
	return l.convs
}

// RemoveBackend drops the buddy and group conversations of a stopped
// backend. Its control conversation stays so the backend can be
// restarted from there.
func (l *List) RemoveBackend(b *backend.Backend) {
	kept := l.convs[:0]
	for _, c := range l.convs {
		if c.Backend == b && (c.Kind == KindBuddy || c.Kind == KindGroup) {
			continue
		}
		kept = append(kept, c)
	}
	l.convs = kept
	l.SignalListChanged()
}

// recency returns the configured sort statistic, suppressed when the
// conversation's primary peer is offline.
func (l *List) recency(c *Conversation) int64 {
	if c.offline() {
		return 0
	}
	switch l.sortStat {
	case "last_used":
		return unixOrZero(c.Stats.LastUsed)
	case "num_send":
		return int64(c.Stats.NumSend)
	default:
		return unixOrZero(c.Stats.LastSend)
	}
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

// Sorted returns the conversations ordered by the 5-tuple sort key:
// notifications, recency, type rank, status rank, display name.
func (l *List) Sorted() []*Conversation {
	out := make([]*Conversation, len(l.convs))
	copy(out, l.convs)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Notifications != b.Notifications {
			return a.Notifications > b.Notifications
		}
		if ar, br := l.recency(a), l.recency(b); ar != br {
			return ar > br
		}
		if a.typeRank() != b.typeRank() {
			return a.typeRank() < b.typeRank()
		}
		if a.statusRank() != b.statusRank() {
			return a.statusRank() < b.statusRank()
		}
		return a.DisplayName() < b.DisplayName()
	})
	return out
}

// Find returns the Buddy or Group conversation matching (backend,
// account id, name), or nil.
func (l *List) Find(b *backend.Backend, accID, name string) *Conversation {
	for _, c := range l.convs {
		if c.Kind != KindBuddy && c.Kind != KindGroup {
			continue
		}
		if c.Backend == b && c.Account != nil && c.Account.ID == accID && c.Name == name {
			return c
		}
	}
	return nil
}

// FindOrCreate resolves the conversation an inbound message from sender
// belongs to. An existing conversation wins; otherwise a matching roster
// buddy materializes a new conversation. A nil return means the message
// has no route and must be logged against the unrouted target.
func (l *List) FindOrCreate(b *backend.Backend, acc *roster.Account, sender string) *Conversation {
	if c := l.Find(b, acc.ID, sender); c != nil {
		return c
	}
	peer := acc.Buddy(sender)
	if peer == nil {
		return nil
	}
	var c *Conversation
	if peer.Status == "grp" || peer.Status == "grp_invite" {
		c = NewGroup(b, acc, sender, false)
	} else {
		c = NewBuddy(b, acc, peer)
	}
	l.Add(c)
	if err := c.LoadHistory(); err != nil {
		c.AppendLog(historyLoadError(err))
	}
	return c
}

// Next returns the conversation with the next-greater last_used than cur,
// among conversations used at least once. First in iteration order wins
// on ties.
func (l *List) Next(cur *Conversation) *Conversation {
	var curUsed time.Time
	if cur != nil {
		curUsed = cur.Stats.LastUsed
	}
	var best *Conversation
	for _, c := range l.convs {
		if c == cur || c.Stats.LastUsed.IsZero() {
			continue
		}
		if !c.Stats.LastUsed.After(curUsed) {
			continue
		}
		if best == nil || c.Stats.LastUsed.Before(best.Stats.LastUsed) {
			best = c
		}
	}
	return best
}

// Prev is the mirror of Next.
func (l *List) Prev(cur *Conversation) *Conversation {
	if cur == nil {
		return nil
	}
	var best *Conversation
	for _, c := range l.convs {
		if c == cur || c.Stats.LastUsed.IsZero() {
			continue
		}
		if !c.Stats.LastUsed.Before(cur.Stats.LastUsed) {
			continue
		}
		if best == nil || c.Stats.LastUsed.After(best.Stats.LastUsed) {
			best = c
		}
	}
	return best
}

// NextNew returns the first conversation in iteration order with pending
// notifications, or nil.
func (l *List) NextNew() *Conversation {
	for _, c := range l.convs {
		if c.Notifications > 0 {
			return c
		}
	}
	return nil
}

// SignalListChanged requests a conversation list redraw.
func (l *List) SignalListChanged() {
	if l.bus != nil {
		l.bus.Signal(bus.KindListChanged, nil)
	}
}

func (l *List) signalLogChanged(c *Conversation) {
	if l.bus != nil {
		l.bus.Signal(bus.KindLogChanged, c)
	}
}
