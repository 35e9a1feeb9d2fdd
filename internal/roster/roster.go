// Package roster holds the per-backend account and buddy directory.
// It is a pure data layer: requesting buddy lists or backlogs from a
// backend is the router's job.
package roster

import "time"

// RefreshInterval is the minimum time between buddy list requests for one
// account.
const RefreshInterval = 5 * time.Second

// Buddy is a remote contact known to an Account. At most one Buddy exists
// per (Account, name).
type Buddy struct {
	Name   string
	Alias  string
	Status string
	// updated is the mark of the mark-and-sweep refresh cycle.
	updated bool
}

// DisplayName returns the alias if set, the protocol handle otherwise.
func (b *Buddy) DisplayName() string {
	if b.Alias != "" {
		return b.Alias
	}
	return b.Name
}

// Account is one messaging account exposed by a backend. Accounts own
// their buddy list.
type Account struct {
	ID       string
	Protocol string
	User     string
	Buddies  []*Buddy

	lastBuddyRefresh time.Time
}

// NewAccount creates an account.
func NewAccount(id, protocol, user string) *Account {
	return &Account{ID: id, Protocol: protocol, User: user}
}

// Buddy returns the buddy with the given name, or nil.
func (a *Account) Buddy(name string) *Buddy {
	for _, b := range a.Buddies {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// UpdateBuddy finds or creates the named buddy, marks it updated and
// applies status and alias. It reports whether status or alias actually
// changed, which callers use to decide whether to redraw.
func (a *Account) UpdateBuddy(name, status, alias string) bool {
	b := a.Buddy(name)
	if b == nil {
		a.Buddies = append(a.Buddies, &Buddy{
			Name:    name,
			Alias:   alias,
			Status:  status,
			updated: true,
		})
		return true
	}
	b.updated = true
	changed := b.Status != status || b.Alias != alias
	b.Status = status
	b.Alias = alias
	return changed
}

// RefreshDue reports whether the account's buddy list is stale. A due
// refresh resets the timer; the caller is expected to sweep and then
// request a fresh list.
func (a *Account) RefreshDue(now time.Time) bool {
	if now.Sub(a.lastBuddyRefresh) <= RefreshInterval {
		return false
	}
	a.lastBuddyRefresh = now
	return true
}

// Sweep removes all buddies not marked updated since the previous sweep
// and clears the mark on the survivors. Called once per refresh cycle,
// before the next buddy list request goes out.
func (a *Account) Sweep() {
	kept := a.Buddies[:0]
	for _, b := range a.Buddies {
		if b.updated {
			b.updated = false
			kept = append(kept, b)
		}
	}
	a.Buddies = kept
}
