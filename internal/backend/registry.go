package backend

import (
	"time"

	"go.uber.org/zap"

	"github.com/nuqql/nuqql/internal/proto"
)

// Polled is one framed line read from a backend during a poll pass.
type Polled struct {
	Backend *Backend
	Line    string
}

// Registry is the set of active backends, kept in insertion order so that
// polling and navigation are deterministic.
type Registry struct {
	order    []string
	backends map[string]*Backend
	logger   *zap.Logger

	// OnStop, when set, runs after a backend is stopped because its
	// session failed. The application drops the backend's buddy and
	// group conversations here, same as an explicit stop.
	OnStop func(*Backend)
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		backends: make(map[string]*Backend),
		logger:   logger,
	}
}

// Add registers a backend.
func (r *Registry) Add(b *Backend) {
	if _, ok := r.backends[b.Name]; !ok {
		r.order = append(r.order, b.Name)
	}
	r.backends[b.Name] = b
}

// Get returns the named backend, or nil.
func (r *Registry) Get(name string) *Backend {
	return r.backends[name]
}

// All returns the backends in insertion order.
func (r *Registry) All() []*Backend {
	out := make([]*Backend, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.backends[name])
	}
	return out
}

// PollAll reads at most one framed line from every connected backend. A
// read error stops the affected backend only and surfaces in its control
// conversation.
func (r *Registry) PollAll() []Polled {
	var out []Polled
	for _, b := range r.All() {
		if !b.Connected() {
			continue
		}
		line, err := b.Session().Read()
		if err != nil {
			b.LogControl("connection error: " + err.Error())
			b.Stop()
			if r.OnStop != nil {
				r.OnStop(b)
			}
			continue
		}
		if line != "" {
			out = append(out, Polled{Backend: b, Line: line})
		}
	}
	return out
}

// TickAll runs the periodic per-account buddy refresh: accounts whose
// list is stale are swept and asked for a fresh list.
func (r *Registry) TickAll(now time.Time) {
	for _, b := range r.All() {
		if !b.Connected() {
			continue
		}
		for _, acc := range b.Accounts {
			if !acc.RefreshDue(now) {
				continue
			}
			acc.Sweep()
			b.Send(proto.Buddies(acc.ID))
		}
	}
}

// StopAll stops every backend. Called on quit before the process exits.
func (r *Registry) StopAll() {
	for _, b := range r.All() {
		b.Stop()
	}
	r.logger.Info("all backends stopped")
}
