// Package registry is the in-memory source of truth for tracked trades.
// Every mutation of a trade happens under that trade's own lock, so two
// updates can never interleave on the same ticket while unrelated trades
// proceed in parallel.
package registry

import (
	"errors"
	"sort"
	"sync"
	"time"

	"traderelay/internal/types"
)

var (
	// ErrNotFound means the ticket is not tracked.
	ErrNotFound = errors.New("registry: trade not found")

	// ErrStaleTarget means the trade reached a final state before the
	// requested mutation could apply.
	ErrStaleTarget = errors.New("registry: trade already final")
)

type entry struct {
	mu    sync.Mutex
	trade *types.Trade
}

// Registry holds all tracked trades keyed by venue ticket.
type Registry struct {
	mu     sync.RWMutex
	trades map[int64]*entry

	now func() time.Time
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{trades: make(map[int64]*entry), now: time.Now}
}

// Add starts tracking a trade. The registry owns the value from here on;
// callers must not retain the pointer.
func (r *Registry) Add(t *types.Trade) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.UpdatedAt = r.now()
	r.trades[t.Ticket] = &entry{trade: t}
}

// Get returns a copy of the trade for ticket.
func (r *Registry) Get(ticket int64) (*types.Trade, error) {
	r.mu.RLock()
	e, ok := r.trades[ticket]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.trade.Clone(), nil
}

// Update runs fn with exclusive access to the live trade, holding the
// trade's lock for the whole call. Callers span read, venue call and
// mutation inside one fn so nothing interleaves on the ticket; fn must not
// reenter the registry for the same ticket. Returns ErrStaleTarget without
// calling fn when the trade is already final.
func (r *Registry) Update(ticket int64, fn func(*types.Trade) error) error {
	r.mu.RLock()
	e, ok := r.trades[ticket]
	r.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.trade.Status.Final() {
		return ErrStaleTarget
	}
	if err := fn(e.trade); err != nil {
		return err
	}
	e.trade.UpdatedAt = r.now()
	return nil
}

// ByOrigin returns copies of all non-final trades opened from the given
// message, oldest ticket first.
func (r *Registry) ByOrigin(msgID int64) []*types.Trade {
	return r.collect(func(t *types.Trade) bool {
		return t.OriginMessageID == msgID && !t.Status.Final()
	})
}

// Active returns copies of all non-final trades, oldest ticket first.
func (r *Registry) Active() []*types.Trade {
	return r.collect(func(t *types.Trade) bool { return !t.Status.Final() })
}

// ActiveTickets returns the tickets of all non-final trades.
func (r *Registry) ActiveTickets() []int64 {
	trades := r.Active()
	out := make([]int64, len(trades))
	for i, t := range trades {
		out[i] = t.Ticket
	}
	return out
}

// Summaries returns the compact view of every tracked trade, including
// final ones, for the admin surface.
func (r *Registry) Summaries() []types.Summary {
	trades := r.collect(func(*types.Trade) bool { return true })
	out := make([]types.Summary, len(trades))
	for i, t := range trades {
		out[i] = t.Summarize()
	}
	return out
}

// Forget drops a final trade from the registry after it has been journaled.
// Non-final trades are never dropped.
func (r *Registry) Forget(ticket int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.trades[ticket]
	if !ok {
		return
	}
	e.mu.Lock()
	final := e.trade.Status.Final()
	e.mu.Unlock()
	if final {
		delete(r.trades, ticket)
	}
}

func (r *Registry) collect(keep func(*types.Trade) bool) []*types.Trade {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.trades))
	for _, e := range r.trades {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]*types.Trade, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if keep(e.trade) {
			out = append(out, e.trade.Clone())
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticket < out[j].Ticket })
	return out
}
