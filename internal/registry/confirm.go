package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"traderelay/internal/types"
)

var (
	// ErrConfirmationNotFound means the token is unknown or already used.
	ErrConfirmationNotFound = errors.New("registry: confirmation not found")

	// ErrConfirmationExpired means the token's deadline passed.
	ErrConfirmationExpired = errors.New("registry: confirmation expired")
)

// Confirmation is a signal parked until a human approves it.
type Confirmation struct {
	ID        string
	Signal    types.Signal
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Confirmations holds signals awaiting human approval, each behind a
// single-use token.
type Confirmations struct {
	mu      sync.Mutex
	ttl     time.Duration
	pending map[string]Confirmation
	now     func() time.Time
}

// NewConfirmations returns a confirmation store with the given token
// lifetime.
func NewConfirmations(ttl time.Duration) *Confirmations {
	return &Confirmations{ttl: ttl, pending: make(map[string]Confirmation), now: time.Now}
}

// Park stores sig and returns the confirmation to present to the operator.
func (c *Confirmations) Park(sig types.Signal) Confirmation {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	conf := Confirmation{
		ID:        uuid.NewString(),
		Signal:    sig,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}
	c.pending[conf.ID] = conf
	return conf
}

// Take consumes the token and returns the parked signal. A token can be
// taken at most once; expired tokens return ErrConfirmationExpired.
func (c *Confirmations) Take(id string) (Confirmation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conf, ok := c.pending[id]
	if !ok {
		return Confirmation{}, ErrConfirmationNotFound
	}
	delete(c.pending, id)
	if c.now().After(conf.ExpiresAt) {
		return Confirmation{}, ErrConfirmationExpired
	}
	return conf, nil
}

// Prune drops every expired token and returns the removed confirmations so
// the caller can notify about them.
func (c *Confirmations) Prune() []Confirmation {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	var dropped []Confirmation
	for id, conf := range c.pending {
		if now.After(conf.ExpiresAt) {
			dropped = append(dropped, conf)
			delete(c.pending, id)
		}
	}
	return dropped
}

// Pending returns the number of tokens currently parked.
func (c *Confirmations) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
