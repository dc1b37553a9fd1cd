package registry

import (
	"sync"
	"time"
)

// Cooldown throttles market orders per symbol so a burst of near-identical
// signals cannot stack entries.
type Cooldown struct {
	mu     sync.Mutex
	period time.Duration
	last   map[string]time.Time
	now    func() time.Time
}

// NewCooldown returns a cooldown with the given minimum gap between market
// orders on the same symbol. A non-positive period disables throttling.
func NewCooldown(period time.Duration) *Cooldown {
	return &Cooldown{period: period, last: make(map[string]time.Time), now: time.Now}
}

// Allow reports whether a market order on symbol may fire now, and if so
// records the attempt.
func (c *Cooldown) Allow(symbol string) bool {
	if c.period <= 0 {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if last, ok := c.last[symbol]; ok && now.Sub(last) < c.period {
		return false
	}
	c.last[symbol] = now
	return true
}

// Remaining returns how long until symbol may fire again.
func (c *Cooldown) Remaining(symbol string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	last, ok := c.last[symbol]
	if !ok {
		return 0
	}
	left := c.period - c.now().Sub(last)
	if left < 0 {
		return 0
	}
	return left
}
