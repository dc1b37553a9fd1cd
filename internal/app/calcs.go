package app

import (
	"context"
	"sync"
	"time"

	"traderelay/internal/calc"
	"traderelay/internal/config/loader"
	"traderelay/internal/venue"
)

// calcProvider resolves calculators per symbol. File overrides win over what
// the venue reports; resolved calculators are cached until the spec book
// reloads.
type calcProvider struct {
	venue venue.Venue
	book  *loader.SpecBook

	mu    sync.Mutex
	cache map[string]*calc.Calculator
}

func (p *calcProvider) Calculator(ctx context.Context, symbol string) (*calc.Calculator, error) {
	p.mu.Lock()
	if c, ok := p.cache[symbol]; ok {
		p.mu.Unlock()
		return c, nil
	}
	p.mu.Unlock()

	spec, ok := p.book.Lookup(symbol)
	if !ok {
		var err error
		if spec, err = p.venue.SymbolSpec(ctx, symbol); err != nil {
			return nil, err
		}
	}
	c, err := calc.New(spec)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.cache[symbol] = c
	p.mu.Unlock()
	return c, nil
}

// invalidate drops every cached calculator so the next lookup resolves
// against the freshly loaded specs.
func (p *calcProvider) invalidate() {
	p.mu.Lock()
	p.cache = make(map[string]*calc.Calculator)
	p.mu.Unlock()
}

func startOfDay() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

func endOfDay() time.Time {
	return startOfDay().AddDate(0, 0, 1)
}
