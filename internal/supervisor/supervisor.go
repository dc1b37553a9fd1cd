// Package supervisor owns the trade lifecycle after placement: pending-fill
// detection, automatic stops, break-even, trailing, the target ladder and
// closure settlement. Each cycle evaluates every active trade concurrently
// under a bounded semaphore; all decisions are level-triggered, so a pass
// that fails on a venue hiccup simply runs again next cycle.
package supervisor

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"traderelay/internal/calc"
	"traderelay/internal/logger"
	"traderelay/internal/registry"
	"traderelay/internal/types"
	"traderelay/internal/venue"
)

// AutoStopConfig applies a stop a fixed pip distance behind entry to trades
// whose signal carried none.
type AutoStopConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	Pips    float64 `mapstructure:"pips"`
}

// BreakEvenConfig moves the stop to entry once price has run far enough.
type BreakEvenConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	ActivationPips float64 `mapstructure:"activation_pips"`
	OffsetPips     float64 `mapstructure:"offset_pips"`
}

// TrailingConfig ratchets the stop behind price once activated.
type TrailingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	ActivationPips float64 `mapstructure:"activation_pips"`
	DistancePips   float64 `mapstructure:"distance_pips"`
}

// Config tunes the supervisor.
type Config struct {
	Interval            time.Duration   `mapstructure:"interval"`
	MaxConcurrent       int64           `mapstructure:"max_concurrent"`
	PartialClosePercent float64         `mapstructure:"partial_close_percent"`
	AwaitingGrace       time.Duration   `mapstructure:"awaiting_grace"`
	AutoStop            AutoStopConfig  `mapstructure:"auto_stop"`
	BreakEven           BreakEvenConfig `mapstructure:"break_even"`
	Trailing            TrailingConfig  `mapstructure:"trailing"`
}

// CalcProvider returns the calculator for a symbol.
type CalcProvider interface {
	Calculator(ctx context.Context, symbol string) (*calc.Calculator, error)
}

// Notifier receives human-readable lifecycle events.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Journal records settled trades.
type Journal interface {
	RecordClosed(ctx context.Context, t *types.Trade) error
}

// Supervisor runs the lifecycle passes.
type Supervisor struct {
	cfg      Config
	venue    venue.Venue
	reg      *registry.Registry
	calcs    CalcProvider
	notifier Notifier
	journal  Journal
	retry    venue.RetryPolicy
	sem      *semaphore.Weighted
	now      func() time.Time
}

// New wires a supervisor.
func New(cfg Config, v venue.Venue, reg *registry.Registry, calcs CalcProvider, n Notifier, j Journal, retry venue.RetryPolicy) *Supervisor {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 4
	}
	if cfg.PartialClosePercent <= 0 {
		cfg.PartialClosePercent = 50
	}
	if cfg.AwaitingGrace <= 0 {
		cfg.AwaitingGrace = 30 * time.Second
	}
	return &Supervisor{
		cfg:      cfg,
		venue:    v,
		reg:      reg,
		calcs:    calcs,
		notifier: n,
		journal:  j,
		retry:    retry,
		sem:      semaphore.NewWeighted(cfg.MaxConcurrent),
		now:      time.Now,
	}
}

// Run evaluates all active trades until ctx is done.
func (s *Supervisor) Run(ctx context.Context) error {
	interval := s.cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Cycle(ctx)
		}
	}
}

// Cycle runs one supervision pass over every active trade. Per-trade errors
// are logged, never fatal; the next cycle retries.
func (s *Supervisor) Cycle(ctx context.Context) {
	tickets := s.reg.ActiveTickets()
	if len(tickets) == 0 {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, ticket := range tickets {
		ticket := ticket
		if err := s.sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer s.sem.Release(1)
			if err := s.evaluate(gctx, ticket); err != nil {
				logger.Warnf("supervise ticket %d: %v", ticket, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Supervisor) notify(ctx context.Context, format string, args ...any) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, fmt.Sprintf(format, args...)); err != nil {
		logger.Warnf("notify: %v", err)
	}
}
