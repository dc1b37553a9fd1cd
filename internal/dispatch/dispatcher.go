// Package dispatch routes update requests onto tracked trades. A request
// names its target by ticket or by the message that opened it; in the latter
// case the command applies to every trade from that message.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"traderelay/internal/calc"
	"traderelay/internal/logger"
	"traderelay/internal/registry"
	"traderelay/internal/types"
	"traderelay/internal/venue"
)

var (
	// ErrCommandDisabled means the configuration forbids this command.
	ErrCommandDisabled = errors.New("dispatch: command disabled")

	// ErrNoTarget means neither ticket nor origin matched a live trade.
	ErrNoTarget = errors.New("dispatch: no matching trade")

	// ErrAmbiguousVolume means a partial close named both an absolute
	// volume and a percentage.
	ErrAmbiguousVolume = errors.New("dispatch: close volume and close percent are mutually exclusive")
)

// Config gates which commands the dispatcher will act on.
type Config struct {
	AllowStopModify     bool          `mapstructure:"allow_stop_modify"`
	AllowClose          bool          `mapstructure:"allow_close"`
	AllowCancel         bool          `mapstructure:"allow_cancel"`
	AllowEntryModify    bool          `mapstructure:"allow_entry_modify"`
	DefaultClosePercent float64       `mapstructure:"default_close_percent"`
	BreakEvenOffsetPips float64       `mapstructure:"break_even_offset_pips"`
	AwaitingGrace       time.Duration `mapstructure:"awaiting_grace"`
}

// CalcProvider returns the calculator for a symbol.
type CalcProvider interface {
	Calculator(ctx context.Context, symbol string) (*calc.Calculator, error)
}

// Notifier receives human-readable command outcomes.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Journal records settled trades.
type Journal interface {
	RecordClosed(ctx context.Context, t *types.Trade) error
}

// Dispatcher applies update requests.
type Dispatcher struct {
	cfg      Config
	reg      *registry.Registry
	venue    venue.Venue
	calcs    CalcProvider
	retry    venue.RetryPolicy
	notifier Notifier
	journal  Journal
	now      func() time.Time
}

// New wires a dispatcher.
func New(cfg Config, reg *registry.Registry, v venue.Venue, calcs CalcProvider, retry venue.RetryPolicy, n Notifier, j Journal) *Dispatcher {
	if cfg.DefaultClosePercent <= 0 {
		cfg.DefaultClosePercent = 50
	}
	if cfg.AwaitingGrace <= 0 {
		cfg.AwaitingGrace = 30 * time.Second
	}
	return &Dispatcher{cfg: cfg, reg: reg, venue: v, calcs: calcs, retry: retry, notifier: n, journal: j, now: time.Now}
}

// Dispatch applies req to every matching trade. Per-trade failures are
// joined; a command that is disabled or matches nothing fails as a whole.
func (d *Dispatcher) Dispatch(ctx context.Context, req types.UpdateRequest) error {
	if err := d.allowed(req.Kind); err != nil {
		return err
	}
	targets, err := d.resolve(req)
	if err != nil {
		return err
	}
	var errs []error
	for _, t := range targets {
		if err := d.apply(ctx, req, t.Ticket); err != nil {
			logger.Warnf("%s on %d: %v", req.Kind, t.Ticket, err)
			errs = append(errs, fmt.Errorf("ticket %d: %w", t.Ticket, err))
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) allowed(kind types.UpdateKind) error {
	ok := true
	switch kind {
	case types.UpdateModifyStopTargets, types.UpdateMoveStop, types.UpdateSetBreakEven:
		ok = d.cfg.AllowStopModify
	case types.UpdateCloseFull, types.UpdateClosePartial:
		ok = d.cfg.AllowClose
	case types.UpdateCancelPending:
		ok = d.cfg.AllowCancel
	case types.UpdateModifyEntry:
		ok = d.cfg.AllowEntryModify
	default:
		return fmt.Errorf("dispatch: unknown command %q", kind)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrCommandDisabled, kind)
	}
	return nil
}

func (d *Dispatcher) resolve(req types.UpdateRequest) ([]*types.Trade, error) {
	if req.Ticket != 0 {
		t, err := d.reg.Get(req.Ticket)
		if err != nil {
			return nil, ErrNoTarget
		}
		if t.Status.Final() {
			return nil, registry.ErrStaleTarget
		}
		return []*types.Trade{t}, nil
	}
	if req.OriginMessageID != 0 {
		if trades := d.reg.ByOrigin(req.OriginMessageID); len(trades) > 0 {
			return trades, nil
		}
	}
	return nil, ErrNoTarget
}

// apply runs the handler for req while holding the trade's registry lock,
// so the venue call and the record mutation land as one unit and a
// concurrent supervisor pass on the same ticket waits its turn. A trade
// that went final since resolution surfaces as ErrStaleTarget here.
func (d *Dispatcher) apply(ctx context.Context, req types.UpdateRequest, ticket int64) error {
	err := d.reg.Update(ticket, func(t *types.Trade) error {
		switch req.Kind {
		case types.UpdateModifyStopTargets:
			return d.modifyStopTargets(ctx, req, t)
		case types.UpdateMoveStop:
			return d.moveStop(ctx, t, req.StopLoss)
		case types.UpdateSetBreakEven:
			return d.setBreakEven(ctx, t)
		case types.UpdateCloseFull:
			return d.closeFull(ctx, t)
		case types.UpdateClosePartial:
			return d.closePartial(ctx, req, t)
		case types.UpdateCancelPending:
			return d.cancelPending(ctx, t)
		case types.UpdateModifyEntry:
			return d.modifyEntry(ctx, req, t)
		}
		return fmt.Errorf("dispatch: unknown command %q", req.Kind)
	})
	if err != nil {
		return err
	}
	d.finalize(ctx, ticket)
	return nil
}

func (d *Dispatcher) notify(ctx context.Context, format string, args ...any) {
	if d.notifier == nil {
		return
	}
	if err := d.notifier.Send(ctx, fmt.Sprintf(format, args...)); err != nil {
		logger.Warnf("notify: %v", err)
	}
}
