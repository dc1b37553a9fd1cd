package supervisor

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

// evaluate runs the lifecycle passes for one ticket while holding that
// trade's registry lock, so a dispatcher command on the same ticket cannot
// slip between a venue read and the matching record mutation. The registry
// refuses the lock for trades already final; those and untracked tickets
// are a clean skip, the trade having been handled by whoever got there
// first. Settlement runs after the lock is released.
func (s *Supervisor) evaluate(ctx context.Context, ticket int64) error {
	err := s.reg.Update(ticket, func(t *types.Trade) error {
		switch t.Status {
		case types.StatusPending:
			return s.checkPendingFill(ctx, t)
		case types.StatusOpen:
			return s.superviseOpen(ctx, t)
		}
		return nil
	})
	if errors.Is(err, registry.ErrNotFound) || errors.Is(err, registry.ErrStaleTarget) {
		return nil
	}
	if err != nil {
		return err
	}
	s.settle(ctx, ticket)
	return nil
}

// checkPendingFill watches a resting order. When the venue no longer lists
// the order, a position under the same ticket means it filled; nothing at
// all means it was cancelled outside the engine.
func (s *Supervisor) checkPendingFill(ctx context.Context, t *types.Trade) error {
	_, err := s.venue.PendingOrder(ctx, t.Ticket)
	if err == nil {
		return nil
	}
	if !venue.IsNotFound(err) {
		return err
	}

	pos, perr := s.venue.Position(ctx, t.Ticket)
	if perr == nil {
		t.Status = types.StatusOpen
		t.EntryPrice = pos.EntryPrice
		t.OpenedVolume = pos.Volume
		t.RemainingVolume = pos.Volume
		logger.Infof("pending %d filled at %v", t.Ticket, pos.EntryPrice)
		s.notify(ctx, "Order %d filled: %s %s @ %v", t.Ticket, t.Side, t.Symbol, pos.EntryPrice)
		return nil
	}
	if !venue.IsNotFound(perr) {
		return perr
	}

	t.Status = types.StatusCancelled
	t.ClosedAt = s.now()
	logger.Infof("pending %d disappeared from venue, marking cancelled", t.Ticket)
	return nil
}

func (s *Supervisor) superviseOpen(ctx context.Context, t *types.Trade) error {
	pos, err := s.venue.Position(ctx, t.Ticket)
	if venue.IsNotFound(err) {
		return s.settleClosed(ctx, t)
	}
	if err != nil {
		return err
	}

	// The venue's remaining volume is the truth; adopt it and clear the
	// awaiting window once it reflects the partial close we sent.
	if pos.Volume <= t.RemainingVolume {
		t.RemainingVolume = pos.Volume
		t.AwaitingUntil = time.Time{}
	}

	tick, err := s.venue.Tick(ctx, t.Symbol)
	if err != nil {
		return err
	}
	cal, err := s.calcs.Calculator(ctx, t.Symbol)
	if err != nil {
		return err
	}

	if err := s.autoStopPass(ctx, t, cal); err != nil {
		return fmt.Errorf("auto stop: %w", err)
	}
	if err := s.breakEvenPass(ctx, t, tick, cal); err != nil {
		return fmt.Errorf("break even: %w", err)
	}
	if err := s.trailingPass(ctx, t, tick, cal); err != nil {
		return fmt.Errorf("trailing: %w", err)
	}
	if err := s.targetPass(ctx, t, pos, tick, cal); err != nil {
		return fmt.Errorf("target ladder: %w", err)
	}
	return nil
}

// autoStopPass applies the configured protective stop to trades whose signal
// carried none. A fresh trade gets the grace window first, so a follow-up
// message can still supply the real stop. The flag stays set until the venue
// accepts the modify, so a failed attempt is retried next cycle.
func (s *Supervisor) autoStopPass(ctx context.Context, t *types.Trade, cal *calc.Calculator) error {
	if !s.cfg.AutoStop.Enabled || !t.AutoStopPending || t.StopLoss > 0 {
		return nil
	}
	if s.now().Sub(t.OpenedAt) < s.cfg.AwaitingGrace {
		return nil
	}
	stop, err := cal.StopFromPips(t.Side, t.EntryPrice, s.cfg.AutoStop.Pips)
	if err != nil {
		return err
	}
	if err := s.modifyStop(ctx, t, stop); err != nil {
		return err
	}
	t.StopLoss = stop
	t.AutoStopPending = false
	logger.Infof("auto stop %v applied to %d", stop, t.Ticket)
	s.notify(ctx, "Auto SL set on %d: %v", t.Ticket, stop)
	return nil
}

// breakEvenPass moves the stop to entry adjusted by spread plus the
// configured offset once price has run the activation distance, so the
// position cannot close at a loss. Applied at most once per trade.
func (s *Supervisor) breakEvenPass(ctx context.Context, t *types.Trade, tick venue.Tick, cal *calc.Calculator) error {
	if !s.cfg.BreakEven.Enabled || t.BreakEvenApplied {
		return nil
	}
	if profitPips(t, tick, cal) < s.cfg.BreakEven.ActivationPips {
		return nil
	}
	be := cal.AdjustEntryForSpread(t.Side, t.EntryPrice, tick, s.cfg.BreakEven.OffsetPips)
	if !cal.TightensStop(t.Side, be, t.StopLoss) {
		// Stop already at or past entry; record the state and move on.
		t.BreakEvenApplied = true
		return nil
	}
	if err := s.modifyStop(ctx, t, be); err != nil {
		return err
	}
	t.StopLoss = be
	t.BreakEvenApplied = true
	logger.Infof("break even on %d: stop -> %v", t.Ticket, be)
	s.notify(ctx, "Break even on %d: SL moved to %v", t.Ticket, be)
	return nil
}

// trailingPass ratchets the stop behind price. The stop only ever tightens;
// a pullback leaves it where the best excursion put it.
func (s *Supervisor) trailingPass(ctx context.Context, t *types.Trade, tick venue.Tick, cal *calc.Calculator) error {
	if !s.cfg.Trailing.Enabled {
		return nil
	}
	if !t.TrailingActive {
		if profitPips(t, tick, cal) < s.cfg.Trailing.ActivationPips {
			return nil
		}
		t.TrailingActive = true
		logger.Infof("trailing activated on %d", t.Ticket)
	}
	current := exitPrice(t.Side, tick)
	want := cal.TrailingStopFor(t.Side, current, s.cfg.Trailing.DistancePips)
	if !cal.TightensStop(t.Side, want, t.StopLoss) {
		return nil
	}
	if err := s.modifyStop(ctx, t, want); err != nil {
		return err
	}
	t.StopLoss = want
	logger.Debugf("trailing %d: stop -> %v", t.Ticket, want)
	return nil
}

func (s *Supervisor) modifyStop(ctx context.Context, t *types.Trade, stop float64) error {
	return s.retry.Do(ctx, func() error {
		return s.venue.ModifyPosition(ctx, t.Ticket, stop, t.TakeProfit)
	})
}

// profitPips is the favorable excursion from entry at the current exit
// price, in pips. Negative when under water.
func profitPips(t *types.Trade, tick venue.Tick, cal *calc.Calculator) float64 {
	if t.Side == types.SideBuy {
		return cal.PriceToPips(tick.Bid - t.EntryPrice)
	}
	return cal.PriceToPips(t.EntryPrice - tick.Ask)
}

// exitPrice is the price a close would execute at right now.
func exitPrice(side types.Side, tick venue.Tick) float64 {
	if side == types.SideBuy {
		return tick.Bid
	}
	return tick.Ask
}
