package dispatch

import (
	"context"

	"traderelay/internal/logger"
	"traderelay/internal/registry"
	"traderelay/internal/types"
	"traderelay/internal/venue"
)

// Handlers run under the trade's registry lock with the live record; they
// call the venue first and touch the record only after the venue accepted
// the change, so a failure leaves the trade as it was.

// modifyStopTargets replaces the stop and the whole target ladder. The
// ladder restarts from its first rung; the venue-side take-profit follows
// the first new target only when the trade already carried one.
func (d *Dispatcher) modifyStopTargets(ctx context.Context, req types.UpdateRequest, t *types.Trade) error {
	cal, err := d.calcs.Calculator(ctx, t.Symbol)
	if err != nil {
		return err
	}
	stop := req.StopLoss
	if stop == 0 {
		stop = t.StopLoss
	}
	if err := cal.ValidateStops(t.Side, t.EntryPrice, stop, req.TakeProfits); err != nil {
		return err
	}
	venueTP := t.TakeProfit
	if venueTP > 0 && len(req.TakeProfits) > 0 {
		venueTP = req.TakeProfits[0]
	}
	if err := d.modifyVenue(ctx, t, t.EntryPrice, stop, venueTP); err != nil {
		return err
	}
	t.StopLoss = stop
	t.TakeProfit = venueTP
	if len(req.TakeProfits) > 0 {
		t.Targets = append([]float64(nil), req.TakeProfits...)
		t.NextTargetIdx = 0
	}
	if stop > 0 {
		t.AutoStopPending = false
	}
	d.notify(ctx, "Updated %d (%s): SL %v, %d targets", t.Ticket, t.Symbol, stop, len(req.TakeProfits))
	return nil
}

func (d *Dispatcher) moveStop(ctx context.Context, t *types.Trade, stop float64) error {
	cal, err := d.calcs.Calculator(ctx, t.Symbol)
	if err != nil {
		return err
	}
	if err := cal.ValidateStops(t.Side, t.EntryPrice, stop, nil); err != nil {
		return err
	}
	if err := d.modifyVenue(ctx, t, t.EntryPrice, stop, t.TakeProfit); err != nil {
		return err
	}
	t.StopLoss = stop
	t.AutoStopPending = false
	d.notify(ctx, "SL on %d moved to %v", t.Ticket, stop)
	return nil
}

// setBreakEven moves the stop to entry adjusted for spread and the
// configured offset. The same one-directional check as trailing applies: a
// stop already past that level is left alone, never loosened. Repeating the
// command is a no-op, not an error.
func (d *Dispatcher) setBreakEven(ctx context.Context, t *types.Trade) error {
	if t.BreakEvenApplied {
		logger.Debugf("break even already set on %d", t.Ticket)
		return nil
	}
	cal, err := d.calcs.Calculator(ctx, t.Symbol)
	if err != nil {
		return err
	}
	tick, err := d.venue.Tick(ctx, t.Symbol)
	if err != nil {
		return err
	}
	be := cal.AdjustEntryForSpread(t.Side, t.EntryPrice, tick, d.cfg.BreakEvenOffsetPips)
	if !cal.TightensStop(t.Side, be, t.StopLoss) {
		t.BreakEvenApplied = true
		logger.Debugf("stop on %d already at or past break even", t.Ticket)
		return nil
	}
	if err := d.modifyVenue(ctx, t, t.EntryPrice, be, t.TakeProfit); err != nil {
		return err
	}
	t.StopLoss = be
	t.BreakEvenApplied = true
	d.notify(ctx, "Break even set on %d at %v", t.Ticket, be)
	return nil
}

func (d *Dispatcher) closeFull(ctx context.Context, t *types.Trade) error {
	if t.Status == types.StatusPending {
		return d.cancelPending(ctx, t)
	}
	var res venue.OrderResult
	if err := d.retry.Do(ctx, func() error {
		var cerr error
		res, cerr = d.venue.ClosePosition(ctx, t.Ticket, t.RemainingVolume)
		return cerr
	}); err != nil {
		return err
	}
	t.RemainingVolume = 0
	t.Status = types.StatusClosed
	t.ClosePrice = res.FilledPrice
	t.ClosedAt = d.now()
	d.notify(ctx, "Closed %d (%s) at %v", t.Ticket, t.Symbol, res.FilledPrice)
	return nil
}

// closePartial closes an explicit volume, or a percentage of the remaining
// volume when the request gave a percentage; the two inputs are mutually
// exclusive. A partial that would leave less than a volume step becomes a
// full close.
func (d *Dispatcher) closePartial(ctx context.Context, req types.UpdateRequest, t *types.Trade) error {
	if req.CloseVolume > 0 && req.ClosePercent > 0 {
		return ErrAmbiguousVolume
	}
	cal, err := d.calcs.Calculator(ctx, t.Symbol)
	if err != nil {
		return err
	}
	var vol float64
	switch {
	case req.CloseVolume > 0:
		if vol, err = cal.NormalizeVolume(req.CloseVolume); err != nil {
			return err
		}
	default:
		pct := req.ClosePercent
		if pct <= 0 {
			pct = d.cfg.DefaultClosePercent
		}
		if vol, err = cal.PartialVolume(t.RemainingVolume, pct); err != nil {
			return err
		}
	}
	if vol >= t.RemainingVolume-cal.Spec().VolumeStep/2 {
		return d.closeFull(ctx, t)
	}

	var res venue.OrderResult
	if err := d.retry.Do(ctx, func() error {
		var cerr error
		res, cerr = d.venue.ClosePosition(ctx, t.Ticket, vol)
		return cerr
	}); err != nil {
		return err
	}
	closed := res.Volume
	if closed <= 0 {
		closed = vol
	}
	t.RemainingVolume -= closed
	t.AwaitingUntil = d.now().Add(d.cfg.AwaitingGrace)
	d.notify(ctx, "Partially closed %d (%s): %v lots at %v", t.Ticket, t.Symbol, closed, res.FilledPrice)
	return nil
}

func (d *Dispatcher) cancelPending(ctx context.Context, t *types.Trade) error {
	if t.Status != types.StatusPending {
		return d.closeFull(ctx, t)
	}
	if err := d.retry.Do(ctx, func() error {
		return d.venue.CancelPending(ctx, t.Ticket)
	}); err != nil {
		return err
	}
	t.Status = types.StatusCancelled
	t.ClosedAt = d.now()
	d.notify(ctx, "Cancelled pending order %d (%s)", t.Ticket, t.Symbol)
	return nil
}

func (d *Dispatcher) modifyEntry(ctx context.Context, req types.UpdateRequest, t *types.Trade) error {
	if t.Status != types.StatusPending {
		return registry.ErrStaleTarget
	}
	cal, err := d.calcs.Calculator(ctx, t.Symbol)
	if err != nil {
		return err
	}
	entry := cal.RoundPrice(req.EntryPrice)
	if err := cal.ValidateStops(t.Side, entry, t.StopLoss, nil); err != nil {
		return err
	}
	if err := d.retry.Do(ctx, func() error {
		return d.venue.ModifyPending(ctx, t.Ticket, entry, t.StopLoss, t.TakeProfit)
	}); err != nil {
		return err
	}
	t.EntryPrice = entry
	d.notify(ctx, "Entry on %d moved to %v", t.Ticket, entry)
	return nil
}

// modifyVenue routes a stop/target change to the right venue call for the
// trade's state.
func (d *Dispatcher) modifyVenue(ctx context.Context, t *types.Trade, entry, stop, target float64) error {
	return d.retry.Do(ctx, func() error {
		if t.Status == types.StatusPending {
			return d.venue.ModifyPending(ctx, t.Ticket, entry, stop, target)
		}
		return d.venue.ModifyPosition(ctx, t.Ticket, stop, target)
	})
}

// finalize journals a final trade and lets the registry drop it. Runs after
// the handler released the trade's lock.
func (d *Dispatcher) finalize(ctx context.Context, ticket int64) {
	t, err := d.reg.Get(ticket)
	if err != nil || !t.Status.Final() {
		return
	}
	if t.Status == types.StatusClosed && t.Profit == 0 {
		if deal, derr := d.venue.ClosedDeal(ctx, ticket); derr == nil {
			t.Profit = deal.Profit
		}
	}
	if d.journal != nil {
		if err := d.journal.RecordClosed(ctx, t); err != nil {
			logger.Warnf("journal ticket %d: %v", ticket, err)
			return
		}
	}
	d.reg.Forget(ticket)
}
