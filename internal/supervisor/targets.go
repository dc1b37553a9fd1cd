package supervisor

import (
	"context"

	"traderelay/internal/calc"
	"traderelay/internal/logger"
	"traderelay/internal/types"
	"traderelay/internal/venue"
)

// targetPass closes a slice of the position when price reaches the next
// rung of the ladder. Intermediate targets close the configured percentage
// of the opened volume; the last target closes whatever remains. While a
// close is awaiting venue confirmation the ladder is paused. Runs under the
// trade's registry lock like the other passes.
func (s *Supervisor) targetPass(ctx context.Context, t *types.Trade, pos *venue.Position, tick venue.Tick, cal *calc.Calculator) error {
	if t.Awaiting(s.now()) {
		return nil
	}
	target, ok := t.NextTarget()
	if !ok {
		return nil
	}
	if !targetHit(t.Side, target, tick, cal) {
		return nil
	}

	closeVol := pos.Volume
	full := true
	if !t.LastTargetPending() {
		want, err := cal.PartialVolume(t.OpenedVolume, s.cfg.PartialClosePercent)
		if err != nil {
			return err
		}
		if want < pos.Volume-cal.Spec().VolumeStep/2 {
			closeVol = want
			full = false
		}
	}

	var res venue.OrderResult
	if err := s.retry.Do(ctx, func() error {
		var cerr error
		res, cerr = s.venue.ClosePosition(ctx, t.Ticket, closeVol)
		return cerr
	}); err != nil {
		return err
	}

	closed := res.Volume
	if closed <= 0 {
		closed = closeVol
	}
	rung := t.NextTargetIdx + 1
	t.NextTargetIdx++
	t.RemainingVolume -= closed
	if full || t.RemainingVolume <= cal.Spec().VolumeStep/2 {
		t.RemainingVolume = 0
		t.Status = types.StatusClosed
		t.ClosePrice = res.FilledPrice
		t.ClosedAt = s.now()
		logger.Infof("target %d hit on %d, position closed at %v", rung, t.Ticket, res.FilledPrice)
		s.notify(ctx, "Final target hit on %d (%s), closed at %v", t.Ticket, t.Symbol, res.FilledPrice)
	} else {
		t.AwaitingUntil = s.now().Add(s.cfg.AwaitingGrace)
		logger.Infof("target %d hit on %d, closed %v", rung, t.Ticket, closed)
		s.notify(ctx, "Target %d hit on %d (%s), closed %v lots", rung, t.Ticket, t.Symbol, closed)
	}
	return nil
}

// targetHit checks whether the exit price has reached the target, with half
// a point of slack toward the target.
func targetHit(side types.Side, target float64, tick venue.Tick, cal *calc.Calculator) bool {
	eps := cal.Spec().Point / 2
	if side == types.SideBuy {
		return tick.Bid >= target-eps
	}
	return tick.Ask <= target+eps
}
