package supervisor

import (
	"context"

	"traderelay/internal/logger"
	"traderelay/internal/types"
)

// settleClosed handles a position that vanished from the venue outside the
// engine: stop hit, venue-side take-profit, or a manual close. The closing
// deal supplies price and profit; until the venue settles it the pass
// returns an error and the next cycle retries. Runs with the live trade
// under its registry lock; journaling happens afterwards in settle.
func (s *Supervisor) settleClosed(ctx context.Context, t *types.Trade) error {
	deal, err := s.venue.ClosedDeal(ctx, t.Ticket)
	if err != nil {
		return err
	}
	t.Status = types.StatusClosed
	t.RemainingVolume = 0
	t.ClosePrice = deal.Price
	t.Profit = deal.Profit
	t.ClosedAt = deal.ClosedAt
	logger.Infof("position %d closed on venue at %v, profit %v", t.Ticket, deal.Price, deal.Profit)
	s.notify(ctx, "Position %d (%s) closed at %v, profit %v", t.Ticket, t.Symbol, deal.Price, deal.Profit)
	return nil
}

// settle journals a final trade and drops it from the registry. Runs after
// the evaluation released the trade's lock; a no-op while the trade is
// still live. Journaling failures keep the trade around so a later cycle
// can retry.
func (s *Supervisor) settle(ctx context.Context, ticket int64) {
	t, err := s.reg.Get(ticket)
	if err != nil || !t.Status.Final() {
		return
	}
	if t.Status == types.StatusClosed && t.Profit == 0 {
		// The closing deal may settle a moment after the close itself.
		if deal, derr := s.venue.ClosedDeal(ctx, ticket); derr == nil {
			t.Profit = deal.Profit
			if t.ClosePrice == 0 {
				t.ClosePrice = deal.Price
			}
		}
	}
	if s.journal != nil {
		if err := s.journal.RecordClosed(ctx, t); err != nil {
			logger.Warnf("journal ticket %d: %v", ticket, err)
			return
		}
	}
	s.reg.Forget(ticket)
}
