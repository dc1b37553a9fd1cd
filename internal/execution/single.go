package execution

import (
	"traderelay/internal/calc"
	"traderelay/internal/tpassign"
	"traderelay/internal/types"
	"traderelay/internal/venue"
)

// Single places one order for the whole volume. Pending entries are pushed
// out by the quoted spread plus the configured offset so the order triggers
// at the price the signal actually named.
type Single struct {
	cfg    Config
	assign *tpassign.Policy
}

func (s *Single) Name() string { return "single" }

func (s *Single) Plan(sig types.Signal, kind types.PendingKind, tick venue.Tick, cal *calc.Calculator) (Plan, error) {
	vol, err := cal.NormalizeVolume(s.cfg.BaseVolume)
	if err != nil {
		return Plan{}, err
	}
	tps := s.assign.Assign(1, sig.TakeProfits)

	spec := venue.OrderSpec{
		Symbol:     sig.Symbol,
		Side:       sig.Side,
		Kind:       sig.Kind,
		Volume:     vol,
		StopLoss:   sig.StopLoss,
		TakeProfit: tps[0],
	}
	if sig.Kind == types.OrderPending {
		entry := pickEntry(s.cfg.EntryMode, sig, tick, cal)
		spec.PendingKind = kind
		spec.Price = cal.AdjustEntryForSpread(sig.Side, entry, tick, s.cfg.PendingOffsetPips)
		if err := cal.ValidateStops(sig.Side, spec.Price, spec.StopLoss, sig.TakeProfits); err != nil {
			return Plan{}, err
		}
	}
	return Plan{Orders: []venue.OrderSpec{spec}, Ladder: supervisedLadder(s.assign, sig)}, nil
}
