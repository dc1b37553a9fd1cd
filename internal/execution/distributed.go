package execution

import (
	"fmt"

	"traderelay/internal/calc"
	"traderelay/internal/tpassign"
	"traderelay/internal/types"
	"traderelay/internal/venue"
)

// DistributedLimits ladders pending orders across the signal's entry zone.
// The volume is split onto the step grid with the remainder on the first
// leg, and each leg's limit/stop subtype is resolved against the quote at
// its own price, so one ladder can mix limits and stops around the market.
type DistributedLimits struct {
	cfg    Config
	assign *tpassign.Policy
}

func (d *DistributedLimits) Name() string { return "distributed_limits" }

func (d *DistributedLimits) Plan(sig types.Signal, _ types.PendingKind, tick venue.Tick, cal *calc.Calculator) (Plan, error) {
	if !sig.HasRange() {
		return Plan{}, fmt.Errorf("execution: distributed_limits needs an entry zone")
	}
	legs := d.cfg.Legs
	if legs < 1 {
		legs = 1
	}
	entries, err := cal.EntryLadder(sig.RangeLow, sig.RangeHigh, legs)
	if err != nil {
		return Plan{}, err
	}
	volumes, err := cal.SplitVolume(d.cfg.BaseVolume, legs)
	if err != nil {
		return Plan{}, err
	}
	tps := d.assign.Assign(legs, sig.TakeProfits)

	orders := make([]venue.OrderSpec, legs)
	for i := range entries {
		price := cal.AdjustEntryForSpread(sig.Side, entries[i], tick, d.cfg.PendingOffsetPips)
		orders[i] = venue.OrderSpec{
			Symbol:      sig.Symbol,
			Side:        sig.Side,
			Kind:        types.OrderPending,
			PendingKind: legKind(sig.Side, price, tick),
			Volume:      volumes[i],
			Price:       price,
			StopLoss:    sig.StopLoss,
			TakeProfit:  tps[i],
		}
	}
	return Plan{Orders: orders, Ladder: supervisedLadder(d.assign, sig)}, nil
}

// legKind resolves the pending subtype for one ladder leg at its own price.
func legKind(side types.Side, price float64, tick venue.Tick) types.PendingKind {
	if side == types.SideBuy {
		if price > tick.Ask {
			return types.PendingStop
		}
		return types.PendingLimit
	}
	if price < tick.Bid {
		return types.PendingStop
	}
	return types.PendingLimit
}
