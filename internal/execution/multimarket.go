package execution

import (
	"traderelay/internal/calc"
	"traderelay/internal/tpassign"
	"traderelay/internal/types"
	"traderelay/internal/venue"
)

// MultiMarketStop fires several market orders at once, all sharing the
// signal's stop, with take-profits spread over the legs by the assignment
// policy. Under the sequential policy no leg carries a venue-side
// take-profit and each trade works through the ladder on its own.
type MultiMarketStop struct {
	cfg    Config
	assign *tpassign.Policy
}

func (m *MultiMarketStop) Name() string { return "multi_market_stop" }

func (m *MultiMarketStop) Plan(sig types.Signal, _ types.PendingKind, _ venue.Tick, cal *calc.Calculator) (Plan, error) {
	legs := m.cfg.Legs
	if legs < 1 {
		legs = 1
	}
	volumes, err := cal.SplitVolume(m.cfg.BaseVolume, legs)
	if err != nil {
		return Plan{}, err
	}
	tps := m.assign.Assign(legs, sig.TakeProfits)

	orders := make([]venue.OrderSpec, legs)
	for i := range orders {
		orders[i] = venue.OrderSpec{
			Symbol:     sig.Symbol,
			Side:       sig.Side,
			Kind:       types.OrderMarket,
			Volume:     volumes[i],
			StopLoss:   sig.StopLoss,
			TakeProfit: tps[i],
		}
	}
	return Plan{Orders: orders, Ladder: supervisedLadder(m.assign, sig)}, nil
}
