package execution

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

// Executor places planned orders and registers the resulting trades.
type Executor struct {
	venue venue.Venue
	reg   *registry.Registry
	retry venue.RetryPolicy
	now   func() time.Time
}

// NewExecutor wires an executor to the venue and registry.
func NewExecutor(v venue.Venue, reg *registry.Registry, retry venue.RetryPolicy) *Executor {
	return &Executor{venue: v, reg: reg, retry: retry, now: time.Now}
}

// Execute places every order in the plan. Legs are independent: a failed leg
// does not roll back earlier fills. The placed trades are registered and
// returned together with an error joining any failed legs.
func (e *Executor) Execute(ctx context.Context, sig types.Signal, plan Plan, cal *calc.Calculator) ([]*types.Trade, error) {
	var (
		placed []*types.Trade
		errs   []error
	)
	for i, spec := range plan.Orders {
		var res venue.OrderResult
		err := e.retry.Do(ctx, func() error {
			var perr error
			res, perr = e.venue.PlaceOrder(ctx, spec)
			return perr
		})
		if err != nil {
			logger.Errorf("place leg %d/%d %s %s failed: %v",
				i+1, len(plan.Orders), spec.Side, spec.Symbol, err)
			errs = append(errs, fmt.Errorf("leg %d: %w", i+1, err))
			continue
		}

		t := e.trackFill(sig, spec, res, plan.Ladder)
		e.reg.Add(t)
		placed = append(placed, t.Clone())
		logger.Infof("placed %s %s %s vol=%v ticket=%d",
			spec.Kind, spec.Side, spec.Symbol, res.Volume, res.Ticket)
	}
	if len(errs) > 0 {
		return placed, errors.Join(errs...)
	}
	return placed, nil
}

func (e *Executor) trackFill(sig types.Signal, spec venue.OrderSpec, res venue.OrderResult, ladder []float64) *types.Trade {
	now := e.now()
	status := types.StatusOpen
	entry := res.FilledPrice
	if spec.Kind == types.OrderPending {
		status = types.StatusPending
		entry = spec.Price
	}
	vol := res.Volume
	if vol <= 0 {
		vol = spec.Volume
	}
	targets := append([]float64(nil), ladder...)
	return &types.Trade{
		Ticket:          res.Ticket,
		OriginMessageID: sig.MessageID,
		Symbol:          sig.Symbol,
		Side:            sig.Side,
		Kind:            spec.Kind,
		PendingKind:     spec.PendingKind,
		Status:          status,
		EntryPrice:      entry,
		OpenedVolume:    vol,
		RemainingVolume: vol,
		StopLoss:        spec.StopLoss,
		TakeProfit:      spec.TakeProfit,
		Targets:         targets,
		AutoStopPending: !sig.HasStop(),
		OpenedAt:        now,
	}
}
