// Package execution turns an accepted signal into venue orders. Strategies
// are pure planners; the Executor owns placement, retries and trade
// bookkeeping.
package execution

import (
	"fmt"

	"traderelay/internal/calc"
	"traderelay/internal/tpassign"
	"traderelay/internal/types"
	"traderelay/internal/venue"
)

// EntryMode picks the entry price when a signal gives a zone instead of a
// single price.
type EntryMode string

const (
	EntryMidpoint EntryMode = "midpoint"
	EntryClosest  EntryMode = "closest"  // zone bound nearest the current mid
	EntryFarthest EntryMode = "farthest" // zone bound farthest from the current mid
)

// Config tunes order construction.
type Config struct {
	Strategy          string    `mapstructure:"strategy"`
	Legs              int       `mapstructure:"legs"`
	BaseVolume        float64   `mapstructure:"base_volume"`
	EntryMode         EntryMode `mapstructure:"entry_mode"`
	PendingOffsetPips float64   `mapstructure:"pending_offset_pips"`
}

// Plan is the full set of orders a strategy wants placed for one signal.
// Ladder carries the targets the supervisor will close in stages; it is
// populated only under the sequential assignment policy. Targets neither on
// the ladder nor on an order are dropped.
type Plan struct {
	Orders []venue.OrderSpec
	Ladder []float64
}

// Strategy plans orders for an accepted signal. Implementations must not
// touch the venue; planning is pure so it can be tested against fixed ticks.
type Strategy interface {
	Name() string
	Plan(sig types.Signal, kind types.PendingKind, tick venue.Tick, cal *calc.Calculator) (Plan, error)
}

// Select returns the configured strategy.
func Select(cfg Config, assign *tpassign.Policy) (Strategy, error) {
	switch cfg.Strategy {
	case "", "single":
		return &Single{cfg: cfg, assign: assign}, nil
	case "distributed_limits":
		return &DistributedLimits{cfg: cfg, assign: assign}, nil
	case "multi_market_stop":
		return &MultiMarketStop{cfg: cfg, assign: assign}, nil
	default:
		return nil, fmt.Errorf("execution: unknown strategy %q", cfg.Strategy)
	}
}

// supervisedLadder returns the targets the supervisor should close in
// stages: the signal's whole list under the sequential policy, nothing
// otherwise.
func supervisedLadder(assign *tpassign.Policy, sig types.Signal) []float64 {
	if !assign.Sequential() || len(sig.TakeProfits) == 0 {
		return nil
	}
	return append([]float64(nil), sig.TakeProfits...)
}

// pickEntry resolves a zone to one price per the configured mode.
func pickEntry(mode EntryMode, sig types.Signal, tick venue.Tick, cal *calc.Calculator) float64 {
	if !sig.HasRange() {
		return sig.Price
	}
	mid := (tick.Bid + tick.Ask) / 2
	lowDist, highDist := abs(sig.RangeLow-mid), abs(sig.RangeHigh-mid)
	switch mode {
	case EntryClosest:
		if lowDist <= highDist {
			return sig.RangeLow
		}
		return sig.RangeHigh
	case EntryFarthest:
		if lowDist >= highDist {
			return sig.RangeLow
		}
		return sig.RangeHigh
	default:
		return cal.RoundPrice((sig.RangeLow + sig.RangeHigh) / 2)
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
