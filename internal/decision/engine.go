// Package decision scores incoming signals and resolves pending-order
// subtypes before anything reaches the venue.
package decision

import (
	"errors"
	"fmt"

	"traderelay/internal/calc"
	"traderelay/internal/types"
	"traderelay/internal/venue"
)

// ErrRejectedByPolicy marks a signal the engine scored below threshold.
var ErrRejectedByPolicy = errors.New("decision: rejected by policy")

// Weights are the scoring coefficients for the two factors, each in [0, 1].
type Weights struct {
	PriceAction float64 `mapstructure:"price_action"`
	Sentiment   float64 `mapstructure:"sentiment"`
}

// Config tunes the engine. With UseSentiment off the sentiment factor is a
// neutral 0.5 regardless of what the signal carried. MaxEntryDistancePips,
// when positive, is a hard gate in front of scoring: an entry farther from
// the market is rejected outright.
type Config struct {
	Weights              Weights `mapstructure:"weights"`
	Threshold            float64 `mapstructure:"threshold"`
	UseSentiment         bool    `mapstructure:"use_sentiment"`
	MaxEntryDistancePips float64 `mapstructure:"max_entry_distance_pips"`
}

// Verdict is the engine's answer for one signal.
type Verdict struct {
	Accepted    bool
	Score       float64
	PendingKind types.PendingKind
	Reason      string
}

// Engine scores signals. It is stateless and safe for concurrent use.
type Engine struct {
	cfg Config
}

// New returns an engine with the given configuration.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Evaluate scores a signal against the current market. Market orders bypass
// scoring and are always accepted. Pending orders get their limit/stop
// subtype resolved from the entry price relative to the quote; that
// resolution is the price-action factor, combined with the sentiment factor
// under the configured weights.
func (e *Engine) Evaluate(sig types.Signal, tick venue.Tick, cal *calc.Calculator) (Verdict, error) {
	if sig.Kind == types.OrderMarket {
		return Verdict{Accepted: true, Score: 1, Reason: "market order"}, nil
	}

	entry := sig.Price
	if sig.HasRange() {
		entry = (sig.RangeLow + sig.RangeHigh) / 2
	}
	if entry <= 0 {
		return Verdict{}, fmt.Errorf("%w: pending signal without entry price", ErrRejectedByPolicy)
	}
	kind := resolvePendingKind(sig.Side, entry, tick)

	if e.cfg.MaxEntryDistancePips > 0 && cal != nil {
		mid := (tick.Bid + tick.Ask) / 2
		dist := cal.PriceToPips(entry - mid)
		if dist < 0 {
			dist = -dist
		}
		if dist > e.cfg.MaxEntryDistancePips {
			v := Verdict{PendingKind: kind,
				Reason: fmt.Sprintf("entry %.0f pips from market, limit %.0f", dist, e.cfg.MaxEntryDistancePips)}
			return v, fmt.Errorf("%w: %s", ErrRejectedByPolicy, v.Reason)
		}
	}

	score := e.score(sig)
	if score < e.cfg.Threshold {
		v := Verdict{Score: score, PendingKind: kind,
			Reason: fmt.Sprintf("score %.3f below threshold %.3f", score, e.cfg.Threshold)}
		return v, fmt.Errorf("%w: %s", ErrRejectedByPolicy, v.Reason)
	}
	return Verdict{Accepted: true, Score: score, PendingKind: kind, Reason: "accepted"}, nil
}

// resolvePendingKind picks limit or stop from where the entry sits relative
// to the touch price for the side. Buys fill at ask, sells at bid; an entry
// on the far side of the touch is a stop, otherwise a limit.
func resolvePendingKind(side types.Side, entry float64, tick venue.Tick) types.PendingKind {
	if side == types.SideBuy {
		if entry > tick.Ask {
			return types.PendingStop
		}
		return types.PendingLimit
	}
	if entry < tick.Bid {
		return types.PendingStop
	}
	return types.PendingLimit
}

// score is the weighted sum of the two factors. By the time it runs a
// pending subtype has resolved, so price action contributes its full
// weight; sentiment maps [-1, 1] onto [0, 1], or holds at the neutral 0.5
// when disabled.
func (e *Engine) score(sig types.Signal) float64 {
	sent := 0.5
	if e.cfg.UseSentiment {
		s := sig.Sentiment
		if s < -1 {
			s = -1
		} else if s > 1 {
			s = 1
		}
		sent = (s + 1) / 2
	}
	return e.cfg.Weights.PriceAction + e.cfg.Weights.Sentiment*sent
}
